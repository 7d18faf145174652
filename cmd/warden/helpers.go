package main

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var labelCaser = cases.Title(language.English)

// titleLabel turns an internal identifier like "worker_failed" into a
// display label like "Worker Failed".
func titleLabel(value string) string {
	cleaned := strings.ReplaceAll(strings.TrimSpace(value), "_", " ")
	if cleaned == "" {
		return cleaned
	}
	return labelCaser.String(cleaned)
}

package paths

import (
	"path/filepath"
	"testing"
)

func TestDeriveLayout(t *testing.T) {
	p, err := Derive("/srv/app/lib", "Listener")
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	if p.BaseDir != "/srv/app/lib" {
		t.Fatalf("unexpected base dir: %s", p.BaseDir)
	}
	if p.LogDir != "/srv/app/log" {
		t.Fatalf("unexpected log dir: %s", p.LogDir)
	}
	if p.VarDir != "/srv/app/var" {
		t.Fatalf("unexpected var dir: %s", p.VarDir)
	}
	if got, want := p.LogFile, filepath.Join("/srv/app/log", "stdout_Listener.txt"); got != want {
		t.Fatalf("log file = %s, want %s", got, want)
	}
	if got, want := p.ErrFile, filepath.Join("/srv/app/log", "stderr_Listener.txt"); got != want {
		t.Fatalf("err file = %s, want %s", got, want)
	}
	if got, want := p.PidFile, filepath.Join("/srv/app/log", "pid_Listener.txt"); got != want {
		t.Fatalf("pid file = %s, want %s", got, want)
	}
}

func TestDeriveSanitizesName(t *testing.T) {
	p, err := Derive("/srv/app/lib", "my daemon/../etc")
	if err != nil {
		t.Fatalf("Derive returned error: %v", err)
	}
	if got, want := filepath.Base(p.PidFile), "pid_mydaemonetc.txt"; got != want {
		t.Fatalf("pid file name = %s, want %s", got, want)
	}
}

func TestDeriveRejectsEmpty(t *testing.T) {
	if _, err := Derive("", "Listener"); err == nil {
		t.Fatal("expected error for empty base dir")
	}
	if _, err := Derive("/srv/app/lib", "///"); err == nil {
		t.Fatal("expected error for unusable name")
	}
}

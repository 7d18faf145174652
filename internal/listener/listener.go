// Package listener is the bundled demonstration worker: a minimal HTTPS
// server behind a self-signed certificate. Preworker generates the key
// material and advertises the endpoint on disk, Worker serves until the stop
// signal cancels its context, and Postworker removes the advertisement.
package listener

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	mathrand "math/rand/v2"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"warden/internal/config"
	"warden/internal/lifecycle"
	"warden/internal/logging"
)

const (
	certFileName  = "cert.pem"
	hostFileName  = "host.txt"
	lockFileName  = "certstore.lock"
	ephemeralLow  = 49152
	ephemeralHigh = 65535

	responseStub = "<html><body><h1>warden</h1></body></html>"
)

// Advertisement is the JSON payload written to host.txt so local clients can
// find the listener without scanning ports.
type Advertisement struct {
	Scheme string `json:"scheme"`
	Host   string `json:"host"`
	Port   int    `json:"port"`
	Token  string `json:"token"`
}

// Listener implements lifecycle.Worker. Zero value is not usable; construct
// with New.
type Listener struct {
	cfg config.Listener

	host  string
	port  int
	token string
	cert  tls.Certificate
}

// New returns a listener worker configured from the listener config section.
func New(cfg config.Listener) *Listener {
	return &Listener{cfg: cfg}
}

// URL returns the advertised endpoint. Valid after Preworker has run.
func (l *Listener) URL() string {
	return fmt.Sprintf("https://%s", net.JoinHostPort(l.host, strconv.Itoa(l.port)))
}

// Preworker picks the endpoint, generates a self-signed certificate, and
// writes the advertisement files into the var directory. The private key
// never touches disk; it lives only in this process.
func (l *Listener) Preworker(env *lifecycle.Environment, args lifecycle.Args) error {
	if err := l.resolveEndpoint(); err != nil {
		return err
	}
	l.token = uuid.NewString()

	certDER, err := l.generateCertificate()
	if err != nil {
		return err
	}

	lock := flock.New(filepath.Join(env.Paths.VarDir, lockFileName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock certificate store: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck

	certPath := filepath.Join(env.Paths.VarDir, certFileName)
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write certificate: %w", err)
	}
	env.Logger.Info("saved certificate", logging.String("path", certPath))

	advert, err := json.Marshal(Advertisement{
		Scheme: "https",
		Host:   l.host,
		Port:   l.port,
		Token:  l.token,
	})
	if err != nil {
		return fmt.Errorf("encode advertisement: %w", err)
	}
	hostPath := filepath.Join(env.Paths.VarDir, hostFileName)
	if err := os.WriteFile(hostPath, advert, 0o644); err != nil {
		return fmt.Errorf("write advertisement: %w", err)
	}
	env.Logger.Info("saved host advertisement",
		logging.String("path", hostPath),
		logging.String("endpoint", l.URL()),
	)
	return nil
}

// Worker serves HTTPS until the context is canceled. Cancellation is the
// normal shutdown path and is reported as context.Canceled so the lifecycle
// treats it as an interrupt, not a failure.
func (l *Listener) Worker(ctx context.Context, env *lifecycle.Environment, args lifecycle.Args) error {
	addr := net.JoinHostPort(l.host, strconv.Itoa(l.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := &http.Server{
		Handler: l.accessLogged(env.Logger, http.HandlerFunc(l.stub)),
		TLSConfig: &tls.Config{
			Certificates: []tls.Certificate{l.cert},
			MinVersion:   tls.VersionTLS12,
		},
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(env.Logger.Handler(), slog.LevelWarn),
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			env.Logger.Warn("listener shutdown incomplete", logging.Error(err))
		}
	}()

	env.Logger.Info("ready to serve", logging.String("endpoint", l.URL()))
	fmt.Fprintf(env.Stdout, "listening on %s\n", l.URL())

	err = server.ServeTLS(ln, "", "")
	<-shutdownDone
	if errors.Is(err, http.ErrServerClosed) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return nil
	}
	return err
}

// Postworker removes the advertisement files. Missing files are logged and
// skipped; teardown keeps going.
func (l *Listener) Postworker(env *lifecycle.Environment, args lifecycle.Args) error {
	lock := flock.New(filepath.Join(env.Paths.VarDir, lockFileName))
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock certificate store: %w", err)
	}
	defer lock.Unlock() //nolint:errcheck

	for _, name := range []string{certFileName, hostFileName} {
		path := filepath.Join(env.Paths.VarDir, name)
		if err := os.Remove(path); err != nil {
			env.Logger.Warn("advertisement cleanup failed", logging.String("path", path), logging.Error(err))
			continue
		}
		env.Logger.Info("deleted file", logging.String("path", path))
	}
	return nil
}

func (l *Listener) resolveEndpoint() error {
	l.host = l.cfg.Host
	if l.host == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return fmt.Errorf("resolve hostname: %w", err)
		}
		l.host = hostname
	}

	l.port = l.cfg.Port
	if l.port == 0 {
		l.port = ephemeralLow + mathrand.IntN(ephemeralHigh-ephemeralLow+1)
	}
	if l.port < ephemeralLow || l.port > ephemeralHigh {
		return fmt.Errorf("listener port %d outside ephemeral range %d-%d", l.port, ephemeralLow, ephemeralHigh)
	}
	return nil
}

// generateCertificate builds a self-signed RSA certificate whose serial
// number is the listener port, valid from now for the configured number of
// days.
func (l *Listener) generateCertificate() ([]byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, 4096)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber: big.NewInt(int64(l.port)),
		Subject: pkix.Name{
			Organization:       []string{l.cfg.CertOrg},
			OrganizationalUnit: []string{"listener"},
			CommonName:         l.host,
		},
		NotBefore:             now,
		NotAfter:              now.AddDate(0, 0, l.cfg.CertDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	if ip := net.ParseIP(l.host); ip != nil {
		template.IPAddresses = []net.IP{ip}
	} else {
		template.DNSNames = []string{l.host}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("create certificate: %w", err)
	}

	l.cert = tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  key,
	}
	return der, nil
}

func (l *Listener) stub(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("X-Instance", l.token)
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, responseStub)
}

// accessLogged wraps a handler with one Apache common log format line per
// request: %h %l %u %t "%r" %>s %b.
func (l *Listener) accessLogged(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		remote := r.RemoteAddr
		if host, _, err := net.SplitHostPort(remote); err == nil {
			remote = host
		}
		logger.Info(fmt.Sprintf("%s - - [%s] \"%s %s %s\" %d %d",
			remote,
			time.Now().Format("02/Jan/2006:15:04:05 -0700"),
			r.Method, r.URL.RequestURI(), r.Proto,
			recorder.status, recorder.bytes,
		))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	n, err := r.ResponseWriter.Write(p)
	r.bytes += n
	return n, err
}

package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"casetrack/internal/auth"
	"casetrack/internal/blobstore"
	"casetrack/internal/store"
)

const (
	allowRemoteEnvKey = "CASETRACK_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second

	defaultMultipartMaxMemory = 8 << 20
)

// Options configures a Server beyond its storage backends.
type Options struct {
	Authenticator      auth.Authenticator
	Tokens             *auth.TokenManager
	UploadLimits       UploadLimits
	MultipartMaxMemory int64
	IDPrefix           string
	StorageBackend     string
	Version            string
	LoginMaxFailures   int
	LoginWindow        time.Duration
	LoginBlockFor      time.Duration
	Logger             *slog.Logger
}

// Server wraps the HTTP handlers for the casetrack API.
type Server struct {
	addr               string
	store              store.CaseStore
	blobs              blobstore.BlobStore
	cases              *CaseService
	authenticator      auth.Authenticator
	tokens             *auth.TokenManager
	loginLimiter       *loginRateLimiter
	uploadLimits       UploadLimits
	multipartMaxMemory int64
	storageBackend     string
	version            string
	logger             *slog.Logger
}

// New creates a new server instance.
func New(addr string, caseStore store.CaseStore, blobs blobstore.BlobStore, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	multipartMaxMemory := opts.MultipartMaxMemory
	if multipartMaxMemory <= 0 {
		multipartMaxMemory = defaultMultipartMaxMemory
	}

	return &Server{
		addr:               addr,
		store:              caseStore,
		blobs:              blobs,
		cases:              NewCaseService(caseStore, blobs, opts.UploadLimits, opts.IDPrefix, logger),
		authenticator:      opts.Authenticator,
		tokens:             opts.Tokens,
		loginLimiter:       newLoginRateLimiter(opts.LoginMaxFailures, opts.LoginWindow, opts.LoginBlockFor),
		uploadLimits:       opts.UploadLimits,
		multipartMaxMemory: multipartMaxMemory,
		storageBackend:     opts.StorageBackend,
		version:            opts.Version,
		logger:             logger,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr, "storage_backend", s.storageBackend)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}

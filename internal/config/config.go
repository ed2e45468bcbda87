package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:4000"
	DefaultDBFileName = ".casetrack.db"
	DefaultIDPrefix   = "cs"
	DefaultLogLevel   = "info"

	DefaultUploadMaxFileBytes  int64 = 20 * 1024 * 1024
	DefaultUploadMaxFiles            = 10
	DefaultMultipartMaxMemory  int64 = 8 * 1024 * 1024
	DefaultSessionTTL                = 2 * time.Hour
	DefaultStorageBackend            = "local"
	DefaultLoginMaxFailures          = 5
	DefaultLoginFailureWindow        = time.Minute
	DefaultLoginBlockDuration        = 5 * time.Minute

	configFileName  = ".casetrack.toml"
	configDirEnvKey = "CASETRACK_CONFIG_DIR"

	apiURLEnvKey       = "CASETRACK_API_URL"
	dbPathEnvKey       = "CASETRACK_DB"
	authEmailEnvKey    = "CASETRACK_AUTH_EMAIL"
	authPasswordEnvKey = "CASETRACK_AUTH_PASSWORD_HASH"
	sessionSecretKey   = "CASETRACK_SESSION_SECRET"
	blobRootEnvKey     = "CASETRACK_BLOB_ROOT"
	storageBackendKey  = "CASETRACK_STORAGE_BACKEND"
	s3AccessKeyEnvKey  = "CASETRACK_S3_ACCESS_KEY_ID"
	s3SecretKeyEnvKey  = "CASETRACK_S3_SECRET_ACCESS_KEY"
)

// UploadConfig defines runtime configuration for investigation file uploads.
type UploadConfig struct {
	MaxFileBytes       int64 `toml:"max_file_bytes"`
	MaxFiles           int   `toml:"max_files"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
}

// AuthConfig defines the fixed-identity gate and session signing.
type AuthConfig struct {
	Email             string `toml:"email"`
	PasswordHash      string `toml:"password_hash"`
	SessionSecret     string `toml:"session_secret"`
	SessionTTLMinutes int    `toml:"session_ttl_minutes"`
}

// StorageConfig selects and configures the blob store backend.
type StorageConfig struct {
	Backend     string `toml:"backend"` // "local" or "s3"
	BlobRoot    string `toml:"blob_root"`
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3KeyPrefix string `toml:"s3_key_prefix"`
	// Credentials come from the environment, never from the config file.
	S3AccessKeyID     string `toml:"-"`
	S3SecretAccessKey string `toml:"-"`
}

// LoginLimitConfig tunes the brute-force limiter on /auth/login.
type LoginLimitConfig struct {
	MaxFailures          int `toml:"max_failures"`
	FailureWindowSeconds int `toml:"failure_window_seconds"`
	BlockSeconds         int `toml:"block_seconds"`
}

// Config defines runtime configuration for casetrack.
type Config struct {
	APIURL     string           `toml:"api_url"`
	DBPath     string           `toml:"db_path"`
	IDPrefix   string           `toml:"id_prefix"`
	LogLevel   string           `toml:"log_level"`
	Uploads    UploadConfig     `toml:"uploads"`
	Auth       AuthConfig       `toml:"auth"`
	Storage    StorageConfig    `toml:"storage"`
	LoginLimit LoginLimitConfig `toml:"login_limit"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		DBPath:   "",
		IDPrefix: DefaultIDPrefix,
		LogLevel: DefaultLogLevel,
		Uploads: UploadConfig{
			MaxFileBytes:       DefaultUploadMaxFileBytes,
			MaxFiles:           DefaultUploadMaxFiles,
			MultipartMaxMemory: DefaultMultipartMaxMemory,
		},
		Auth: AuthConfig{
			SessionTTLMinutes: int(DefaultSessionTTL / time.Minute),
		},
		Storage: StorageConfig{
			Backend: DefaultStorageBackend,
		},
		LoginLimit: LoginLimitConfig{
			MaxFailures:          DefaultLoginMaxFailures,
			FailureWindowSeconds: int(DefaultLoginFailureWindow / time.Second),
			BlockSeconds:         int(DefaultLoginBlockDuration / time.Second),
		},
	}
}

// FailureWindow returns the window within which login failures count
// toward the block limit.
func (l LoginLimitConfig) FailureWindow() time.Duration {
	if l.FailureWindowSeconds <= 0 {
		return DefaultLoginFailureWindow
	}
	return time.Duration(l.FailureWindowSeconds) * time.Second
}

// BlockDuration returns how long an address stays blocked.
func (l LoginLimitConfig) BlockDuration() time.Duration {
	if l.BlockSeconds <= 0 {
		return DefaultLoginBlockDuration
	}
	return time.Duration(l.BlockSeconds) * time.Second
}

// SessionTTL returns the configured session lifetime.
func (c *Config) SessionTTL() time.Duration {
	if c == nil || c.Auth.SessionTTLMinutes <= 0 {
		return DefaultSessionTTL
	}
	return time.Duration(c.Auth.SessionTTLMinutes) * time.Minute
}

// BlobRoot returns the blob directory for the local backend, defaulting to
// a dot-directory next to the database file.
func (c *Config) BlobRoot() string {
	if c == nil {
		return ""
	}
	if root := strings.TrimSpace(c.Storage.BlobRoot); root != "" {
		return root
	}
	if c.DBPath == "" {
		return ""
	}
	return filepath.Join(filepath.Dir(c.DBPath), ".casetrack", "blobs")
}

// Load reads config from the resolved file and applies env overrides.
func Load() (*Config, error) {
	cfg := Default()

	path, err := Path()
	if err != nil {
		return nil, err
	}
	if _, err := loadFileIfExists(path, &cfg); err != nil {
		return nil, err
	}

	if cfg.DBPath == "" {
		if cwd, err := os.Getwd(); err == nil {
			cfg.DBPath = filepath.Join(cwd, DefaultDBFileName)
		}
	}

	applyEnvOverrides(&cfg)
	cfg.normalizeDefaults()

	return &cfg, nil
}

// Path returns the active config file path: the env-pinned directory when
// set, otherwise the user home directory.
func Path() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		return filepath.Join(dir, configFileName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(apiURLEnvKey)); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(dbPathEnvKey)); v != "" {
		cfg.DBPath = v
	}
	if v := strings.TrimSpace(os.Getenv(authEmailEnvKey)); v != "" {
		cfg.Auth.Email = v
	}
	if v := strings.TrimSpace(os.Getenv(authPasswordEnvKey)); v != "" {
		cfg.Auth.PasswordHash = v
	}
	if v := strings.TrimSpace(os.Getenv(sessionSecretKey)); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := strings.TrimSpace(os.Getenv(blobRootEnvKey)); v != "" {
		cfg.Storage.BlobRoot = v
	}
	if v := strings.TrimSpace(os.Getenv(storageBackendKey)); v != "" {
		cfg.Storage.Backend = v
	}
	cfg.Storage.S3AccessKeyID = strings.TrimSpace(os.Getenv(s3AccessKeyEnvKey))
	cfg.Storage.S3SecretAccessKey = strings.TrimSpace(os.Getenv(s3SecretKeyEnvKey))
}

func (c *Config) normalizeDefaults() {
	if c.Uploads.MaxFileBytes <= 0 {
		c.Uploads.MaxFileBytes = DefaultUploadMaxFileBytes
	}
	if c.Uploads.MaxFiles <= 0 {
		c.Uploads.MaxFiles = DefaultUploadMaxFiles
	}
	if c.Uploads.MultipartMaxMemory <= 0 {
		c.Uploads.MultipartMaxMemory = DefaultMultipartMaxMemory
	}
	if strings.TrimSpace(c.IDPrefix) == "" {
		c.IDPrefix = DefaultIDPrefix
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = DefaultStorageBackend
	}
	if c.LoginLimit.MaxFailures <= 0 {
		c.LoginLimit.MaxFailures = DefaultLoginMaxFailures
	}
	if c.LoginLimit.FailureWindowSeconds <= 0 {
		c.LoginLimit.FailureWindowSeconds = int(DefaultLoginFailureWindow / time.Second)
	}
	if c.LoginLimit.BlockSeconds <= 0 {
		c.LoginLimit.BlockSeconds = int(DefaultLoginBlockDuration / time.Second)
	}
}

var allowedKeys = []string{
	"api_url",
	"db_path",
	"id_prefix",
	"log_level",
	"uploads.max_file_bytes",
	"uploads.max_files",
	"uploads.multipart_max_memory",
	"auth.email",
	"auth.password_hash",
	"auth.session_secret",
	"auth.session_ttl_minutes",
	"storage.backend",
	"storage.blob_root",
	"storage.s3_bucket",
	"storage.s3_region",
	"storage.s3_endpoint",
	"storage.s3_key_prefix",
	"login_limit.max_failures",
	"login_limit.failure_window_seconds",
	"login_limit.block_seconds",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "api_url":
		return c.APIURL, nil
	case "db_path":
		return c.DBPath, nil
	case "id_prefix":
		return c.IDPrefix, nil
	case "log_level":
		return c.LogLevel, nil
	case "uploads.max_file_bytes":
		return strconv.FormatInt(c.Uploads.MaxFileBytes, 10), nil
	case "uploads.max_files":
		return strconv.Itoa(c.Uploads.MaxFiles), nil
	case "uploads.multipart_max_memory":
		return strconv.FormatInt(c.Uploads.MultipartMaxMemory, 10), nil
	case "auth.email":
		return c.Auth.Email, nil
	case "auth.password_hash":
		return c.Auth.PasswordHash, nil
	case "auth.session_secret":
		return c.Auth.SessionSecret, nil
	case "auth.session_ttl_minutes":
		return strconv.Itoa(c.Auth.SessionTTLMinutes), nil
	case "storage.backend":
		return c.Storage.Backend, nil
	case "storage.blob_root":
		return c.Storage.BlobRoot, nil
	case "storage.s3_bucket":
		return c.Storage.S3Bucket, nil
	case "storage.s3_region":
		return c.Storage.S3Region, nil
	case "storage.s3_endpoint":
		return c.Storage.S3Endpoint, nil
	case "storage.s3_key_prefix":
		return c.Storage.S3KeyPrefix, nil
	case "login_limit.max_failures":
		return strconv.Itoa(c.LoginLimit.MaxFailures), nil
	case "login_limit.failure_window_seconds":
		return strconv.Itoa(c.LoginLimit.FailureWindowSeconds), nil
	case "login_limit.block_seconds":
		return strconv.Itoa(c.LoginLimit.BlockSeconds), nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "uploads.max_file_bytes", "uploads.multipart_max_memory":
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "uploads.max_files", "auth.session_ttl_minutes",
		"login_limit.max_failures", "login_limit.failure_window_seconds", "login_limit.block_seconds":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

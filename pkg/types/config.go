package types

import (
	"errors"
	"log/slog"
	"strings"
)

// Config holds backend selection and deployment parameters.
type Config struct {
	Backend    string `json:"backend" yaml:"backend" mapstructure:"backend"`
	DataDir    string `json:"data_dir" yaml:"data_dir" mapstructure:"data_dir"`
	Membership string `json:"membership" yaml:"membership" mapstructure:"membership"`
	LogLevel   string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
}

// Supported backend names.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Supported allowlist variants.
const (
	// MembershipRegistry keeps one record per approved identity.
	MembershipRegistry = "registry"
	// MembershipRoster keeps every approved identity in one shared record.
	MembershipRoster = "roster"
)

// Config validation errors.
var (
	ErrBackendEmpty      = errors.New("backend must not be empty")
	ErrBackendUnknown    = errors.New("unknown backend")
	ErrMembershipUnknown = errors.New("unknown membership variant")
	ErrLogLevelUnknown   = errors.New("unknown log level")

	// ErrMembershipMismatch is returned when a store is opened with a
	// variant other than the one it was initialized with.
	ErrMembershipMismatch = errors.New("membership variant does not match deployment")
)

// knownBackends lists the backends that Validate accepts.
var knownBackends = map[string]bool{
	BackendSQLite: true,
	BackendMemory: true,
}

// knownMemberships lists the allowlist variants that Validate accepts.
// An empty value selects MembershipRegistry.
var knownMemberships = map[string]bool{
	"":                 true,
	MembershipRegistry: true,
	MembershipRoster:   true,
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Backend == "" {
		return ErrBackendEmpty
	}
	if !knownBackends[c.Backend] {
		return ErrBackendUnknown
	}
	if !knownMemberships[c.Membership] {
		return ErrMembershipUnknown
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// MembershipVariant returns the configured allowlist variant, defaulting to
// MembershipRegistry.
func (c Config) MembershipVariant() string {
	if c.Membership == "" {
		return MembershipRegistry
	}
	return c.Membership
}

// ParseLogLevel maps debug, info, warn and error to slog levels.
// An empty string means info.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrLogLevelUnknown
	}
}

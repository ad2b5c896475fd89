package tsgrep

import "fmt"

// ConfigError is a fatal, startup-time configuration error (spec.md 7).
// Run reports it and returns exit code 2 without searching anything.
type ConfigError struct {
	Kind string // NoQuery, BothQueryAndQueryFile, UnknownLanguage, QueryHasNoCaptures, NoSuchCapture, PluginLoadFailed
	Msg  string
}

func (e *ConfigError) Error() string { return e.Msg }

func newConfigError(kind, format string, args ...any) *ConfigError {
	return &ConfigError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Package obslog provides the structured logger shared by the analysis
// packages. Spec §7 treats several conditions — external invoke targets,
// unresolvable dispatch, missing seed methods, unknown IR statement kinds —
// as "silently skipped, logged at warning level" rather than as errors.
// This package is where that logging lives. Slicer budget exhaustion is not
// logged; it is reported through the slice result's Truncated flag.
package obslog

import "go.uber.org/zap"

// New builds a production logger (JSON encoding, on stderr) that emits
// messages at level and above. Info-level messages (e.g. the project's
// cache-restore notice) appear only when level is info or lower.
func New(level zap.AtomicLevel) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = level
	return cfg.Build()
}

// Nop returns a logger that discards everything, for callers (mostly
// tests) that don't want log noise on the failure paths being exercised.
func Nop() *zap.Logger {
	return zap.NewNop()
}

// WarnLevel returns the warn level, for callers of New that don't need
// anything more verbose than the spec's "logged at warning level" cases.
func WarnLevel() zap.AtomicLevel {
	return zap.NewAtomicLevelAt(zap.WarnLevel)
}

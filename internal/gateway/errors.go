package gateway

import "errors"

// UnknownPresetError reports a request naming a preset that is not loaded.
type UnknownPresetError struct{ Name string }

func (e *UnknownPresetError) Error() string { return "unknown preset: " + e.Name }

// IsUnknownPreset reports whether err is (or wraps) an UnknownPresetError.
func IsUnknownPreset(err error) bool {
	var e *UnknownPresetError
	return errors.As(err, &e)
}

// ErrWorkerNotConfigured is returned by Ready when no health checker is set.
var ErrWorkerNotConfigured = errors.New("worker health check not configured")

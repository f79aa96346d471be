package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Wrap tags err with marker and prefixes "component: operation: message".
// A nil marker means ErrTransient. err may be nil.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorHint maps a classified error to the short operator hint attached to
// warning and error log lines.
func ErrorHint(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "check the configuration file"
	case errors.Is(err, ErrValidation):
		return "inspect the output file before retrying"
	case errors.Is(err, ErrNotFound):
		return "verify the name and try again"
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTransient):
		return "usually temporary; will be retried on the next cycle"
	case errors.Is(err, ErrExternalTool):
		return "check that the external tool is installed and working"
	default:
		return "check logs for details"
	}
}

func buildDetail(parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		return "service failure"
	}
	return strings.Join(kept, ": ")
}

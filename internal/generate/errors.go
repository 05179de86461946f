package generate

import (
	"fmt"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	// KindStatus is a non-2xx answer from the provider.
	KindStatus ErrorKind = "status"
	// KindTransport is a network or context failure before any answer.
	KindTransport ErrorKind = "transport"
	// KindParse is a reply that is not the JSON document asked for.
	KindParse ErrorKind = "parse"
)

// GenerationError reports a failed provider call or an unusable reply.
// Parse failures carry the path of the diagnostic file holding the raw reply.
type GenerationError struct {
	Stage          string
	PromptKey      string
	Kind           ErrorKind
	StatusCode     int
	Payload        string
	DiagnosticPath string
	Err            error
}

func (e *GenerationError) Error() string {
	switch e.Kind {
	case KindStatus:
		return fmt.Sprintf("%s: provider returned status %d: %s", e.Stage, e.StatusCode, truncate(e.Payload, 200))
	case KindParse:
		if e.DiagnosticPath != "" {
			return fmt.Sprintf("%s: unparseable reply (raw saved to %s): %v", e.Stage, e.DiagnosticPath, e.Err)
		}
		return fmt.Sprintf("%s: unparseable reply: %v", e.Stage, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
}

func (e *GenerationError) Unwrap() error { return e.Err }

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}

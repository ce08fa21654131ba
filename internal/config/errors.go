package config

import "fmt"

// Kind classifies a configuration failure.
type Kind int

const (
	KindUnexpected Kind = iota
	KindNotFound
	KindMissingSection
	KindMissingKey
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindMissingSection:
		return "missing section"
	case KindMissingKey:
		return "missing key"
	case KindMalformed:
		return "malformed"
	default:
		return "unexpected"
	}
}

// Error is returned by Load and Credentials.Validate.
type Error struct {
	Kind Kind
	Path string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("configuration file was not found: %s", e.Path)
	case KindMissingSection:
		return fmt.Sprintf("configuration file %s has no [%s] section", e.Path, Section)
	case KindMissingKey:
		if e.Path == "" {
			return fmt.Sprintf("missing required setting: %s", e.Key)
		}
		return fmt.Sprintf("configuration file %s is missing required key %q", e.Path, e.Key)
	case KindMalformed:
		if e.Key != "" {
			return fmt.Sprintf("configuration key %q is invalid: %v", e.Key, e.Err)
		}
		return fmt.Sprintf("configuration file %s is malformed: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("unexpected error loading configuration: %v", e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

package xr

import "fmt"

// Outcome is the settled result of a capability probe. It is a closed set of
// variants rather than a bool so call sites switch on it explicitly.
type Outcome uint8

const (
	// OutcomeUnsupported is the zero value: an unknown device is never started.
	OutcomeUnsupported Outcome = iota
	OutcomeSupported
)

// OutcomeFromBool maps a runtime's truthy/falsy support answer to an Outcome.
func OutcomeFromBool(supported bool) Outcome {
	if supported {
		return OutcomeSupported
	}
	return OutcomeUnsupported
}

func (o Outcome) String() string {
	switch o {
	case OutcomeSupported:
		return "supported"
	case OutcomeUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("outcome(%d)", uint8(o))
	}
}

// Supported reports whether o permits starting the runtime.
func (o Outcome) Supported() bool {
	return o == OutcomeSupported
}

// MarshalText renders the outcome by name in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (o *Outcome) UnmarshalText(b []byte) error {
	switch string(b) {
	case "supported":
		*o = OutcomeSupported
	case "unsupported":
		*o = OutcomeUnsupported
	default:
		return fmt.Errorf("unknown outcome %q", string(b))
	}
	return nil
}

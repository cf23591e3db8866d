package params

import "fmt"

// Mode selects how much parameter validation a run performs.
type Mode int

const (
	// ModeOff performs no checks at all.
	ModeOff Mode = iota
	// ModeWarn logs validation problems and continues.
	ModeWarn
	// ModeStrict fails the run before any node executes.
	ModeStrict
	// ModeDebug behaves like warn and additionally records a structured
	// trace of every resolution decision, retrievable after the run.
	ModeDebug
)

// ParseMode converts a configuration string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "off":
		return ModeOff, nil
	case "warn":
		return ModeWarn, nil
	case "strict":
		return ModeStrict, nil
	case "debug":
		return ModeDebug, nil
	default:
		return ModeOff, fmt.Errorf("invalid parameter validation mode %q (want off, warn, strict, or debug)", s)
	}
}

// String implements fmt.Stringer.
func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "off"
	case ModeWarn:
		return "warn"
	case ModeStrict:
		return "strict"
	case ModeDebug:
		return "debug"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

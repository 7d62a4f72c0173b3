package cpu

import "errors"

// Fatal execution errors per spec.md §7: these unwind Tick's caller instead
// of being absorbed like a guarded bus no-op. Wrapped with fmt.Errorf("%w",
// ...) when raised so callers can still errors.Is against the sentinel.
var (
	ErrUndefinedOpcode = errors.New("undefined opcode")
	ErrStopExecuted    = errors.New("STOP executed")
	ErrForbiddenFetch  = errors.New("opcode fetch from forbidden bus region")
)

package watchboard

import (
	"github.com/jpalmerr/watchboard/internal/format"
	"github.com/jpalmerr/watchboard/monitor"
)

// Formatter renders values of one exact type.
//
// Formatters are consulted before every built-in rule, so a Formatter for
// int replaces the default rendering of every int member. The function
// receives the member's display metadata and returns the complete line,
// label included.
//
// Formatter functions run on the update loop inside a recovery boundary: a
// panic disables the Handle and records a correlation id, it does not stop
// the engine.
type Formatter struct {
	custom format.CustomFormatter
}

// NewFormatter adapts fn into a [Formatter] for values of type T.
//
// Example:
//
//	hp := watchboard.NewFormatter(func(fd monitor.FormatData, h game.Health) string {
//	    return fmt.Sprintf("%s: %d/%d", fd.Label, h.Current, h.Max)
//	})
func NewFormatter[T any](fn func(monitor.FormatData, T) string) Formatter {
	return Formatter{custom: format.Custom(fn)}
}

// LabelFormatter returns a [Formatter] for T that prefixes fn's output with
// the member label, honouring the nolabel flag.
//
// Example:
//
//	watchboard.LabelFormatter(func(d time.Duration) string {
//	    return d.Round(time.Millisecond).String()
//	})
func LabelFormatter[T any](fn func(T) string) Formatter {
	return NewFormatter(func(fd monitor.FormatData, v T) string {
		if fd.HideLabel {
			return fn(v)
		}
		return fd.Label + ": " + fn(v)
	})
}

// ParseFormatter adapts a function value with the signature
// func(monitor.FormatData, T) string, for callers that only know the type
// at run time.
//
// Returns an error if fn has a different signature.
func ParseFormatter(fn any) (Formatter, error) {
	c, err := format.CustomFunc(fn)
	if err != nil {
		return Formatter{}, err
	}
	return Formatter{custom: c}, nil
}

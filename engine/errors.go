package engine

import (
	"go.uber.org/zap"

	"github.com/rubiojr/bindgen/binderr"
	"github.com/rubiojr/bindgen/model"
)

// Decision is what an ErrorHandler wants done after a failure.
type Decision int

const (
	// Abort stops the run; Generate returns the error.
	Abort Decision = iota
	// Continue skips the failed member (or excludes the failed class) and
	// goes on.
	Continue
)

func (d Decision) String() string {
	if d == Continue {
		return "continue"
	}
	return "abort"
}

// ErrorHandler receives every configuration and generation error of a run.
type ErrorHandler interface {
	HandleError(d model.Descriptor, err error) Decision
}

// HandlerFunc adapts a function to ErrorHandler.
type HandlerFunc func(d model.Descriptor, err error) Decision

func (f HandlerFunc) HandleError(d model.Descriptor, err error) Decision { return f(d, err) }

// AbortOnError stops at the first error. It is the default handler.
var AbortOnError ErrorHandler = HandlerFunc(func(model.Descriptor, error) Decision { return Abort })

// LogAndContinue logs each error at warn level and continues.
func LogAndContinue(log *zap.Logger) ErrorHandler {
	return HandlerFunc(func(d model.Descriptor, err error) Decision {
		log.Warn("skipping",
			zap.String("member", Describe(d)),
			zap.Stringer("kind", binderr.KindOf(err)),
			zap.Error(err))
		return Continue
	})
}

// Describe names the descriptor a failure belongs to, as it appears in
// logs and reports.
func Describe(d model.Descriptor) string {
	if d == nil {
		return "<none>"
	}
	return d.Describe()
}

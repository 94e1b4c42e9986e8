package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers a panic and logs it with the full stack trace.
// Intended for defer statements guarding goroutines whose crash must not
// take the process down:
//
//	defer observability.RecoverPanic(logger, "shutdown step")
//
// The panic is not re-raised, so the surrounding function returns
// normally after logging.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("panic recovered")
	}
}

package logging

import (
	"fmt"
	"runtime/debug"
)

// Recover wraps fn so a panic is logged with its stack instead of killing the
// process. onPanic, when non-nil, runs after the record is written.
func Recover(logger Logger, component string, fn func(), onPanic func(v any)) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().
					Str(FieldComponent, component).
					Str("panic_value", fmt.Sprintf("%v", r)).
					Str("stack_trace", string(debug.Stack())).
					Msg("PANIC RECOVERED")
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}
}

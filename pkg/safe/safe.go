package safe

import (
	"log/slog"
	"runtime/debug"
)

// Run executes fn and recovers any panic, logging it with the stack trace.
// Every background goroutine in the project goes through here.
func Run(fn func()) {
	RunWithComponent(fn, "safe.Run")
}

func RunWithComponent(fn func(), component string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	fn()
}

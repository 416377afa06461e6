package protocol

import "fmt"

// Assertf panics when cond is false in builds tagged linkdebug and is a no-op otherwise.
func Assertf(cond bool, format string, args ...any) {
	if debugAssertions && !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

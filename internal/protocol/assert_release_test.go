//go:build !linkdebug

package protocol

import (
	"testing"

	"github.com/danmuck/aoalink/internal/testutil/testlog"
)

func TestAssertfIsNoOpWithoutDebugTag(t *testing.T) {
	testlog.Start(t)
	Assertf(false, "size=%d", 7)
}

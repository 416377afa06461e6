//go:build linkdebug

package frame

import (
	"bytes"
	"strings"
	"testing"

	"github.com/danmuck/aoalink/internal/testutil/testlog"
)

func TestWriteEmptyPayloadPanics(t *testing.T) {
	testlog.Start(t)
	var buf bytes.Buffer
	defer func() {
		r := recover()
		msg, _ := r.(string)
		if !strings.Contains(msg, "size value out of bounds: 0") {
			t.Fatalf("expected size assertion, got %v", r)
		}
		if buf.Len() != 0 {
			t.Fatalf("nothing should reach the wire")
		}
	}()
	_ = Write(&buf, nil)
}

package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danmuck/aoalink/internal/testutil/testlog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	RecordSessionClosed("sentinel")
	RecordFrame(DirectionIn, 6220800)
	RecordFrame(DirectionOut, 5)
	RecordIncompleteRead()
	RecordAttachPoll(AttachNone)
	RecordWriteFailure("device_absent")
}

func TestHandlerExposesLinkMetrics(t *testing.T) {
	testlog.Start(t)
	RecordFrame(DirectionIn, 3)

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get metrics: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(body), `aoalink_link_frames_total{direction="in"}`) {
		t.Fatalf("frames metric missing from output")
	}
}

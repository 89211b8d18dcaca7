package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/riakmr/internal/testutil/testlog"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	testlog.Start(t)
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(streamBytes)
	RecordHTTPRequest("bridge-a", "POST", "/mapreduce", 200, 12*time.Millisecond)
	RecordMapReduce("ok", 128, 24*time.Millisecond)
	RecordMapReduce("communication", 0, time.Millisecond)

	if got := testutil.ToFloat64(streamBytes) - before; got != 128 {
		t.Fatalf("unexpected stream bytes delta: %v", got)
	}
	if got := testutil.ToFloat64(mapreduceRequests.WithLabelValues("communication")); got < 1 {
		t.Fatalf("communication outcome not counted: %v", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.Nop()), RequestMetrics("bridge-a"))
	r.GET("/id", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/id", nil)
	req.Header.Set(HeaderRequestID, "abc-123")
	r.ServeHTTP(rec, req)
	if rec.Body.String() != "abc-123" || rec.Header().Get(HeaderRequestID) != "abc-123" {
		t.Fatalf("inbound request id not kept: body=%q header=%q", rec.Body.String(), rec.Header().Get(HeaderRequestID))
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/id", nil))
	if len(rec.Body.String()) != 36 {
		t.Fatalf("expected generated uuid, got %q", rec.Body.String())
	}
}

func TestRequestLoggerLevelsAndKind(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	r := gin.New()
	r.Use(RequestID(), RequestLogger(zerolog.New(&buf)))
	r.POST("/mapreduce", func(c *gin.Context) {
		SetErrorKind(c, "protocol_mismatch")
		c.Status(http.StatusBadGateway)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/mapreduce", nil))
	line := buf.String()
	for _, want := range []string{`"level":"error"`, `"kind":"protocol_mismatch"`, `"route":"/mapreduce"`, `"status":502`} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %s in %s", want, line)
		}
	}

	buf.Reset()
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	if line := buf.String(); !strings.Contains(line, `"level":"info"`) || strings.Contains(line, `"kind"`) {
		t.Fatalf("unexpected access line: %s", line)
	}
}

package observability

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetricsHandlerExposesCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/tickets", "POST", 201, 15*time.Millisecond)
	m.RecordError("/api/tickets/:id/status", "PATCH", "INVALID_TRANSITION")
	m.RecordAICall("classify", "degraded")
	m.RecordSLANotification("warning", "response", "sent")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`helpdesk_http_requests_total{method="POST",path="/api/tickets",status="201"} 1`,
		`helpdesk_http_errors_total{code="INVALID_TRANSITION",method="PATCH",path="/api/tickets/:id/status"} 1`,
		`helpdesk_ai_calls_total{capability="classify",outcome="degraded"} 1`,
		`helpdesk_sla_notifications_total{notification="warning",outcome="sent",sla="response"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	m.RecordAICall("draft", "ok")
	m.ObserveSweep(time.Second)
	m.RecordAssignment("create", "assigned")
}

package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCounters(t *testing.T) {
	m := New()

	m.JobsSubmitted.WithLabelValues("keynote").Inc()
	m.JobsFinished.WithLabelValues("completed").Add(2)
	m.DroppedChunks.Add(3)

	if got := testutil.ToFloat64(m.JobsSubmitted.WithLabelValues("keynote")); got != 1 {
		t.Errorf("Expected 1 submitted keynote job, got %v", got)
	}
	if got := testutil.ToFloat64(m.JobsFinished.WithLabelValues("completed")); got != 2 {
		t.Errorf("Expected 2 completed jobs, got %v", got)
	}
	if got := testutil.ToFloat64(m.DroppedChunks); got != 3 {
		t.Errorf("Expected 3 dropped chunks, got %v", got)
	}
}

func TestObserveStep(t *testing.T) {
	m := New()

	m.ObserveStep("align", true, 10*time.Millisecond)
	m.ObserveStep("align", false, time.Second)

	if count := testutil.CollectAndCount(m.StepSeconds, "keynotes_step_duration_seconds"); count != 2 {
		t.Errorf("Expected 2 step series, got %d", count)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.JobsSubmitted.WithLabelValues("transcribe").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `keynotes_jobs_submitted_total{task="transcribe"} 1`) {
		t.Errorf("Expected submitted counter in exposition, got:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("Expected Go runtime metrics in exposition")
	}
}

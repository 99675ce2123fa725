package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestCollector_ImplementsInterface はCollectorがMetricsCollectorを満たすことを検証する。
func TestCollector_ImplementsInterface(t *testing.T) {
	var _ MetricsCollector = (*Collector)(nil)
	var _ MetricsCollector = NopCollector{}
}

func findFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestRecordUpstreamRequest_CountsAndObserves はリクエスト数とレイテンシが記録されることを検証する。
func TestRecordUpstreamRequest_CountsAndObserves(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamRequest("list_repos", "ok", 120*time.Millisecond)
	c.RecordUpstreamRequest("list_repos", "ok", 80*time.Millisecond)
	c.RecordUpstreamRequest("list_repos", "unavailable", time.Second)

	mf := findFamily(t, reg, "ghdash_upstream_requests_total")
	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		counts[labelValue(m, "endpoint")+"/"+labelValue(m, "outcome")] = m.GetCounter().GetValue()
	}
	if counts["list_repos/ok"] != 2 {
		t.Errorf("list_repos/ok = %v, want 2", counts["list_repos/ok"])
	}
	if counts["list_repos/unavailable"] != 1 {
		t.Errorf("list_repos/unavailable = %v, want 1", counts["list_repos/unavailable"])
	}

	latency := findFamily(t, reg, "ghdash_upstream_latency_seconds")
	h := latency.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 3 {
		t.Errorf("sample count = %d, want 3", h.GetSampleCount())
	}
}

// TestRecordSearchResult_IncrementsByKind は検索結果種別のカウンタを検証する。
func TestRecordSearchResult_IncrementsByKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSearchResult("owned")
	c.RecordSearchResult("global")
	c.RecordSearchResult("global")

	mf := findFamily(t, reg, "ghdash_search_results_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "kind")] = m.GetCounter().GetValue()
	}
	if got["owned"] != 1 || got["global"] != 2 {
		t.Errorf("search results = %v, want owned=1 global=2", got)
	}
}

// TestRecordAuthEvent_IncrementsByEvent は認証イベントのカウンタを検証する。
func TestRecordAuthEvent_IncrementsByEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthEvent("login_succeeded")

	mf := findFamily(t, reg, "ghdash_auth_events_total")
	if v := mf.GetMetric()[0].GetCounter().GetValue(); v != 1 {
		t.Errorf("auth events = %v, want 1", v)
	}
	if l := labelValue(mf.GetMetric()[0], "event"); l != "login_succeeded" {
		t.Errorf("event label = %q, want login_succeeded", l)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	mf := findFamily(t, reg, "ghdash_http_status_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "status_code")] = m.GetCounter().GetValue()
	}
	if got["200"] != 2 {
		t.Errorf("status 200 = %v, want 2", got["200"])
	}
	if got["404"] != 1 {
		t.Errorf("status 404 = %v, want 1", got["404"])
	}
}

// TestNewCollector_DuplicateRegistrationPanics は同一レジストリへの二重登録でpanicすることを検証する。
func TestNewCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	_ = NewCollector(reg)
}

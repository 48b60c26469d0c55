package perf

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
	jobmetrics "github.com/almoxarifado/almoxarifado/internal/jobs"
	"github.com/almoxarifado/almoxarifado/jobs"
)

type scriptedReconciler struct {
	calls atomic.Int64
	delay time.Duration
}

// Every fifth run reports one item that could not be repaired.
func (r *scriptedReconciler) Reconcile(ctx context.Context, repair bool) (inventory.ReconcileReport, error) {
	n := r.calls.Add(1)
	time.Sleep(r.delay)
	report := inventory.ReconcileReport{CheckedAt: time.Now()}
	if n%5 == 0 {
		report.StockDrift = []inventory.Drift{{ItemID: n, LocationID: 1, Recorded: 4, Replayed: 3}}
		report.Failed = 1
	}
	return report, nil
}

func TestLedgerReconcileJobThroughputAndReliability(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := jobmetrics.NewMetrics(reg)
	reconciler := &scriptedReconciler{delay: 2 * time.Millisecond}
	job := jobs.NewLedgerReconcileJob(reconciler, slog.New(slog.NewTextHandler(io.Discard, nil)), metrics)

	task, err := jobs.NewLedgerReconcileTask(false)
	if err != nil {
		t.Fatalf("build task: %v", err)
	}
	failures := 0
	for i := 0; i < 50; i++ {
		if err := job.Handle(context.Background(), task); err != nil {
			failures++
		}
	}
	if failures != 10 {
		t.Fatalf("expected 10 failed runs, got %d", failures)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	success := metricValue(t, families, "almox_jobs_total", map[string]string{"job": jobs.TaskLedgerReconcile, "status": "success"})
	failure := metricValue(t, families, "almox_jobs_total", map[string]string{"job": jobs.TaskLedgerReconcile, "status": "failure"})
	if ratio := success / (success + failure); ratio < 0.8 {
		t.Fatalf("reconcile success ratio too low: %f", ratio)
	}
	if drift := metricValue(t, families, "almox_ledger_drift_total", map[string]string{"kind": "stock"}); drift != 10 {
		t.Fatalf("expected 10 stock drifts, got %f", drift)
	}

	mean := histogramMean(t, families, "almox_job_duration_seconds", map[string]string{"job": jobs.TaskLedgerReconcile})
	if mean > 0.5 {
		t.Fatalf("reconcile duration above budget: %f", mean)
	}
}

func metricValue(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				if fam.GetType() == dto.MetricType_COUNTER {
					return metric.GetCounter().GetValue()
				}
				if fam.GetType() == dto.MetricType_GAUGE {
					return metric.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s with labels %v not found", name, labels)
	return 0
}

func histogramMean(t *testing.T, families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	t.Helper()
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, metric := range fam.GetMetric() {
			if hasLabels(metric, labels) {
				hist := metric.GetHistogram()
				if hist == nil || hist.GetSampleCount() == 0 {
					t.Fatalf("histogram %s missing samples", name)
				}
				return hist.GetSampleSum() / float64(hist.GetSampleCount())
			}
		}
	}
	t.Fatalf("histogram %s with labels %v not found", name, labels)
	return 0
}

func hasLabels(metric *dto.Metric, labels map[string]string) bool {
	for _, lp := range metric.GetLabel() {
		if val, ok := labels[lp.GetName()]; ok {
			if lp.GetValue() != val {
				return false
			}
		}
	}
	for key := range labels {
		found := false
		for _, lp := range metric.GetLabel() {
			if lp.GetName() == key {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

package health

import (
	"context"
	"errors"
	"testing"

	"github.com/motordesk/docindex/internal/domain"
	"github.com/motordesk/docindex/internal/index"
)

type stubChecker struct{ err error }

func (s *stubChecker) HealthCheck(context.Context) error { return s.err }

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type stubBackend struct {
	name string
	err  error
}

func (s *stubBackend) Add(context.Context, []domain.VectorEntry) (int, error) { return 0, nil }
func (s *stubBackend) Search(context.Context, []float32, int) ([]index.Match, error) {
	return nil, nil
}
func (s *stubBackend) Name() string        { return s.name }
func (s *stubBackend) CascadeDelete() bool { return false }

func (s *stubBackend) Stats(context.Context) (index.Stats, error) {
	return index.Stats{}, s.err
}

func TestCheckAllHealthy(t *testing.T) {
	svc := New(&stubChecker{}, &stubPinger{}, []index.Backend{&stubBackend{name: "flat"}})

	report := svc.Check(context.Background())
	if report.Status != Healthy {
		t.Errorf("Status = %s, expected ok", report.Status)
	}
	for name, result := range report.Checks {
		if result != CheckOK {
			t.Errorf("check %s = %s", name, result)
		}
	}
	if _, ok := report.Checks["index:flat"]; !ok {
		t.Error("backend check missing")
	}
}

func TestCheckDegraded(t *testing.T) {
	svc := New(
		&stubChecker{err: errors.New("provider down")},
		nil,
		[]index.Backend{&stubBackend{name: "flat"}},
	)

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("Status = %s, expected degraded", report.Status)
	}
	if report.Checks["embedding"] != CheckError {
		t.Errorf("embedding check = %s", report.Checks["embedding"])
	}
	if _, ok := report.Checks["cache"]; ok {
		t.Error("nil cache should not be checked")
	}
}

func TestCheckBackendFailure(t *testing.T) {
	svc := New(nil, nil, []index.Backend{
		&stubBackend{name: "flat"},
		&stubBackend{name: "qdrant", err: errors.New("connection refused")},
	})

	report := svc.Check(context.Background())
	if report.Status != Degraded {
		t.Errorf("Status = %s", report.Status)
	}
	if report.Checks["index:flat"] != CheckOK {
		t.Errorf("flat = %s", report.Checks["index:flat"])
	}
	if report.Checks["index:qdrant"] != CheckError {
		t.Errorf("qdrant = %s", report.Checks["index:qdrant"])
	}
}

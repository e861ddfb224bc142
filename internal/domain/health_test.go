package domain_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/opsagent/internal/domain"
)

func TestHealthReportFailed(t *testing.T) {
	report := domain.HealthReport{Checks: []domain.HealthCheck{
		{Name: "Config file", Status: domain.HealthOK},
		{Name: "API keys", Status: domain.HealthWarn},
		{Name: "Host keys", Status: domain.HealthError},
		{Name: "History archive", Status: domain.HealthError},
	}}
	if diff := cmp.Diff([]string{"Host keys", "History archive"}, report.Failed()); diff != "" {
		t.Fatalf("Failed() mismatch (-want +got):\n%s", diff)
	}
	if got := (domain.HealthReport{}).Failed(); got != nil {
		t.Fatalf("empty report should have no failures, got %v", got)
	}
}

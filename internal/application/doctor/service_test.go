package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/doeshing/opsagent/internal/domain"
)

type stubConfig struct {
	cfg domain.Config
	err error
}

func (s stubConfig) Load(context.Context) (domain.Config, error) { return s.cfg, s.err }

type stubRegistry struct {
	targets []domain.TargetSummary
	err     error
}

func (s stubRegistry) Resolve(context.Context, string) (domain.Target, error) {
	return domain.Target{}, domain.ErrTargetNotFound
}

func (s stubRegistry) List(context.Context) ([]domain.TargetSummary, error) {
	return s.targets, s.err
}

type stubSecurity struct{ err error }

func (s stubSecurity) Evaluate(string) (domain.RiskAssessment, error) {
	return domain.RiskAssessment{}, s.err
}

type stubCredentials struct{ missing map[string]bool }

func (s stubCredentials) Check(model domain.ModelDefinition) error {
	if s.missing[model.Name] {
		return errors.New("missing API key: set OPENAI_API_KEY")
	}
	return nil
}

type stubArchive struct{ err error }

func (s stubArchive) Records(int, string) ([]domain.ArchivedInteraction, error) {
	return nil, s.err
}

func baseConfig(t *testing.T) domain.Config {
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	if err := os.WriteFile(knownHosts, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return domain.Config{
		ConfigFormatVersion: "1",
		Preferences:         domain.Preferences{DefaultModel: "gpt-4"},
		Models: []domain.ModelDefinition{
			{Name: "gpt-4", Provider: domain.ProviderKindOpenAI},
			{Name: "offline", Provider: domain.ProviderKindHeuristic},
		},
		Execution: domain.ExecutionSettings{KnownHostsFile: knownHosts},
		History:   domain.HistorySettings{Archive: domain.ArchiveSettings{Enabled: true}},
	}
}

func statuses(report domain.HealthReport) map[string]domain.HealthStatus {
	out := make(map[string]domain.HealthStatus, len(report.Checks))
	for _, check := range report.Checks {
		out[check.Name] = check.Status
	}
	return out
}

func TestRunAllHealthy(t *testing.T) {
	svc := &Service{
		ConfigProvider:  stubConfig{cfg: baseConfig(t)},
		Registry:        stubRegistry{targets: []domain.TargetSummary{{Name: "web-01"}}},
		SecurityService: stubSecurity{},
		Credentials:     stubCredentials{},
		Archive:         stubArchive{},
	}
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := map[string]domain.HealthStatus{
		"Config file":     domain.HealthOK,
		"Server registry": domain.HealthOK,
		"Guardrail":       domain.HealthOK,
		"API keys":        domain.HealthOK,
		"Host keys":       domain.HealthOK,
		"History archive": domain.HealthOK,
	}
	if diff := cmp.Diff(want, statuses(report)); diff != "" {
		t.Fatalf("statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestRunReportsProblems(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Execution.KnownHostsFile = filepath.Join(t.TempDir(), "absent")
	svc := &Service{
		ConfigProvider:  stubConfig{cfg: cfg},
		Registry:        stubRegistry{err: errors.New("permission denied")},
		SecurityService: nil,
		Credentials:     stubCredentials{missing: map[string]bool{"gpt-4": true}},
		Archive:         stubArchive{err: errors.New("database is locked")},
	}
	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	want := map[string]domain.HealthStatus{
		"Config file":     domain.HealthOK,
		"Server registry": domain.HealthError,
		"Guardrail":       domain.HealthWarn,
		"API keys":        domain.HealthWarn,
		"Host keys":       domain.HealthError,
		"History archive": domain.HealthError,
	}
	if diff := cmp.Diff(want, statuses(report)); diff != "" {
		t.Fatalf("statuses mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStopsOnConfigFailure(t *testing.T) {
	svc := &Service{ConfigProvider: stubConfig{err: errors.New("bad yaml")}}
	report, err := svc.Run(context.Background())
	if err == nil {
		t.Fatal("expected config error")
	}
	if len(report.Checks) != 1 || report.Checks[0].Status != domain.HealthError {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestInvalidConfigIsReported(t *testing.T) {
	cfg := baseConfig(t)
	cfg.Preferences.ActiveModel = "missing"
	svc := &Service{ConfigProvider: stubConfig{cfg: cfg}, Credentials: stubCredentials{}, Archive: stubArchive{}}
	report, _ := svc.Run(context.Background())
	if got := statuses(report)["Config file"]; got != domain.HealthError {
		t.Fatalf("config status = %s, want error", got)
	}
}

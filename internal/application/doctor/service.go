package doctor

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	configapp "github.com/doeshing/opsagent/internal/application/config"
	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/pkg/filesystem"
	"github.com/doeshing/opsagent/internal/ports"
)

// CredentialChecker reports whether a model has an API key available.
type CredentialChecker interface {
	Check(model domain.ModelDefinition) error
}

// ArchiveProbe reads from the interaction archive.
type ArchiveProbe interface {
	Records(limit int, search string) ([]domain.ArchivedInteraction, error)
}

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider  ports.ConfigProvider
	Registry        ports.TargetRegistry
	SecurityService ports.SecurityService
	Credentials     CredentialChecker
	Archive         ArchiveProbe
}

// Run executes checks and returns a report. Only a config failure is returned
// as an error; everything else is reported as a check.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := configapp.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("loaded %s, active model %s", cfg.ConfigFormatVersion, cfg.CurrentModelName())))
	}

	checks = append(checks, s.registryCheck(ctx))

	if s.SecurityService != nil {
		if _, err := s.SecurityService.Evaluate("ls"); err != nil {
			checks = append(checks, fail("Guardrail", err.Error()))
		} else {
			checks = append(checks, ok("Guardrail", "rules loaded"))
		}
	} else {
		checks = append(checks, warn("Guardrail", "disabled"))
	}

	checks = append(checks, s.apiCheck(cfg.Models))
	checks = append(checks, knownHostsCheck(cfg.Execution.KnownHostsFile))
	checks = append(checks, s.archiveCheck(cfg))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) registryCheck(ctx context.Context) domain.HealthCheck {
	if s.Registry == nil {
		return warn("Server registry", "not initialized")
	}
	targets, err := s.Registry.List(ctx)
	if err != nil {
		return fail("Server registry", err.Error())
	}
	if len(targets) == 0 {
		return warn("Server registry", "no servers registered")
	}
	return ok("Server registry", fmt.Sprintf("%d server(s) registered", len(targets)))
}

func (s *Service) apiCheck(models []domain.ModelDefinition) domain.HealthCheck {
	if s.Credentials == nil {
		return warn("API keys", "credential checker not initialized")
	}
	var missing []string
	for _, model := range models {
		if err := s.Credentials.Check(model); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%v)", model.Name, err))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return warn("API keys", strings.Join(missing, "; "))
	}
	return ok("API keys", "detected for configured providers")
}

func knownHostsCheck(path string) domain.HealthCheck {
	if path == "" {
		return warn("Host keys", "verification disabled (execution.known_hosts unset)")
	}
	path = filesystem.ExpandHome(path)
	if _, err := os.Stat(path); err != nil {
		return fail("Host keys", err.Error())
	}
	return ok("Host keys", path)
}

func (s *Service) archiveCheck(cfg domain.Config) domain.HealthCheck {
	if !cfg.History.Archive.Enabled {
		return warn("History archive", "disabled")
	}
	if s.Archive == nil {
		return fail("History archive", "enabled but not opened")
	}
	if _, err := s.Archive.Records(1, ""); err != nil {
		return fail("History archive", err.Error())
	}
	return ok("History archive", "reachable")
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}

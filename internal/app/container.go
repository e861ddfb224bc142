package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/doeshing/opsagent/internal/application/agent"
	"github.com/doeshing/opsagent/internal/application/analyzer"
	configapp "github.com/doeshing/opsagent/internal/application/config"
	"github.com/doeshing/opsagent/internal/application/doctor"
	"github.com/doeshing/opsagent/internal/application/planner"
	"github.com/doeshing/opsagent/internal/application/session"
	"github.com/doeshing/opsagent/internal/infrastructure/ai"
	"github.com/doeshing/opsagent/internal/infrastructure/config"
	"github.com/doeshing/opsagent/internal/infrastructure/history"
	"github.com/doeshing/opsagent/internal/infrastructure/registry"
	"github.com/doeshing/opsagent/internal/infrastructure/security"
	"github.com/doeshing/opsagent/internal/infrastructure/server"
	"github.com/doeshing/opsagent/internal/infrastructure/sshrunner"
	"github.com/doeshing/opsagent/internal/pkg/filesystem"
	"github.com/doeshing/opsagent/internal/pkg/logger"
	"github.com/doeshing/opsagent/internal/ports"
)

// Options selects the config file and log verbosity.
type Options struct {
	ConfigPath string
	Verbose    bool
	LogOutput  io.Writer
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	ConfigLoader  *config.FileLoader
	Logger        ports.Logger
	Keys          *ai.KeyStore
	Registry      *registry.FileRegistry
	History       *history.MemoryStore
	Archive       *history.SQLiteArchive
	Guardrail     *security.Guardrail
	Runner        *sshrunner.Runner
	Agent         *agent.Service
	Sessions      *session.Service
	DoctorService *doctor.Service
	Server        *server.Server
}

// BuildContainer constructs the dependency graph. The archive and guardrail
// are optional; a broken rules file falls back to the embedded rules.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := configapp.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration %s: %w", cfgLoader.Path(), err)
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stderr
	}
	log := logger.New(out, opts.Verbose)

	targets, err := registry.NewFileRegistry(cfg.Registry.Path)
	if err != nil {
		return nil, err
	}

	var securityService ports.SecurityService
	var guardrail *security.Guardrail
	if cfg.IsSecurityEnabled() {
		guardrail, err = security.NewGuardrail(cfg.Security.RulesFile)
		if err != nil {
			log.Warn("guardrail rules unusable, using built-in rules", map[string]interface{}{
				"rules_file": cfg.Security.RulesFile,
				"error":      err.Error(),
			})
			guardrail, err = security.NewGuardrail("")
			if err != nil {
				return nil, err
			}
		}
		securityService = guardrail
	}

	var knownHosts string
	if cfg.Execution.KnownHostsFile != "" {
		knownHosts = filesystem.ExpandHome(cfg.Execution.KnownHostsFile)
	}
	runner, err := sshrunner.New(sshrunner.Options{
		ConnectTimeout: cfg.GetConnectTimeout(),
		CommandTimeout: cfg.GetCommandTimeout(),
		KnownHostsFile: knownHosts,
		Logger:         log,
	})
	if err != nil {
		return nil, err
	}

	var archive *history.SQLiteArchive
	var interactionArchive ports.InteractionArchive
	if cfg.History.Archive.Enabled {
		archive, err = history.NewSQLiteArchive(cfg.History.Archive.Path)
		if err != nil {
			log.Warn("interaction archive unavailable", map[string]interface{}{"error": err.Error()})
		} else {
			interactionArchive = archive
		}
	}

	keys := ai.NewKeyStore()
	factory := ai.NewFactory(keys)
	memory := history.NewMemoryStore(history.WithLogger(log))

	agentService := &agent.Service{
		Planner:            &planner.Service{ProviderFactory: factory, Logger: log},
		Analyzer:           &analyzer.Service{ProviderFactory: factory, Logger: log},
		Runner:             runner,
		History:            memory,
		Logger:             log,
		Security:           securityService,
		Archive:            interactionArchive,
		RecentInteractions: cfg.GetRecentInteractions(),
	}

	sessions := &session.Service{
		Agent:    agentService,
		Registry: targets,
		Config:   cfgLoader,
		History:  memory,
		Logger:   log,
	}

	doctorService := &doctor.Service{
		ConfigProvider:  cfgLoader,
		Registry:        targets,
		SecurityService: securityService,
		Credentials:     keys,
	}
	if archive != nil {
		doctorService.Archive = archive
	}

	return &Container{
		ConfigLoader:  cfgLoader,
		Logger:        log,
		Keys:          keys,
		Registry:      targets,
		History:       memory,
		Archive:       archive,
		Guardrail:     guardrail,
		Runner:        runner,
		Agent:         agentService,
		Sessions:      sessions,
		DoctorService: doctorService,
		Server: &server.Server{
			Sessions:       sessions,
			Targets:        targets,
			Config:         cfgLoader,
			Keys:           keys,
			Logger:         log,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		},
	}, nil
}

// Close releases resources held by the container.
func (c *Container) Close() error {
	var errs []error
	if c.Archive != nil {
		errs = append(errs, c.Archive.Close())
	}
	return errors.Join(errs...)
}

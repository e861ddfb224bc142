package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsagent/internal/app"
)

// Options holds CLI-level configuration.
type Options struct {
	Verbose bool
}

const skipContainer = "skip-container"

var errContainerUnavailable = errors.New("application container not initialized")

// NewRootCmd wires the cobra root command. The container is built once flags
// are parsed so --config can take effect.
func NewRootCmd(ctx context.Context, opts Options) *cobra.Command {
	var (
		configPath string
		verbose    = opts.Verbose
		container  = &app.Container{}
		built      bool
	)

	root := &cobra.Command{
		Use:   "opsagent",
		Short: "opsagent - natural language operations on remote servers",
		Long: "opsagent plans shell commands for an instruction, runs them on a registered\n" +
			"server over SSH, and summarizes the results.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipContainer] == "true" || built {
				return nil
			}
			c, err := app.BuildContainer(cmd.Context(), app.Options{
				ConfigPath: configPath,
				Verbose:    verbose,
				LogOutput:  cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			*container = *c
			built = true
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if !built {
				return nil
			}
			return container.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetContext(ctx)
	root.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.opsagent/config.yaml or $OPSAGENT_CONFIG)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", opts.Verbose, "Enable debug logging")

	root.AddCommand(
		newServeCommand(container),
		newRunCommand(container),
		newServersCommand(container),
		newModelsCommand(container),
		newHistoryCommand(container),
		newDoctorCommand(container),
		newVersionCommand(),
	)
	return root
}

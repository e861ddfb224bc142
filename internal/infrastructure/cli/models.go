package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsagent/internal/app"
	configapp "github.com/doeshing/opsagent/internal/application/config"
)

func newModelsCommand(container *app.Container) *cobra.Command {
	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect and select reasoning models",
	}
	modelsCmd.AddCommand(newModelsListCommand(container), newModelsUseCommand(container))
	return modelsCmd
}

func newModelsListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured models",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ConfigLoader == nil {
				return errContainerUnavailable
			}
			cfg, err := container.ConfigLoader.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			active := cfg.CurrentModelName()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tPROVIDER\tMODEL ID\tKEY\tACTIVE")
			for _, model := range cfg.Models {
				marker := ""
				if model.Name == active {
					marker = "*"
				}
				key := "ok"
				if container.Keys != nil {
					if err := container.Keys.Check(model); err != nil {
						key = "missing"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", model.Name, model.Provider, model.ModelID, key, marker)
			}
			return w.Flush()
		},
	}
}

func newModelsUseCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "use <name>",
		Short: "Set the active model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.ConfigLoader == nil {
				return errContainerUnavailable
			}
			cfg, err := container.ConfigLoader.Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if err := cfg.SetActiveModel(args[0]); err != nil {
				return err
			}
			if err := configapp.Validate(cfg); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}
			if err := container.ConfigLoader.Save(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Active model set to %s\n", args[0])
			return nil
		},
	}
}

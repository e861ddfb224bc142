package cli

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsagent/internal/app"
	"github.com/doeshing/opsagent/internal/domain"
	"github.com/doeshing/opsagent/internal/pkg/filesystem"
)

func newServersCommand(container *app.Container) *cobra.Command {
	serversCmd := &cobra.Command{
		Use:   "servers",
		Short: "Manage registered servers",
	}
	serversCmd.AddCommand(
		newServersListCommand(container),
		newServersAddCommand(container),
		newServersRemoveCommand(container),
	)
	return serversCmd
}

func newServersListCommand(container *app.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Registry == nil {
				return errContainerUnavailable
			}
			servers, err := container.Registry.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(servers) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), msgNoServers)
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS\tUSER\tAUTH")
			for _, server := range servers {
				fmt.Fprintf(w, "%s\t%s:%d\t%s\t%s\n", server.Name, server.Host, server.Port, server.Username, server.AuthType)
			}
			return w.Flush()
		},
	}
}

func newServersAddCommand(container *app.Container) *cobra.Command {
	var (
		host       string
		port       int
		username   string
		authType   string
		password   string
		keyFile    string
		passphrase string
	)
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Register or replace a server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Registry == nil {
				return errContainerUnavailable
			}
			target := domain.Target{
				Name:       args[0],
				Host:       host,
				Port:       port,
				Username:   username,
				AuthType:   domain.AuthKind(authType),
				Password:   password,
				Passphrase: passphrase,
			}
			prompter := NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())

			switch target.AuthType {
			case domain.AuthPrivateKey:
				if keyFile == "" {
					return errors.New(errKeyFileRequired)
				}
				key, err := os.ReadFile(filesystem.ExpandHome(keyFile))
				if err != nil {
					return fmt.Errorf("read private key: %w", err)
				}
				target.PrivateKey = string(key)
			case domain.AuthPassword:
				if target.Password == "" && prompter.Interactive() {
					secret, err := prompter.Secret("Password")
					if err != nil {
						return err
					}
					target.Password = secret
				}
			}

			if err := container.Registry.Register(cmd.Context(), target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server %s registered successfully\n", target.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Hostname or IP address")
	cmd.Flags().IntVar(&port, "port", domain.DefaultSSHPort, "SSH port")
	cmd.Flags().StringVarP(&username, "user", "u", "", "Login user")
	cmd.Flags().StringVar(&authType, "auth", string(domain.AuthPassword), "Authentication type (password|privateKey)")
	cmd.Flags().StringVar(&password, "password", "", "Password (prompted when omitted on a terminal)")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "Private key file for privateKey auth")
	cmd.Flags().StringVar(&passphrase, "passphrase", "", "Private key passphrase")
	return cmd
}

func newServersRemoveCommand(container *app.Container) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove a registered server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Registry == nil {
				return errContainerUnavailable
			}
			prompter := NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
			if !yes && prompter.Interactive() {
				confirmed, err := prompter.Confirm(fmt.Sprintf("Remove server %s?", args[0]))
				if err != nil {
					return err
				}
				if !confirmed {
					fmt.Fprintln(cmd.OutOrStdout(), msgCancelled)
					return nil
				}
			}
			if err := container.Registry.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server %s removed\n", args[0])
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}

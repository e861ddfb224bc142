package cli

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/doeshing/opsagent/internal/app"
	"github.com/doeshing/opsagent/internal/domain"
)

func newServeCommand(container *app.Container) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the WebSocket and HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Server == nil {
				return errContainerUnavailable
			}
			addr := listen
			if addr == "" {
				cfg, err := container.ConfigLoader.Load(cmd.Context())
				if err != nil {
					return err
				}
				addr = cfg.Server.Listen
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return container.Server.ListenAndServe(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Listen address (default from config server.listen)")
	return cmd
}

func newRunCommand(container *app.Container) *cobra.Command {
	var (
		model     string
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "run <server> <instruction...>",
		Short: "Run one instruction against a registered server",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Sessions == nil {
				return errContainerUnavailable
			}
			if sessionID == "" {
				sessionID = "cli-" + uuid.NewString()
			}
			out := cmd.OutOrStdout()
			animate := false
			if file, ok := out.(*os.File); ok {
				animate = term.IsTerminal(int(file.Fd()))
			}
			sink := NewTerminalSink(out, animate)
			defer sink.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return container.Sessions.Submit(ctx, sessionID, domain.InstructionRequest{
				ServerName:  args[0],
				Instruction: strings.Join(args[1:], " "),
				Model:       model,
			}, sink)
		},
	}
	cmd.Flags().StringVarP(&model, "model", "m", "", "Override model name (default from config)")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id used in logs and the archive")
	return cmd
}

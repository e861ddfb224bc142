package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/doeshing/opsagent/internal/app"
	"github.com/doeshing/opsagent/internal/domain"
)

func newHistoryCommand(container *app.Container) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect archived interactions",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent interactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return listArchived(cmd.OutOrStdout(), container, limit, "")
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", domain.DefaultHistoryLimit, "Max entries to show")

	var searchLimit int
	searchCmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Search instructions, servers and analyses",
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return errors.New(errQueryRequired)
			}
			return listArchived(cmd.OutOrStdout(), container, searchLimit, query)
		},
	}
	searchCmd.Flags().IntVar(&searchLimit, "limit", domain.DefaultHistoryLimit, "Limit search results")

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every archived interaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			if container.Archive == nil {
				fmt.Fprintln(cmd.OutOrStdout(), msgArchiveDisabled)
				return nil
			}
			if err := container.Archive.Clear(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), msgHistoryCleared)
			return nil
		},
	}

	historyCmd.AddCommand(listCmd, searchCmd, clearCmd)
	return historyCmd
}

func listArchived(out io.Writer, container *app.Container, limit int, query string) error {
	if container.Archive == nil {
		fmt.Fprintln(out, msgArchiveDisabled)
		return nil
	}
	records, err := container.Archive.Records(limit, query)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(out, msgNoHistoryRecorded)
		return nil
	}
	for _, rec := range records {
		status := "ok"
		if rec.Aborted() {
			status = "aborted"
		}
		fmt.Fprintf(out, "%s | %s | %s | %d command(s) | %s\n",
			rec.Timestamp.Format(time.RFC3339),
			rec.Target,
			rec.Instruction,
			len(rec.Results),
			status)
	}
	return nil
}

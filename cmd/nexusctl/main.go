// Package main provides nexusctl, a read-only inspector over the same
// file-backed stores nexusd reconciles: session transcripts and the
// approval ledger. nexusctl never writes to either store — approvals are
// resolved by editing tasks/approvals.task.md directly, by design (spec §4.4
// "a human edits the status column").
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexusorch/nexusd/internal/config"
	"github.com/nexusorch/nexusd/internal/convstore"
	"github.com/nexusorch/nexusd/internal/ledger"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "nexusctl",
		Short:        "Inspect nexusd session transcripts and the approval ledger",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "nexusd.yaml", "Path to YAML configuration file")

	root.AddCommand(buildApprovalsCmd(&configPath))
	root.AddCommand(buildSessionsCmd(&configPath))
	return root
}

func buildApprovalsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approvals",
		Short: "Inspect the approval ledger",
	}
	cmd.AddCommand(buildApprovalsListCmd(configPath))
	cmd.AddCommand(buildApprovalsShowCmd(configPath))
	return cmd
}

func buildApprovalsListCmd(configPath *string) *cobra.Command {
	var pendingOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List approval ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(*configPath)
			if err != nil {
				return err
			}
			entries, err := l.All()
			if err != nil {
				return fmt.Errorf("nexusctl: read ledger: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSESSION\tTOOL\tRISK\tSTATUS\tCREATED")
			for _, e := range entries {
				if pendingOnly && e.Status != "pending" {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.SessionID, e.ToolName, e.Risk, e.Status, e.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "Only show entries still awaiting a decision")
	return cmd
}

func buildApprovalsShowCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "show [approval-id]",
		Short: "Show one approval ledger entry in full, including its arguments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := openLedger(*configPath)
			if err != nil {
				return err
			}
			entry, err := l.Get(args[0])
			if err != nil {
				return fmt.Errorf("nexusctl: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:           %s\n", entry.ID)
			fmt.Fprintf(out, "session:      %s\n", entry.SessionID)
			fmt.Fprintf(out, "tool_call_id: %s\n", entry.ToolCallID)
			fmt.Fprintf(out, "tool:         %s\n", entry.ToolName)
			fmt.Fprintf(out, "risk:         %s\n", entry.Risk)
			fmt.Fprintf(out, "status:       %s\n", entry.Status)
			fmt.Fprintf(out, "created:      %s\n", entry.CreatedAt.Format(time.RFC3339))
			fmt.Fprintf(out, "description:  %s\n", entry.Description)
			if len(entry.Args) > 0 {
				fmt.Fprintln(out, "arguments:")
				for k, v := range entry.Args {
					fmt.Fprintf(out, "  %s: %v\n", k, v)
				}
			}
			if strings.TrimSpace(entry.Notes) != "" {
				fmt.Fprintf(out, "notes:        %s\n", entry.Notes)
			}
			return nil
		},
	}
}

func buildSessionsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect session transcripts",
	}
	cmd.AddCommand(buildSessionsListCmd(configPath))
	cmd.AddCommand(buildSessionsShowCmd(configPath))
	return cmd
}

func buildSessionsListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every session under paths.sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			ids, err := store.ListSessionIDs()
			if err != nil {
				return fmt.Errorf("nexusctl: list sessions: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tAGENT\tSTATUS\tMESSAGES\tUPDATED")
			for _, id := range ids {
				sess, err := store.ReadSession(id)
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "nexusctl: read session %s: %v\n", id, err)
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
					sess.ID, sess.AgentID, sess.Status, len(sess.Log), sess.UpdatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func buildSessionsShowCmd(configPath *string) *cobra.Command {
	var tail int
	cmd := &cobra.Command{
		Use:   "show [session-id]",
		Short: "Show a session's transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*configPath)
			if err != nil {
				return err
			}
			sess, err := store.ReadSession(args[0])
			if err != nil {
				return fmt.Errorf("nexusctl: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:      %s\n", sess.ID)
			fmt.Fprintf(out, "agent:   %s\n", sess.AgentID)
			fmt.Fprintf(out, "status:  %s\n", sess.Status)
			fmt.Fprintf(out, "updated: %s\n\n", sess.UpdatedAt.Format(time.RFC3339))

			log := sess.Log
			if tail > 0 && tail < len(log) {
				log = log[len(log)-tail:]
			}
			for _, m := range log {
				fmt.Fprintf(out, "--- %s (%s) ---\n", m.Role, m.Timestamp.Format(time.RFC3339))
				if m.Content != "" {
					fmt.Fprintln(out, m.Content)
				}
				for _, tc := range m.ToolCalls {
					fmt.Fprintf(out, "tool_call: %s(%v) id=%s\n", tc.Name, tc.Args, tc.ID)
				}
				if m.Result != nil {
					if m.Result.Success {
						fmt.Fprintf(out, "tool_result: success=true %v\n", m.Result.Result)
					} else {
						fmt.Fprintf(out, "tool_result: success=false %s\n", m.Result.Error)
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 0, "Only show the last N log entries (0 means all)")
	return cmd
}

func openLedger(configPath string) (*ledger.Ledger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("nexusctl: load config: %w", err)
	}
	l, err := ledger.New(filepath.Join(cfg.Paths.Tasks, "approvals.task.md"))
	if err != nil {
		return nil, fmt.Errorf("nexusctl: open ledger: %w", err)
	}
	return l, nil
}

func openStore(configPath string) (*convstore.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("nexusctl: load config: %w", err)
	}
	return convstore.New(cfg.Paths.Templates, cfg.Paths.Sessions), nil
}

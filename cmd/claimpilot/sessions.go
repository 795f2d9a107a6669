package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/clarivue/claimpilot/internal/cli"
	"github.com/clarivue/claimpilot/internal/config"
	"github.com/clarivue/claimpilot/internal/model"
	"github.com/clarivue/claimpilot/internal/service"
	"github.com/clarivue/claimpilot/internal/storage"
)

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and reset assessment sessions",
	}

	cmd.AddCommand(sessionsListCmd())
	cmd.AddCommand(sessionsShowCmd())
	cmd.AddCommand(sessionsResetCmd())

	return cmd
}

func sessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's stored assessment result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			session, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Session %s (%s)\n", session.ID, session.Status)
			if session.Claim != nil {
				fmt.Print(cli.RenderClaim(session.Claim))
			}
			if session.PriceLookup != nil {
				fmt.Print(cli.RenderPriceCandidate(session.PriceLookup.Candidate))
			}
			if session.Claim == nil && session.PriceLookup == nil {
				fmt.Println("No assessment result yet.")
			}
			return nil
		},
	}
}

func sessionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently active first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, _ := cmd.Flags().GetString("status")
			limit, _ := cmd.Flags().GetInt("limit")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			sessions, err := store.ListSessions(cmd.Context(), service.SessionFilter{
				Status: model.Status(status),
				Limit:  limit,
			})
			if err != nil {
				return err
			}
			fmt.Print(cli.RenderSessions(sessions))
			return nil
		},
	}

	cmd.Flags().String("status", "", "filter by status")
	cmd.Flags().Int("limit", 50, "maximum sessions to list")

	return cmd
}

func sessionsResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <session-id>",
		Short: "Return a session to the initial state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
			if err != nil {
				return fmt.Errorf("failed to open storage: %w", err)
			}
			defer func() { _ = store.Close() }()

			session, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			session.Reset()
			if err := store.SaveSession(cmd.Context(), session); err != nil {
				return err
			}

			slog.Info("Session reset", "session_id", session.ID)
			return nil
		},
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bassamadnan/mailsched/auth"
	"github.com/bassamadnan/mailsched/config"
	"github.com/bassamadnan/mailsched/report"
	"github.com/bassamadnan/mailsched/workflow"
)

func rootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "mailsched",
		Short:         "Turn meeting request emails into calendar events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "path to the config file")

	cmd.AddCommand(
		runCmd(&configPath),
		watchCmd(&configPath),
		authCmd(&configPath),
		filtersCmd(&configPath),
		historyCmd(&configPath),
	)
	return cmd
}

func runCmd(configPath *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every unread message once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()
			if cmd.Flags().Changed("dry-run") {
				cfg.Workflow.DryRun = dryRun
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			summary, err := a.orchestrator.Run(cmd.Context())
			if summary != nil {
				fmt.Fprintln(cmd.OutOrStdout(), report.Render(summary))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "decide but do not create events, send replies or mark messages read")
	return cmd
}

func watchCmd(configPath *string) *cobra.Command {
	var interval time.Duration
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll the mailbox and process unread messages until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()
			if cmd.Flags().Changed("dry-run") {
				cfg.Workflow.DryRun = dryRun
			}
			if cmd.Flags().Changed("interval") {
				if interval <= 0 {
					return fmt.Errorf("interval must be positive, got %s", interval)
				}
				cfg.Workflow.PollInterval = interval
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching for unread messages every %s. Press Ctrl+C to stop.\n", cfg.Workflow.PollInterval)
			a.orchestrator.Watch(cmd.Context(), time.Second, cfg.Workflow.PollInterval, func(s *workflow.Summary) {
				if len(s.Outcomes) > 0 {
					fmt.Fprintln(out, report.Render(s))
				}
			})
			return nil
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (default from workflow.poll_interval)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "decide but do not create events, send replies or mark messages read")
	return cmd
}

func authCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Google mail and calendar access",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			oauthCfg, err := auth.OAuthConfig(cfg.Gmail.CredentialsFile, oauthScopes(cfg)...)
			if err != nil {
				return err
			}
			store, err := tokenStore(cfg)
			if err != nil {
				return err
			}
			if err := auth.Authorize(cmd.Context(), oauthCfg, store, auth.PromptCode); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Authorization saved.")
			return nil
		},
	}
	cmd.AddCommand(llmKeyCmd(configPath))
	return cmd
}

func llmKeyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "llm-key",
		Short: "Store the language model API key in the system keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, closeLog, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			key, err := auth.PromptSecret("Language model API key")
			if err != nil {
				return err
			}
			ring, err := auth.OpenKeyring()
			if err != nil {
				return err
			}
			if err := auth.SaveAPIKey(ring, key); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "API key saved to keyring.")
			return nil
		},
	}
}

func filtersCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filters",
		Short: "Manage senders and subject keywords that are never processed",
	}

	open := func() (*config.FilterManager, func(), error) {
		cfg, closeLog, err := loadConfig(*configPath)
		if err != nil {
			return nil, nil, err
		}
		fm, err := config.NewFilterManager(cfg.Filters.Path)
		if err != nil {
			closeLog()
			return nil, nil, fmt.Errorf("loading filters: %w", err)
		}
		return fm, closeLog, nil
	}

	addSender := &cobra.Command{
		Use:   "add-sender <address>",
		Short: "Ignore messages from a sender",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fm, closeLog, err := open()
			if err != nil {
				return err
			}
			defer closeLog()
			if err := fm.AddIgnoreSender(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignoring sender %s\n", args[0])
			return nil
		},
	}

	addSubject := &cobra.Command{
		Use:   "add-subject <keyword>",
		Short: "Ignore messages whose subject contains a keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fm, closeLog, err := open()
			if err != nil {
				return err
			}
			defer closeLog()
			if err := fm.AddIgnoreKeywordInSubject(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignoring subjects containing %q\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Show the current filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			fm, closeLog, err := open()
			if err != nil {
				return err
			}
			defer closeLog()
			f := fm.Filters()
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Ignored senders:")
			for _, s := range f.IgnoreSenders {
				fmt.Fprintf(out, "  %s\n", s)
			}
			fmt.Fprintln(out, "Ignored subject keywords:")
			for _, k := range f.IgnoreKeywordsInSubject {
				fmt.Fprintf(out, "  %s\n", k)
			}
			return nil
		},
	}

	cmd.AddCommand(addSender, addSubject, list)
	return cmd
}

func historyCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs recorded in the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, closeLog, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer closeLog()

			store, err := openLedger(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report.RenderRuns(runs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to show")
	return cmd
}

// cmd/meal-log/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"kids-meal-log/internal/config"
	"kids-meal-log/internal/history"
	"kids-meal-log/internal/logging"
	"kids-meal-log/internal/models"
	"kids-meal-log/internal/narration"
	"kids-meal-log/internal/recommend"
	"kids-meal-log/internal/server"
	"kids-meal-log/internal/service"
	"kids-meal-log/internal/storage"
)

type globalFlags struct {
	dbPath string
	host   string
	port   int
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	cmd := &cobra.Command{
		Use:          "meal-log",
		Short:        "Log kids' meals and pick foods they actually eat",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(&flags)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.dbPath, "db-path", "", "database path (overrides MEAL_LOG_DB_PATH)")
	pf.StringVar(&flags.host, "host", "", "host address (overrides HTTP_HOST)")
	pf.IntVar(&flags.port, "port", 0, "port for HTTP (overrides HTTP_PORT)")

	cmd.AddCommand(
		newServeCmd(&flags),
		newExportCmd(&flags),
		newRecommendCmd(&flags),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig reads configuration, applies flag overrides and sets up logging.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.dbPath != "" {
		cfg.Database.Path = flags.dbPath
	}
	if flags.host != "" {
		cfg.Server.Host = flags.host
	}
	if flags.port != 0 {
		cfg.Server.Port = flags.port
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	return cfg, nil
}

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web app, JSON API and MCP endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}
}

func runServe(flags *globalFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	srv, err := server.NewMealLogServer(cfg)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to create server")
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-sigCh:
		logging.Info().Msg("Received shutdown signal")
	case serveErr = <-errCh:
		logging.Error().Err(serveErr).Msg("Server error")
	}

	logging.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Error during shutdown")
	}
	return serveErr
}

// openService wires storage and narration for the one-shot commands.
func openService(cfg *config.Config) (*service.MealService, io.Closer, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	opts := recommend.Options{MinPercent: cfg.Recommend.MinPercent, TopN: cfg.Recommend.TopN}
	svc := service.NewMealService(store, narration.NewSamplingClient(cfg.Narration), cfg.Roster, opts)
	return svc, store, nil
}

func newExportCmd(flags *globalFlags) *cobra.Command {
	var (
		child, mealType, from, to, output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write meal history as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.HistoryFilter{Child: child, MealType: mealType}
			for _, bound := range []struct {
				name  string
				value string
				dst   **time.Time
			}{{"from", from, &filter.From}, {"to", to, &filter.To}} {
				if bound.value == "" {
					continue
				}
				t, err := time.Parse(service.DateLayout, bound.value)
				if err != nil {
					return fmt.Errorf("--%s must be a date like 2006-01-02", bound.name)
				}
				*bound.dst = &t
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			svc, closer, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			view, err := svc.History(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			if err := history.WriteCSV(w, view.Events); err != nil {
				return err
			}

			logging.Info().Int("rows", len(view.Events)).Str("output", output).Msg("Exported meal history")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&child, "child", "", "only meals for this child")
	f.StringVar(&mealType, "meal-type", "", "only meals of this type")
	f.StringVar(&from, "from", "", "first day to include (YYYY-MM-DD)")
	f.StringVar(&to, "to", "", "last day to include (YYYY-MM-DD)")
	f.StringVarP(&output, "output", "o", history.ExportFileName, `output file, "-" for stdout`)
	return cmd
}

func newRecommendCmd(flags *globalFlags) *cobra.Command {
	var (
		child, mealType string
		narrate         bool
	)

	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Print the foods a child eats best for a meal type",
		RunE: func(cmd *cobra.Command, args []string) error {
			if child == "" || mealType == "" {
				return errors.New("--child and --meal-type are required")
			}

			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			svc, closer, err := openService(cfg)
			if err != nil {
				return err
			}
			defer closer.Close()

			out := cmd.OutOrStdout()
			if !narrate {
				foods, err := svc.Recommend(cmd.Context(), child, mealType)
				if err != nil {
					return err
				}
				if len(foods) == 0 {
					fmt.Fprintln(out, service.InsufficientDataMessage)
					return nil
				}
				for _, f := range foods {
					fmt.Fprintf(out, "%s\t%.1f%%\n", f.Food, f.AvgPercent)
				}
				return nil
			}

			suggestion, err := svc.Suggest(cmd.Context(), child, mealType)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, suggestion.Text)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&child, "child", "", "child to rank foods for")
	f.StringVar(&mealType, "meal-type", "", "meal type to rank foods for")
	f.BoolVar(&narrate, "narrate", false, "ask the AI for a one-sentence suggestion")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "kids-meal-log version %s\n", server.Version)
		},
	}
}

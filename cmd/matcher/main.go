package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/shl-matching/internal/config"
	"github.com/shl-matching/internal/db"
	"github.com/shl-matching/internal/export"
	"github.com/shl-matching/internal/ingest"
	"github.com/shl-matching/internal/logging"
	"github.com/shl-matching/internal/match"
	"github.com/shl-matching/internal/store"
	"github.com/shl-matching/internal/web"
	"github.com/shl-matching/internal/web/handlers"
)

// app holds state shared by all subcommands once configuration is loaded
type app struct {
	configFile string
	v          *viper.Viper
	cfg        *config.Config
	logger     *zap.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "matcher",
		Short: "School catalog entity resolution",
		Long: `Resolves schools of a primary catalog against a scraped candidate catalog.
Candidates are deduplicated, blocked by postal code and scored with
token-set similarity on name and street address.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (yaml or json)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console or json)")

	a.v = viper.New()

	// Add subcommands
	rootCmd.AddCommand(a.createRunCmd())
	rootCmd.AddCommand(a.createScoreCmd())
	rootCmd.AddCommand(a.createServeCmd())
	rootCmd.AddCommand(a.createPingCmd())
	rootCmd.AddCommand(a.createInitDBCmd())

	return rootCmd
}

// setup loads .env files, configuration and the logger before any subcommand runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}

	if err := bindFlags(a.v, cmd.Flags()); err != nil {
		return err
	}
	if err := config.Configure(a.v, a.configFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

// matchPass loads both catalogs and runs one matching pass
func (a *app) matchPass(ctx context.Context) (*match.Outcome, time.Time, error) {
	loader := ingest.NewLoader(a.logger, a.cfg.Debug)

	primary, err := loader.LoadPrimary(a.cfg.PrimaryPath)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load primary catalog: %w", err)
	}
	candidates, err := loader.LoadCandidates(a.cfg.CandidateDir)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to load candidate catalog: %w", err)
	}

	started := time.Now()
	outcome, err := match.NewEngine(a.cfg.MatchOptions(), a.logger).Run(ctx, primary, candidates)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("matching failed: %w", err)
	}
	return outcome, started, nil
}

// openStore connects to the run history database and ensures its schema
func (a *app) openStore(ctx context.Context) (*store.Store, *db.Connection, error) {
	conn, err := db.NewConnection(ctx, a.cfg.DB)
	if err != nil {
		return nil, nil, err
	}

	runs := store.New(conn.DB, a.logger)
	if err := runs.EnsureSchema(ctx); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return runs, conn, nil
}

func (a *app) createRunCmd() *cobra.Command {
	var save bool
	var runLabel string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a matching pass and write the output files",
		Long: `Loads both catalogs, resolves every primary school to its best candidate and
writes the full data CSV, the enriched primary JSON and the quality statistics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, started, err := a.matchPass(cmd.Context())
			if err != nil {
				return err
			}

			exporter := export.NewExporter(a.cfg.OutputDir, a.cfg.MinEnrichScore, a.logger)
			if err := exporter.ExportAll(outcome, a.cfg.ReportFormat); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "\n=== Matching Results ===\n")
			fmt.Fprintf(out, "Runtime: %s\n", outcome.Report.Elapsed)
			fmt.Fprintf(out, "Total Schools: %d\n", outcome.Report.Total)
			for _, stat := range outcome.Report.Tiers {
				fmt.Fprintf(out, "%-10s %6d  %6.2f%%\n", stat.Tier, stat.Count, stat.Percent*100)
			}

			if !save {
				return nil
			}

			runs, conn, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			if runLabel == "" {
				runLabel = fmt.Sprintf("run-%d", started.Unix())
			}
			run, err := runs.SaveRun(cmd.Context(), runLabel, started, outcome)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run ID: %s\n", run.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("primary", "", "primary catalog JSON file")
	flags.String("candidates", "", "directory of candidate JSON files")
	flags.String("output", "", "output directory")
	flags.Int("workers", 0, "number of matching workers")
	flags.Duration("record-timeout", 0, "deadline for scanning one postal code block (0 disables)")
	flags.Float64("min-enrich-score", match.NoMatchScore, "minimum score for a best match to enrich a primary record")
	flags.String("report-format", "", "statistics format (csv or yaml)")
	flags.Bool("debug", false, "log every pair comparison")
	flags.BoolVar(&save, "save", false, "save the run to the database")
	flags.StringVar(&runLabel, "label", "", "label for the saved run")

	return cmd
}

func (a *app) createScoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "score NAME_A NAME_B [ADDRESS_A ADDRESS_B]",
		Short: "Print similarity scores for two schools",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 && len(args) != 4 {
				return fmt.Errorf("expected 2 or 4 arguments, got %d", len(args))
			}
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()

			nameScore := match.TokenSetRatio(args[0], args[1])
			fmt.Fprintf(out, "Name score: %.0f\n", nameScore)
			if len(args) == 2 {
				return
			}

			left := match.Record{Name: args[0], StreetAddress: args[2]}
			right := match.Record{Name: args[1], StreetAddress: args[3]}
			score := match.NewScorer().Score(left, right)
			fmt.Fprintf(out, "Address score: %.0f\n", score.Address)
			fmt.Fprintf(out, "Combined score: %g\n", score.Combined)
			fmt.Fprintf(out, "Tier: %s\n", match.Classify(score.Combined))
		},
	}
}

func (a *app) createServeCmd() *cobra.Command {
	var withDB bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a matching pass and serve its results over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, _, err := a.matchPass(cmd.Context())
			if err != nil {
				return err
			}

			var runs handlers.RunStore
			if withDB {
				s, conn, err := a.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer conn.Close()
				runs = s
			}

			return web.NewServer(a.cfg.Web, outcome, runs, a.logger).Start(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("host", "", "listen host")
	flags.Int("port", 0, "listen port")
	flags.String("primary", "", "primary catalog JSON file")
	flags.String("candidates", "", "directory of candidate JSON files")
	flags.Int("workers", 0, "number of matching workers")
	flags.BoolVar(&withDB, "with-db", false, "serve the run history from the database")

	return cmd
}

// createPingCmd creates a command to test database connectivity
func (a *app) createPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Test database connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.NewConnection(cmd.Context(), a.cfg.DB)
			if err != nil {
				return err
			}
			defer conn.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Database connection successful!")

			var count int
			err = conn.DB.QueryRowContext(cmd.Context(), "SELECT COUNT(*) FROM match_run").Scan(&count)
			if err != nil {
				a.logger.Warn("Error counting match_run records", zap.Error(err))
				return nil
			}
			fmt.Fprintf(out, "Matching runs saved: %d\n", count)
			return nil
		},
	}
}

func (a *app) createInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create the run history tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, conn, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer conn.Close()

			fmt.Fprintln(cmd.OutOrStdout(), "Run history tables ready")
			return nil
		},
	}
}

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/yiadomb/return-visit-tracker/internal/config"
	"github.com/yiadomb/return-visit-tracker/internal/notify"
	"github.com/yiadomb/return-visit-tracker/internal/remote"
	"github.com/yiadomb/return-visit-tracker/internal/store"
	"github.com/yiadomb/return-visit-tracker/internal/sync"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "rvtrack",
		Short:   "Return visit tracker with offline-first sync",
		Long:    `Tracks return visit contacts, scheduled visits, monthly reports and goals in a local store, and keeps multiple devices converged through a remote PostgreSQL backend.`,
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: level,
			})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	rootCmd.AddCommand(
		daemonCmd(),
		syncCmd(),
		pullCmd(),
		statusCmd(),
		migrateCmd(),
		initCmd(),
		finalizeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStores opens the local store and, when configured, the remote backend.
// The remote being unreachable is not fatal: local operation continues and
// sync stays off for this invocation.
func openStores(ctx context.Context, cfg *config.Config, requireRemote bool) (*store.Store, *remote.Store, error) {
	st, err := store.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open local store: %w", err)
	}

	if !cfg.Database.Configured() {
		if requireRemote {
			st.Close()
			return nil, nil, fmt.Errorf("no remote database configured; run 'rvtrack init' first")
		}
		return st, nil, nil
	}

	rs, err := remote.New(ctx, &cfg.Database)
	if err != nil {
		if requireRemote {
			st.Close()
			return nil, nil, fmt.Errorf("failed to connect to remote: %w", err)
		}
		slog.Warn("remote unreachable, continuing offline", "error", err)
		return st, nil, nil
	}
	return st, rs, nil
}

// newEngine wires the sync engine from config. rs may be nil.
func newEngine(cfg *config.Config, st *store.Store, rs *remote.Store, progress bool) *sync.Engine {
	opts := sync.Options{
		Debounce:     time.Duration(cfg.Sync.DebounceMs) * time.Millisecond,
		PollInterval: time.Duration(cfg.Sync.PollIntervalS) * time.Second,
		ShowProgress: progress,
	}

	var backend sync.Backend
	if rs != nil {
		backend = rs
		opts.Subscribe = func(ctx context.Context, userID string, onChange func(table string)) (func(), error) {
			l, err := rs.Listen(ctx, userID, onChange)
			if err != nil {
				return nil, err
			}
			return l.Stop, nil
		}
	}

	return sync.NewEngine(st, backend, sync.StaticProvider(cfg.UserID), opts)
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Start the background sync and reminder process",
		Long:  `Runs continuously: performs an initial sync, then keeps the local store converged with the remote through change notifications and polling, and delivers visit reminders.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			st, rs, err := openStores(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer st.Close()
			if rs != nil {
				defer rs.Close()
			}

			engine := newEngine(cfg, st, rs, false)

			slog.Info("performing initial sync")
			res := engine.SyncAll(ctx)
			slog.Info("initial sync complete", "pushed", res.Pushed, "pulled", res.Pulled)

			engine.Start(ctx)
			defer engine.Stop()

			runner := notify.NewRunner(st, notify.NewScheduler(), time.Minute)
			go runner.Run(ctx)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			slog.Info("daemon started", "db", cfg.LocalDBPath)
			fmt.Println("Tracking visits and syncing changes. Press Ctrl+C to stop.")

			<-sigCh
			slog.Info("shutting down...")
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "One-time full sync, then exit",
		Long:  `Pushes all local rows to the remote, pulls the remote state back, merges, and exits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			st, rs, err := openStores(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer st.Close()
			defer rs.Close()

			engine := newEngine(cfg, st, rs, true)
			res := engine.SyncAll(ctx)

			fmt.Printf("Sync completed: %d pushed, %d pulled.\n", res.Pushed, res.Pulled)
			return nil
		},
	}
}

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Download remote data into the local store",
		Long:  `Pulls all rows from the remote and merges them locally without pushing. Use this to seed a new device with existing data.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			st, rs, err := openStores(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer st.Close()
			defer rs.Close()

			engine := newEngine(cfg, st, rs, true)
			pulled, err := engine.PullAll(ctx)
			if err != nil {
				return fmt.Errorf("pull failed: %w", err)
			}

			fmt.Printf("Pull completed: %d rows merged.\n", pulled)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show local and remote sync status",
		Long:  `Shows local row counts per collection, the last sync time, and remote connection status.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			st, err := store.Open(cfg.LocalDBPath)
			if err != nil {
				return fmt.Errorf("failed to open local store: %w", err)
			}
			defer st.Close()

			fmt.Println("=== rvtrack Status ===")
			fmt.Printf("Local store: %s\n", cfg.LocalDBPath)
			for _, col := range store.Collections {
				n, err := st.Count(ctx, col)
				if err != nil {
					return err
				}
				fmt.Printf("  %s: %d\n", col, n)
			}

			meta, err := st.SyncMeta(ctx)
			if err != nil {
				return err
			}
			if meta != nil && meta.LastSyncedAt != nil {
				fmt.Printf("Last sync: %s\n", meta.LastSyncedAt.Format(time.RFC3339))
			} else {
				fmt.Println("Last sync: never")
			}
			fmt.Println()

			if !cfg.Database.Configured() {
				fmt.Println("Remote: not configured")
				return nil
			}

			rs, err := remote.New(ctx, &cfg.Database)
			if err != nil {
				fmt.Println("Remote: disconnected")
				fmt.Printf("  Error: %v\n", err)
				return nil
			}
			defer rs.Close()

			status, err := rs.GetStatus(ctx, cfg.UserID)
			if err != nil {
				return fmt.Errorf("failed to get remote status: %w", err)
			}

			fmt.Println("Remote: connected")
			fmt.Printf("  Host: %s\n", cfg.Database.Host)
			fmt.Printf("  Database: %s\n", cfg.Database.Database)
			for _, table := range remote.Tables {
				fmt.Printf("  %s: %d\n", table, status.Counts[table])
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run remote database migrations",
		Long:  `Runs all pending migrations against the remote database. Local store migrations run automatically on open.`,
	}

	migrationsDir := ""
	cmd.Flags().StringVar(&migrationsDir, "dir", "migrations", "migrations directory")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if !cfg.Database.Configured() {
			return fmt.Errorf("no remote database configured")
		}

		rs, err := remote.New(ctx, &cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to remote: %w", err)
		}
		defer rs.Close()

		// Resolve migrations directory
		if !filepath.IsAbs(migrationsDir) {
			exe, _ := os.Executable()
			exeDir := filepath.Dir(exe)
			if _, err := os.Stat(filepath.Join(exeDir, migrationsDir)); err == nil {
				migrationsDir = filepath.Join(exeDir, migrationsDir)
			} else {
				cwd, _ := os.Getwd()
				migrationsDir = filepath.Join(cwd, migrationsDir)
			}
		}

		if err := rs.RunMigrations(ctx, migrationsDir); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		fmt.Println("Migrations completed successfully.")
		return nil
	}

	return cmd
}

func finalizeCmd() *cobra.Command {
	now := time.Now().AddDate(0, -1, 0)
	year := now.Year()
	month := int(now.Month())
	moveLeftover := false

	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Finalize a month's report",
		Long: `Closes out a month's report. The leftover minutes under a full hour are
either rounded (30 or more rounds up) or, with --move-leftover, carried into
an entry on the first day of the following month.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			st, err := store.Open(cfg.LocalDBPath)
			if err != nil {
				return fmt.Errorf("failed to open local store: %w", err)
			}
			defer st.Close()

			report, err := st.FinalizeMonth(ctx, year, month, moveLeftover)
			if err != nil {
				return fmt.Errorf("finalize failed: %w", err)
			}

			fmt.Printf("Finalized %04d-%02d: %d minutes logged", year, month, report.TotalMinutes)
			if report.ReportedMinutes != nil {
				fmt.Printf(", %d reported", *report.ReportedMinutes)
			}
			if report.CarryoverApplied {
				ny, nm := nextMonth(year, month)
				fmt.Printf(" (leftover carried to %04d-%02d)", ny, nm)
			}
			fmt.Println()
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", year, "report year")
	cmd.Flags().IntVar(&month, "month", month, "report month (1-12)")
	cmd.Flags().BoolVar(&moveLeftover, "move-leftover", false, "carry leftover minutes into next month instead of rounding")
	return cmd
}

func nextMonth(year, month int) (int, int) {
	if month == 12 {
		return year + 1, 1
	}
	return year, month + 1
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Interactive setup to create config file",
		Long:  `Interactively creates a configuration file. The remote database section is optional; skip it to run purely offline.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reader := bufio.NewReader(os.Stdin)

			fmt.Println("=== rvtrack Setup ===")
			fmt.Println()

			configDir, err := config.GetConfigDir()
			if err != nil {
				return err
			}

			defaultDB := filepath.Join(configDir, "rvtrack.db")
			fmt.Printf("Local database path [%s]: ", defaultDB)
			dbPath := readLine(reader)
			if dbPath == "" {
				dbPath = defaultDB
			}

			fmt.Print("User id (shared across your devices): ")
			userID := readLine(reader)

			doc := map[string]any{
				"local_db_path": dbPath,
				"user_id":       userID,
			}

			fmt.Print("\nConfigure a remote database for sync? [y/N]: ")
			if strings.EqualFold(readLine(reader), "y") {
				fmt.Print("  Host: ")
				host := readLine(reader)

				fmt.Print("  Port [5432]: ")
				portStr := readLine(reader)
				port := 5432
				if portStr != "" {
					port, err = strconv.Atoi(portStr)
					if err != nil {
						return fmt.Errorf("invalid port: %q", portStr)
					}
				}

				fmt.Print("  User: ")
				user := readLine(reader)

				fmt.Print("  Database name: ")
				dbName := readLine(reader)
				if dbName == "" {
					return fmt.Errorf("database name is required")
				}

				fmt.Print("  SSL mode [require]: ")
				sslMode := readLine(reader)
				if sslMode == "" {
					sslMode = "require"
				}

				doc["database"] = map[string]any{
					"host":     host,
					"port":     port,
					"user":     user,
					"password": "${RVTRACK_DB_PASSWORD}",
					"database": dbName,
					"sslmode":  sslMode,
				}
				doc["sync"] = map[string]any{
					"debounce_ms":     250,
					"poll_interval_s": 8,
				}
			}

			content, err := yaml.Marshal(doc)
			if err != nil {
				return fmt.Errorf("failed to render config: %w", err)
			}

			configPath := filepath.Join(configDir, "config.yaml")
			if err := os.WriteFile(configPath, content, 0600); err != nil {
				return fmt.Errorf("failed to write config file: %w", err)
			}

			fmt.Printf("\nConfig file written to: %s\n", configPath)
			if _, ok := doc["database"]; ok {
				fmt.Println("\nIMPORTANT: Set the RVTRACK_DB_PASSWORD environment variable.")
				fmt.Println("To set up the remote schema, run: rvtrack migrate")
			}
			fmt.Println("To check the setup, run: rvtrack status")
			fmt.Println("To start tracking and syncing, run: rvtrack daemon")

			return nil
		},
	}
}

func readLine(r *bufio.Reader) string {
	line, _ := r.ReadString('\n')
	return strings.TrimSpace(line)
}

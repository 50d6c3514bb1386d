package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"taskdesk/internal/app"
	"taskdesk/internal/config"
	"taskdesk/internal/scheduler"
	"taskdesk/internal/server"
)

func initCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create taskdesk.yml and the workspace database",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if name == "" {
				abs, err := filepath.Abs(workspace)
				if err != nil {
					return err
				}
				name = filepath.Base(abs)
			}
			created, err := app.Init(cmd.Context(), workspace, name)
			if err != nil {
				return err
			}
			// Opening seeds the configured templates.
			if err := withWorkspace(cmd.Context(), func(context.Context, *app.Workspace) error { return nil }); err != nil {
				return err
			}
			if created {
				fmt.Printf("Initialized workspace %q in %s\n", name, workspace)
			} else {
				fmt.Printf("Workspace in %s already has %s\n", workspace, filepath.Base(config.Path(workspace)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "workspace name (defaults to the directory name)")
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(c)
			}
			out, err := yaml.Marshal(c)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate taskdesk.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			fmt.Printf("%s is valid (%d templates, %d calendars)\n", config.Path(viper.GetString("workspace")), len(c.Templates), len(c.Calendars))
			return nil
		},
	})
	var name string
	useActor := &cobra.Command{
		Use:   "use-actor <id>",
		Short: "Store the default actor in the workspace .env",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(viper.GetString("workspace"), ".env")
			env, err := godotenv.Read(path)
			if errors.Is(err, os.ErrNotExist) {
				env = map[string]string{}
			} else if err != nil {
				return err
			}
			env["TASKDESK_ACTOR_ID"] = args[0]
			if name != "" {
				env["TASKDESK_ACTOR_NAME"] = name
			}
			if err := godotenv.Write(env, path); err != nil {
				return err
			}
			fmt.Printf("default actor set to %s in %s\n", args[0], path)
			return nil
		},
	}
	useActor.Flags().StringVar(&name, "name", "", "display name")
	cfg.AddCommand(useActor)
	return cfg
}

func loadConfig() (*config.Config, error) {
	c, err := config.LoadOptional(viper.GetString("workspace"))
	if err != nil {
		return nil, err
	}
	if c == nil {
		c = config.Default("taskdesk")
	}
	return c, nil
}

func buildScheduler(ws *app.Workspace, log *zap.Logger) (*scheduler.Scheduler, *scheduler.Ledger, error) {
	ledger, err := scheduler.OpenLedger(ws.Config.LedgerPath(ws.Dir))
	if err != nil {
		return nil, nil, err
	}
	notifiers := scheduler.Notifiers{scheduler.LogNotifier{Logger: log}}
	if len(ws.Config.Scheduler.Webhooks) > 0 {
		notifiers = append(notifiers, scheduler.NewWebhookNotifier(ws.Config.Scheduler.Webhooks))
	}
	s := scheduler.New(ws.Engine, ledger, notifiers, log, scheduler.Config{Interval: ws.Config.Scheduler.Interval})
	s.AfterRun = func(ctx context.Context, r scheduler.Report) error {
		if !ws.Dirty() {
			return nil
		}
		return ws.Save(ctx)
	}
	return s, ledger, nil
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server and the reminder scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			level := cfg.Log.Level
			if cmd.Flags().Changed("log-level") || os.Getenv("TASKDESK_LOG_LEVEL") != "" {
				level = viper.GetString("log-level")
			}
			log, err := newLogger(level, cfg.Log.Encoding)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ws, err := app.Open(ctx, viper.GetString("workspace"), log)
			if err != nil {
				return err
			}
			defer ws.Close()

			if !cmd.Flags().Changed("addr") {
				addr = ws.Config.Server.Addr
			}
			if !cmd.Flags().Changed("base-path") && ws.Config.Server.BasePath != "" {
				basePath = ws.Config.Server.BasePath
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				secret = ws.Config.Server.JWTSecret
			}
			handler, err := server.New(server.Config{
				Engine:   ws.Engine,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, Logger: log},
				Logger:   log,
				Persist:  ws.Save,
			})
			if err != nil {
				return err
			}

			if ws.Config.Scheduler.Enabled && !noScheduler {
				sched, ledger, err := buildScheduler(ws, log)
				if err != nil {
					return err
				}
				defer ledger.Close()
				if err := sched.Start(); err != nil {
					return err
				}
				defer func() {
					stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					sched.Stop(stopCtx)
				}()
			}

			srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			log.Info("serving taskdesk api",
				zap.String("addr", addr),
				zap.String("base_path", basePath),
				zap.Bool("auth", secret != ""))
			fmt.Printf("Serving Taskdesk API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v1", "API base path")
	cmd.Flags().String("jwt-secret", "", "HS256 secret; when set every API call needs a bearer token")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "do not run the reminder scheduler")
	_ = viper.BindPFlag("jwt-secret", cmd.Flags().Lookup("jwt-secret"))
	return cmd
}

func schedulerCmd() *cobra.Command {
	s := &cobra.Command{Use: "scheduler", Short: "Reminder and recurrence scheduler"}
	s.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Deliver due reminders and spawn recurring tasks once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				sched, ledger, err := buildScheduler(ws, ws.Logger)
				if err != nil {
					return err
				}
				defer ledger.Close()
				report, err := sched.RunOnce(ctx, ws.Engine.Now())
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				fmt.Printf("reminders sent: %d, occurrences spawned: %d, failures: %d\n",
					report.RemindersSent, report.OccurrencesSpawned, report.Failures)
				return nil
			})
		},
	})
	return s
}

func tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the current actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loadConfig()
			if err != nil {
				return err
			}
			secret := viper.GetString("jwt-secret")
			if secret == "" {
				secret = c.Server.JWTSecret
			}
			token, err := server.IssueToken(secret, actor(), ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime (0 never expires)")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show schema version, stored counts and scheduler deliveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				st, err := ws.Status(ctx)
				if err != nil {
					return err
				}
				var reminders, occurrences int
				ledgerPath := ws.Config.LedgerPath(ws.Dir)
				if _, err := os.Stat(ledgerPath); err == nil {
					ledger, err := scheduler.OpenLedger(ledgerPath)
					if err != nil {
						return err
					}
					defer ledger.Close()
					if reminders, occurrences, err = ledger.Counts(); err != nil {
						return err
					}
				}
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"workspace":          st,
						"remindersDelivered": reminders,
						"occurrencesSpawned": occurrences,
					})
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Item", "Value"})
				tw.AppendRows([]table.Row{
					{"Schema", fmt.Sprintf("%d/%d", st.SchemaVersion, st.LatestSchema)},
					{"Stored tasks", countsLine(st.StoredTasks)},
					{"Stored activities", st.StoredActivities},
					{"Templates", st.Templates},
					{"Calendar events", st.CalendarEvents},
					{"Reminders delivered", reminders},
					{"Occurrences spawned", occurrences},
				})
				tw.Render()
				return nil
			})
		},
	}
}

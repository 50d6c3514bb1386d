package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"taskdesk/internal/app"
	"taskdesk/internal/domain"
	"taskdesk/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "td",
	Short: "Taskdesk CLI",
	Long: `Taskdesk keeps a team's CRM tasks in a local workspace.
- Workspace: a directory with taskdesk.yml and the .taskdesk database.
- Tasks: follow-ups, calls, meetings and other work items with subtasks, reminders, dependencies and recurrence.
- Board: tasks grouped by status; overdue is computed from the due date and never stored.
- Templates: reusable task blueprints ('td template use').
- Activities: the audit log of every change plus logged calls, emails and notes.
- Scheduler: 'td serve' delivers due reminders and creates the next occurrence of completed recurring tasks.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env values never override the real environment.
		_ = godotenv.Load(filepath.Join(viper.GetString("workspace"), ".env"))
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("TASKDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("actor-name", "", "actor display name")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("actor-name", rootCmd.PersistentFlags().Lookup("actor-name"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(subtaskCmd())
	rootCmd.AddCommand(reminderCmd())
	rootCmd.AddCommand(attachmentCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(activityCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(metricsCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(schedulerCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(statusCmd())
}

// --- helpers ---

func newLogger(level, encoding string) (*zap.Logger, error) {
	return logger.New(logger.Config{Level: level, Encoding: encoding})
}

func actor() domain.Actor {
	return domain.Actor{
		ID:   strings.TrimSpace(viper.GetString("actor-id")),
		Name: strings.TrimSpace(viper.GetString("actor-name")),
	}
}

// withWorkspace opens the workspace, runs fn and saves when fn recorded
// anything.
func withWorkspace(ctx context.Context, fn func(context.Context, *app.Workspace) error) error {
	log, err := newLogger(viper.GetString("log-level"), "console")
	if err != nil {
		return err
	}
	defer log.Sync()
	ws, err := app.Open(ctx, viper.GetString("workspace"), log)
	if err != nil {
		return err
	}
	defer ws.Close()
	if err := fn(ctx, ws); err != nil {
		return err
	}
	if ws.Dirty() {
		return ws.Save(ctx)
	}
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
}

// parseWhen accepts RFC 3339 timestamps, "2006-01-02 15:04" and plain dates
// in the workspace timezone.
func parseWhen(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use RFC 3339 or YYYY-MM-DD)", raw)
}

func formatDate(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	return t.In(loc).Format("2006-01-02 15:04")
}

func optionalString(cmd *cobra.Command, flag, v string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &v
}

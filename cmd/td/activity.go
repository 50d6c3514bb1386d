package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdesk/internal/activity"
	"taskdesk/internal/app"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
)

func activityCmd() *cobra.Command {
	a := &cobra.Command{
		Use:   "activity",
		Short: "Log interactions and read the activity feed",
	}
	a.AddCommand(activityLogCmd())
	a.AddCommand(activityFeedCmd())
	return a
}

func activityLogCmd() *cobra.Command {
	var opts engine.LogActivityOptions
	var typ string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record a call, email, meeting, note or comment",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = domain.ActivityType(typ)
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				a, err := ws.Engine.LogActivity(ctx, opts, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(a)
			})
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(domain.ActivityNoteAdded), "comment_added, call_logged, email_sent, meeting_scheduled or note_added")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.EntityType, "entity-type", domain.EntityTask, "entity type")
	cmd.Flags().StringVar(&opts.EntityID, "entity-id", "", "entity id")
	cmd.Flags().BoolVar(&opts.Important, "important", false, "flag as important")
	cmd.Flags().BoolVar(&opts.Private, "private", false, "hide from the default feed")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("entity-id")
	return cmd
}

func activityFeedCmd() *cobra.Command {
	var c activity.Criteria
	var types []string
	var rangeName string
	cmd := &cobra.Command{
		Use:   "feed",
		Short: "Show activities grouped by day, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, err := activity.ParsePreset(rangeName)
			if err != nil {
				return err
			}
			for _, t := range types {
				c.Types = append(c.Types, domain.ActivityType(t))
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				days := ws.Engine.ActivityFeed(preset, c)
				if viper.GetBool("json") {
					return printJSON(days)
				}
				loc := ws.Config.Location()
				tw := newTable()
				tw.AppendHeader(table.Row{"Time", "Type", "Title", "User"})
				for _, d := range days {
					tw.AppendRow(table.Row{d.Day})
					tw.AppendSeparator()
					for _, a := range d.Activities {
						user := a.UserName
						if user == "" {
							user = a.UserID
						}
						mark := ""
						if a.IsImportant {
							mark = "! "
						}
						tw.AppendRow(table.Row{a.CreatedAt.In(loc).Format("15:04"), a.Type, mark + a.Title, user})
					}
					tw.AppendSeparator()
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&rangeName, "range", "week", "today, week, month or all")
	cmd.Flags().StringSliceVar(&types, "type", nil, "activity types")
	cmd.Flags().StringSliceVar(&c.Users, "user", nil, "user ids")
	cmd.Flags().StringVar(&c.EntityType, "entity-type", "", "entity type")
	cmd.Flags().StringVar(&c.EntityID, "entity-id", "", "entity id")
	cmd.Flags().StringVarP(&c.SearchTerm, "search", "q", "", "search text")
	cmd.Flags().BoolVar(&c.IncludePrivate, "private", false, "include private activities")
	return cmd
}

func calendarCmd() *cobra.Command {
	cal := &cobra.Command{Use: "calendar", Short: "Calendar of due tasks and events"}
	cal.AddCommand(calendarShowCmd())
	cal.AddCommand(calendarEventCmd())
	return cal
}

func calendarShowCmd() *cobra.Command {
	var calendars []string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List calendar entries in time order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				visible := calendars
				if len(visible) == 0 {
					visible = ws.Config.VisibleCalendars()
				}
				entries := ws.Engine.Calendar(visible)
				if viper.GetBool("json") {
					return printJSON(entries)
				}
				loc := ws.Config.Location()
				tw := newTable()
				tw.AppendHeader(table.Row{"Start", "End", "Source", "Title", "Calendar"})
				for _, e := range entries {
					start, end := e.Start.In(loc).Format("2006-01-02 15:04"), e.End.In(loc).Format("15:04")
					if e.AllDay {
						start, end = e.Start.In(loc).Format("2006-01-02"), "all day"
					}
					tw.AppendRow(table.Row{start, end, e.Source, e.Title, e.CalendarID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&calendars, "calendars", nil, "visible calendar ids")
	return cmd
}

func calendarEventCmd() *cobra.Command {
	ev := &cobra.Command{Use: "event", Short: "Manage calendar events"}

	var in engine.CalendarEventInput
	var start, end string
	add := &cobra.Command{
		Use:   "add",
		Short: "Create an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				loc := ws.Config.Location()
				s, err := parseWhen(start, loc)
				if err != nil {
					return err
				}
				in.Start = s
				if end != "" {
					if in.End, err = parseWhen(end, loc); err != nil {
						return err
					}
				}
				created, err := ws.Engine.CreateCalendarEvent(ctx, in, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(created)
			})
		},
	}
	add.Flags().StringVar(&in.CalendarID, "calendar", "work", "calendar id")
	add.Flags().StringVar(&in.Title, "title", "", "title")
	add.Flags().StringVar(&in.Description, "description", "", "description")
	add.Flags().StringVar(&start, "start", "", "start time")
	add.Flags().StringVar(&end, "end", "", "end time")
	add.Flags().BoolVar(&in.AllDay, "all-day", false, "all-day event")
	add.Flags().StringVar(&in.Location, "location", "", "location")
	add.Flags().StringArrayVar(&in.Attendees, "attendee", nil, "attendee (repeatable)")
	add.Flags().StringVar(&in.TaskID, "task", "", "related task id")
	add.Flags().StringVar(&in.ContactID, "contact", "", "contact id")
	add.Flags().StringVar(&in.DealID, "deal", "", "deal id")
	_ = add.MarkFlagRequired("title")
	_ = add.MarkFlagRequired("start")

	list := &cobra.Command{
		Use:   "list",
		Short: "List events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return printJSONOrTable(ws.Engine.CalendarEvents())
			})
		},
	}
	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return ws.Engine.DeleteCalendarEvent(ctx, args[0], actor())
			})
		},
	}
	ev.AddCommand(add, list, del)
	return ev
}

func metricsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show completion and workload metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				m := ws.Engine.Metrics()
				if viper.GetBool("json") {
					return printJSON(m)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"Metric", "Value"})
				tw.AppendRows([]table.Row{
					{"Total", m.Total},
					{"Pending", m.Pending},
					{"In progress", m.InProgress},
					{"Completed", m.Completed},
					{"Overdue", m.Overdue},
					{"Completed today", m.CompletedToday},
					{"Completed this week", m.CompletedThisWeek},
					{"Completed this month", m.CompletedThisMonth},
					{"Completion rate", fmt.Sprintf("%.1f%%", m.CompletionRate)},
					{"Average completion (days)", fmt.Sprintf("%.1f", m.AverageCompletionTime)},
					{"Productivity score", fmt.Sprintf("%.1f", m.ProductivityScore)},
				})
				tw.AppendSeparator()
				tw.AppendRow(table.Row{"By priority", countsLine(m.ByPriority)})
				tw.AppendRow(table.Row{"By type", countsLine(m.ByType)})
				tw.Render()
				return nil
			})
		},
	}
}

func countsLine[K ~string](m map[K]int) string {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v > 0 {
			keys = append(keys, fmt.Sprintf("%s=%d", k, v))
		}
	}
	sort.Strings(keys)
	return strings.Join(keys, " ")
}

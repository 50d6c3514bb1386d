package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdesk/internal/app"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/query"
)

func taskCmd() *cobra.Command {
	task := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
		Long:  "Tasks move pending -> in-progress -> completed (on-hold and cancelled on the side). Completing sets the completion date; reopening clears it. Overdue is shown for open tasks past their due date.",
	}
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskMoveCmd())
	task.AddCommand(taskDeleteCmd())
	task.AddCommand(taskDuplicateCmd())
	task.AddCommand(taskReadinessCmd())
	task.AddCommand(taskOrderCmd())
	task.AddCommand(taskDueCmd())
	return task
}

type recurrenceFlags struct {
	frequency string
	interval  int
	until     string
	max       int
}

func (r *recurrenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.frequency, "repeat", "", "recurrence: daily, weekly, monthly or yearly")
	cmd.Flags().IntVar(&r.interval, "every", 1, "recurrence interval")
	cmd.Flags().StringVar(&r.until, "until", "", "recurrence end date")
	cmd.Flags().IntVar(&r.max, "max-occurrences", 0, "recurrence occurrence cap")
}

func (r *recurrenceFlags) pattern(ws *app.Workspace) (*domain.RecurringPattern, error) {
	if r.frequency == "" {
		return nil, nil
	}
	p := &domain.RecurringPattern{
		Frequency:      domain.Frequency(r.frequency),
		Interval:       r.interval,
		MaxOccurrences: r.max,
	}
	if r.until != "" {
		end, err := parseWhen(r.until, ws.Config.Location())
		if err != nil {
			return nil, err
		}
		p.EndDate = &end
	}
	return p, nil
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var taskType, priority, status, due string
	var remindAt []string
	var estimate int
	var rec recurrenceFlags
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				loc := ws.Config.Location()
				opts.Type = domain.TaskType(taskType)
				opts.Priority = domain.Priority(priority)
				opts.Status = domain.Status(status)
				opts.Actor = actor()
				if due != "" {
					d, err := parseWhen(due, loc)
					if err != nil {
						return err
					}
					opts.DueDate = &d
				}
				if cmd.Flags().Changed("estimate") {
					opts.EstimatedDuration = &estimate
				}
				for _, raw := range remindAt {
					at, err := parseWhen(raw, loc)
					if err != nil {
						return err
					}
					opts.Reminders = append(opts.Reminders, engine.ReminderInput{RemindAt: at})
				}
				p, err := rec.pattern(ws)
				if err != nil {
					return err
				}
				opts.Recurrence = p
				t, err := ws.Engine.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (generated if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&taskType, "type", "", "task type (defaults to the workspace default)")
	cmd.Flags().StringVar(&priority, "priority", "", "low, medium, high or urgent")
	cmd.Flags().StringVar(&status, "status", "", "initial status")
	cmd.Flags().StringArrayVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "estimated duration in minutes")
	cmd.Flags().StringVar(&opts.AssignedUserID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&opts.AssignedUserName, "assignee-name", "", "assignee name")
	cmd.Flags().StringVar(&opts.ContactID, "contact", "", "contact id")
	cmd.Flags().StringVar(&opts.DealID, "deal", "", "deal id")
	cmd.Flags().StringVar(&opts.CompanyID, "company", "", "company id")
	cmd.Flags().StringArrayVar(&opts.Dependencies, "depends-on", nil, "dependency task id (repeatable)")
	cmd.Flags().StringVar(&opts.ParentTaskID, "parent", "", "parent task id")
	cmd.Flags().StringArrayVar(&opts.Subtasks, "subtask", nil, "subtask title (repeatable)")
	cmd.Flags().StringArrayVar(&remindAt, "remind-at", nil, "reminder time (repeatable)")
	cmd.Flags().StringToStringVar(&opts.CustomFields, "field", nil, "custom field key=value")
	rec.register(cmd)
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

type taskListFlags struct {
	status, priority, types, assignees, tags, sort []string
	search                                         string
	overdue, dueToday                              bool
	contact, deal, company                         string
}

func (f *taskListFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.status, "status", nil, "status filter (overdue allowed)")
	cmd.Flags().StringSliceVar(&f.priority, "priority", nil, "priority filter")
	cmd.Flags().StringSliceVar(&f.types, "type", nil, "type filter")
	cmd.Flags().StringSliceVar(&f.assignees, "assignee", nil, "assignee id filter")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tag filter (any)")
	cmd.Flags().StringVarP(&f.search, "search", "q", "", "search text")
	cmd.Flags().BoolVar(&f.overdue, "overdue", false, "only overdue tasks")
	cmd.Flags().BoolVar(&f.dueToday, "due-today", false, "only tasks due today")
	cmd.Flags().StringVar(&f.contact, "contact", "", "contact id")
	cmd.Flags().StringVar(&f.deal, "deal", "", "deal id")
	cmd.Flags().StringVar(&f.company, "company", "", "company id")
	cmd.Flags().StringSliceVar(&f.sort, "sort", nil, "sort keys, prefix - for descending")
}

func (f *taskListFlags) build(cmd *cobra.Command) (query.Filter, []query.SortSpec, error) {
	qf := query.Filter{
		AssignedUsers: f.assignees,
		Tags:          f.tags,
		SearchTerm:    f.search,
		ContactID:     f.contact,
		DealID:        f.deal,
		CompanyID:     f.company,
	}
	for _, s := range f.status {
		qf.Statuses = append(qf.Statuses, domain.Status(s))
	}
	for _, p := range f.priority {
		qf.Priorities = append(qf.Priorities, domain.Priority(p))
	}
	for _, t := range f.types {
		qf.Types = append(qf.Types, domain.TaskType(t))
	}
	if cmd.Flags().Changed("overdue") {
		qf.IsOverdue = &f.overdue
	}
	if cmd.Flags().Changed("due-today") {
		qf.IsDueToday = &f.dueToday
	}
	var sorts []query.SortSpec
	for _, raw := range f.sort {
		s, err := query.ParseSort(raw)
		if err != nil {
			return query.Filter{}, nil, err
		}
		sorts = append(sorts, s)
	}
	return qf, sorts, nil
}

func taskListCmd() *cobra.Command {
	var f taskListFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			qf, sorts, err := f.build(cmd)
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return printTasks(ws, ws.Engine.FilteredTasks(qf, sorts...))
			})
		},
	}
	f.register(cmd)
	return cmd
}

func printTasks(ws *app.Workspace, tasks []domain.Task) error {
	if viper.GetBool("json") {
		return printJSON(tasks)
	}
	loc := ws.Config.Location()
	now := ws.Engine.Now()
	tw := newTable()
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Priority", "Type", "Due", "Assignee"})
	for _, t := range tasks {
		tw.AppendRow(table.Row{t.ID, t.Title, query.DisplayStatus(t, now), t.Priority, t.Type, formatDate(t.DueDate, loc), t.AssignedUserName})
	}
	tw.AppendFooter(table.Row{"", fmt.Sprintf("%d tasks", len(tasks))})
	tw.Render()
	return nil
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its readiness and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				t, err := ws.Engine.Task(args[0])
				if err != nil {
					return err
				}
				ready, err := ws.Engine.CanStart(t.ID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"task":       t,
					"readiness":  ready,
					"activities": ws.Engine.ActivitiesForEntity(domain.EntityTask, t.ID),
				})
			})
		},
	}
}

func taskUpdateCmd() *cobra.Command {
	var title, description, taskType, status, priority, due, completed string
	var assigneeID, assigneeName, contact, deal, company, parent string
	var tags, dependsOn []string
	var fields map[string]string
	var estimate, actual int
	var clearDue, clearRepeat bool
	var rec recurrenceFlags
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task fields; only given flags change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				loc := ws.Config.Location()
				opts := engine.TaskUpdateOptions{
					Title:            optionalString(cmd, "title", title),
					Description:      optionalString(cmd, "description", description),
					AssignedUserID:   optionalString(cmd, "assignee-id", assigneeID),
					AssignedUserName: optionalString(cmd, "assignee-name", assigneeName),
					ContactID:        optionalString(cmd, "contact", contact),
					DealID:           optionalString(cmd, "deal", deal),
					CompanyID:        optionalString(cmd, "company", company),
					ParentTaskID:     optionalString(cmd, "parent", parent),
					ClearDueDate:     clearDue,
					ClearRecurrence:  clearRepeat,
					Actor:            actor(),
				}
				if cmd.Flags().Changed("type") {
					v := domain.TaskType(taskType)
					opts.Type = &v
				}
				if cmd.Flags().Changed("status") {
					v := domain.Status(status)
					opts.Status = &v
				}
				if cmd.Flags().Changed("priority") {
					v := domain.Priority(priority)
					opts.Priority = &v
				}
				if cmd.Flags().Changed("tag") {
					opts.Tags = &tags
				}
				if cmd.Flags().Changed("depends-on") {
					opts.Dependencies = &dependsOn
				}
				if cmd.Flags().Changed("field") {
					opts.CustomFields = &fields
				}
				if cmd.Flags().Changed("estimate") {
					opts.EstimatedDuration = &estimate
				}
				if cmd.Flags().Changed("actual") {
					opts.ActualDuration = &actual
				}
				if due != "" {
					d, err := parseWhen(due, loc)
					if err != nil {
						return err
					}
					opts.DueDate = &d
				}
				if completed != "" {
					d, err := parseWhen(completed, loc)
					if err != nil {
						return err
					}
					opts.CompletedDate = &d
				}
				p, err := rec.pattern(ws)
				if err != nil {
					return err
				}
				opts.Recurrence = p
				t, err := ws.Engine.UpdateTask(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&taskType, "type", "", "task type")
	cmd.Flags().StringVar(&status, "status", "", "status")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringVar(&completed, "completed-at", "", "completion time (completed tasks only)")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "estimated minutes")
	cmd.Flags().IntVar(&actual, "actual", 0, "actual minutes")
	cmd.Flags().StringVar(&assigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&assigneeName, "assignee-name", "", "assignee name")
	cmd.Flags().StringVar(&contact, "contact", "", "contact id")
	cmd.Flags().StringVar(&deal, "deal", "", "deal id")
	cmd.Flags().StringVar(&company, "company", "", "company id")
	cmd.Flags().StringVar(&parent, "parent", "", "parent task id")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "replace tags (repeatable)")
	cmd.Flags().StringArrayVar(&dependsOn, "depends-on", nil, "replace dependencies (repeatable)")
	cmd.Flags().StringToStringVar(&fields, "field", nil, "replace custom fields key=value")
	cmd.Flags().BoolVar(&clearRepeat, "no-repeat", false, "remove the recurrence")
	rec.register(cmd)
	return cmd
}

func taskMoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a task to another board column",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				t, err := ws.Engine.MoveTask(ctx, args[0], domain.Status(args[1]), actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task with its subtasks, reminders and attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if err := ws.Engine.DeleteTask(ctx, args[0], actor()); err != nil {
					return err
				}
				fmt.Printf("deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func taskDuplicateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "duplicate <id>",
		Short: "Copy a task as a new pending task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				t, err := ws.Engine.DuplicateTask(ctx, args[0], actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskReadinessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "readiness <id>",
		Short: "Show whether a task's dependencies are completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				r, err := ws.Engine.CanStart(args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				if r.Ready {
					fmt.Printf("%s is ready\n", r.TaskID)
					return nil
				}
				fmt.Printf("%s is blocked by %s\n", r.TaskID, strings.Join(r.BlockedBy, ", "))
				return nil
			})
		},
	}
}

func taskOrderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "order",
		Short: "List tasks in dependency order with their readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				ordered, err := ws.Engine.WorkOrder()
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ordered)
				}
				now := ws.Engine.Now()
				tw := newTable()
				tw.AppendHeader(table.Row{"#", "ID", "Title", "Status", "Blocked by"})
				for i, o := range ordered {
					tw.AppendRow(table.Row{i + 1, o.ID, o.Title, query.DisplayStatus(o.Task, now), strings.Join(o.Readiness.BlockedBy, ", ")})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func taskDueCmd() *cobra.Command {
	var window string
	cmd := &cobra.Command{
		Use:   "due",
		Short: "List overdue tasks or tasks due today or this week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				switch window {
				case "overdue":
					return printTasks(ws, ws.Engine.OverdueTasks())
				case "today":
					return printTasks(ws, ws.Engine.TasksDueToday())
				case "week":
					return printTasks(ws, ws.Engine.TasksDueThisWeek())
				}
				return fmt.Errorf("unknown window %q (overdue, today, week)", window)
			})
		},
	}
	cmd.Flags().StringVar(&window, "window", "today", "overdue, today or week")
	return cmd
}

func boardCmd() *cobra.Command {
	var f taskListFlags
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Show tasks grouped by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			qf, sorts, err := f.build(cmd)
			if err != nil {
				return err
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				cols := ws.Engine.Board(qf, sorts...)
				if viper.GetBool("json") {
					return printJSON(cols)
				}
				now := ws.Engine.Now()
				tw := newTable()
				tw.AppendHeader(table.Row{"Status", "Count", "Tasks"})
				for _, col := range cols {
					titles := make([]string, 0, len(col.Tasks))
					for _, t := range col.Tasks {
						label := t.Title
						if query.IsOverdue(t, now) {
							label += " (overdue)"
						}
						titles = append(titles, label)
					}
					tw.AppendRow(table.Row{col.Status, len(col.Tasks), strings.Join(titles, "\n")})
					tw.AppendSeparator()
				}
				tw.Render()
				return nil
			})
		},
	}
	f.register(cmd)
	return cmd
}

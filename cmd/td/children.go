package main

import (
	"context"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdesk/internal/app"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
)

func subtaskCmd() *cobra.Command {
	st := &cobra.Command{Use: "subtask", Short: "Manage a task's checklist"}
	st.AddCommand(subtaskAddCmd())
	st.AddCommand(subtaskUpdateCmd())
	st.AddCommand(subtaskCompleteCmd())
	st.AddCommand(subtaskDeleteCmd())
	return st
}

func subtaskAddCmd() *cobra.Command {
	var in engine.SubtaskInput
	var due string
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add a subtask",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if due != "" {
					d, err := parseWhen(due, ws.Config.Location())
					if err != nil {
						return err
					}
					in.DueDate = &d
				}
				st, err := ws.Engine.AddSubtask(ctx, args[0], in, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().StringVar(&in.Title, "title", "", "title")
	cmd.Flags().StringVar(&in.AssignedUserID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&in.AssignedUserName, "assignee-name", "", "assignee name")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func subtaskUpdateCmd() *cobra.Command {
	var title, status, assigneeID, assigneeName, due string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "update <task-id> <subtask-id>",
		Short: "Update a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				upd := engine.SubtaskUpdate{
					Title:            optionalString(cmd, "title", title),
					AssignedUserID:   optionalString(cmd, "assignee-id", assigneeID),
					AssignedUserName: optionalString(cmd, "assignee-name", assigneeName),
					ClearDueDate:     clearDue,
				}
				if cmd.Flags().Changed("status") {
					s := domain.SubTaskStatus(status)
					upd.Status = &s
				}
				if due != "" {
					d, err := parseWhen(due, ws.Config.Location())
					if err != nil {
						return err
					}
					upd.DueDate = &d
				}
				st, err := ws.Engine.UpdateSubtask(ctx, args[0], args[1], upd, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", "", "pending or completed")
	cmd.Flags().StringVar(&assigneeID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&assigneeName, "assignee-name", "", "assignee name")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	return cmd
}

func subtaskCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <task-id> <subtask-id>",
		Short: "Mark a subtask completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				st, err := ws.Engine.CompleteSubtask(ctx, args[0], args[1], actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(st)
			})
		},
	}
}

func subtaskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id> <subtask-id>",
		Short: "Delete a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return ws.Engine.DeleteSubtask(ctx, args[0], args[1], actor())
			})
		},
	}
}

func reminderCmd() *cobra.Command {
	r := &cobra.Command{Use: "reminder", Short: "Manage task reminders"}
	r.AddCommand(reminderAddCmd())
	r.AddCommand(reminderDeleteCmd())
	r.AddCommand(reminderPendingCmd())
	return r
}

func reminderAddCmd() *cobra.Command {
	var at, typ, message string
	cmd := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Add a reminder",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				when, err := parseWhen(at, ws.Config.Location())
				if err != nil {
					return err
				}
				r, err := ws.Engine.AddReminder(ctx, args[0], engine.ReminderInput{
					Type:     domain.ReminderType(typ),
					RemindAt: when,
					Message:  message,
				}, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "reminder time")
	cmd.Flags().StringVar(&typ, "type", string(domain.ReminderNotification), "notification, email or sms")
	cmd.Flags().StringVar(&message, "message", "", "message")
	_ = cmd.MarkFlagRequired("at")
	return cmd
}

func reminderDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <task-id> <reminder-id>",
		Short: "Delete a reminder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return ws.Engine.DeleteReminder(ctx, args[0], args[1], actor())
			})
		},
	}
}

func reminderPendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "List unsent reminders that are due",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				due := ws.Engine.PendingReminders(ws.Engine.Now())
				if viper.GetBool("json") {
					return printJSON(due)
				}
				loc := ws.Config.Location()
				tw := newTable()
				tw.AppendHeader(table.Row{"Task", "Reminder", "Type", "At", "Message"})
				for _, d := range due {
					at := d.Reminder.RemindAt
					tw.AppendRow(table.Row{d.TaskTitle, d.Reminder.ID, d.Reminder.Type, formatDate(&at, loc), d.Reminder.Message})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func attachmentCmd() *cobra.Command {
	a := &cobra.Command{Use: "attachment", Short: "Manage task attachments"}
	var in engine.AttachmentInput
	add := &cobra.Command{
		Use:   "add <task-id>",
		Short: "Attach a file reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				att, err := ws.Engine.AddAttachment(ctx, args[0], in, actor())
				if err != nil {
					return err
				}
				return printJSONOrTable(att)
			})
		},
	}
	add.Flags().StringVar(&in.Name, "name", "", "file name")
	add.Flags().StringVar(&in.URL, "url", "", "file url")
	add.Flags().StringVar(&in.MimeType, "mime", "", "mime type")
	add.Flags().Int64Var(&in.Size, "size", 0, "size in bytes")
	_ = add.MarkFlagRequired("url")
	del := &cobra.Command{
		Use:   "delete <task-id> <attachment-id>",
		Short: "Delete an attachment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return ws.Engine.DeleteAttachment(ctx, args[0], args[1], actor())
			})
		},
	}
	a.AddCommand(add, del)
	return a
}

func templateCmd() *cobra.Command {
	t := &cobra.Command{Use: "template", Short: "Manage task templates"}
	t.AddCommand(templateListCmd())
	t.AddCommand(templateCreateCmd())
	t.AddCommand(templateDeleteCmd())
	t.AddCommand(templateUseCmd())
	return t
}

func templateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates, most used first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				tpls := ws.Engine.Templates()
				if viper.GetBool("json") {
					return printJSON(tpls)
				}
				tw := newTable()
				tw.AppendHeader(table.Row{"ID", "Name", "Type", "Priority", "Subtasks", "Used"})
				for _, tpl := range tpls {
					tw.AppendRow(table.Row{tpl.ID, tpl.Name, tpl.Type, tpl.Priority, len(tpl.Subtasks), tpl.UseCount})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func templateCreateCmd() *cobra.Command {
	var opts engine.TemplateCreateOptions
	var typ, priority string
	var estimate int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Type = domain.TaskType(typ)
			opts.Priority = domain.Priority(priority)
			if cmd.Flags().Changed("estimate") {
				opts.EstimatedDuration = &estimate
			}
			opts.Actor = actor()
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				tpl, err := ws.Engine.CreateTemplate(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(tpl)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "template id (generated if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&typ, "type", "", "task type")
	cmd.Flags().StringVar(&priority, "priority", "", "priority")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "estimated minutes")
	cmd.Flags().StringArrayVar(&opts.Subtasks, "subtask", nil, "subtask title (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Tags, "tag", nil, "tag (repeatable)")
	cmd.Flags().StringToStringVar(&opts.CustomFields, "field", nil, "custom field key=value")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func templateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				return ws.Engine.DeleteTemplate(ctx, args[0], actor())
			})
		},
	}
}

func templateUseCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var due string
	cmd := &cobra.Command{
		Use:   "use <template-id>",
		Short: "Create a task from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				if due != "" {
					d, err := parseWhen(due, ws.Config.Location())
					if err != nil {
						return err
					}
					opts.DueDate = &d
				}
				opts.Actor = actor()
				t, err := ws.Engine.CreateTaskFromTemplate(ctx, args[0], opts)
				if err != nil {
					return err
				}
				if !viper.GetBool("json") {
					fmt.Printf("created %s from template %s\n", t.ID, args[0])
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title (defaults to the template name)")
	cmd.Flags().StringVar(&due, "due", "", "due date")
	cmd.Flags().StringVar(&opts.AssignedUserID, "assignee-id", "", "assignee id")
	cmd.Flags().StringVar(&opts.AssignedUserName, "assignee-name", "", "assignee name")
	cmd.Flags().StringVar(&opts.ContactID, "contact", "", "contact id")
	cmd.Flags().StringVar(&opts.DealID, "deal", "", "deal id")
	return cmd
}

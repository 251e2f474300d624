package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/argscan/argscan/internal/cli/api"
	"github.com/argscan/argscan/internal/cli/router"
)

// NewTasksCmd creates the tasks command group
func NewTasksCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"history"},
		Short:   "Start and follow analysis tasks",
	}

	cmd.AddCommand(newTaskCreateCmd(app))
	cmd.AddCommand(newTasksListCmd(app))
	cmd.AddCommand(newTaskStatusCmd(app))
	cmd.AddCommand(newTaskResultCmd(app))
	cmd.AddCommand(newTaskCancelCmd(app))
	cmd.AddCommand(newTaskDeleteCmd(app))

	return cmd
}

func newTaskCreateCmd(app *App) *cobra.Command {
	var req api.CreateTaskRequest

	cmd := &cobra.Command{
		Use:         "create <file-id>",
		Short:       "Start an analysis of an uploaded file",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteUpload),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "file")
			if err != nil {
				return err
			}
			req.FileID = id

			task, err := app.API.CreateTask(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Started task %d (%s)\n", task.TaskID, task.TaskName)
			fmt.Fprintf(app.Out, "\nFollow it with: argscan tasks status %d --wait\n", task.TaskID)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.TaskName, "name", "", "Task name (derived from the file name if omitted)")
	cmd.Flags().StringVar(&req.Type, "type", "prophage", "Analysis type: prophage or arg")

	return cmd
}

func newTasksListCmd(app *App) *cobra.Command {
	var keyword string

	cmd := &cobra.Command{
		Use:         "ls",
		Aliases:     []string{"list"},
		Short:       "List your analysis tasks",
		Annotations: withRoute(router.RouteHistory),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := app.API.ListTasks(cmd.Context(), keyword)
			if err != nil {
				return err
			}

			if len(tasks) == 0 {
				fmt.Fprintln(app.Out, "No tasks found.")
				return nil
			}

			w := newTable(app.Out, "ID", "NAME", "FILE", "TYPE", "STATUS", "PROGRESS", "CREATED")
			for _, t := range tasks {
				kind := "prophage"
				if t.IsArg == 1 {
					kind = "arg"
				}
				row(w, t.TaskID, t.TaskName, orDash(t.FileName), kind, t.Status, fmt.Sprintf("%d%%", t.Progress), orDash(t.CreatedAt))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&keyword, "keyword", "", "Filter by task or file name")

	return cmd
}

func newTaskStatusCmd(app *App) *cobra.Command {
	var wait bool
	var interval time.Duration

	cmd := &cobra.Command{
		Use:         "status <task-id>",
		Short:       "Show the progress of a task",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteHistory),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}

			for {
				status, err := app.API.TaskStatus(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Out, "Task %d: %s (%d%%)\n", status.TaskID, status.Status, status.Progress)
				if status.ErrorMessage != "" {
					fmt.Fprintf(app.Out, "  Error: %s\n", status.ErrorMessage)
				}
				if !wait || status.Done() {
					return nil
				}

				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().BoolVar(&wait, "wait", false, "Poll until the task finishes")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval with --wait")

	return cmd
}

func newTaskResultCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "result <task-id>",
		Short:       "Show the result of a finished task",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteHistory),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			result, err := app.API.TaskResult(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "Task %d on %s: %s\n", result.TaskID, result.FileName, result.Status)
			fmt.Fprintf(app.Out, "Genome length: %d bp, duration: %s\n", result.GenomeLength, result.Duration)
			fmt.Fprintf(app.Out, "Regions found: %d\n", result.ProphageCount)
			if len(result.Prophages) == 0 {
				return nil
			}

			fmt.Fprintln(app.Out)
			w := newTable(app.Out, "NAME", "START", "END", "CONFIDENCE", "TYPE")
			for _, p := range result.Prophages {
				row(w, p.Name, p.Start, p.End, fmt.Sprintf("%d%%", p.Confidence), p.Type)
			}
			w.Flush()
			return nil
		},
	}
}

func newTaskCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "cancel <task-id>",
		Short:       "Cancel a pending or running task",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteHistory),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			if err := app.API.CancelTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Cancelled task %d\n", id)
			return nil
		},
	}
}

func newTaskDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "rm <task-id>",
		Aliases:     []string{"delete"},
		Short:       "Delete a task and its results",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteHistory),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			if err := app.API.DeleteTask(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Deleted task %d\n", id)
			return nil
		},
	}
}

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/argscan/argscan/internal/cli/api"
	"github.com/argscan/argscan/internal/cli/router"
)

// NewAdminCmd creates the admin command group
func NewAdminCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Administer users and files (admin only)",
	}

	cmd.AddCommand(newAdminUsersCmd(app))
	cmd.AddCommand(newAdminDeleteUserCmd(app))
	cmd.AddCommand(newAdminBanCmd(app, "ban", true))
	cmd.AddCommand(newAdminBanCmd(app, "unban", false))
	cmd.AddCommand(newAdminFilesCmd(app))
	cmd.AddCommand(newAdminDeleteFileCmd(app))
	cmd.AddCommand(newAdminStatsCmd(app))

	return cmd
}

func newAdminUsersCmd(app *App) *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:         "users",
		Short:       "List accounts",
		Annotations: withRoute(router.RouteAdmin),
		RunE: func(cmd *cobra.Command, args []string) error {
			var users []api.User
			var err error
			if search != "" {
				users, err = app.API.SearchUsers(cmd.Context(), search)
			} else {
				users, err = app.API.Users(cmd.Context())
			}
			if err != nil {
				return err
			}

			if len(users) == 0 {
				fmt.Fprintln(app.Out, "No users found.")
				return nil
			}

			w := newTable(app.Out, "ID", "USERNAME", "EMAIL", "ROLE", "STATUS", "FILES", "TASKS", "LAST LOGIN")
			for _, u := range users {
				row(w, u.UserID, u.Username, u.Email, u.Role, u.Status, u.FileCount, u.TaskCount, orDash(u.LastLoginAt))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "Filter by username fragment or user id")

	return cmd
}

// confirmed asks before a destructive action unless --yes was given
func confirmed(app *App, yes bool, label string) (bool, error) {
	if yes {
		return true, nil
	}
	ok, err := app.Prompter.Confirm(label)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(app.Out, "Aborted.")
	}
	return ok, nil
}

func newAdminDeleteUserCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:         "rm-user <user-id>",
		Short:       "Delete an account and all its data",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteAdmin),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			ok, err := confirmed(app, yes, fmt.Sprintf("Delete user %d and all their data", id))
			if err != nil || !ok {
				return err
			}
			if err := app.API.DeleteUser(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Deleted user %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newAdminBanCmd(app *App, use string, ban bool) *cobra.Command {
	short := "Reinstate a banned account"
	if ban {
		short = "Ban an account"
	}

	return &cobra.Command{
		Use:         use + " <user-id>",
		Short:       short,
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteAdmin),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "user")
			if err != nil {
				return err
			}
			if err := app.API.BanUser(cmd.Context(), id, ban); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ User %d %sned\n", id, use)
			return nil
		},
	}
}

func newAdminFilesCmd(app *App) *cobra.Command {
	var userKeyword, fileKeyword string

	cmd := &cobra.Command{
		Use:         "files",
		Short:       "List every user's files",
		Annotations: withRoute(router.RouteAdmin),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := adminFiles(cmd.Context(), app, userKeyword, fileKeyword)
			if err != nil {
				return err
			}
			printFiles(app, files, true)
			return nil
		},
	}

	cmd.Flags().StringVar(&userKeyword, "user", "", "Filter by owner username or id")
	cmd.Flags().StringVar(&fileKeyword, "name", "", "Filter by file name")

	return cmd
}

func adminFiles(ctx context.Context, app *App, userKeyword, fileKeyword string) ([]api.GenomeFile, error) {
	if userKeyword == "" && fileKeyword == "" {
		return app.API.AllFiles(ctx)
	}
	return app.API.SearchFiles(ctx, userKeyword, fileKeyword)
}

func newAdminDeleteFileCmd(app *App) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:         "rm-file <file-id>",
		Short:       "Delete any user's file and its analyses",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteAdmin),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "file")
			if err != nil {
				return err
			}
			ok, err := confirmed(app, yes, fmt.Sprintf("Delete file %d and its analyses", id))
			if err != nil || !ok {
				return err
			}
			if err := app.API.AdminDeleteFile(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Deleted file %d\n", id)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func newAdminStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "stats",
		Short:       "Show service-wide counters",
		Annotations: withRoute(router.RouteAdmin),
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := app.API.SystemStatistics(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "Users:  %d\n", stats.TotalUsers)
			fmt.Fprintf(app.Out, "Files:  %d\n", stats.TotalFiles)
			fmt.Fprintf(app.Out, "Tasks:  %d\n", stats.TotalTasks)
			fmt.Fprintf(app.Out, "Logins: %d\n", stats.TotalLogins)
			return nil
		},
	}
}

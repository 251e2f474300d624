package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/argscan/argscan/internal/cli/commands"
)

var version = "dev" // Will be set during build

// NewRootCmd builds the command tree around app
func NewRootCmd(app *commands.App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "argscan",
		Short: "argscan - ARG and prophage identification from the terminal",
		Long: `argscan CLI - Upload genomes and follow their analyses.

argscan talks to the ARG identification service: it keeps your session
between runs, uploads genome files, starts prophage and resistance gene
analyses, and fetches their results and visualization data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// these need no session or server
			switch cmd.Name() {
			case "version", "help", "completion":
				return nil
			}
			if cmd.HasParent() && cmd.Parent().Name() == "completion" {
				return nil
			}

			if err := app.Setup(); err != nil {
				return err
			}
			return app.Navigate(cmd.Annotations)
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.Server, "server", "", "Service URL (overrides the selected server)")
	rootCmd.PersistentFlags().BoolVar(&app.Debug, "debug", false, "Log requests and navigation to stderr")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "argscan version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd(app))
	rootCmd.AddCommand(commands.NewLogoutCmd(app))
	rootCmd.AddCommand(commands.NewWhoamiCmd(app))
	rootCmd.AddCommand(commands.NewRegisterCmd(app))
	rootCmd.AddCommand(commands.NewResetPasswordCmd(app))
	rootCmd.AddCommand(commands.NewSendCodeCmd(app))
	rootCmd.AddCommand(commands.NewFilesCmd(app))
	rootCmd.AddCommand(commands.NewTasksCmd(app))
	rootCmd.AddCommand(commands.NewVizCmd(app))
	rootCmd.AddCommand(commands.NewAdminCmd(app))
	rootCmd.AddCommand(commands.NewSelectServerCmd(app))

	return rootCmd
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	app := commands.NewApp()
	defer app.Close()

	if err := NewRootCmd(app).ExecuteContext(ctx); err != nil {
		// failures from the request pipeline and the guard were already shown
		if !commands.Quiet(err) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return err
	}
	return nil
}

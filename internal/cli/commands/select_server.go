package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/argscan/argscan/internal/cli/serverselect"
	"github.com/argscan/argscan/internal/cli/userconfig"
)

// NewSelectServerCmd creates the select-server command
func NewSelectServerCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "select-server [url]",
		Short: "Select the analysis service to use",
		Long: `Select the analysis service to use for commands.

If no URL is provided, an interactive prompt lists recently used servers.
Switching servers signs you out.

Examples:
  $ argscan select-server                           # Interactive selection
  $ argscan select-server https://arg.example.org   # Select by URL`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var server string
			if len(args) > 0 {
				server = args[0]
			}
			return runSelectServer(app, server)
		},
	}

	return cmd
}

func runSelectServer(app *App, server string) error {
	user, err := userconfig.Load()
	if err != nil {
		return err
	}

	if server == "" {
		server, err = serverselect.PromptServerSelection(serverselect.Candidates(user), user.Server)
		if err != nil {
			return err
		}
	}

	server, err = serverselect.Normalize(server)
	if err != nil {
		return err
	}

	previous := user.Server
	if err := userconfig.SetServer(server); err != nil {
		return fmt.Errorf("failed to save selected server: %w", err)
	}

	// a credential is only valid for the server that issued it
	if previous != server && app.Session.IsLoggedIn() {
		if err := app.Session.Clear(); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Fprintln(app.Out, "Signed out of the previous server.")
	}

	fmt.Fprintf(app.Out, "Selected server: %s\n", server)
	return nil
}

package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/argscan/argscan/internal/cli/api"
	"github.com/argscan/argscan/internal/cli/router"
)

// NewLoginCmd creates the login command
func NewLoginCmd(app *App) *cobra.Command {
	var identifier, email, password, code string

	cmd := &cobra.Command{
		Use:         "login",
		Short:       "Sign in to the analysis service",
		Annotations: withRoute(router.RouteLogin),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, app, identifier, email, password, code)
		},
	}

	cmd.Flags().StringVar(&identifier, "user", "", "Username or email to sign in with (defaults to --email)")
	cmd.Flags().StringVar(&email, "email", "", "Email address the login code is sent to (or set ARGSCAN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set ARGSCAN_PASSWORD, will prompt if not provided)")
	cmd.Flags().StringVar(&code, "code", "", "Login code (requested automatically if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, app *App, identifier, email, password, code string) error {
	ctx := cmd.Context()

	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("ARGSCAN_EMAIL")
	}
	if password == "" {
		password = os.Getenv("ARGSCAN_PASSWORD")
	}
	if email == "" && strings.Contains(identifier, "@") {
		email = identifier
	}

	email, err := app.valueOrPrompt(email, "Email")
	if err != nil {
		return err
	}
	if identifier == "" {
		identifier = email
	}
	password, err = app.passwordOrPrompt(password, "Password")
	if err != nil {
		return err
	}

	if code == "" {
		sent, err := app.API.SendLoginCode(ctx, email)
		if err != nil {
			return err
		}
		if isCode(sent) {
			code = sent
		} else {
			fmt.Fprintf(app.Out, "A login code was sent to %s.\n", email)
			if code, err = app.Prompter.Input("Code", validateRequired); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(app.Out, "Logging in to %s...\n", app.Pipeline.BaseURL())

	resp, err := app.API.Login(ctx, api.LoginRequest{
		Identifier: identifier,
		Password:   password,
		Code:       code,
	})
	if err != nil {
		return err
	}

	if err := app.Session.Establish(resp.Token, resp.UserInfo); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Fprintln(app.Out, "✓ Login successful!")
	printIdentity(app)

	return app.Router.Navigate(router.RouteHome)
}

func printIdentity(app *App) {
	identity := app.Session.Identity()
	if identity == nil {
		return
	}
	fmt.Fprintf(app.Out, "  User: %s (%s)\n", identity.Username, identity.Email)
	if app.Session.IsAdmin() {
		fmt.Fprintln(app.Out, "  Role: Admin")
	}
}

// NewLogoutCmd creates the logout command
func NewLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "logout",
		Short:       "Sign out and forget the local session",
		Annotations: withRoute(router.RouteHome),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Session.IsLoggedIn() {
				fmt.Fprintln(app.Out, "Not logged in.")
				return nil
			}

			// best effort: the local session goes either way
			if err := app.API.Logout(cmd.Context()); err != nil {
				app.Log.Debug().Err(err).Msg("Server logout failed")
			}
			if err := app.Session.Clear(); err != nil {
				return fmt.Errorf("failed to clear session: %w", err)
			}

			fmt.Fprintln(app.Out, "✓ Logged out.")
			return nil
		},
	}
}

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd(app *App) *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:         "whoami",
		Short:       "Show the signed-in user",
		Annotations: withRoute(router.RouteHome),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !app.Session.IsLoggedIn() {
				fmt.Fprintln(app.Out, "Not logged in.")
				return nil
			}
			if !offline {
				if _, err := app.Session.FetchIdentity(cmd.Context(), app.API); err != nil {
					return err
				}
			}
			printIdentity(app)
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Show the cached identity without asking the server")

	return cmd
}

// NewRegisterCmd creates the register command
func NewRegisterCmd(app *App) *cobra.Command {
	var username, email, password, code string

	cmd := &cobra.Command{
		Use:         "register",
		Short:       "Create an account",
		Annotations: withRoute(router.RouteLogin),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := app.valueOrPrompt(username, "Username")
			if err != nil {
				return err
			}
			email, err := app.valueOrPrompt(email, "Email")
			if err != nil {
				return err
			}
			password, err := app.passwordOrPrompt(password, "Password")
			if err != nil {
				return err
			}

			if code == "" {
				reply, err := app.API.SendCode(ctx, email)
				if err != nil {
					return err
				}
				if code, err = requestCode(app, email, reply); err != nil {
					return err
				}
			}

			if err := app.API.Register(ctx, api.RegisterRequest{
				Username: username,
				Email:    email,
				Password: password,
				Code:     code,
			}); err != nil {
				return err
			}

			fmt.Fprintln(app.Out, "✓ Registration successful! Run 'argscan login' to sign in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Username (4-16 letters, digits or underscores)")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&password, "password", "", "Password (will prompt if not provided)")
	cmd.Flags().StringVar(&code, "code", "", "Verification code (requested automatically if not provided)")

	return cmd
}

// NewResetPasswordCmd creates the reset-password command
func NewResetPasswordCmd(app *App) *cobra.Command {
	var email, password, code string

	cmd := &cobra.Command{
		Use:         "reset-password",
		Short:       "Set a new password using an emailed code",
		Annotations: withRoute(router.RouteLogin),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			email, err := app.valueOrPrompt(email, "Email")
			if err != nil {
				return err
			}
			if code == "" {
				reply, err := app.API.SendResetCode(ctx, email)
				if err != nil {
					return err
				}
				if code, err = requestCode(app, email, reply); err != nil {
					return err
				}
			}

			confirm := password
			if password == "" {
				if password, err = app.Prompter.Password("New password"); err != nil {
					return err
				}
				if confirm, err = app.Prompter.Password("Confirm new password"); err != nil {
					return err
				}
			}

			if err := app.API.ResetPassword(ctx, api.ResetPasswordRequest{
				Email:           email,
				NewPassword:     password,
				ConfirmPassword: confirm,
				Code:            code,
			}); err != nil {
				return err
			}

			fmt.Fprintln(app.Out, "✓ Password updated. Run 'argscan login' to sign in.")
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address of the account")
	cmd.Flags().StringVar(&password, "password", "", "New password (will prompt if not provided)")
	cmd.Flags().StringVar(&code, "code", "", "Verification code (requested automatically if not provided)")

	return cmd
}

// requestCode turns a send-code reply into a code, asking the user when the
// service only confirmed delivery
func requestCode(app *App, email, reply string) (string, error) {
	if isCode(reply) {
		return reply, nil
	}
	fmt.Fprintf(app.Out, "A verification code was sent to %s.\n", email)
	return app.Prompter.Input("Code", validateRequired)
}

// NewSendCodeCmd creates the send-code command
func NewSendCodeCmd(app *App) *cobra.Command {
	var email, purpose string

	cmd := &cobra.Command{
		Use:   "send-code",
		Short: "Email a verification code for register, reset or login",
		Long: `Email a verification code ahead of register, reset-password or login.

Pass the code to those commands with --code. A development server may return
the code directly, in which case it is printed.`,
		Annotations: withRoute(router.RouteLogin),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			email, err := app.valueOrPrompt(email, "Email")
			if err != nil {
				return err
			}

			var reply string
			switch purpose {
			case "register":
				reply, err = app.API.SendCode(ctx, email)
			case "reset":
				reply, err = app.API.SendResetCode(ctx, email)
			case "login":
				reply, err = app.API.SendLoginCode(ctx, email)
			default:
				return fmt.Errorf("invalid purpose %q (want register, reset or login)", purpose)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "✓ A verification code was sent to %s.\n", email)
			if isCode(reply) {
				fmt.Fprintf(app.Out, "  Code: %s\n", reply)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&purpose, "purpose", "register", "What the code is for: register, reset or login")

	return cmd
}

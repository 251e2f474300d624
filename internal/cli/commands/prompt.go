package commands

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// Prompter asks the user for missing values
type Prompter interface {
	Input(label string, validate func(string) error) (string, error)
	Password(label string) (string, error)
	Confirm(label string) (bool, error)
}

var errNonInteractive = errors.New("not running in a terminal")

type terminalPrompter struct{}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func (terminalPrompter) Input(label string, validate func(string) error) (string, error) {
	if !isTerminal() {
		return "", fmt.Errorf("%s is required in non-interactive mode: %w", label, errNonInteractive)
	}

	prompt := promptui.Prompt{Label: label, Validate: validate}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("%s prompt cancelled: %w", label, err)
	}
	return value, nil
}

func (terminalPrompter) Password(label string) (string, error) {
	if !isTerminal() {
		return "", fmt.Errorf("%s is required in non-interactive mode: %w", label, errNonInteractive)
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	bytePassword, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr) // New line after password input
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(bytePassword), nil
}

func (terminalPrompter) Confirm(label string) (bool, error) {
	if !isTerminal() {
		return false, fmt.Errorf("confirmation required in non-interactive mode (use --yes): %w", errNonInteractive)
	}

	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

var codePattern = regexp.MustCompile(`^\d{6}$`)

// isCode reports whether a send-code reply is the code itself
func isCode(s string) bool {
	return codePattern.MatchString(s)
}

func validateRequired(s string) error {
	if s == "" {
		return errors.New("value is required")
	}
	return nil
}

// valueOrPrompt returns value, or asks for it when empty
func (a *App) valueOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.Prompter.Input(label, validateRequired)
}

func (a *App) passwordOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.Prompter.Password(label)
}

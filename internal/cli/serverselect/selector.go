package serverselect

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/manifoldco/promptui"

	"github.com/argscan/argscan/internal/cli/userconfig"
	"github.com/argscan/argscan/internal/config"
)

// Normalize validates a server origin and strips trailing slashes
func Normalize(raw string) (string, error) {
	server := strings.TrimRight(strings.TrimSpace(raw), "/")
	if server == "" {
		return "", fmt.Errorf("server URL is empty")
	}

	u, err := url.Parse(server)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid server URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: host is required", raw)
	}

	return server, nil
}

// Candidates lists the servers offered for selection, in order:
// the selected server, the recently used ones, then the default
func Candidates(user *userconfig.UserConfig) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	add(user.Server)
	for _, s := range user.RecentServers {
		add(s)
	}
	add(config.DefaultServer)
	return out
}

// PromptServerSelection shows an interactive prompt for the user to select a server
func PromptServerSelection(candidates []string, current string) (string, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no servers to choose from")
	}

	type serverOption struct {
		Label  string
		Server string
	}

	options := make([]serverOption, len(candidates))
	for i, server := range candidates {
		label := server
		if server == current {
			label += " (current)"
		}
		options[i] = serverOption{Label: label, Server: server}
	}

	templates := &promptui.SelectTemplates{
		Label:    "{{ . }}",
		Active:   "> {{ .Label | cyan }}",
		Inactive: "  {{ .Label }}",
		Selected: "{{ .Label | green }}",
	}

	prompt := promptui.Select{
		Label:     "Select a server",
		Items:     options,
		Templates: templates,
		Size:      10,
	}

	index, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("server selection cancelled: %w", err)
	}

	return options[index].Server, nil
}

package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/argscan/argscan/internal/cli/router"
)

// NewVizCmd creates the visualization command group. Chart payloads are
// printed as JSON for plotting tools.
func NewVizCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "viz",
		Aliases: []string{"visualization"},
		Short:   "Fetch visualization data of finished tasks",
	}

	cmd.AddCommand(newVizGenomeCmd(app, "genome", router.RouteVisualization, "Genome overview of a prophage task"))
	cmd.AddCommand(newVizGenomeCmd(app, "arg", router.RouteVisualizationARG, "Resistance gene hits of an arg task"))
	cmd.AddCommand(newVizRegionCmd(app))
	cmd.AddCommand(newVizStatsCmd(app))
	cmd.AddCommand(newVizExportCmd(app))

	return cmd
}

func newVizGenomeCmd(app *App, use, route, short string) *cobra.Command {
	return &cobra.Command{
		Use:         use + " <task-id>",
		Short:       short,
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(route),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			data, err := app.API.Genome(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(app.Out, data)
		},
	}
}

func newVizRegionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "region <task-id> <region>",
		Short:       "One detected region with its genes",
		Args:        cobra.ExactArgs(2),
		Annotations: withRoute(router.RouteVisualization),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			regionID, err := parseID(args[1], "region")
			if err != nil {
				return err
			}
			data, err := app.API.Prophage(cmd.Context(), taskID, regionID)
			if err != nil {
				return err
			}
			return printJSON(app.Out, data)
		},
	}
}

func newVizStatsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "stats <task-id>",
		Short:       "Chart statistics of a task",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteVisualization),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			data, err := app.API.Statistics(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(app.Out, data)
		},
	}
}

func newVizExportCmd(app *App) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:         "export <task-id>",
		Short:       "Download all visualization data of a task",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteVisualization),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "task")
			if err != nil {
				return err
			}
			data, err := app.API.Export(cmd.Context(), id)
			if err != nil {
				return err
			}

			path := output
			if path == "" {
				path = fmt.Sprintf("task_%d_visualization.json", id)
			}
			if err := os.WriteFile(path, data, 0644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(app.Out, "✓ Exported task %d to %s\n", id, path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default task_<id>_visualization.json)")

	return cmd
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/argscan/argscan/internal/cli/api"
	"github.com/argscan/argscan/internal/cli/router"
)

// NewFilesCmd creates the files command group
func NewFilesCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Upload and manage genome files",
	}

	cmd.AddCommand(newUploadCmd(app))
	cmd.AddCommand(newFilesListCmd(app))
	cmd.AddCommand(newFilesShowCmd(app))
	cmd.AddCommand(newFilesDeleteCmd(app))
	cmd.AddCommand(newFileTypesCmd(app))
	cmd.AddCommand(newReferencesCmd(app))

	return cmd
}

func newUploadCmd(app *App) *cobra.Command {
	var opts api.UploadOptions
	var analyze string

	cmd := &cobra.Command{
		Use:         "upload <path>",
		Short:       "Upload a genome file",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteUpload),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			fmt.Fprintf(app.Out, "Uploading %s...\n", args[0])
			file, err := app.API.Upload(ctx, args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Uploaded %s (id %d, %s)\n", file.OriginalFilename, file.FileID, humanSize(file.FileSize))

			if analyze == "" {
				return nil
			}
			task, err := app.API.CreateTask(ctx, api.CreateTaskRequest{FileID: file.FileID, Type: analyze})
			if err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Started task %d (%s)\n", task.TaskID, task.TaskName)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.FileType, "type", "", "File type (see 'argscan files types'), auto-detected if omitted")
	cmd.Flags().StringVar(&opts.Reference, "reference", "", "Reference genome (see 'argscan files refs')")
	cmd.Flags().StringVar(&opts.Description, "description", "", "Free-text description")
	cmd.Flags().BoolVar(&opts.IsPublic, "public", false, "Make the file visible to other users")
	cmd.Flags().StringVar(&opts.Metadata, "metadata", "", "Additional metadata as a JSON document")
	cmd.Flags().StringVar(&analyze, "analyze", "", "Start an analysis after uploading (prophage or arg)")

	return cmd
}

func newFilesListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "ls",
		Aliases:     []string{"list"},
		Short:       "List your files",
		Annotations: withRoute(router.RouteUpload),
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := app.API.ListFiles(cmd.Context())
			if err != nil {
				return err
			}
			printFiles(app, files, false)
			return nil
		},
	}
}

func printFiles(app *App, files []api.GenomeFile, withOwner bool) {
	if len(files) == 0 {
		fmt.Fprintln(app.Out, "No files found.")
		fmt.Fprintln(app.Out, "\nUpload one with: argscan files upload <path>")
		return
	}

	headers := []string{"ID", "NAME", "TYPE", "SIZE", "UPLOADED", "STATUS"}
	if withOwner {
		headers = append(headers, "OWNER")
	}
	w := newTable(app.Out, headers...)
	for _, f := range files {
		cols := []any{f.FileID, f.OriginalFilename, f.FileType, humanSize(f.FileSize), orDash(f.UploadTime), orDash(f.Status)}
		if withOwner {
			cols = append(cols, orDash(f.Username))
		}
		row(w, cols...)
	}
	w.Flush()
}

func newFilesShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "show <file-id>",
		Short:       "Show one file",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteUpload),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "file")
			if err != nil {
				return err
			}
			f, err := app.API.GetFile(cmd.Context(), id)
			if err != nil {
				return err
			}

			fmt.Fprintf(app.Out, "ID:          %d\n", f.FileID)
			fmt.Fprintf(app.Out, "Name:        %s\n", f.OriginalFilename)
			fmt.Fprintf(app.Out, "Type:        %s\n", f.FileType)
			fmt.Fprintf(app.Out, "Format:      %s\n", orDash(f.FileFormat))
			fmt.Fprintf(app.Out, "Size:        %s\n", humanSize(f.FileSize))
			fmt.Fprintf(app.Out, "Uploaded:    %s\n", orDash(f.UploadTime))
			fmt.Fprintf(app.Out, "Public:      %t\n", f.IsPublic)
			fmt.Fprintf(app.Out, "Description: %s\n", orDash(f.Description))
			return nil
		},
	}
}

func newFilesDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "rm <file-id>",
		Aliases:     []string{"delete"},
		Short:       "Delete a file and its analyses",
		Args:        cobra.ExactArgs(1),
		Annotations: withRoute(router.RouteUpload),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "file")
			if err != nil {
				return err
			}
			if err := app.API.DeleteFile(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(app.Out, "✓ Deleted file %d\n", id)
			return nil
		},
	}
}

func newFileTypesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "types",
		Short:       "List accepted file types",
		Annotations: withRoute(router.RouteUpload),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := app.API.FileTypes(cmd.Context())
			if err != nil {
				return err
			}
			printOptions(app, opts)
			return nil
		},
	}
}

func newReferencesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:         "refs",
		Short:       "List reference genomes",
		Annotations: withRoute(router.RouteUpload),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := app.API.References(cmd.Context())
			if err != nil {
				return err
			}
			printOptions(app, opts)
			return nil
		},
	}
}

func printOptions(app *App, opts []api.Option) {
	w := newTable(app.Out, "VALUE", "LABEL", "DESCRIPTION")
	for _, o := range opts {
		row(w, o.Value, o.Label, o.Description)
	}
	w.Flush()
}

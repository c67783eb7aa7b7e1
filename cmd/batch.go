package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/bnema/tenantctl/internal/application"
	"github.com/bnema/tenantctl/internal/ports"
	"github.com/spf13/cobra"
)

func newBatchCmd(flags *rootFlags) *cobra.Command {
	var (
		file     string
		parallel int
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a list of action requests from a YAML or JSON file",
		Long:  "batch runs every request in the file through the orchestrator. Results keep the input order and a failing request never stops the others. Use --file - to read from stdin.",
		RunE: withApp(flags, func(cmd *cobra.Command, app *app, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("open batch file: %w", err)
				}
				defer func() { _ = f.Close() }()
				in = f
			}

			reqs, err := application.DecodeBatch(in)
			if err != nil {
				return err
			}

			if parallel <= 0 {
				parallel = app.settings.Pool.Capacity
			}
			runner := application.NewBatchRunner(app.orchestrator, parallel, app.logger, ports.SystemClock{})
			results := runner.Run(cmd.Context(), reqs)

			if err := writeResultsOutput(cmd, app, results, asJSON); err != nil {
				return err
			}

			failed := 0
			for _, result := range results {
				if !result.Succeeded() {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%w: %d of %d requests", errActionFailed, failed, len(results))
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&file, "file", "", "Batch file (YAML or JSON), or - for stdin")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "Requests in flight at once (default pool.capacity)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

type actionSpec struct {
	Action      string   `json:"action"`
	Required    []string `json:"required"`
	Optional    []string `json:"optional"`
	Credentials bool     `json:"credentials"`
}

func newActionsCmd(flags *rootFlags) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "actions",
		Short: "List supported actions and their parameters",
		RunE: withApp(flags, func(cmd *cobra.Command, app *app, _ []string) error {
			scripts := app.catalog.Scripts()

			if asJSON {
				specs := make([]actionSpec, 0, len(scripts))
				for _, script := range scripts {
					req := script.Requirements()
					specs = append(specs, actionSpec{
						Action:      string(script.Kind()),
						Required:    nonNil(req.Required),
						Optional:    nonNil(req.Optional),
						Credentials: req.Credentials,
					})
				}
				return writeJSON(cmd, specs)
			}

			rendered, err := app.render.catalog(scripts)
			if err != nil {
				return fmt.Errorf("render actions: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		}),
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/tenantctl/internal/domain"
	"github.com/spf13/cobra"
)

var errActionFailed = errors.New("action failed")

func newRunCmd(flags *rootFlags) *cobra.Command {
	var (
		tenantID string
		action   string
		params   []string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one action for one tenant",
		Example: `  tenantctl run --tenant t1 --action authenticate
  tenantctl run --tenant t1 --action publish --param mediaPath=./clip.mp4 --param title="Hello"`,
		RunE: withApp(flags, func(cmd *cobra.Command, app *app, _ []string) error {
			parsed, err := parseParams(params)
			if err != nil {
				return err
			}

			req := domain.ActionRequest{
				TenantID: domain.TenantID(tenantID),
				Action:   action,
				Params:   parsed,
			}

			var result domain.ActionResult
			work := func(ctx context.Context) error {
				result = app.orchestrator.Run(ctx, req)
				return nil
			}

			if asJSON {
				_ = work(cmd.Context())
			} else {
				label := fmt.Sprintf("Running %s for %s...", sanitizeForTerminal(action), sanitizeForTerminal(tenantID))
				if err := runWithSpinner(cmd.Context(), cmd.ErrOrStderr(), label, work); err != nil {
					return err
				}
			}

			if err := writeResultsOutput(cmd, app, []domain.ActionResult{result}, asJSON); err != nil {
				return err
			}
			if !result.Succeeded() {
				return fmt.Errorf("%w: %s", errActionFailed, result.Kind)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant ID")
	cmd.Flags().StringVar(&action, "action", "", "Action kind (see `tenantctl actions`)")
	cmd.Flags().StringArrayVar(&params, "param", nil, "Action parameter as key=value, repeatable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func parseParams(pairs []string) (domain.Params, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	params := make(domain.Params, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", pair)
		}
		params[key] = value
	}

	return params, nil
}

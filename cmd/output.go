package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	tenantsrender "github.com/bnema/tenantctl/internal/adapters/render/tenants"
	"github.com/bnema/tenantctl/internal/application"
	"github.com/bnema/tenantctl/internal/domain"
	"github.com/spf13/cobra"
)

func writeJSON(cmd *cobra.Command, value any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

func writeTenantsOutput(cmd *cobra.Command, app *app, tenants []application.TenantView, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, tenants)
	}

	rendered, err := app.render.tenants(tenants, tenantsrender.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render tenants: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func writeResultsOutput(cmd *cobra.Command, app *app, results []domain.ActionResult, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, results)
	}

	rendered, err := app.render.results(results)
	if err != nil {
		return fmt.Errorf("render results: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func printf(cmd *cobra.Command, format string, args ...any) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

func sanitizeForTerminal(value string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
}

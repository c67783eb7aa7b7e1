package cmd

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	return newRootCmd().Execute()
}

type rootFlags struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "tenantctl",
		Short:         "Run browser automation actions for many tenants",
		Long:          "tenantctl keeps a registry of tenants with their credentials, launch settings and saved sessions, and runs scripted actions for them through a bounded pool of isolated browsers.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "Config file (default ~/.tenantctl/config.toml)")
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newTenantCmd(flags),
		newRunCmd(flags),
		newBatchCmd(flags),
		newActionsCmd(flags),
	)

	return rootCmd
}

// withApp wires the application for a single command invocation and
// shuts it down when the command returns.
func withApp(flags *rootFlags, run func(cmd *cobra.Command, app *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := wireApp(cmd.Context(), wireOptions{
			configFile: flags.configFile,
			logLevel:   flags.logLevel,
			stderr:     cmd.ErrOrStderr(),
		})
		if err != nil {
			return err
		}
		defer app.close()

		return run(cmd, app, args)
	}
}

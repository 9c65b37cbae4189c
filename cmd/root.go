package cmd

import "github.com/spf13/cobra"

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "atmd",
		Short:         "atmd: concurrent in-memory account server",
		Long:          "atmd runs an in-memory account server that serves deposits, withdrawals, transfers and balance queries from many concurrent ATM sessions, and manages the credentials those sessions log in with.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newVersionCmd(),
		newSimulateCmd(app),
		newUserCmd(app),
	)

	return rootCmd
}

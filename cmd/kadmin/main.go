// Command kadmin runs the admin service
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/relabs-tech/kadmin/core/logger"
)

var rootCmd = &cobra.Command{
	Use:           "kadmin",
	Short:         "metadata driven admin backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Default().WithError(err).Errorln("kadmin failed")
		os.Exit(1)
	}
}

package main

import (
	"github.com/openstack/zun-sub002/cmd/controlplane/app"
	"github.com/openstack/zun-sub002/pkg/logger"
	"github.com/spf13/cobra"
)

var log = logger.NewLogger("zun.controlplane")

var logFlags = logger.ParseFlags()

var rootCommand = &cobra.Command{
	Use:   "zun-controlplane",
	Short: "Persistence control plane for containers",
	Long:  "Runs the container control plane persistence service with the configured database backend",
	Run: func(cmd *cobra.Command, args []string) {
		logger.ReadAndApply(cmd, log)
		app.Run()
	},
}

func main() {
	rootCommand.PersistentFlags().AddFlagSet(logFlags.FlagSet())
	if err := rootCommand.Execute(); err != nil {
		log.Fatal(err)
	}
}

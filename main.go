package main

import (
	"flag"
	"os"

	log "github.com/golang/glog"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "plda",
	Short: "parallel topic model estimation",
	// glog writes to files unless told otherwise
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !cmd.Flags().Changed("logtostderr") && !cmd.Flags().Changed("log_dir") {
			flag.Set("logtostderr", "true")
		}
	},
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.AddCommand(newTrainCmd(), newInferCmd())

	err := rootCmd.Execute()
	log.Flush()
	if err != nil {
		os.Exit(1)
	}
}

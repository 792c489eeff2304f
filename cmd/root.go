package cmd

import (
	"fmt"
	"github.com/ValentinKolb/dLoop/cmd/client"
	"github.com/ValentinKolb/dLoop/cmd/serve"
	"github.com/ValentinKolb/dLoop/cmd/util"
	"github.com/ValentinKolb/dLoop/rpc/transport/unix"
	"github.com/spf13/cobra"
	"os"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "dloop",
		Short: "local message channels with handle passing",
		Long: fmt.Sprintf(`dLoop (v%s)

An event loop and message channel library for processes on the same
machine. Messages travel over unix domain sockets and can carry open
file handles (files, pipes, shared memory).`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of dLoop",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dLoop v%s (socket type: %s)\n", Version, unix.SupportedSocketType())
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(client.SendCmd)
	RootCmd.AddCommand(client.PerfCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (binary, json, gob, cbor). Append +lz4 to compress messages (e.g. json+lz4)"))
	key = "socket-type"
	RootCmd.PersistentFlags().String(key, "auto", util.WrapString("socket type to use (auto, seqpacket, stream). auto uses seqpacket sockets if the kernel supports them"))
	key = "log-level"
	RootCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package command

import (
	"os"

	"github.com/peerview/peerview/internal/ui"
	"github.com/peerview/peerview/internal/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "peerview",
	Short: "Terminal client and server for WebRTC interview rooms",
	Long: `Peerview connects two participants of an interview room over WebRTC:
the candidate publishes audio and video, the interviewer answers and
watches live emotion and vocal telemetry alongside the call. The same
binary can also run the signaling server the peers meet on.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Interrupt handling is left to the subcommands, which each tear their
// call down before exiting.
func Execute() {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

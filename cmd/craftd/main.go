// craftd manages the lifecycle of game server instances on a single host,
// running them either as containers or as local processes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "craftd",
	Short: "Game server runtime orchestrator",
	Long: `craftd creates, runs and monitors Minecraft-variant game servers on a
single host. Instances run either as containers on a fixed runtime image or
as local java processes; both backends share port allocation, console
command dispatch and resource statistics.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the craftd version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("craftd %s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(listCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

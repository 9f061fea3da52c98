package main

import (
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/m3rciful/rocketbot/core/buildinfo"
	corecmd "github.com/m3rciful/rocketbot/core/cmd"
	"github.com/m3rciful/rocketbot/core/dialog"
	"github.com/m3rciful/rocketbot/core/handlers"
	"github.com/m3rciful/rocketbot/core/router"
	"github.com/m3rciful/rocketbot/core/session"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to load .env file: %v", err)
	}
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "rocketbot",
		Short:        "Direct-message chat bot with commands and guided dialogs",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "Config file path (falls back to CONFIG_PATH, then config.yaml).")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newCommandsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat server and start polling",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			return corecmd.Run(corecmd.Options{
				ConfigEnvVar:      "CONFIG_PATH",
				DefaultConfigPath: "config.yaml",
				ConfigPath:        path,
			})
		},
	}
}

func newCommandsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commands",
		Short: "Print the built-in command table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := router.NewRegistry()
			handlers.Register(reg, dialog.NewEngine(session.NewStore()))

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, info := range reg.ListCommands(true) {
				fmt.Fprintf(w, "%s\t%s\t%v\n", info.Name, info.Description, info.Aliases)
			}
			return w.Flush()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "rocketbot %s (%s) %s\n", buildinfo.Version, buildinfo.Commit, buildinfo.Date)
		},
	}
}

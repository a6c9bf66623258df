package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/five82/watchwire/internal/app"
)

func newRootCommand() *cobra.Command {
	var watch app.Options

	root := &cobra.Command{
		Use:           "watchwire",
		Short:         "Follow file-change events from a websocket server",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), watch)
		},
	}
	root.PersistentFlags().StringP("config", "c", "", "path to config.toml (default ~/.config/watchwire/config.toml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	addWatchFlags(root, &watch)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Connect to the endpoint and display events (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(cmd.Context(), watch)
		},
	}
	addWatchFlags(watchCmd, &watch)

	var serve app.ServeOptions
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Watch a directory and serve its file events over websocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			serve.ConfigPath, serve.Verbose = commonFlags(cmd)
			return app.Serve(cmd.Context(), serve)
		},
	}
	serveCmd.Flags().StringVar(&serve.Listen, "listen", "", "listen address (default from config, 127.0.0.1:8080)")
	serveCmd.Flags().StringVar(&serve.Root, "root", "", "directory to watch (default from config, current directory)")

	root.AddCommand(watchCmd, serveCmd, newVersionCommand())
	return root
}

func addWatchFlags(cmd *cobra.Command, opts *app.Options) {
	cmd.Flags().StringVar(&opts.Endpoint, "endpoint", "", "websocket endpoint (overrides config and WATCHWIRE_ENDPOINT)")
	cmd.Flags().BoolVar(&opts.Headless, "headless", false, "print events to stdout instead of the terminal display")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		opts.ConfigPath, opts.Verbose = commonFlags(cmd)
	}
}

func commonFlags(cmd *cobra.Command) (configPath string, verbose bool) {
	configPath, _ = cmd.Flags().GetString("config")
	verbose, _ = cmd.Flags().GetBool("verbose")
	return configPath, verbose
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of watchwire",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "watchwire %s\n", version)
		},
	}
}

// Package cmd implements the console-web CLI using cobra, with
// configuration layered through viper and an optional .env file via
// godotenv, matching the CLI shape a production agent in this stack uses
// for its own root command.
package cmd

import (
	"net/http"

	"github.com/davidpdrsn/console-web/internal/httpapi"
	"github.com/davidpdrsn/console-web/internal/registry"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var bindAddr string

var rootCmd = &cobra.Command{
	Use:     "console-web",
	Short:   "Browser frontend for the instrumentation console",
	Version: "0.1.0",
	RunE:    run,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	_ = godotenv.Load()

	viper.SetEnvPrefix("console_web")
	viper.AutomaticEnv()
	viper.SetDefault("bind_addr", "127.0.0.1:3000")

	rootCmd.Flags().StringVar(&bindAddr, "bind-addr", viper.GetString("bind_addr"),
		"address to bind the HTTP server to")
}

func run(cmd *cobra.Command, args []string) error {
	if bindAddr == "" {
		bindAddr = viper.GetString("bind_addr")
	}

	reg := registry.New()
	server := httpapi.New(reg)

	mux := http.NewServeMux()
	mux.Handle("/", server.Router())
	mux.Handle("/metrics", promhttp.Handler())

	logrus.WithField("bind_addr", bindAddr).Info("starting console-web")
	return http.ListenAndServe(bindAddr, mux)
}

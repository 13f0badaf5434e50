// Package cmd wires the CLI: flag and config bootstrap happens here, the
// actual work lives in the internal packages.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/velosix/rednote-collector/internal/config"
	"github.com/velosix/rednote-collector/internal/observability"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "rednote-collector",
	Short: "Keyword-driven note and comment collector for xiaohongshu.com",
	Long: `rednote-collector drives a real Chrome through the public web UI:
it restores a saved login (or waits for you to scan the QR code once),
searches the configured keywords, scrolls the result and comment feeds
until they stop growing, and writes the extracted notes and comments to
disk as JSON and CSV.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initializeApp,
}

// Execute is the entry point used by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./config.yaml, then ~/.rednote-collector/config.yaml)")
	rootCmd.PersistentFlags().Bool("headless", false, "run the browser without a window")
	rootCmd.PersistentFlags().String("log-level", "", "override logger.level")
}

func initializeApp(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rednote-collector")
	}
	v.SetEnvPrefix("REDNOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
		// defaults plus environment is a valid setup
	}

	if cmd.Flags().Changed("headless") {
		headless, _ := cmd.Flags().GetBool("headless")
		v.Set("browser.headless", headless)
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		v.Set("logger.level", lvl)
	}

	var err error
	cfg, err = config.NewConfigFromViper(v)
	if err != nil {
		return err
	}

	observability.InitializeLogger(cfg.Logger)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM, so a
// Ctrl-C still flushes partial output and the run report.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

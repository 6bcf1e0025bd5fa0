package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aweris/rfile/internal/config"
	"github.com/aweris/rfile/internal/logging"
)

var (
	cfg *config.Config
	log = zerolog.Nop()
)

var rootCmd = &cobra.Command{
	Use:               "rfile",
	Short:             "Remote-backed image files",
	Long:              "CLI for storing images in an object store and transforming them in place.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ~/.config/rfile/config.yaml)")
	rootCmd.PersistentFlags().String("bucket", "", "bucket to operate on (env RFILE_BUCKET)")
	rootCmd.PersistentFlags().String("store", "", "store driver: fs, s3, minio or oci")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")

	viper.BindPFlag("bucket", rootCmd.PersistentFlags().Lookup("bucket"))
	viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	_ = godotenv.Load()

	if cfg := rootCmd.PersistentFlags().Lookup("config").Value.String(); cfg != "" {
		viper.SetConfigFile(cfg)
	} else {
		viper.AddConfigPath(configDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.ReadInConfig()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	cfg = c
	log = logging.New(cfg.LogLevel, os.Stderr)
	log.Debug().Str("driver", cfg.Store.Driver).Str("bucket", cfg.Bucket).Msg("loaded config")
	return nil
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "rfile")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "rfile")
	}
	return ".rfile"
}

package main

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/twitchsongbot/songbot/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "songbot",
	Short: "Twitch/Discord song request bot",
	Long: `songbot runs the song request queue, playback engine, and chat
command surface described in its configuration file.
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		initConfig()
		initLogging()
		return run(cmd.Context())
	},
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file")
}

// initConfig loads songbot.yaml, grounded on jellycli's cmd.initConfig:
// a configurable path, SONG_ env var overrides, tolerant of a missing
// file on first run.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		configDir, err := os.UserConfigDir()
		if err != nil {
			logrus.Errorf("cannot determine config directory: %v", err)
			configDir = "."
		} else {
			configDir = path.Join(configDir, "songbot")
		}
		viper.AddConfigPath(configDir)
		viper.SetConfigName("songbot")
		viper.SetConfigType("yaml")
	}

	replacer := strings.NewReplacer(".", "_")
	viper.SetEnvPrefix("song")
	viper.SetEnvKeyReplacer(replacer)
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logrus.Warn("no config file found, relying on defaults and environment variables")
		} else {
			logrus.Fatalf("read config file: %v", err)
		}
	}
}

// initLogging configures logrus the way jellycli's setLogging does:
// prefixed, timestamped, to stderr.
func initLogging() {
	cfg := config.FromViper()
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, defaulting to info: %v\n", cfg.LogLevel, err)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&prefixed.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	logrus.SetOutput(os.Stderr)
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// newRootCmd builds the command tree. Persistent flags are bound
// through viper so PANOPTICON_LOG_LEVEL / PANOPTICON_LOG_FORMAT
// environment variables can set them too.
func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "panopticon",
		Short:         "Recover control flow from a raw binary image",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := root.PersistentFlags()
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "console", "log encoding: console, json")
	_ = v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = v.BindPFlag("log.format", flags.Lookup("log-format"))
	v.SetEnvPrefix("panopticon")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root.AddCommand(newAnalyzeCmd(v))
	return root
}

// newLogger builds a zap.Logger from the bound log.level/log.format
// configuration (ambient logging stack).
func newLogger(v *viper.Viper) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(v.GetString("log.level"))); err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	if v.GetString("log.format") == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	return cfg.Build()
}

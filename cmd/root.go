// cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bogdanrbucur/pal-e3/internal/config"
	"github.com/bogdanrbucur/pal-e3/internal/observability"
	"github.com/bogdanrbucur/pal-e3/pkg/pale3"
)

type contextKey string

const configKey contextKey = "config"

// skipConfig marks commands that run without a vendor configuration.
const skipConfig = "skip-config"

// app holds the state shared by one command tree.
type app struct {
	cfgFile  string
	jsonOut  bool
	metrics  bool
	headed   bool
	pooled   bool
	logOut   zapcore.WriteSyncer
	sessionO []pale3.Option
}

// NewRootCommand builds a fresh command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{logOut: zapcore.Lock(os.Stderr)})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pale3",
		Short:         "Automates the PAL e3 maritime ERP: reports, allocations and directories.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfig] == "true" {
				return nil
			}

			v := viper.New()
			config.SetDefaults(v)
			if err := initializeConfig(v, a.cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			if a.headed {
				cfg.SetBrowserHeadless(false)
			}
			if a.pooled {
				cfg.SetPoolEnabled(true)
			}

			observability.Initialize(cfg.Logger(), a.logOut)
			observability.GetLogger().Debug("Starting pale3", zap.String("version", Version), zap.String("command", cmd.CommandPath()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	flags.BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")
	flags.BoolVar(&a.metrics, "metrics", false, "serve prometheus metrics while the command runs")
	flags.BoolVar(&a.headed, "headed", false, "show the browser window")
	flags.BoolVar(&a.pooled, "pool", false, "reuse logged-in browsers between reports")

	rootCmd.AddCommand(
		newLoginCmd(a),
		newVesselsCmd(a),
		newUsersCmd(a),
		newReportCmd(a),
		newScheduleCmd(a),
		newPSCCmd(a),
		newDrillsCmd(a),
		newQDMSCmd(a),
		newCrewChangesCmd(a),
		newAllocateCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree under ctx. Errors are logged here; the
// caller only maps them to an exit code.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	defer observability.Sync()
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		observability.GetLogger().Warn("Command aborted by user signal")
		return err
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	return err
}

// initializeConfig reads the config file, if any, and the PALE3_ environment.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("PALE3")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok {
		return nil, errors.New("configuration not loaded")
	}
	return cfg, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"setup-capabilities/internal/config"
	"setup-capabilities/internal/errors"
	"setup-capabilities/internal/installer"
	"setup-capabilities/internal/logger"
)

// geteuid reports the effective user ID. Tests replace it.
var geteuid = os.Geteuid

// flagSettings maps command-line flags onto settings keys. Only flags the user
// actually set are layered on top of defaults and environment.
var flagSettings = map[string]string{
	"log-level":       "log_level",
	"root":            "root",
	"target":          "target",
	"package-manager": "package_manager",
	"service-manager": "service_manager",
}

// cli holds what PersistentPreRunE resolved for the command being run.
// - settings: merged defaults, environment and flags.
// - log: the logger every component of the run receives.
type cli struct {
	settings config.Settings
	log      *logger.Logger
}

// newRootCmd builds the `setup-capabilities` command tree.
func newRootCmd() *cobra.Command {
	c := &cli{log: logger.New(logger.LevelError, os.Stdout, os.Stderr)}

	rootCmd := &cobra.Command{
		Use:   "setup-capabilities [capability...]",
		Short: "Provision this machine from capability directories",
		Long: `Provision this machine from capability directories.

Every subdirectory of the capability root that holds a capability.yaml is a
capability. All descriptors are loaded first; then packages are installed,
setup.sh scripts run, config.d trees are copied onto the filesystem and
services are enabled, restarted and verified, each phase for every capability
before the next phase starts. The first failure stops the run.

With no arguments every capability is applied; otherwise only the named ones.`,
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,

		// PersistentPreRunE resolves settings and the logger before any subcommand.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.provision(cmd, args)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringP("log-level", "l", "error",
		fmt.Sprintf("Log verbosity, one of: %s", strings.Join(logger.LevelNames(), ", ")))
	flags.String("root", "", "Directory holding capability directories (default: directory of this executable)")
	flags.String("target", "/", "Filesystem root config.d trees are materialized under")
	flags.String("package-manager", installer.DefaultPackageManager, "apt-get compatible package manager")
	flags.String("service-manager", installer.DefaultServiceManager, "systemctl compatible service manager")

	// Capability names share the positional namespace with subcommands.
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(newListCmd(c))
	return rootCmd
}

func (c *cli) setup(cmd *cobra.Command) error {
	overrides := map[string]any{}
	for flag, key := range flagSettings {
		f := cmd.Flags().Lookup(flag)
		if f != nil && f.Changed {
			overrides[key] = f.Value.String()
		}
	}

	settings, err := config.LoadSettings(overrides)
	if err != nil {
		return err
	}
	level, err := logger.ParseLevel(settings.LogLevel)
	if err != nil {
		return errors.Wrap(err, errors.ErrConfig, "invalid log level")
	}

	c.settings = settings
	c.log = logger.New(level, cmd.OutOrStdout(), cmd.ErrOrStderr())
	c.log.Debugf("Capability root: %s", settings.Root)
	c.log.Debugf("Target root: %s", settings.Target)
	return nil
}

func (c *cli) provision(cmd *cobra.Command, names []string) error {
	if uid := geteuid(); uid != 0 {
		return errors.Newf(errors.ErrPrivilege, "must be run as root (effective uid is %d)", uid)
	}

	loader := config.NewLoader(c.settings.Root, c.log)
	return installer.New(c.settings, c.log).Provision(cmd.Context(), loader, names)
}

// Execute runs the CLI. Any error is printed once and the process exits with
// status 1.
//
// SIGINT and SIGTERM cancel the command context instead of killing the
// process: the running child is killed, Run returns, and deferred cleanup
// (temporary setup scripts) still happens before exit.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logger.New(logger.LevelError, os.Stdout, rootCmd.ErrOrStderr()).Errorf("%v", err)
		os.Exit(1)
	}
}

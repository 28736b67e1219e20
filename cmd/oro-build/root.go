package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/dshills/oro/internal/build"
	"github.com/dshills/oro/internal/config"
	"github.com/dshills/oro/internal/logging"
	"github.com/dshills/oro/internal/syscmd"
)

// exitError carries a process exit code whose message was already printed.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// flags holds the parsed command line flags.
type flags struct {
	configPath string
	logLevel   string
	logFormat  string
	watch      bool
	syscall    bool
}

// execute runs oro-build with args and returns the process exit code.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *exitError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	fmt.Fprintf(stderr, "error: %v\n", err)
	return 1
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "oro-build [flags] <root_dir> <bin_dir> <bootstrap> <build_script> [args...]",
		Short: "Run oro Lua build scripts",
		Long: `oro-build runs the oro bootstrap script with the __ORO__ host table
installed. It is normally invoked through the project's .oro/build wrapper.

Helper commands shared by build scripts on every platform are available
through --syscall:

  oro-build --syscall touch <files...>
  oro-build --syscall cp <inputs...> <output>
  oro-build --syscall echo [words...]
  oro-build --syscall init-depfile <file.d>
  oro-build --syscall pass|fail`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Args:          cobra.ArbitraryArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.syscall {
				return runSyscall(args, stdout, stderr)
			}
			return runBuild(cmd.Context(), cmd.Flags(), f, args, stdout, stderr)
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	fs := cmd.Flags()
	// Everything after the first positional belongs to the build script or
	// the helper command.
	fs.SetInterspersed(false)
	fs.StringVarP(&f.configPath, "config", "c", "", "config file (default: oro.toml, oro.yaml or oro.yml in <root_dir>)")
	fs.StringVar(&f.logLevel, "log-level", "", "log level (trace, debug, info, warn, error, disabled)")
	fs.StringVar(&f.logFormat, "log-format", "", "log format (console, json)")
	fs.BoolVarP(&f.watch, "watch", "w", false, "rerun the build whenever Lua files under <root_dir> change")
	fs.BoolVar(&f.syscall, "syscall", false, "run a helper command instead of a build")

	return cmd
}

func runSyscall(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "error: --syscall takes at least 1 argument (got none)")
		return &exitError{code: syscmd.ExitUsage}
	}
	if code := syscmd.Run(args[0], args[1:], stdout, stderr); code != syscmd.ExitOK {
		return &exitError{code: code}
	}
	return nil
}

func runBuild(ctx context.Context, fs *pflag.FlagSet, f flags, args []string, stdout, stderr io.Writer) error {
	if len(args) < 4 {
		fmt.Fprintln(stderr, "error: Oro build system called with insufficient arguments")
		fmt.Fprintln(stderr, "error: (hint: don't call `.oro/build` directly)")
		return &exitError{code: 2}
	}

	cfg, err := loadConfig(fs, f, args[0])
	if err != nil {
		return err
	}

	logOut := stderr
	if strings.EqualFold(cfg.Log.Output, "stdout") {
		logOut = stdout
	}
	log := logging.NewWithWriter(cfg.Log, logOut)

	runner, err := build.New(build.Options{
		RootDir:     args[0],
		BinDir:      args[1],
		Bootstrap:   args[2],
		BuildScript: args[3],
		Args:        args[4:],
		Config:      cfg,
		Logger:      log,
	})
	if err != nil {
		return err
	}

	if f.watch {
		return runner.Watch(ctx)
	}
	return runner.Run(ctx)
}

// loadConfig resolves settings from, in increasing priority, the defaults,
// the config file, ORO_* variables and command line flags.
func loadConfig(fs *pflag.FlagSet, f flags, root string) (*config.Config, error) {
	path := f.configPath
	if path == "" {
		path = config.Discover(config.OSFS{}, root)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(config.EnvPrefix, nil); err != nil {
		return nil, err
	}

	if fs.Changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if fs.Changed("log-format") {
		cfg.Log.Format = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

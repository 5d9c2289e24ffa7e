// Package cmds implements the command-line interface of minidbg.
package cmds

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/chinggg/minidbg/pkg/config"
	"github.com/chinggg/minidbg/pkg/debugger"
	"github.com/chinggg/minidbg/pkg/logflags"
	"github.com/chinggg/minidbg/pkg/terminal"
	"github.com/chinggg/minidbg/pkg/version"
)

var (
	// log is whether to log debug statements.
	log bool
	// logOutput is a comma separated list of components that should produce debug output.
	logOutput string
	// initFile is the path to initialization file.
	initFile string

	conf *config.Config
)

// New returns the root command of minidbg.
func New() *cobra.Command {
	conf = config.LoadConfig()

	rootCommand := &cobra.Command{
		Use:   "minidbg <target>",
		Short: "minidbg is a breakpoint debugger for Linux executables.",
		Long: `minidbg launches a target executable under trace control and lets you
set breakpoints, resume and inspect it interactively.

The target must be built with its symbol table intact and frame pointers
preserved for backtraces to work.`,
		Args: cobra.ExactArgs(1),
		RunE: debugCmd,
	}
	rootCommand.PersistentFlags().BoolVarP(&log, "log", "", false, "Enable debugger logging.")
	rootCommand.PersistentFlags().StringVarP(&logOutput, "log-output", "", "", "Comma separated list of components that should produce debug output (eg: --log-output=debugger,proc,terminal)")
	rootCommand.Flags().StringVarP(&initFile, "init", "", "", "Init file, executed by the terminal client.")

	rootCommand.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Prints version.",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("minidbg version: %s\nBuild: %s\n", version.DebuggerVersion, version.BuildInfo())
		},
	})

	return rootCommand
}

func debugCmd(cmd *cobra.Command, args []string) error {
	if err := logflags.Setup(log, logOutput); err != nil {
		return err
	}
	if log {
		logger := logflags.DebuggerLogger()
		cmd.Flags().Visit(func(f *pflag.Flag) {
			logger.Debugf("flag %s=%s", f.Name, f.Value)
		})
	}

	dbgConf := &debugger.Config{TargetPath: args[0]}
	if conf.MaxStackDepth != nil {
		dbgConf.MaxStackDepth = *conf.MaxStackDepth
	}

	dbg, err := debugger.New(dbgConf)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}

	term := terminal.New(dbg, conf)
	term.InitFile = initFile
	status, err := term.Run()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(status)
	return nil
}

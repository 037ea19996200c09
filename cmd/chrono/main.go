package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"github.com/chronospatial/chrono"
	"github.com/chronospatial/chrono/sat"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// errExit signals a failed command whose message was already printed.
var errExit = errors.New("exit")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	m := NewMain()
	if err := m.Run(ctx, os.Args[1:]); err == errExit {
		os.Exit(1)
	} else if err != nil {
		fmt.Fprintln(m.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program execution.
type Main struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewMain returns a new instance of Main attached to the standard streams.
func NewMain() *Main {
	return &Main{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run parses args and executes the matching command.
func (m *Main) Run(ctx context.Context, args []string) error {
	cmd := m.newRootCommand()
	cmd.SetArgs(args)
	cmd.SetIn(m.Stdin)
	cmd.SetOut(m.Stdout)
	cmd.SetErr(m.Stderr)
	return cmd.ExecuteContext(ctx)
}

// options holds flags shared by all commands.
type options struct {
	target      string
	configPath  string
	solver      string
	maxRounds   int
	maxBranches int
	checkForks  bool
	verbose     bool
}

func (m *Main) newRootCommand() *cobra.Command {
	var opt options

	cmd := &cobra.Command{
		Use:   "chrono [FILE]",
		Short: "Run and solve 3-bit computer programs",
		Long: `Chrono runs programs for the 3-bit computer and searches for the smallest
initial value of register A that makes a program print a target output.

With a FILE argument, chrono prints the program's output followed by the
smallest value of A that makes the program reproduce itself.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			input, err := m.readInput(args[0])
			if err != nil {
				return err
			}
			if err := m.run(input); err != nil {
				return err
			}
			return m.solve(cmd, &opt, input)
		},
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.PersistentFlags()
	flags.StringVar(&opt.target, "target", "", "comma-separated target output (default: the program itself)")
	flags.StringVar(&opt.configPath, "config", "", "TOML configuration file")
	flags.StringVar(&opt.solver, "solver", "", "solver back end ("+strings.Join(solverNames(), ", ")+")")
	flags.IntVar(&opt.maxRounds, "max-rounds", 0, "maximum number of exploration rounds (0 = unlimited)")
	flags.IntVar(&opt.maxBranches, "max-branches", 0, "maximum number of running branches (0 = unlimited)")
	flags.BoolVar(&opt.checkForks, "check-forks", false, "prune unsatisfiable branches at every fork")
	flags.BoolVarP(&opt.verbose, "verbose", "v", false, "verbose logging")

	cmd.AddCommand(
		m.newRunCommand(),
		m.newSolveCommand(&opt),
		m.newConfigCommand(&opt),
	)
	return cmd
}

// readInput parses an input file. A path of "-" reads from stdin.
func (m *Main) readInput(path string) (*chrono.Input, error) {
	if path == "-" {
		return chrono.ParseInput(m.Stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	input, err := chrono.ParseInput(f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return input, nil
}

// loadConfig returns the configuration from the config file, if any, with
// command line flags applied on top.
func (m *Main) loadConfig(cmd *cobra.Command, opt *options) (chrono.Config, error) {
	config := chrono.DefaultConfig()
	if opt.configPath != "" {
		var err error
		if config, err = chrono.LoadConfig(opt.configPath); err != nil {
			return config, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("solver") {
		config.Solver.Name = opt.solver
	}
	if flags.Changed("max-rounds") {
		config.Explorer.MaxRounds = opt.maxRounds
	}
	if flags.Changed("max-branches") {
		config.Explorer.MaxBranches = opt.maxBranches
	}
	if flags.Changed("check-forks") {
		config.Explorer.CheckForks = opt.checkForks
	}
	if opt.verbose {
		config.Log.Level = "debug"
	}
	return config, config.Validate()
}

var levelMap = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// newLogger returns a console logger writing to w.
func newLogger(w io.Writer, level string) (*zap.Logger, error) {
	lvl, ok := levelMap[level]
	if !ok {
		return nil, errors.Errorf("invalid log level: %q", level)
	}

	config := zap.NewProductionEncoderConfig()
	config.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
	}
	config.EncodeLevel = zapcore.CapitalLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(config), zapcore.AddSync(w), lvl)
	return zap.New(core), nil
}

// solverFactory returns a solver and a function that releases it.
type solverFactory func(config chrono.SolverConfig) (chrono.Solver, func() error, error)

// solvers holds the available solver back ends by name.
var solvers = map[string]solverFactory{
	"sat": func(config chrono.SolverConfig) (chrono.Solver, func() error, error) {
		s, err := sat.NewSolver(config.CacheSize)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	},
}

func solverNames() []string {
	a := make([]string, 0, len(solvers))
	for name := range solvers {
		a = append(a, name)
	}
	sort.Strings(a)
	return a
}

func newSolver(config chrono.SolverConfig) (chrono.Solver, func() error, error) {
	fn := solvers[config.Name]
	if fn == nil {
		return nil, nil, errors.Errorf("unknown solver: %q", config.Name)
	}
	return fn(config)
}

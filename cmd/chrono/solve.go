package main

import (
	"fmt"

	"github.com/chronospatial/chrono"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (m *Main) newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run FILE",
		Short: "Run a program and print its output",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := m.readInput(args[0])
			if err != nil {
				return err
			}
			return m.run(input)
		},
	}
}

// run executes the program concretely and prints the comma-joined output.
func (m *Main) run(input *chrono.Input) error {
	output, err := chrono.Run(input.Program, input.Registers)
	if err != nil {
		return err
	}
	fmt.Fprintln(m.Stdout, chrono.JoinDigits(output))
	return nil
}

func (m *Main) newSolveCommand(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "solve FILE",
		Short: "Find the smallest value of register A that produces the target",
		Long: `Solve explores every path through the program with A unknown and prints
the smallest value of A for which the program prints the target output.

The target defaults to the program itself.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := m.readInput(args[0])
			if err != nil {
				return err
			}
			return m.solve(cmd, opt, input)
		},
	}
}

// solve searches for the smallest A and prints it. Prints "no solution" and
// returns errExit if no value of A produces the target.
func (m *Main) solve(cmd *cobra.Command, opt *options, input *chrono.Input) error {
	config, err := m.loadConfig(cmd, opt)
	if err != nil {
		return err
	}

	logger, err := newLogger(m.Stderr, config.Log.Level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	target := input.Program.Bytes()
	if opt.target != "" {
		if target, err = chrono.ParseDigits(opt.target); err != nil {
			return errors.Wrap(err, "target")
		}
	}

	solver, closeSolver, err := newSolver(config.Solver)
	if err != nil {
		return err
	}
	defer closeSolver()

	e, err := chrono.NewExplorer(input.Program, target, input.Registers, solver)
	if err != nil {
		return err
	}
	defer e.Close()

	config.Configure(e)
	e.Logger = logger.With(zap.String("solver", config.Solver.Name))

	a, err := e.Search(cmd.Context())
	if errors.Cause(err) == chrono.ErrNoSolution {
		fmt.Fprintln(m.Stdout, "no solution")
		return errExit
	} else if err != nil {
		return err
	}

	stats := e.Stats()
	logger.Debug("stats",
		zap.Int("rounds", stats.Rounds),
		zap.Int("branches", stats.Branches),
		zap.Int("forks", stats.Forks),
		zap.Int("candidates", stats.Candidates),
		zap.Int("pruned", stats.Pruned),
	)

	fmt.Fprintln(m.Stdout, a)
	return nil
}

func (m *Main) newConfigCommand(opt *options) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show configuration values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := m.loadConfig(cmd, opt)
			if err != nil {
				return err
			}

			buf, err := chrono.MarshalConfig(config)
			if err != nil {
				return err
			}
			_, err = m.Stdout.Write(buf)
			return err
		},
	}
}

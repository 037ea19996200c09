//go:build z3

package main

import (
	"github.com/chronospatial/chrono"
	"github.com/chronospatial/chrono/z3"
)

func init() {
	solvers["z3"] = func(config chrono.SolverConfig) (chrono.Solver, func() error, error) {
		return z3.NewSolver(), func() error { return nil }, nil
	}
}

// Command slotting loads warehouse instances, runs solvers and checks
// slotting solutions from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"slotting/internal/buildinfo"
	"slotting/internal/loader"
	"slotting/internal/logging"
	"slotting/internal/opt"
)

const usage = `Usage: slotting <command> [flags]

Commands:
  summarize <instance>             print the instance report
  solve <instance> [flags]         run a solver and check its result
  check <instance> <solution>      check a solution file
  version                          print build information

An instance is a directory in the text format or a .json/.yaml file.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	var err error
	switch args[0] {
	case "summarize":
		err = summarize(args[1:], stdout, stderr)
	case "solve":
		err = solve(ctx, args[1:], stdout, stderr)
	case "check":
		err = check(args[1:], stdout, stderr)
	case "version":
		fmt.Fprintln(stdout, buildinfo.String())
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pflag.ErrHelp):
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 2
	default:
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
}

var errUsage = errors.New("usage")

func newFlagSet(name string, stderr io.Writer) (*pflag.FlagSet, *string) {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	level := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	return fs, level
}

func parse(fs *pflag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, pflag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", errUsage, err)
}

func summarize(args []string, stdout, stderr io.Writer) error {
	fs, _ := newFlagSet("summarize", stderr)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: summarize <instance>", errUsage)
	}
	inst, err := loader.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	fmt.Fprint(stdout, inst.Summarize().String())
	return nil
}

func solve(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, level := newFlagSet("solve", stderr)
	algorithm := fs.StringP("algorithm", "a", opt.NaiveName, fmt.Sprintf("solver to run %v", opt.Algorithms()))
	out := fs.StringP("out", "o", "", "write the solution to this file")
	archive := fs.String("archive", "", "also write <instance>_<algorithm>_<id>.sol into this directory")
	timeout := fs.Duration("timeout", 0, "abort the solver after this long (0 = no limit)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: solve <instance> [--algorithm name] [--out file]", errUsage)
	}
	log, err := logging.New(*level, "console")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	path := fs.Arg(0)
	inst, err := loader.Load(path)
	if err != nil {
		return err
	}
	solver, err := opt.NewSolver(*algorithm)
	if err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}
	sol, err := opt.Run(ctx, solver, inst)
	if err != nil {
		return err
	}
	log.Info("solved", zap.String("instance", path), zap.String("algorithm", sol.Algorithm), zap.Duration("elapsed", sol.Elapsed))

	printReport(stdout, sol.Report)
	fmt.Fprintf(stdout, "time: %s\n", sol.Elapsed.Round(time.Microsecond))
	if *out != "" {
		if err := loader.SaveSolutionFile(*out, sol.Positions); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "solution: %s\n", *out)
	}
	if *archive != "" {
		name := loader.SolutionFileName(instanceName(path), sol.Algorithm, uuid.NewString()[:8])
		p := filepath.Join(*archive, name)
		if err := loader.SaveSolutionFile(p, sol.Positions); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "archived: %s\n", p)
	}
	if *out == "" && *archive == "" {
		if err := loader.WriteSolution(stdout, sol.Positions); err != nil {
			return err
		}
	}
	if !sol.Report.Feasible {
		return opt.ErrInfeasible
	}
	return nil
}

func check(args []string, stdout, stderr io.Writer) error {
	fs, _ := newFlagSet("check", stderr)
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		return fmt.Errorf("%w: check <instance> <solution>", errUsage)
	}
	inst, err := loader.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	positions, err := loader.ReadSolutionFile(fs.Arg(1))
	if err != nil {
		return err
	}
	rep, err := opt.Check(inst, positions)
	printReport(stdout, rep)
	return err
}

func printReport(w io.Writer, rep opt.Report) {
	if rep.Feasible {
		fmt.Fprintf(w, "feasible: yes\ncost: %d\n", rep.Cost)
		return
	}
	fmt.Fprintf(w, "feasible: no\n")
	for _, v := range rep.Violations {
		fmt.Fprintf(w, "  - %s\n", v)
	}
}

// instanceName is the base name of an instance path without its extension.
func instanceName(path string) string {
	base := filepath.Base(filepath.Clean(path))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

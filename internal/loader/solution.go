package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// SolutionFile is the file name checked inside a solution directory.
const SolutionFile = "rack_product_assignment.txt"

// WriteSolution writes the product count then one rack index per line.
func WriteSolution(w io.Writer, positions []int) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", len(positions)); err != nil {
		return fmt.Errorf("write solution: %w: %w", ErrIOFailure, err)
	}
	for _, r := range positions {
		if _, err := fmt.Fprintf(bw, "%d\n", r); err != nil {
			return fmt.Errorf("write solution: %w: %w", ErrIOFailure, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write solution: %w: %w", ErrIOFailure, err)
	}
	return nil
}

// ReadSolution parses the format written by WriteSolution. The declared
// count must match the number of rack lines exactly.
func ReadSolution(r io.Reader) ([]int, error) {
	lines, err := readLines(r)
	if err != nil {
		return nil, fmt.Errorf("read solution: %w: %w", ErrIOFailure, err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("read solution: %w: empty", ErrMalformed)
	}
	n, err := strconv.Atoi(lines[0])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("read solution: %w: bad count line %q", ErrMalformed, lines[0])
	}
	if len(lines)-1 != n {
		return nil, fmt.Errorf("read solution: %w: declares %d products but contains %d lines", ErrMalformed, n, len(lines)-1)
	}
	out := make([]int, n)
	for i := range out {
		v, err := strconv.Atoi(lines[i+1])
		if err != nil {
			return nil, fmt.Errorf("read solution: %w: line %d: %v", ErrMalformed, i+2, err)
		}
		out[i] = v
	}
	return out, nil
}

// SolutionPath resolves path to a solution file: a directory means the
// rack_product_assignment.txt inside it.
func SolutionPath(path string) string {
	if fi, err := os.Stat(path); err == nil && fi.IsDir() {
		return filepath.Join(path, SolutionFile)
	}
	return path
}

// ReadSolutionFile reads a solution from a file or a solution directory.
func ReadSolutionFile(path string) ([]int, error) {
	p := SolutionPath(path)
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("read solution %s: %w: %w", p, ErrIOFailure, err)
	}
	defer f.Close()
	return ReadSolution(f)
}

// SaveSolutionFile writes positions to path, creating parent directories.
func SaveSolutionFile(path string, positions []int) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save solution %s: %w: %w", path, ErrIOFailure, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("save solution %s: %w: %w", path, ErrIOFailure, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("save solution %s: %w: %w", path, ErrIOFailure, cerr)
		}
	}()
	return WriteSolution(f, positions)
}

// SolutionFileName is the archive name of a solver run: <instance>_<algorithm>_<id>.sol.
func SolutionFileName(instance, algorithm, id string) string {
	return fmt.Sprintf("%s_%s_%s.sol", instance, algorithm, id)
}

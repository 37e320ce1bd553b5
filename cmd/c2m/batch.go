package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// batchFlags are the input flags shared by the lookup commands.
type batchFlags struct {
	file        string
	script      string
	interpreter string
}

func (b *batchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&b.file, "file", "f", "", "read one query per line from file")
	cmd.Flags().StringVarP(&b.script, "script", "s", "", "rewrite every line of --file with this script")
	cmd.Flags().StringVar(&b.interpreter, "interpreter", "python", "interpreter used to run --script")
}

// validate checks that exactly one of a positional query and --file is
// given. n is the number of positional queries.
func (b *batchFlags) validate(n int) error {
	switch {
	case n == 0 && b.file == "":
		return errors.New("either a query argument or --file is required")
	case n > 0 && b.file != "":
		return errors.New("a query argument and --file are mutually exclusive")
	case b.script != "" && b.file == "":
		return errors.New("--script requires --file")
	}
	if b.script != "" {
		if _, err := os.Stat(b.script); err != nil {
			return fmt.Errorf("script file does not exist: %w", err)
		}
	}
	return nil
}

// transformFunc rewrites one input line into a query.
type transformFunc func(ctx context.Context, line string) (string, error)

// transform returns the line rewriter selected by the flags.
func (b *batchFlags) transform() transformFunc {
	if b.script == "" {
		return func(_ context.Context, line string) (string, error) { return line, nil }
	}
	return func(ctx context.Context, line string) (string, error) {
		return runScript(ctx, b.interpreter, b.script, line)
	}
}

// runScript runs `interpreter script line` and returns its output without
// the trailing line break.
func runScript(ctx context.Context, interpreter, script, line string) (string, error) {
	out, err := exec.CommandContext(ctx, interpreter, script, line).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("script %s failed: %w: %s", script, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("script %s failed: %w", script, err)
	}
	return strings.TrimRight(string(out), "\r\n"), nil
}

// readLines returns the non-blank lines of path.
func readLines(fs afero.Fs, path string) ([]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %q: %w", path, err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read file %q: %w", path, err)
	}
	return lines, nil
}

type batchItem struct {
	line  string
	query string
	err   error
}

// transformLines applies fn to every line with at most jobs calls in
// flight. Items keep the order of lines.
func transformLines(ctx context.Context, lines []string, fn transformFunc, jobs int) []batchItem {
	items := make([]batchItem, len(lines))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(jobs, 1))
	for i, line := range lines {
		g.Go(func() error {
			q, err := fn(ctx, line)
			items[i] = batchItem{line: line, query: q, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return items
}

// runBatch feeds every query of the flags' input to handle in input order.
// Failing lines are reported together after all lines ran.
func runBatch(ctx context.Context, b *batchFlags, args []string, handle func(query string) error) error {
	if b.file == "" {
		return handle(args[0])
	}

	lines, err := readLines(afero.NewOsFs(), b.file)
	if err != nil {
		return err
	}

	var errs *multierror.Error
	for i, item := range transformLines(ctx, lines, b.transform(), jobs) {
		if item.err == nil {
			item.err = handle(item.query)
		}
		if item.err != nil {
			errs = multierror.Append(errs, fmt.Errorf("query %d (%q): %w", i+1, item.line, item.err))
		}
	}
	return errs.ErrorOrNil()
}

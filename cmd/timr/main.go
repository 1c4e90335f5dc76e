// Command timr runs a single countdown or stopwatch in the terminal.
//
//	timr [-format F] [-stopwatch] [-delay D] <expr>
//
// expr is a duration ("90", "1:30", "10m") or an ISO date to count down to.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mescon/timr/internal/clock"
	"github.com/mescon/timr/internal/config"
	"github.com/mescon/timr/internal/format"
	"github.com/mescon/timr/internal/logger"
	"github.com/mescon/timr/internal/timer"
)

var errUsage = errors.New("usage: timr [-format F] [-stopwatch] [-delay D] <expr>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.SetOutput(os.Stderr)
	logger.SetLevel("warn")

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr, clock.NewRealClock())
	switch {
	case err == nil, errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "timr: %v\n", err)
		os.Exit(1)
	}
}

// run drives one timer until it finishes or ctx is cancelled. Each tick rewrites the
// current line of out.
func run(ctx context.Context, args []string, out, errOut io.Writer, clk clock.Clock) error {
	fs := flag.NewFlagSet("timr", flag.ContinueOnError)
	fs.SetOutput(errOut)
	formatOutput := fs.String("format", "", fmt.Sprintf("output template (default %q)", format.DefaultFormatOutput))
	stopwatch := fs.Bool("stopwatch", false, "count up from expr instead of down")
	delay := fs.Duration("delay", 0, "wait this long before the first tick")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *showVersion {
		fmt.Fprintf(out, "timr %s\n", config.Version)
		return nil
	}
	if fs.NArg() != 1 {
		return errUsage
	}

	partial := &format.Partial{Countdown: format.Ptr(!*stopwatch)}
	if *formatOutput != "" {
		partial.FormatOutput = formatOutput
	}

	t, err := timer.New(fs.Arg(0), partial, timer.WithClock(clk))
	if err != nil {
		return err
	}
	defer t.Destroy()

	finished := make(chan struct{})
	_ = t.Ticker(func(p timer.Payload) {
		fmt.Fprintf(out, "\r%s", p.FormattedTime)
	})
	_ = t.Finish(func(timer.Payload) {
		close(finished)
	})

	fmt.Fprintf(out, "\r%s", t.Format().FormattedTime)
	if err := t.StartAfter(*delay); err != nil {
		fmt.Fprintln(out)
		return err
	}

	select {
	case <-finished:
	case <-ctx.Done():
		t.Clear()
	}
	fmt.Fprintln(out)
	return nil
}

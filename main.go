package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	tea "charm.land/bubbletea/v2"

	"github.com/fluxpay/fluxpay-cli/logging"
	"github.com/fluxpay/fluxpay-cli/tui"
)

// isTTY reports whether f is a character device (interactive terminal).
func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, cmdArgs, err := loadConfig(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	warnPlainHTTP(os.Stderr, cfg.ServerURL)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The TUI owns stderr, so logs only go to the log file while it runs.
	useTUI := len(cmdArgs) > 0 && isTTY(os.Stderr)
	var logOut io.Writer = os.Stderr
	if useTUI {
		logOut = io.Discard
	}
	logger, closer, err := logging.New(logOut, logging.Options{
		Level: cfg.LogLevel,
		Env:   cfg.Env,
		File:  cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer closer.Close()

	if !useTUI {
		d := tui.NewPlainDisplayer(os.Stdout)
		a, err := newApp(cfg, logger, d)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if len(cmdArgs) == 0 {
			var prompt io.Writer
			if isTTY(os.Stdin) {
				d.Banner(cfg.ServerURL)
				prompt = os.Stderr
			}
			return exitCode(a.shell(ctx, os.Stdin, prompt))
		}
		return exitCode(a.runOnce(ctx, cmdArgs))
	}

	// Run TUI program on stderr so stdout pipes are not corrupted
	m := tui.NewModel()
	// WithInput(nil): disable stdin/keyboard input so BubbleTea skips terminal
	// capability queries (?2026/?2027). Ctrl+C is handled by signal.NotifyContext.
	p := tea.NewProgram(m, tea.WithOutput(os.Stderr), tea.WithInput(nil))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := p.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		}
	}()

	d := tui.NewProgramDisplayer(p)
	d.Banner(cfg.ServerURL)

	var runErr error
	a, err := newApp(cfg, logger, d)
	if err != nil {
		runErr = err
		d.Failed("startup", err)
	} else {
		runErr = a.runOnce(ctx, cmdArgs)
	}
	p.Quit() // let BubbleTea drain terminal query responses before exiting
	wg.Wait()
	return exitCode(runErr)
}

func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}

// runOnce signs in with the configured credentials unless the command does
// not need a session, then runs the command.
func (a *app) runOnce(ctx context.Context, args []string) error {
	if cmd, ok := lookupCommand(strings.ToLower(args[0])); ok && !cmd.public {
		if err := a.signIn(ctx, "", ""); err != nil {
			a.d.Failed("login", err)
			return err
		}
	}
	return a.execute(ctx, args)
}

// shell runs commands read line by line from in against one session. A failed
// command does not end the shell; the last failure is returned. prompt, when
// set, receives a prompt before every line.
func (a *app) shell(ctx context.Context, in io.Reader, prompt io.Writer) error {
	if a.cfg.Email != "" && a.cfg.Password != "" {
		if err := a.signIn(ctx, "", ""); err != nil {
			a.d.Failed("login", err)
		}
	}

	var lastErr error
	scanner := bufio.NewScanner(in)
	for {
		if prompt != nil {
			fmt.Fprint(prompt, "fluxpay> ")
		}
		if !scanner.Scan() {
			break
		}

		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "quit", "exit":
			return lastErr
		case "help":
			printCommands(os.Stderr)
			continue
		}

		if err := a.execute(ctx, fields); err != nil {
			lastErr = err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read commands: %w", err)
	}
	return lastErr
}

func printCommands(w io.Writer) {
	for _, c := range commands {
		fmt.Fprintf(w, "  %-44s %s\n", c.usage, c.help)
	}
}

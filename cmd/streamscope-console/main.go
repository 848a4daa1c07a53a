// streamscope-console is an interactive shell for a streamscope server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	prompt "github.com/c-bata/go-prompt"
	"golang.org/x/term"

	"github.com/xtxerr/streamscope/internal/client"
	"github.com/xtxerr/streamscope/internal/console"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

func main() {
	cfg := client.DefaultConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "server address or base URL")
	flag.StringVar(&cfg.Token, "token", os.Getenv("STREAMSCOPE_TOKEN"), "bearer token for mutating commands")
	flag.BoolVar(&cfg.TLS, "tls", false, "connect with TLS")
	flag.BoolVar(&cfg.TLSSkipVerify, "insecure", false, "skip TLS certificate verification")
	flag.DurationVar(&cfg.RequestTimeout, "timeout", cfg.RequestTimeout, "per request timeout")
	command := flag.String("c", "", "run one command and exit")
	logLevel := flag.String("log-level", "warn", "log level")
	flag.Parse()

	logging.InitWriter(os.Stderr, logging.ParseLevel(*logLevel), false)

	c, err := client.New(cfg)
	if err != nil {
		fatal(err)
	}
	defer c.Close()

	con := console.New(c, os.Stdout, console.WithWidth(console.TerminalWidth(os.Stdout)))

	switch {
	case *command != "":
		if err := execute(con, *command); err != nil && !errors.Is(err, console.ErrExit) {
			fatal(err)
		}
	case !term.IsTerminal(int(os.Stdin.Fd())):
		if err := runScript(con); err != nil {
			fatal(err)
		}
	default:
		runInteractive(con, c.BaseURL())
	}
}

// execute runs one line. Interrupt cancels it without leaving the shell.
func execute(con *console.Console, line string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return con.Execute(ctx, line)
}

// runScript executes stdin line by line and stops at the first error.
func runScript(con *console.Console) error {
	sc := bufio.NewScanner(os.Stdin)
	for n := 1; sc.Scan(); n++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := execute(con, line); err != nil {
			if errors.Is(err, console.ErrExit) {
				return nil
			}
			return fmt.Errorf("line %d: %w", n, err)
		}
	}
	return sc.Err()
}

func runInteractive(con *console.Console, base string) {
	fmt.Printf("streamscope console connected to %s. Type help for commands.\n", base)

	var done bool
	executor := func(line string) {
		start := time.Now()
		err := execute(con, line)
		switch {
		case errors.Is(err, console.ErrExit):
			done = true
		case err != nil:
			fmt.Fprintln(os.Stderr, "error:", err)
		case strings.TrimSpace(line) != "":
			fmt.Printf("(%s)\n", time.Since(start).Round(time.Millisecond))
		}
	}

	p := prompt.New(executor, con.Completer,
		prompt.OptionPrefix("streamscope> "),
		prompt.OptionTitle("streamscope"),
		prompt.OptionSetExitCheckerOnInput(func(string, bool) bool { return done }),
	)
	p.Run()
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "streamscope-console:", err)
	os.Exit(1)
}

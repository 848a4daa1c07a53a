// streamscope-tui runs an engine in process and shows it in the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"

	"github.com/xtxerr/streamscope/internal/engine"
	"github.com/xtxerr/streamscope/internal/engine/config"
	"github.com/xtxerr/streamscope/internal/engine/export"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
	"github.com/xtxerr/streamscope/internal/tui"
)

func main() {
	opts := tui.DefaultOptions()

	cfgPath := flag.String("config", "streamscope.yaml", "config file path")
	sourceKind := flag.String("source", "", "sample source: synthetic, snmp or stream (overrides config)")
	streamPath := flag.String("stream", "", "read samples from this file (implies -source stream)")
	logPath := flag.String("log", "", "write logs to this file (default: discard)")
	altScreen := flag.Bool("alt-screen", true, "use the terminal alternate screen buffer")
	flag.IntVar(&opts.PlotFPS, "plot-fps", opts.PlotFPS, "plot refresh rate (frames per second)")
	flag.IntVar(&opts.ListFPS, "list-fps", opts.ListFPS, "category and sample list refresh rate")
	flag.IntVar(&opts.ViewSplit, "view-split", opts.ViewSplit, "split the view at this % of the screen width [20,80]")
	flag.IntVar(&opts.TableRows, "rows", opts.TableRows, "rows of the sample table")
	flag.Parse()

	if opts.PlotFPS < 1 || opts.ListFPS < 1 {
		fatal(fmt.Errorf("-plot-fps and -list-fps must be >= 1"))
	}
	opts.ViewSplit = max(20, min(80, opts.ViewSplit))
	opts.TableRows = max(1, opts.TableRows)

	if !term.IsTerminal(os.Stdout.Fd()) {
		fatal(fmt.Errorf("stdout is not a terminal"))
	}

	cfg, err := config.Load(*cfgPath)
	if errors.Is(err, os.ErrNotExist) {
		cfg, err = config.DefaultConfig(), nil
	}
	if err != nil {
		fatal(err)
	}
	if *sourceKind != "" {
		cfg.Ingestion.Source.Kind = *sourceKind
	}
	if *streamPath != "" {
		cfg.Ingestion.Source.Kind = config.SourceStream
		cfg.Ingestion.Source.Stream.Path = *streamPath
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	// Log lines would tear the screen.
	var logOut io.Writer = io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fatal(err)
		}
		defer f.Close()
		logOut = f
	}
	logging.InitWriter(logOut, logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)

	if err := run(cfg, opts, *altScreen); err != nil {
		slog.Error("tui failed", "error", err)
		fatal(err)
	}
}

func run(cfg *config.Config, opts tui.Options, altScreen bool) error {
	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	exporter, err := export.NewFromConfig(cfg.Export)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.Start(ctx); err != nil {
		return err
	}

	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if altScreen {
		progOpts = append(progOpts, tea.WithAltScreen())
	}
	_, err = tea.NewProgram(tui.New(ctx, eng, exporter, opts), progOpts...).Run()
	return err
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "streamscope-tui:", err)
	os.Exit(1)
}

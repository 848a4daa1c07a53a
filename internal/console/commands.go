package console

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xtxerr/streamscope/internal/api"
	"github.com/xtxerr/streamscope/internal/client"
	"github.com/xtxerr/streamscope/internal/constants"
	"github.com/xtxerr/streamscope/internal/errors"
)

type command struct {
	name  string
	usage string
	help  string
	run   func(ctx context.Context, c *Console, a args) (any, error)
}

const (
	defaultCount  = 20
	defaultFollow = 10 * time.Second
)

var commands = []*command{
	{
		name:  "health",
		usage: "health",
		help:  "Server liveness",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			return c.client.Health(ctx)
		},
	},
	{
		name:  "batch",
		usage: "batch [count] [category=NAME]",
		help:  "Newest buffered samples",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			count, err := intArg(a.arg(0), "count", defaultCount)
			if err != nil {
				return nil, err
			}
			category, _ := a.opt("category")
			return c.client.Batch(ctx, count, category)
		},
	},
	{
		name:  "next",
		usage: "next [last-ms]",
		help:  "Synthetic sample after a timestamp",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			last := time.Now().UnixMilli()
			if s := a.arg(0); s != "" {
				v, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					return nil, errors.NewBadRequest("last", "must be a timestamp in ms")
				}
				last = v
			}
			return c.client.Next(ctx, last)
		},
	},
	{
		name:  "generate",
		usage: "generate [count] [start=MS]",
		help:  "Synthetic batch",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			count, err := intArg(a.arg(0), "count", defaultCount)
			if err != nil {
				return nil, err
			}
			start, err := int64Opt(a, "start")
			if err != nil {
				return nil, err
			}
			return c.client.Generate(ctx, count, start)
		},
	},
	{
		name:  "aggregate",
		usage: "aggregate [period] [width=MS] [category=A,B] [min=] [max=] [start=] [end=]",
		help:  "Bucket the buffer by period or width",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			f, err := filterOpts(a)
			if err != nil {
				return nil, err
			}
			period := a.arg(0)
			if p, ok := a.opt("period"); ok {
				period = p
			}
			width, err := intArg(a.opts["width"], "width", 0)
			if err != nil {
				return nil, err
			}
			return c.client.Aggregate(ctx, f, period, int64(width))
		},
	},
	{
		name:  "window",
		usage: "window [offset]",
		help:  "Virtualized rows at a scroll offset",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			var offset float64
			if s := a.arg(0); s != "" {
				v, err := strconv.ParseFloat(s, 64)
				if err != nil {
					return nil, errors.NewBadRequest("offset", "must be a number")
				}
				offset = v
			}
			return c.client.Window(ctx, offset)
		},
	},
	{
		name:  "frame",
		usage: "frame",
		help:  "Latest rendered frame",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			return c.client.Frame(ctx)
		},
	},
	{
		name:  "metrics",
		usage: "metrics",
		help:  "Performance snapshot",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			return c.client.Metrics(ctx)
		},
	},
	{
		name:  "categories",
		usage: "categories",
		help:  "Most frequent recent categories",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			return c.client.Categories(ctx)
		},
	},
	{
		name:  "stats",
		usage: "stats",
		help:  "Engine statistics",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			return c.client.Stats(ctx)
		},
	},
	{
		name:  "view",
		usage: "view [mode] [category=A,B]",
		help:  "Change presentation mode or filter; category= clears the filter",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			v := client.View{Mode: a.arg(0)}
			if m, ok := a.opt("mode"); ok {
				v.Mode = m
			}
			if cats, ok := a.opt("category"); ok {
				v.Categories = splitList(cats)
			}
			return c.client.SetView(ctx, v)
		},
	},
	{
		name:  "export",
		usage: "export [samples|buckets] [format=F] [period=P] [category=A,B] [min=] [max=] [start=] [end=]",
		help:  "Write a snapshot export on the server",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			f, err := filterOpts(a)
			if err != nil {
				return nil, err
			}
			r := client.ExportRequest{
				Kind:   a.arg(0),
				Format: a.opts["format"],
				Period: a.opts["period"],
				Filter: f,
			}
			if k, ok := a.opt("kind"); ok {
				r.Kind = k
			}
			if r.Kind != "" && !constants.IsValidExportKind(r.Kind) {
				return nil, errors.NewBadRequest("kind", "must be one of: "+strings.Join(constants.ValidExportKinds, ", "))
			}
			return c.client.Export(ctx, r)
		},
	},
	{
		name:  "exports",
		usage: "exports [pattern]",
		help:  "List export files",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			return c.client.Exports(ctx, a.arg(0))
		},
	},
	{
		name:  "reset",
		usage: "reset",
		help:  "Empty the server buffer",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			if err := c.client.Reset(ctx); err != nil {
				return nil, err
			}
			return "buffer reset", nil
		},
	},
	{
		name:  "follow",
		usage: "follow [duration] [count=N] [category=NAME]",
		help:  "Print new samples until the duration passes",
		run:   runFollow,
	},
	{
		name:  "token",
		usage: "token [jwt]",
		help:  "Set the bearer token; no argument clears it",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			c.client.SetToken(a.arg(0))
			if a.arg(0) == "" {
				return "token cleared", nil
			}
			return "token set", nil
		},
	},
	{
		name:  "help",
		usage: "help [command]",
		help:  "Show commands",
		run:   runHelp,
	},
	{
		name:  "exit",
		usage: "exit",
		help:  "Leave the console",
		run: func(ctx context.Context, c *Console, a args) (any, error) {
			return nil, ErrExit
		},
	},
}

func runFollow(ctx context.Context, c *Console, a args) (any, error) {
	d := defaultFollow
	if s := a.arg(0); s != "" {
		v, err := time.ParseDuration(s)
		if err != nil || v <= 0 {
			return nil, errors.NewBadRequest("duration", "must be a positive duration like 10s")
		}
		d = v
	}
	count, err := intArg(a.opts["count"], "count", defaultCount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	err = c.client.Follow(ctx, time.Second, count, a.opts["category"], func(samples []api.Sample) {
		writeSamples(c.out, samples, c.width)
	})
	return nil, err
}

func runHelp(ctx context.Context, c *Console, a args) (any, error) {
	if name := a.arg(0); name != "" {
		cmd, ok := c.commands[strings.ToLower(name)]
		if !ok {
			return nil, errors.NewBadRequest("command", fmt.Sprintf("unknown command %q", name))
		}
		return fmt.Sprintf("%s\n  %s", cmd.usage, cmd.help), nil
	}

	cmds := make([]*command, 0, len(c.commands))
	for _, cmd := range c.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].name < cmds[j].name })

	var b strings.Builder
	for _, cmd := range cmds {
		fmt.Fprintf(&b, "  %-11s %s\n", cmd.name, cmd.help)
	}
	b.WriteString("\nPipe any command into a JSONPath expression: stats | $.buffer.count")
	return b.String(), nil
}

// =============================================================================
// Argument helpers
// =============================================================================

func intArg(s, name string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NewBadRequest(name, "must be an integer")
	}
	return v, nil
}

func int64Opt(a args, name string) (*int64, error) {
	s, ok := a.opt(name)
	if !ok || s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errors.NewBadRequest(name, "must be an integer")
	}
	return &v, nil
}

func floatOpt(a args, name string) (*float64, error) {
	s, ok := a.opt(name)
	if !ok || s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, errors.NewBadRequest(name, "must be a number")
	}
	return &v, nil
}

func filterOpts(a args) (client.Filter, error) {
	var f client.Filter
	var err error

	f.Categories = splitList(a.opts["category"])
	if f.Min, err = floatOpt(a, "min"); err != nil {
		return f, err
	}
	if f.Max, err = floatOpt(a, "max"); err != nil {
		return f, err
	}
	if f.Start, err = int64Opt(a, "start"); err != nil {
		return f, err
	}
	if f.End, err = int64Opt(a, "end"); err != nil {
		return f, err
	}
	return f, nil
}

// splitList splits a comma separated list. An empty string gives an empty
// non-nil slice.
func splitList(s string) []string {
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package console implements the interactive streamscope shell.
//
// A line is a command name followed by positional arguments and key=value
// options, optionally piped into a JSONPath expression:
//
//	batch 20 category=cpu
//	aggregate period=5min category=cpu,disk
//	stats | $.buffer.count
//
// Commands run against a server through internal/client.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"golang.org/x/term"

	"github.com/xtxerr/streamscope/internal/client"
	"github.com/xtxerr/streamscope/internal/errors"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("console")

// ErrExit is returned by Execute for the exit command.
var ErrExit = errors.New("exit")

// Console executes command lines. It is not safe for concurrent use.
type Console struct {
	client   *client.Client
	out      io.Writer
	width    int
	commands map[string]*command
}

// Option configures a Console.
type Option func(*Console)

// WithWidth truncates table rows to n columns. Zero disables truncation.
func WithWidth(n int) Option {
	return func(c *Console) { c.width = n }
}

// New creates a console writing to out.
func New(c *client.Client, out io.Writer, opts ...Option) *Console {
	con := &Console{
		client:   c,
		out:      out,
		commands: make(map[string]*command, len(commands)),
	}
	for _, cmd := range commands {
		con.commands[cmd.name] = cmd
	}
	for _, opt := range opts {
		opt(con)
	}
	return con
}

// TerminalWidth returns the column count of the terminal on f, or 0 when
// f is not a terminal.
func TerminalWidth(f *os.File) int {
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

// Execute runs one command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	line, expr, piped := strings.Cut(line, "|")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	name := strings.ToLower(fields[0])
	cmd, ok := c.commands[name]
	if !ok {
		return errors.NewBadRequest("command", fmt.Sprintf("unknown command %q, try help", fields[0]))
	}

	a, err := parseArgs(fields[1:])
	if err != nil {
		return err
	}

	log.Debug("executing", "command", name, "args", len(fields)-1)
	v, err := cmd.run(ctx, c, a)
	if err != nil {
		return err
	}
	if v == nil {
		return nil
	}

	if piped {
		return c.query(v, strings.TrimSpace(expr))
	}
	return render(c.out, v, c.width)
}

// query prints every node of v matched by the JSONPath expression expr,
// one per line.
func (c *Console) query(v any, expr string) error {
	if expr == "" {
		return errors.NewBadRequest("jsonpath", "empty expression after |")
	}
	path, err := jp.ParseString(expr)
	if err != nil {
		return errors.NewBadRequest("jsonpath", err.Error())
	}

	doc, err := toJSON(v)
	if err != nil {
		return err
	}
	data, err := oj.ParseString(doc)
	if err != nil {
		return fmt.Errorf("parse result: %w", err)
	}

	for _, node := range path.Get(data) {
		b, err := oj.Marshal(node)
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Fprintln(c.out, string(b))
	}
	return nil
}

// Names returns the command names in order.
func (c *Console) Names() []string {
	names := make([]string, 0, len(c.commands))
	for name := range c.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// Arguments
// =============================================================================

type args struct {
	pos  []string
	opts map[string]string
}

func parseArgs(fields []string) (args, error) {
	a := args{opts: make(map[string]string)}
	for _, f := range fields {
		key, value, ok := strings.Cut(f, "=")
		if !ok {
			a.pos = append(a.pos, f)
			continue
		}
		if key == "" {
			return a, errors.NewBadRequest(f, "option needs a name")
		}
		a.opts[strings.ToLower(key)] = value
	}
	return a, nil
}

func (a args) arg(i int) string {
	if i < len(a.pos) {
		return a.pos[i]
	}
	return ""
}

func (a args) opt(name string) (string, bool) {
	v, ok := a.opts[name]
	return v, ok
}

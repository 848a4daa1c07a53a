// Package tui is the terminal dashboard of an embedded engine.
//
// The engine runs its own ticks; the dashboard only reads the latest frame,
// the top categories and the virtualization window at its own refresh
// rates, and forwards view changes back to the engine.
package tui

import (
	"context"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	styles "github.com/charmbracelet/lipgloss"
	plot "github.com/chriskim06/drawille-go"

	"github.com/xtxerr/streamscope/internal/constants"
	"github.com/xtxerr/streamscope/internal/engine"
	"github.com/xtxerr/streamscope/internal/engine/coords"
	"github.com/xtxerr/streamscope/internal/engine/export"
	"github.com/xtxerr/streamscope/internal/engine/filter"
	"github.com/xtxerr/streamscope/internal/engine/lod"
	"github.com/xtxerr/streamscope/internal/engine/metrics"
	"github.com/xtxerr/streamscope/internal/engine/render"
	"github.com/xtxerr/streamscope/internal/logging"
)

var log = logging.Component("tui")

// Options configures the dashboard.
type Options struct {
	PlotFPS   int
	ListFPS   int
	ViewSplit int
	TableRows int
}

// DefaultOptions returns the dashboard defaults.
func DefaultOptions() Options {
	return Options{
		PlotFPS:   20,
		ListFPS:   2,
		ViewSplit: 30,
		TableRows: 8,
	}
}

var (
	selectedColor = styles.AdaptiveColor{Light: "0", Dark: "9"}
	borderColor   = styles.AdaptiveColor{Light: "#555", Dark: "#555"}
	errColor      = styles.AdaptiveColor{Light: "1", Dark: "9"}
	selectedFg    = styles.NewStyle().Foreground(selectedColor)
	borderFg      = styles.NewStyle().Foreground(borderColor)
	errFg         = styles.NewStyle().Foreground(errColor)
	plotStyle     = styles.NewStyle().
			BorderStyle(styles.NormalBorder()).
			Foreground(borderColor).
			BorderForeground(borderColor)
)

// Model is the bubbletea model of the dashboard.
type Model struct {
	ctx      context.Context
	eng      *engine.Engine
	exporter *export.Exporter
	opts     Options

	width, height  int
	leftPaneWidth  int
	rightPaneWidth int
	tableHeight    int

	list      list.Model
	listStyle styles.Style
	help      help.Model
	plot      *plot.Canvas
	series    []float64

	frame   *render.Frame
	window  engine.WindowView
	metrics metrics.Snapshot
	status  string
	err     error
}

// New creates the dashboard for eng. ctx bounds engine restarts after a
// pause; exporter may be nil to disable exports.
func New(ctx context.Context, eng *engine.Engine, exporter *export.Exporter, opts Options) *Model {
	const (
		defaultWidth  = 80
		defaultHeight = 20
	)

	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = styles.NewStyle().
		Border(styles.NormalBorder(), false, false, false, true).
		BorderForeground(borderColor).
		Foreground(selectedColor).
		Padding(0, 0, 0, 1)
	d.Styles.SelectedDesc = d.Styles.SelectedTitle.Foreground(selectedColor)

	l := list.New(make([]list.Item, 0), d, defaultWidth/3, defaultHeight)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.Styles.NoItems = l.Styles.NoItems.Padding(0, 2)

	p := plot.NewCanvas(defaultWidth, defaultHeight)
	p.ShowAxis = false
	p.LineColors = []plot.Color{plot.Red}

	m := &Model{
		ctx:      ctx,
		eng:      eng,
		exporter: exporter,
		opts:     opts,
		list:     l,
		help:     help.New(),
		plot:     &p,
	}
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(defaultWidth, opts.ViewSplit)
	m.tableHeight = opts.TableRows
	return m
}

type plotTickMsg time.Time

func (m *Model) doPlotTick() tea.Cmd {
	return tea.Every(time.Second/time.Duration(max(1, m.opts.PlotFPS)), func(t time.Time) tea.Msg {
		return plotTickMsg(t)
	})
}

type listTickMsg time.Time

func (m *Model) doListTick() tea.Cmd {
	return tea.Every(time.Second/time.Duration(max(1, m.opts.ListFPS)), func(t time.Time) tea.Msg {
		return listTickMsg(t)
	})
}

type exportDoneMsg struct {
	res export.Result
	err error
}

// Init starts the refresh ticks.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.doPlotTick(), m.doListTick())
}

// Update handles one message.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case plotTickMsg:
		m.updatePlot()
		return m, m.doPlotTick()
	case listTickMsg:
		cmd := m.updateList(msg)
		m.updateTable()
		m.metrics = m.eng.MetricsSnapshot()
		return m, tea.Batch(cmd, m.doListTick())
	case exportDoneMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = fmt.Sprintf("exported %d rows to %s", msg.res.Rows, msg.res.Path)
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	scroller := m.eng.Scroller()

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Up):
		m.list.CursorUp()
	case key.Matches(msg, keys.Down):
		m.list.CursorDown()
	case key.Matches(msg, keys.Filter):
		m.toggleFilter()
	case key.Matches(msg, keys.Mode):
		m.cycleMode()
	case key.Matches(msg, keys.RowUp):
		scroller.ScrollRows(-1)
		m.updateTable()
	case key.Matches(msg, keys.RowDown):
		scroller.ScrollRows(1)
		m.updateTable()
	case key.Matches(msg, keys.PageUp):
		scroller.PageUp()
		m.updateTable()
	case key.Matches(msg, keys.PageDown):
		scroller.PageDown()
		m.updateTable()
	case key.Matches(msg, keys.Follow):
		scroller.ScrollToEnd()
		m.updateTable()
	case key.Matches(msg, keys.Pause):
		m.togglePause()
	case key.Matches(msg, keys.Reset):
		m.eng.Reset()
		m.status = "buffer reset"
		m.updateTable()
	case key.Matches(msg, keys.Export):
		return m.exportCmd()
	}
	return nil
}

func (m *Model) toggleFilter() {
	item, ok := m.list.SelectedItem().(listItem)
	if !ok {
		return
	}
	pipeline := m.eng.Render()
	spec := pipeline.Filter()
	cats := toggleCategory(spec.CategoryList(), item.Category)
	pipeline.SetFilter(filter.ForCategories(cats...))
	log.Debug("filter changed", "categories", cats)
}

func (m *Model) cycleMode() {
	pipeline := m.eng.Render()
	i := slices.Index(lod.Modes, pipeline.Mode())
	next := lod.Modes[(i+1)%len(lod.Modes)]
	if err := pipeline.SetMode(next); err != nil {
		m.err = err
	}
}

func (m *Model) togglePause() {
	if m.eng.IsRunning() {
		if err := m.eng.Stop(); err != nil {
			m.err = err
		}
		m.status = "paused"
		return
	}
	if err := m.eng.Start(m.ctx); err != nil {
		m.err = err
		return
	}
	m.status = "running"
}

func (m *Model) exportCmd() tea.Cmd {
	if m.exporter == nil {
		m.status = "export disabled"
		return nil
	}
	samples := m.eng.Filter(m.eng.Render().Filter())
	return func() tea.Msg {
		res, err := m.exporter.ExportSamples(samples, "")
		return exportDoneMsg{res: res, err: err}
	}
}

// resize lays out the panes and resizes the engine's plotting area to
// the braille resolution of the plot pane.
func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.leftPaneWidth, m.rightPaneWidth = computePaneWidths(width, m.opts.ViewSplit)

	// stats + status + help
	const bottomLines = 4
	m.tableHeight = max(1, min(m.opts.TableRows, height/3))
	available := max(1, height-bottomLines-m.tableHeight-1)

	m.list.SetSize(m.leftPaneWidth, available)
	m.listStyle = styles.NewStyle().Width(m.leftPaneWidth).Height(available)

	// Right side is: plot canvas + 1 label line, wrapped in a border.
	plotHeight := max(1, available-3)
	plotWidth := max(1, m.rightPaneWidth-2)
	p := plot.NewCanvas(plotWidth, plotHeight)
	p.ShowAxis = m.plot.ShowAxis
	p.LineColors = m.plot.LineColors
	m.plot = &p

	m.eng.SetRect(coords.DisplayRect{
		Width:  float64(plotWidth * dotsPerColumn),
		Height: float64(plotHeight * dotsPerRow),
	})

	itemExtent := m.eng.Config().Virtual.ItemExtent
	m.eng.Scroller().Resize(float64(m.tableHeight) * itemExtent)
}

func (m *Model) updatePlot() {
	frame := m.eng.Frame()
	if frame == nil || frame == m.frame {
		return
	}
	m.frame = frame

	if styles.DefaultRenderer().HasDarkBackground() {
		m.plot.LineColors = []plot.Color{plot.Red}
	} else {
		m.plot.LineColors = []plot.Color{plot.Black}
	}

	m.series = frameSeries(frame, m.series)
	if len(m.series) < 2 {
		return
	}
	m.plot.NumDataPoints = len(m.series)
	m.plot.Fill([][]float64{m.series})
}

func (m *Model) updateList(msg tea.Msg) tea.Cmd {
	spec := m.eng.Render().Filter()
	active := spec.CategoryList()

	top := m.eng.TopCategories()
	items := make([]list.Item, len(top))
	for i, c := range top {
		items[i] = listItem{rank: i + 1, Count: c, filtered: slices.Contains(active, c.Category)}
	}

	set := m.list.SetItems(items)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return tea.Batch(set, cmd)
}

func (m *Model) updateTable() {
	scroller := m.eng.Scroller()
	scroller.SetLength(m.eng.Snapshot().Len())
	m.window = m.eng.Window(scroller.Offset())
}

// View renders the dashboard.
func (m *Model) View() string {
	left := m.listStyle.Render(m.list.View())

	canvas := m.plot.String()
	if m.frame == nil || len(m.series) < 2 {
		canvas = emptyPlot(m.rightPaneWidth-2, m.list.Height()-3)
	}

	mode := string(m.eng.Render().Mode())
	level := "-"
	if m.frame != nil {
		level = m.frame.Level.String()
	}
	middle := selectedFg.Render(mode) + " " + borderFg.Render(level)
	labels := axisLabels(m.frame, m.rightPaneWidth-2, middle)

	right := plotStyle.Render(styles.JoinVertical(styles.Top, canvas, labels))
	view := styles.JoinHorizontal(styles.Top, left, right)

	blocks := []string{view, m.tableView(), m.statsView()}
	if m.err != nil {
		blocks = append(blocks, errFg.Render("ERROR: "+m.err.Error()))
	} else if m.status != "" {
		blocks = append(blocks, borderFg.Render(m.status))
	}
	blocks = append(blocks, m.help.View(keys))
	return styles.JoinVertical(styles.Left, blocks...)
}

func (m *Model) tableView() string {
	itemExtent := m.eng.Config().Virtual.ItemExtent
	firstRow := int(math.Floor(m.window.Offset / itemExtent))
	rows := visibleRows(m.window.Samples, m.window.Window.VisibleStart, firstRow, m.tableHeight)

	var sb strings.Builder
	header := fmt.Sprintf("SAMPLES %d-%d of %d", firstRow, firstRow+len(rows), m.window.Length)
	sb.WriteString(borderFg.Render(header))
	for i, s := range rows {
		sb.WriteByte('\n')
		sb.WriteString(formatRow(firstRow+i, s))
	}
	for range m.tableHeight - len(rows) {
		sb.WriteByte('\n')
	}
	return sb.String()
}

func (m *Model) statsView() string {
	state := strings.ToUpper(constants.EngineState(m.eng.IsRunning()))

	spec := m.eng.Render().Filter()
	filterText := "all"
	if cats := spec.CategoryList(); len(cats) > 0 {
		filterText = strings.Join(cats, ",")
	}

	total := 0
	if m.frame != nil {
		total = m.frame.Total
	}

	s := m.metrics
	lines := []string{
		fmt.Sprintf("%s  fps %.1f  frame %.2fms (max %.2fms)  processing %.2fms  mem %.1fMB",
			state, s.FPS, s.FrameTimeMs, s.MaxFrameTimeMs, s.DataProcessingMs, s.MemoryMB),
		fmt.Sprintf("frames %d  plotted %d/%d  filter %s",
			s.FrameCount, len(m.series), total, filterText),
	}
	return selectedFg.Render(strings.Join(lines, "\n"))
}

func emptyPlot(w, h int) string {
	if w < 1 || h < 1 {
		return ""
	}
	line := strings.Repeat(" ", w)
	rows := make([]string, h)
	for i := range rows {
		rows[i] = line
	}
	return strings.Join(rows, "\n")
}

package console

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/xtxerr/streamscope/internal/api"
)

const timeLayout = "2006-01-02 15:04:05.000"

// render writes v in its console form. Documents without a table form are
// printed as indented JSON.
func render(w io.Writer, v any, width int) error {
	switch doc := v.(type) {
	case string:
		fmt.Fprintln(w, doc)
	case api.BatchResponse:
		writeSamples(w, doc.Samples, width)
		fmt.Fprintf(w, "(%d samples)\n", doc.Count)
	case api.Sample:
		writeSamples(w, []api.Sample{doc}, width)
	case api.AggregateResponse:
		writeBuckets(w, doc, width)
	case api.WindowResponse:
		fmt.Fprintf(w, "rows %d-%d of %d  offset %.0f  extent %.0f\n",
			doc.VisibleStart, doc.VisibleEnd, doc.Length, doc.Offset, doc.TotalExtent)
		writeSamples(w, doc.Samples, width)
	case api.FrameResponse:
		fmt.Fprintf(w, "frame %d  %s/%s  %d of %d points  %.0fx%.0f  %.2fms\n",
			doc.Version, doc.Mode, doc.Level, len(doc.Points), doc.Total,
			doc.Width, doc.Height, doc.ProcessingMs)
		fmt.Fprintf(w, "x %s .. %s  y %g .. %g\n",
			formatTime(doc.Viewport.XMin), formatTime(doc.Viewport.XMax),
			doc.Viewport.YMin, doc.Viewport.YMax)
	case api.CategoriesResponse:
		writeCategories(w, doc.Categories, width)
	case api.ExportsResponse:
		for _, f := range doc.Files {
			fmt.Fprintln(w, f)
		}
	case api.ExportResult:
		fmt.Fprintf(w, "exported %d %s rows to %s (%s, %d bytes, highwayhash %s)\n",
			doc.Rows, doc.Kind, doc.Path, doc.Format, doc.Bytes, doc.Checksum)
	default:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal result: %w", err)
		}
		fmt.Fprintln(w, string(b))
	}
	return nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(b), nil
}

func formatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(timeLayout)
}

func writeSamples(w io.Writer, samples []api.Sample, width int) {
	writeTable(w, width, []string{"TIMESTAMP", "CATEGORY", "VALUE"}, len(samples), func(i int) []string {
		s := samples[i]
		return []string{formatTime(s.TimestampMs), s.Category, fmt.Sprintf("%.3f", s.Value)}
	})
}

func writeBuckets(w io.Writer, doc api.AggregateResponse, width int) {
	header := []string{"START", "CATEGORY", "COUNT", "MEAN", "MIN", "MAX", "P95"}
	writeTable(w, width, header, len(doc.Buckets), func(i int) []string {
		b := doc.Buckets[i]
		p95 := "-"
		if b.P95 != nil {
			p95 = fmt.Sprintf("%.3f", *b.P95)
		}
		return []string{
			formatTime(b.BucketStart), b.Category, fmt.Sprint(b.Count),
			fmt.Sprintf("%.3f", b.Mean), fmt.Sprintf("%.3f", b.Min), fmt.Sprintf("%.3f", b.Max), p95,
		}
	})
	label := doc.Period
	if label == "" {
		label = fmt.Sprintf("%dms", doc.WidthMs)
	}
	fmt.Fprintf(w, "(%d buckets of %s)\n", len(doc.Buckets), label)
}

func writeCategories(w io.Writer, counts []api.CategoryCount, width int) {
	writeTable(w, width, []string{"RANK", "CATEGORY", "COUNT"}, len(counts), func(i int) []string {
		return []string{fmt.Sprint(i + 1), counts[i].Category, fmt.Sprint(counts[i].Count)}
	})
}

// writeTable aligns rows into columns and cuts every line to width.
func writeTable(w io.Writer, width int, header []string, n int, row func(i int) []string) {
	var buf bytes.Buffer
	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for i := 0; i < n; i++ {
		fmt.Fprintln(tw, strings.Join(row(i), "\t"))
	}
	tw.Flush()

	for _, line := range strings.SplitAfter(buf.String(), "\n") {
		if line == "" {
			continue
		}
		if width > 0 && len(line) > width+1 {
			line = line[:width] + "\n"
		}
		io.WriteString(w, line)
	}
}

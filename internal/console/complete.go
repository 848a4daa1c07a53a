package console

import (
	"strings"

	prompt "github.com/c-bata/go-prompt"

	"github.com/xtxerr/streamscope/internal/constants"
	"github.com/xtxerr/streamscope/internal/engine/lod"
	"github.com/xtxerr/streamscope/internal/engine/types"
)

var optionSuggestions = map[string][]prompt.Suggest{
	"batch":     {{Text: "category=", Description: "only this category"}},
	"generate":  {{Text: "start=", Description: "first timestamp in ms"}},
	"aggregate": append(periodSuggestions(), filterSuggestions()...),
	"view":      append(modeSuggestions(), prompt.Suggest{Text: "category=", Description: "filter list, empty clears"}),
	"export": append([]prompt.Suggest{
		{Text: constants.ExportKindSamples, Description: "raw samples"},
		{Text: constants.ExportKindBuckets, Description: "aggregated buckets"},
		{Text: "format=parquet"},
		{Text: "format=xlsx"},
		{Text: "format=ndjson.xz"},
		{Text: "period=", Description: "bucket period for buckets"},
	}, filterSuggestions()...),
	"follow": {
		{Text: "count=", Description: "samples per poll"},
		{Text: "category=", Description: "only this category"},
	},
}

func periodSuggestions() []prompt.Suggest {
	out := make([]prompt.Suggest, 0, len(types.Periods)+1)
	for _, p := range types.Periods {
		out = append(out, prompt.Suggest{Text: p.String(), Description: "aggregation period"})
	}
	return append(out, prompt.Suggest{Text: "width=", Description: "bucket width in ms"})
}

func modeSuggestions() []prompt.Suggest {
	out := make([]prompt.Suggest, 0, len(lod.Modes))
	for _, m := range lod.Modes {
		out = append(out, prompt.Suggest{Text: string(m), Description: "presentation mode"})
	}
	return out
}

func filterSuggestions() []prompt.Suggest {
	return []prompt.Suggest{
		{Text: "category=", Description: "comma separated categories"},
		{Text: "min=", Description: "lowest value"},
		{Text: "max=", Description: "highest value"},
		{Text: "start=", Description: "first timestamp in ms"},
		{Text: "end=", Description: "last timestamp in ms"},
	}
}

// Completer returns go-prompt suggestions for the text before the cursor.
func (c *Console) Completer(d prompt.Document) []prompt.Suggest {
	return c.complete(d.TextBeforeCursor())
}

func (c *Console) complete(text string) []prompt.Suggest {
	if strings.Contains(text, "|") {
		return nil
	}

	fields := strings.Fields(text)
	word := ""
	if !strings.HasSuffix(text, " ") && len(fields) > 0 {
		word = fields[len(fields)-1]
		fields = fields[:len(fields)-1]
	}

	if len(fields) == 0 {
		s := make([]prompt.Suggest, 0, len(c.commands))
		for _, name := range c.Names() {
			s = append(s, prompt.Suggest{Text: name, Description: c.commands[name].help})
		}
		return prompt.FilterHasPrefix(s, word, true)
	}

	name := strings.ToLower(fields[0])
	if name == "help" && len(fields) == 1 {
		s := make([]prompt.Suggest, 0, len(c.commands))
		for _, n := range c.Names() {
			s = append(s, prompt.Suggest{Text: n})
		}
		return prompt.FilterHasPrefix(s, word, true)
	}
	return prompt.FilterHasPrefix(optionSuggestions[name], word, true)
}

// Package filtergraph builds ffmpeg filter expressions from typed values so
// callers never concatenate filter strings by hand.
package filtergraph

import (
	"strconv"
	"strings"
)

// Param is one key=value option of a filter. An empty Key makes the value
// positional.
type Param struct {
	Key   string
	Value string
}

func Int(key string, v int) Param { return Param{Key: key, Value: strconv.Itoa(v)} }

// Float renders with millisecond precision, which is what every timing
// option in the assembled graphs needs.
func Float(key string, v float64) Param {
	return Param{Key: key, Value: strconv.FormatFloat(v, 'f', 3, 64)}
}

func Str(key, v string) Param { return Param{Key: key, Value: v} }

// Filter is a single named filter with its options.
type Filter struct {
	Name   string
	Params []Param
}

func (f Filter) String() string {
	if len(f.Params) == 0 {
		return f.Name
	}
	parts := make([]string, 0, len(f.Params))
	for _, p := range f.Params {
		if p.Key == "" {
			parts = append(parts, p.Value)
			continue
		}
		parts = append(parts, p.Key+"="+p.Value)
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

// Chain is a linear filter chain, the form -vf accepts.
type Chain []Filter

func (c Chain) String() string {
	parts := make([]string, 0, len(c))
	for _, f := range c {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, ",")
}

// Stage applies one filter to labelled inputs and names its output pad.
type Stage struct {
	Inputs []string
	Filter Filter
	Output string
}

func (s Stage) String() string {
	var b strings.Builder
	for _, in := range s.Inputs {
		b.WriteString("[" + in + "]")
	}
	b.WriteString(s.Filter.String())
	if s.Output != "" {
		b.WriteString("[" + s.Output + "]")
	}
	return b.String()
}

// Graph is a -filter_complex description.
type Graph []Stage

func (g Graph) String() string {
	parts := make([]string, 0, len(g))
	for _, s := range g {
		parts = append(parts, s.String())
	}
	return strings.Join(parts, ";")
}

// Outputs lists the output labels in stage order.
func (g Graph) Outputs() []string {
	var out []string
	for _, s := range g {
		if s.Output != "" {
			out = append(out, s.Output)
		}
	}
	return out
}

// Crop keeps a centered w x h window; ffmpeg centers when x/y are omitted.
func Crop(w, h int) Filter {
	return Filter{Name: "crop", Params: []Param{Str("", strconv.Itoa(w)), Str("", strconv.Itoa(h))}}
}

// ASS burns an ASS subtitle file. fontsDir is optional.
func ASS(path, fontsDir string) Filter {
	f := Filter{Name: "ass", Params: []Param{Str("filename", EscapePath(path))}}
	if fontsDir != "" {
		f.Params = append(f.Params, Str("fontsdir", EscapePath(fontsDir)))
	}
	return f
}

func Xfade(transition string, duration, offset float64) Filter {
	return Filter{Name: "xfade", Params: []Param{
		Str("transition", transition),
		Float("duration", duration),
		Float("offset", offset),
	}}
}

func Acrossfade(duration float64) Filter {
	return Filter{Name: "acrossfade", Params: []Param{Float("d", duration)}}
}

// EscapePath escapes a file path for use as a filter option value.
func EscapePath(p string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`:`, `\:`,
		`'`, `\'`,
		`,`, `\,`,
		`;`, `\;`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(p)
}

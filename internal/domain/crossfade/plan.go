// Package crossfade computes the timing of a chained crossfade merge and the
// filter graph that realizes it.
package crossfade

import (
	"fmt"
	"math"
	"strconv"

	"github.com/forPelevin/reelcut/internal/domain/filtergraph"
	"github.com/forPelevin/reelcut/internal/types"
)

const (
	// MaxTransition caps the overlap between two adjacent clips, in seconds.
	MaxTransition = 0.75
	// Divisor keeps each transition under half of the shortest clip.
	Divisor = 2.1

	Transition = "fade"
	VideoOut   = "outv"
	AudioOut   = "outa"
)

// Plan is the timing of one merge.
type Plan struct {
	Passthrough bool
	// TransDur is TransitionDuration floored to milliseconds.
	TransDur float64
	// Offsets[i] is where the transition into clip i+1 starts on the merged timeline.
	Offsets   []float64
	Durations []float64
	Total     float64
}

// TransitionDuration is min(MaxTransition, min(durations)/Divisor).
func TransitionDuration(durations []float64) float64 {
	if len(durations) == 0 {
		return 0
	}
	m := durations[0]
	for _, d := range durations[1:] {
		m = math.Min(m, d)
	}
	return math.Min(MaxTransition, m/Divisor)
}

func NewPlan(durations []float64) (Plan, error) {
	if len(durations) == 0 {
		return Plan{}, fmt.Errorf("%w: no clips to merge", types.ErrInputValidation)
	}
	for i, d := range durations {
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return Plan{}, fmt.Errorf("%w: clip %d has duration %v", types.ErrInputValidation, i, d)
		}
	}
	ds := append([]float64(nil), durations...)
	if len(ds) == 1 {
		return Plan{Passthrough: true, Durations: ds, Total: ds[0]}, nil
	}

	t := millis(TransitionDuration(ds))
	offsets := make([]float64, 0, len(ds)-1)
	off := ds[0] - t
	sum := ds[0]
	for i := 1; i < len(ds); i++ {
		offsets = append(offsets, off)
		off += ds[i] - t
		sum += ds[i]
	}
	return Plan{
		TransDur:  t,
		Offsets:   offsets,
		Durations: ds,
		Total:     sum - float64(len(ds)-1)*t,
	}, nil
}

// millis floors to whole milliseconds, the precision the graph is written
// in, so offsets and the rendered fade durations agree exactly.
func millis(sec float64) float64 {
	return math.Floor(sec*1000+1e-6) / 1000
}

// Graph chains one xfade and one acrossfade per adjacent pair. Each stage
// consumes the running merge and the next raw input; the last pair writes
// VideoOut and AudioOut. A passthrough plan has no graph.
func (p Plan) Graph() filtergraph.Graph {
	if p.Passthrough || len(p.Offsets) == 0 {
		return nil
	}
	g := make(filtergraph.Graph, 0, 2*len(p.Offsets))
	prevV, prevA := "0:v", "0:a"
	for i, off := range p.Offsets {
		n := i + 1
		outV, outA := "v"+strconv.Itoa(n), "a"+strconv.Itoa(n)
		if n == len(p.Offsets) {
			outV, outA = VideoOut, AudioOut
		}
		g = append(g,
			filtergraph.Stage{
				Inputs: []string{prevV, strconv.Itoa(n) + ":v"},
				Filter: filtergraph.Xfade(Transition, p.TransDur, off),
				Output: outV,
			},
			filtergraph.Stage{
				Inputs: []string{prevA, strconv.Itoa(n) + ":a"},
				Filter: filtergraph.Acrossfade(p.TransDur),
				Output: outA,
			},
		)
		prevV, prevA = outV, outA
	}
	return g
}

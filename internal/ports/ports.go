package ports

import (
	"context"

	"github.com/forPelevin/reelcut/internal/domain/filtergraph"
	"github.com/forPelevin/reelcut/internal/types"
)

// ExtractRequest cuts [Start, End) of Input, crops it to the portrait window
// and burns CaptionsPath in a single encode.
type ExtractRequest struct {
	Input        string
	Output       string
	Start        float64
	End          float64
	CropWidth    int
	CropHeight   int
	CaptionsPath string
	FontsDir     string
}

// MergeRequest feeds Inputs, in order, through Graph and writes the pads
// VideoLabel and AudioLabel to Output.
type MergeRequest struct {
	Inputs     []string
	Output     string
	Graph      filtergraph.Graph
	VideoLabel string
	AudioLabel string
}

type Encoder interface {
	Probe(ctx context.Context, path string) (types.MediaInfo, error)
	Extract(ctx context.Context, req ExtractRequest) error
	Merge(ctx context.Context, req MergeRequest) error
}

// Selector returns the raw text of a highlight selection for a transcript.
type Selector interface {
	Select(ctx context.Context, transcript string) (string, error)
}

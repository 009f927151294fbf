package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/forPelevin/reelcut/internal/domain/subtitles"
	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

// extract renders one clip per segment. Extractions may finish in any order;
// the returned slice is always in segment order.
func (r *run) extract(ctx context.Context, info types.MediaInfo) ([]types.Clip, error) {
	segs := r.in.Segments
	cropW, cropH := CropWidth(info.Height), info.Height

	reqs := make([]ports.ExtractRequest, len(segs))
	for i, seg := range segs {
		subsPath := filepath.Join(r.in.RunDir, "subs", fmt.Sprintf("clip_%03d.ass", i))
		ass := subtitles.RenderASS(r.in.Style, subtitles.ClipLocal(seg))
		if err := writeFile(subsPath, []byte(ass)); err != nil {
			return nil, err
		}
		reqs[i] = ports.ExtractRequest{
			Input:        r.in.Source,
			Output:       filepath.Join(r.in.RunDir, "clips", fmt.Sprintf("clip_%03d.mp4", i)),
			Start:        seg.Start,
			End:          seg.End,
			CropWidth:    cropW,
			CropHeight:   cropH,
			CaptionsPath: subsPath,
			FontsDir:     r.in.FontsDir,
		}
	}

	workers := r.in.Workers
	if workers <= 0 {
		workers = 1
	}
	clips := make([]types.Clip, len(segs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range reqs {
		req := reqs[i]
		idx := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r.log.Info().Int("clip", idx).Float64("start", req.Start).Float64("end", req.End).Msg("extracting clip")
			if err := r.c.d.Encoder.Extract(gctx, req); err != nil {
				return fmt.Errorf("clip %d: %w", idx, err)
			}
			if err := requireFile(req.Output); err != nil {
				return fmt.Errorf("clip %d: %w", idx, err)
			}
			mi, err := r.c.d.Encoder.Probe(gctx, req.Output)
			if err != nil {
				return fmt.Errorf("clip %d: probe: %w", idx, err)
			}
			clips[idx] = types.Clip{Index: idx, Path: req.Output, Duration: mi.Duration}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clips, nil
}

// requireFile fails with ErrAssemblyIncomplete unless path is a non-empty file.
func requireFile(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("%w: %s not produced: %v", types.ErrAssemblyIncomplete, filepath.Base(path), err)
	}
	if st.IsDir() || st.Size() == 0 {
		return fmt.Errorf("%w: %s is empty", types.ErrAssemblyIncomplete, filepath.Base(path))
	}
	return nil
}

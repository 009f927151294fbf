package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/forPelevin/reelcut/internal/ports"
	"github.com/forPelevin/reelcut/internal/types"
)

func TestBuildRunDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	id := uuid.MustParse("3f2b8c1d-0000-4000-8000-000000000000")
	got := buildRunDir("runs", "/tmp/My Cool.Video.mp4", now, id)
	if filepath.Dir(got) != "runs" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if base := filepath.Base(got); base != "my-cool-video-20260212-103045Z-3f2b8c1d" {
		t.Fatalf("unexpected run dir: %s", base)
	}

	a := buildRunDir("runs", "in.mp4", now, uuid.New())
	b := buildRunDir("runs", "in.mp4", now, uuid.New())
	if a == b {
		t.Fatalf("two runs in the same second must not share a dir: %s", a)
	}
	if base := filepath.Base(buildRunDir("runs", "___.mp4", now, id)); !strings.HasPrefix(base, "input-") {
		t.Fatalf("expected fallback name, got %s", base)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestOutputPath(t *testing.T) {
	got := OutputPath(filepath.Join("downloads", "talk.mp4"))
	if want := filepath.Join("downloads", "talk_processed.mp4"); got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestShortPath(t *testing.T) {
	tests := map[string]string{
		"talk.en.srt": "talk.short.json",
		"talk.srt":    "talk.short.json",
		"talk.en.vtt": "talk.short.json",
	}
	for in, want := range tests {
		if got := ShortPath(in); got != want {
			t.Fatalf("ShortPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolveSource_DiscoveryOrder(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	writeFile(t, video, "v")

	if _, err := resolveSource(Config{InputVideo: video}); !errors.Is(err, types.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}

	writeFile(t, filepath.Join(dir, "talk.en.srt"), "")
	got, err := resolveSource(Config{InputVideo: video})
	if err != nil || filepath.Base(got) != "talk.en.srt" {
		t.Fatalf("expected srt, got %s %v", got, err)
	}

	writeFile(t, filepath.Join(dir, "talk.short.json"), "")
	got, err = resolveSource(Config{InputVideo: video})
	if err != nil || filepath.Base(got) != "talk.short.json" {
		t.Fatalf("selector json should win, got %s %v", got, err)
	}

	got, _ = resolveSource(Config{InputVideo: video, SubtitlePath: "x.srt"})
	if got != "x.srt" {
		t.Fatalf("explicit source should win, got %s", got)
	}
}

func TestLoadSegments_Formats(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"a.json": `{"timestamps":[{"start_sec":1,"end_sec":2,"text":"a"},{"start_sec":3,"end_sec":4,"text":"b"}]}`,
		"a.srt":  "1\n00:00:01,000 --> 00:00:02,000\na\n\n2\n00:00:03,000 --> 00:00:04,000\nb\n",
		"a.vtt":  "WEBVTT\n\n00:01.000 --> 00:02.000\na\n\n00:03.000 --> 00:04.000\nb\n",
		"a.txt":  "[{\"start_sec\":1,\"end_sec\":2},{\"start_sec\":3,\"end_sec\":4}]",
	}
	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			p := filepath.Join(dir, name)
			writeFile(t, p, content)
			segs, err := LoadSegments(p)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if len(segs) != 2 || segs[0].Start != 1 || segs[1].End != 4 {
				t.Fatalf("unexpected segments: %+v", segs)
			}
		})
	}
}

func TestLoadSegments_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadSegments(filepath.Join(dir, "nope.srt")); !errors.Is(err, types.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
	p := filepath.Join(dir, "backwards.srt")
	writeFile(t, p, "1\n00:00:03,000 --> 00:00:06,000\nb\n\n2\n00:00:01,000 --> 00:00:05,000\na\n")
	if _, err := LoadSegments(p); !errors.Is(err, types.ErrInputValidation) {
		t.Fatalf("expected ErrInputValidation for out-of-order blocks, got %v", err)
	}
}

func TestLoadSegments_AcceptsOverlappingCues(t *testing.T) {
	p := filepath.Join(t.TempDir(), "auto.en.srt")
	writeFile(t, p, "1\n00:00:01,000 --> 00:00:05,000\na\n\n2\n00:00:04,800 --> 00:00:06,000\nb\n")
	segs, err := LoadSegments(p)
	if err != nil {
		t.Fatalf("slightly overlapping cues should load: %v", err)
	}
	if len(segs) != 2 || segs[1].Start < 4.799 || segs[1].Start > 4.801 {
		t.Fatalf("unexpected segments: %+v", segs)
	}
}

func TestConfigValidate(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "v.mp4")
	writeFile(t, video, "v")

	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"ok", Config{InputVideo: video}, nil},
		{"empty", Config{}, types.ErrInputValidation},
		{"missing", Config{InputVideo: filepath.Join(dir, "x.mp4")}, types.ErrMissingSource},
		{"both sources", Config{InputVideo: video, SegmentsPath: "a", SubtitlePath: "b"}, types.ErrInputValidation},
		{"negative workers", Config{InputVideo: video, Workers: -1}, types.ErrInputValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

type stubEncoder struct {
	failMerge bool
}

func (stubEncoder) Probe(_ context.Context, path string) (types.MediaInfo, error) {
	if strings.Contains(path, "clip_") {
		return types.MediaInfo{Duration: 2, Width: 606, Height: 1080, HasAudio: true}, nil
	}
	return types.MediaInfo{Duration: 120, Width: 1920, Height: 1080, HasAudio: true}, nil
}

func (stubEncoder) Extract(_ context.Context, req ports.ExtractRequest) error {
	return os.WriteFile(req.Output, []byte(fmt.Sprintf("%v", req.Start)), 0o644)
}

func (s stubEncoder) Merge(_ context.Context, req ports.MergeRequest) error {
	if s.failMerge {
		return &types.ProcessError{Tool: "ffmpeg", Op: "merge", ExitCode: 1}
	}
	return os.WriteFile(req.Output, []byte("merged"), 0o644)
}

func TestRun_EndToEndWithStubEncoder(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	writeFile(t, video, "v")
	writeFile(t, filepath.Join(dir, "talk.short.json"), `[{"start_sec":1,"end_sec":3,"text":"a"},{"start_sec":5,"end_sec":7,"text":"b"}]`)
	workRoot := filepath.Join(dir, "work")

	res, err := Run(context.Background(), Config{
		InputVideo: video,
		WorkRoot:   workRoot,
		Logger:     zerolog.Nop(),
		Encoder:    stubEncoder{},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.OutputPath != filepath.Join(dir, "talk_processed.mp4") {
		t.Fatalf("unexpected output path %s", res.OutputPath)
	}
	if b, err := os.ReadFile(res.OutputPath); err != nil || string(b) != "merged" {
		t.Fatalf("unexpected output: %q %v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Join(workRoot, "runs"))
	if len(entries) != 0 {
		t.Fatalf("run dir should be removed after success, found %d entries", len(entries))
	}
}

func TestRun_FailureKeepsRunDir(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "talk.mp4")
	writeFile(t, video, "v")
	segs := filepath.Join(dir, "pick.json")
	writeFile(t, segs, `[{"start_sec":1,"end_sec":3},{"start_sec":5,"end_sec":7}]`)
	workRoot := filepath.Join(dir, "work")
	out := filepath.Join(dir, "out", "final.mp4")

	_, err := Run(context.Background(), Config{
		InputVideo:   video,
		SegmentsPath: segs,
		OutputPath:   out,
		WorkRoot:     workRoot,
		Logger:       zerolog.Nop(),
		Encoder:      stubEncoder{failMerge: true},
	})
	if !errors.Is(err, types.ErrExternalProcess) {
		t.Fatalf("expected ErrExternalProcess, got %v", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("no output may exist after failure")
	}
	entries, _ := os.ReadDir(filepath.Join(workRoot, "runs"))
	if len(entries) != 1 {
		t.Fatalf("failed run dir should be kept, found %d entries", len(entries))
	}
}

type fakeSelector struct {
	out string
	err error
	got string
}

func (f *fakeSelector) Select(_ context.Context, transcript string) (string, error) {
	f.got = transcript
	return f.out, f.err
}

func TestSelect_WritesShortJSON(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "talk.en.vtt")
	writeFile(t, sub, "WEBVTT\n\n00:52.960 --> 00:55.000\nhello\n")
	sel := &fakeSelector{out: "```json\n[{\"start_sec\":52.96,\"end_sec\":55,\"text\":\"hello\",\"words\":[{\"word\":\"hello\",\"start\":52.96,\"end\":55}]}]\n```"}

	out, segs, err := Select(context.Background(), SelectConfig{SubtitlePath: sub, Selector: sel})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !strings.Contains(sel.got, "00:00:52,960 --> 00:00:55,000") {
		t.Fatalf("selector should see SubRip text, got %q", sel.got)
	}
	if out != filepath.Join(dir, "talk.short.json") || len(segs) != 1 {
		t.Fatalf("unexpected result %s %+v", out, segs)
	}
	loaded, err := LoadSegments(out)
	if err != nil || loaded[0].Words[0].Word != "hello" {
		t.Fatalf("written selection does not load back: %+v %v", loaded, err)
	}
}

func TestSelect_BadOutputWritesNothing(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "talk.srt")
	writeFile(t, sub, "1\n00:00:01,000 --> 00:00:02,000\nhi\n")
	sel := &fakeSelector{out: "Sorry, I can't help with that."}

	_, _, err := Select(context.Background(), SelectConfig{SubtitlePath: sub, Selector: sel})
	if !errors.Is(err, types.ErrSelectorOutput) {
		t.Fatalf("expected ErrSelectorOutput, got %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "talk.short.json")); !os.IsNotExist(err) {
		t.Fatalf("nothing may be written for bad selector output")
	}
}

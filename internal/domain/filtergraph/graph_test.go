package filtergraph

import "testing"

func TestFilter_String(t *testing.T) {
	tests := []struct {
		name string
		f    Filter
		want string
	}{
		{"crop", Crop(606, 1080), "crop=606:1080"},
		{"ass", ASS("/tmp/run/subs/clip_000.ass", ""), "ass=filename=/tmp/run/subs/clip_000.ass"},
		{"ass fonts", ASS("c.ass", "/fonts"), "ass=filename=c.ass:fontsdir=/fonts"},
		{"xfade", Xfade("fade", 0.75, 4.25), "xfade=transition=fade:duration=0.750:offset=4.250"},
		{"acrossfade", Acrossfade(0.476), "acrossfade=d=0.476"},
		{"bare", Filter{Name: "null"}, "null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.String(); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestChain_String(t *testing.T) {
	c := Chain{Crop(606, 1080), ASS("a.ass", "")}
	if got := c.String(); got != "crop=606:1080,ass=filename=a.ass" {
		t.Fatalf("unexpected chain: %s", got)
	}
}

func TestGraph_String(t *testing.T) {
	g := Graph{
		{Inputs: []string{"0:v", "1:v"}, Filter: Xfade("fade", 0.5, 1.5), Output: "v1"},
		{Inputs: []string{"0:a", "1:a"}, Filter: Acrossfade(0.5), Output: "a1"},
	}
	want := "[0:v][1:v]xfade=transition=fade:duration=0.500:offset=1.500[v1];[0:a][1:a]acrossfade=d=0.500[a1]"
	if got := g.String(); got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
	outs := g.Outputs()
	if len(outs) != 2 || outs[0] != "v1" || outs[1] != "a1" {
		t.Fatalf("unexpected outputs: %v", outs)
	}
}

func TestEscapePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/plain/path.ass", "/plain/path.ass"},
		{`C:\subs\a.ass`, `C\:\\subs\\a.ass`},
		{"it's,[x];.ass", `it\'s\,\[x\]\;.ass`},
	}
	for _, tt := range tests {
		if got := EscapePath(tt.in); got != tt.want {
			t.Fatalf("EscapePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

package corpus

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/user/decodebench/pkg/ports"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []*Video
	}{
		{
			name: "path only",
			spec: "clip.h264",
			want: []*Video{{Path: "clip.h264", Profile: -1}},
		},
		{
			name: "all fields",
			spec: "clip.h264:320:240:250:258:35:150:1",
			want: []*Video{{
				Path: "clip.h264", Width: 320, Height: 240,
				NumFrames: 250, NumFragments: 258,
				MinFPSRender: 35, MinFPSNoRender: 150,
				Profile: ports.ProfileH264Main,
			}},
		},
		{
			name: "empty fields mean ignore",
			spec: "clip.ivf:::250::::11",
			want: []*Video{{Path: "clip.ivf", NumFrames: 250, Profile: ports.ProfileVP8}},
		},
		{
			name: "two streams",
			spec: "a.h264:64:48;b.ivf",
			want: []*Video{
				{Path: "a.h264", Width: 64, Height: 48, Profile: -1},
				{Path: "b.ivf", Profile: -1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpec(tt.spec)
			if err != nil {
				t.Fatalf("ParseSpec(%q) failed: %v", tt.spec, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("parsed %d videos, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if !reflect.DeepEqual(got[i], tt.want[i]) {
					t.Errorf("video %d = %+v, want %+v", i, *got[i], *tt.want[i])
				}
			}
		})
	}
}

func TestParseSpec_Malformed(t *testing.T) {
	for _, spec := range []string{
		"",
		";;",
		"clip.h264:notanumber",
		"clip.h264:1:2:3:4:5:6:7:8", // too many fields
		":320:240",
	} {
		if _, err := ParseSpec(spec); !errors.Is(err, ErrBadSpec) {
			t.Errorf("ParseSpec(%q) = %v, want ErrBadSpec", spec, err)
		}
	}
}

func TestVideo_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.h264")
	payload := []byte{0, 0, 0, 1, 0x67, 0xee}
	if err := os.WriteFile(path, payload, 0644); err != nil {
		t.Fatal(err)
	}

	v := &Video{Path: path, Profile: -1}
	if err := v.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !bytes.Equal(v.Stream, payload) {
		t.Errorf("raw stream altered by Load")
	}
	if v.Profile != ports.ProfileH264Baseline {
		t.Errorf("Profile = %d, want baseline inferred from extension", v.Profile)
	}

	missing := &Video{Path: filepath.Join(dir, "nope.h264")}
	if err := missing.Load(); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestVideo_PlanMidStreamReset(t *testing.T) {
	long := &Video{NumFrames: 250}
	if got := long.PlanMidStreamReset(); got != MaxResetAfterFrame {
		t.Errorf("reset frame = %d, want %d", got, MaxResetAfterFrame)
	}
	if long.NumFrames != 350 {
		t.Errorf("NumFrames = %d, want 350 after accounting", long.NumFrames)
	}

	short := &Video{NumFrames: 30}
	if got := short.PlanMidStreamReset(); got != 1 {
		t.Errorf("reset frame for short stream = %d, want 1", got)
	}
	if short.NumFrames != 31 {
		t.Errorf("NumFrames = %d, want 31", short.NumFrames)
	}
}

func TestVideo_DivideMinFPS(t *testing.T) {
	v := &Video{MinFPSRender: 60, MinFPSNoRender: 150}
	v.DivideMinFPS(3)
	if v.MinFPSRender != 20 || v.MinFPSNoRender != 50 {
		t.Errorf("thresholds = %d/%d, want 20/50", v.MinFPSRender, v.MinFPSNoRender)
	}

	v.DivideMinFPS(1)
	if v.MinFPSRender != 20 || v.MinFPSNoRender != 50 {
		t.Error("single instance must not change thresholds")
	}
}

func TestAvccToAnnexB(t *testing.T) {
	avcc := []byte{
		0, 0, 0, 2, 0x67, 0xaa,
		0, 0, 0, 3, 0x65, 0x01, 0x02,
	}
	want := []byte{
		0, 0, 0, 1, 0x67, 0xaa,
		0, 0, 0, 1, 0x65, 0x01, 0x02,
	}
	if got := avccToAnnexB(avcc); !bytes.Equal(got, want) {
		t.Errorf("avccToAnnexB = %v, want %v", got, want)
	}

	// A truncated trailing unit is dropped, not mis-framed.
	truncated := append([]byte{0, 0, 0, 2, 0x67, 0xaa}, 0, 0, 0, 9, 0x65)
	if got := avccToAnnexB(truncated); !bytes.Equal(got, want[:6]) {
		t.Errorf("truncated avccToAnnexB = %v, want %v", got, want[:6])
	}
}

package rendition

import (
	"errors"
	"testing"
)

const twoVariantManifest = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720,CODECS="avc1.4d401f,mp4a.40.2"
https://cdn.example.com/a/720.m3u8

#EXT-X-STREAM-INF:BANDWIDTH=1400000,RESOLUTION=640x480
https://cdn.example.com/b/480.m3u8
`

func TestSelectVariantScenario720And480(t *testing.T) {
	v, err := SelectVariant(twoVariantManifest, "https://cdn.example.com/master.m3u8", Quality480p)
	if err != nil {
		t.Fatalf("SelectVariant: %v", err)
	}
	if v.URL != "https://cdn.example.com/b/480.m3u8" {
		t.Fatalf("expected variant B, got %s", v.URL)
	}
	if v.Label != "480p" || v.Width != 640 || v.Height != 480 {
		t.Fatalf("unexpected variant %+v", v)
	}
}

func TestSelectVariantFallbackChainOrder(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=3000000,RESOLUTION=1280x720
hi.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=500000,RESOLUTION=640x360
lo.m3u8
`
	for i := 0; i < 3; i++ {
		v, err := SelectVariant(manifest, "https://h.example/v/master.m3u8", Quality480p)
		if err != nil {
			t.Fatalf("SelectVariant: %v", err)
		}
		if v.Label != "360p" || v.URL != "https://h.example/v/lo.m3u8" {
			t.Fatalf("run %d: expected 360p lo.m3u8, got %+v", i, v)
		}
	}
}

func TestSelectVariantChains(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=200000
https://x.example/240p/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2000000
https://x.example/hd/index.m3u8
#EXT-X-STREAM-INF:RESOLUTION=1920x1080
https://x.example/full/index.m3u8
`
	tests := []struct {
		pref Quality
		want string
	}{
		{Quality240p, "https://x.example/240p/index.m3u8"},
		{Quality360p, "https://x.example/240p/index.m3u8"},
		{Quality480p, "https://x.example/240p/index.m3u8"},
		{Quality720p, "https://x.example/hd/index.m3u8"},
		{Quality1080p, "https://x.example/full/index.m3u8"},
	}
	for _, tt := range tests {
		t.Run(string(tt.pref), func(t *testing.T) {
			v, err := SelectVariant(manifest, "", tt.pref)
			if err != nil {
				t.Fatalf("SelectVariant: %v", err)
			}
			if v.URL != tt.want {
				t.Fatalf("pref %s: got %s, want %s", tt.pref, v.URL, tt.want)
			}
		})
	}
}

func TestSelectVariantFallsBackToFirstVariant(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-STREAM-INF:CODECS="avc1"
https://x.example/stream-a.m3u8
#EXT-X-STREAM-INF:CODECS="avc1"
https://x.example/stream-b.m3u8
`
	v, err := SelectVariant(manifest, "", Quality720p)
	if err != nil {
		t.Fatalf("SelectVariant: %v", err)
	}
	if v.URL != "https://x.example/stream-a.m3u8" || v.Label != LabelUnknown {
		t.Fatalf("expected first variant with unknown label, got %+v", v)
	}
}

func TestSelectVariantNotFound(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"media playlist": "#EXTM3U\n#EXTINF:10,\nseg0.ts\n#EXT-X-ENDLIST\n",
		"missing uri":    "#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=100\n#EXT-X-STREAM-INF:BANDWIDTH=200\n",
		"garbage":        "<html>not a playlist</html>",
	}
	for name, manifest := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := SelectVariant(manifest, "https://x.example/m.m3u8", Quality480p); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

func TestParseManifestToleratesMalformedAttributes(t *testing.T) {
	manifest := `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=abc,RESOLUTION=wide,FRAME-RATE=29.97,CODECS="mp4a.40.2,avc1.64001f"
# comment between tag and uri

rel/path/low.m3u8?token=1
`
	variants := ParseManifest(manifest, "https://cdn.example/course/master.m3u8?sig=x")
	if len(variants) != 1 {
		t.Fatalf("expected 1 variant, got %d", len(variants))
	}
	v := variants[0]
	if v.Bandwidth != 0 || v.Height != 0 {
		t.Fatalf("malformed tokens should be ignored, got %+v", v)
	}
	if v.FrameRate != 29.97 {
		t.Fatalf("expected frame rate 29.97, got %v", v.FrameRate)
	}
	if v.URL != "https://cdn.example/course/rel/path/low.m3u8?token=1" {
		t.Fatalf("unexpected resolved url %s", v.URL)
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		v    Variant
		want string
	}{
		{"1080 height", Variant{Height: 1080}, "1080p"},
		{"odd 720 height", Variant{Height: 718, Bandwidth: 9_000_000}, "480p"},
		{"height beats url", Variant{Height: 360, URL: "https://x/720p/i.m3u8"}, "360p"},
		{"tiny height uses url", Variant{Height: 144, URL: "https://x/240p/i.m3u8"}, "240p"},
		{"url token", Variant{URL: "https://x/video_480p.m3u8"}, "480p"},
		{"host ignored", Variant{URL: "https://720p.example/i.m3u8", Bandwidth: 400_000}, "360p"},
		{"bandwidth high", Variant{Bandwidth: 1_500_001}, Label720pPlus},
		{"bandwidth boundary", Variant{Bandwidth: 1_500_000}, "480p"},
		{"bandwidth mid", Variant{Bandwidth: 600_001}, "480p"},
		{"bandwidth low", Variant{Bandwidth: 300_001}, "360p"},
		{"bandwidth floor", Variant{Bandwidth: 100}, "240p"},
		{"nothing known", Variant{URL: "https://x/stream.m3u8"}, LabelUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.v); got != tt.want {
				t.Fatalf("Label(%+v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestParseQuality(t *testing.T) {
	if q, err := ParseQuality(" 720P "); err != nil || q != Quality720p {
		t.Fatalf("ParseQuality = (%q, %v)", q, err)
	}
	if _, err := ParseQuality("4k"); err == nil {
		t.Fatal("expected error for unknown quality")
	}
	chain := FallbackChain(Quality480p)
	want := []string{"480p", "360p", "720p", "240p"}
	for i := range want {
		if chain[i] != want[i] {
			t.Fatalf("480p chain = %v, want %v", chain, want)
		}
	}
}

package rendition

import (
	"errors"
	"net/url"
	"strings"
)

// ErrNotFound reports a manifest that yielded no usable variant.
var ErrNotFound = errors.New("no rendition variant found")

var heightBuckets = []struct {
	min   int
	label string
}{
	{1080, "1080p"},
	{720, "720p"},
	{480, "480p"},
	{360, "360p"},
	{240, "240p"},
}

var urlQualityTokens = []string{"1080p", "720p", "480p", "360p", "240p"}

// Label derives the quality label of v: resolution height first, then a
// quality token in the URL path, then bandwidth.
func Label(v Variant) string {
	if v.Height > 0 {
		for _, bucket := range heightBuckets {
			if v.Height >= bucket.min {
				return bucket.label
			}
		}
	}
	if label := labelFromURL(v.URL); label != "" {
		return label
	}
	switch {
	case v.Bandwidth > 1_500_000:
		return Label720pPlus
	case v.Bandwidth > 600_000:
		return "480p"
	case v.Bandwidth > 300_000:
		return "360p"
	case v.Bandwidth > 0:
		return "240p"
	}
	return LabelUnknown
}

func labelFromURL(raw string) string {
	path := raw
	if u, err := url.Parse(raw); err == nil {
		path = u.Path
	}
	path = strings.ToLower(path)
	for _, token := range urlQualityTokens {
		if strings.Contains(path, token) {
			return token
		}
	}
	return ""
}

// SelectVariant parses manifestText and picks the variant for pref. When no
// variant matches the fallback chain the first parsed variant is returned.
func SelectVariant(manifestText, baseURL string, pref Quality) (Variant, error) {
	variants := ParseManifest(manifestText, baseURL)
	if len(variants) == 0 {
		return Variant{}, ErrNotFound
	}
	for i := range variants {
		variants[i].Label = Label(variants[i])
	}
	for _, label := range FallbackChain(pref) {
		for _, v := range variants {
			if v.Label == label {
				return v, nil
			}
		}
	}
	return variants[0], nil
}

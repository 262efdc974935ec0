package rendition

import (
	"fmt"
	"strings"
)

// Quality is a requested rendition height.
type Quality string

const (
	Quality240p  Quality = "240p"
	Quality360p  Quality = "360p"
	Quality480p  Quality = "480p"
	Quality720p  Quality = "720p"
	Quality1080p Quality = "1080p"
)

// Derived labels that are not selectable preferences.
const (
	Label720pPlus = "720p+"
	LabelUnknown  = "unknown"
)

var fallbackChains = map[Quality][]string{
	Quality240p:  {"240p", "360p", "480p", "720p"},
	Quality360p:  {"360p", "240p", "480p", "720p"},
	Quality480p:  {"480p", "360p", "720p", "240p"},
	Quality720p:  {"720p", Label720pPlus, "480p", "1080p", "360p", "240p"},
	Quality1080p: {"1080p", Label720pPlus, "720p", "480p", "360p", "240p"},
}

// ParseQuality validates a configured preference.
func ParseQuality(value string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := fallbackChains[q]; !ok {
		return "", fmt.Errorf("unknown quality %q (want 240p, 360p, 480p, 720p, or 1080p)", value)
	}
	return q, nil
}

// FallbackChain returns the ordered labels tried for q. Unknown preferences
// use the 480p chain.
func FallbackChain(q Quality) []string {
	chain, ok := fallbackChains[q]
	if !ok {
		chain = fallbackChains[Quality480p]
	}
	out := make([]string, len(chain))
	copy(out, chain)
	return out
}

package detectors

import (
	"strings"
	"time"
	"unicode"

	"github.com/xrash/smetrics"
)

const (
	jaroBoostThreshold = 0.7
	jaroPrefixSize     = 4
)

// JaroWinkler returns the similarity of a and b in [0,1]; identical strings score 1.
func JaroWinkler(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, jaroBoostThreshold, jaroPrefixSize)
}

// MeanPairwiseSimilarity averages JaroWinkler over every unordered pair.
// Fewer than two inputs yield 0.
func MeanPairwiseSimilarity(texts []string) float64 {
	if len(texts) < 2 {
		return 0
	}

	var total float64
	pairs := 0
	for i := 0; i < len(texts); i++ {
		for j := i + 1; j < len(texts); j++ {
			total += JaroWinkler(texts[i], texts[j])
			pairs++
		}
	}
	return total / float64(pairs)
}

func containsLink(content string) bool {
	return strings.Contains(content, "http://") || strings.Contains(content, "https://")
}

func countLinks(content string) int {
	return strings.Count(content, "http")
}

func countMentions(content string) int {
	return strings.Count(content, "<@")
}

func isEmoji(r rune) bool {
	return (r >= 0x1F300 && r <= 0x1F5FF) ||
		(r >= 0x1F600 && r <= 0x1F64F) ||
		(r >= 0x1F680 && r <= 0x1F6FF)
}

type charStats struct {
	total int
	upper int
	emoji int
}

func countChars(content string) charStats {
	var cs charStats
	for _, r := range content {
		cs.total++
		if unicode.IsUpper(r) {
			cs.upper++
		}
		if isEmoji(r) {
			cs.emoji++
		}
	}
	return cs
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}

func capScore(score float64) float64 {
	if score > 1 {
		return 1
	}
	return score
}

func within(ts, now time.Time, window time.Duration) bool {
	return !ts.Before(now.Add(-window))
}

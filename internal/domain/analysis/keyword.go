package analysis

import (
	"fmt"
	"math"
	"strings"
)

// ScoreKeywords is the deterministic fallback scorer: case-insensitive
// keyword coverage over the extracted text. Duplicate keywords collapse
// before the denominator is taken; an empty keyword list scores 0 with no
// matches rather than tripping a division branch.
func ScoreKeywords(text string, keywords []string) (int, []string) {
	distinct := dedupeKeywords(keywords)
	if len(distinct) == 0 {
		return 0, nil
	}

	haystack := strings.ToLower(text)
	var matched []string
	for _, kw := range distinct {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}

	score := int(math.Round(100 * float64(len(matched)) / float64(len(distinct))))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, matched
}

// FallbackResult builds a full Result from the scorer output so fallback
// outcomes share the remote shape: one positive line per matched keyword,
// one improvement line per missing keyword.
func FallbackResult(text string, keywords []string) Result {
	score, matched := ScoreKeywords(text, keywords)
	missing := missingKeywords(keywords, matched)

	positive := make([]string, 0, len(matched))
	for _, kw := range matched {
		positive = append(positive, fmt.Sprintf("Resume mentions %q.", kw))
	}
	improvements := make([]string, 0, len(missing))
	for _, kw := range missing {
		improvements = append(improvements, fmt.Sprintf("Consider adding %q to your resume.", kw))
	}

	extracted := matched
	if extracted == nil {
		extracted = []string{}
	}

	return Result{
		ATSScore: score,
		Feedback: Feedback{Positive: positive, Improvements: improvements},
		Keywords: Keywords{Extracted: extracted, Missing: missing},
	}
}

// missingKeywords is the set difference between the requested keywords and
// the matched ones, preserving request order and collapsing duplicates.
func missingKeywords(keywords, matched []string) []string {
	matchedSet := make(map[string]struct{}, len(matched))
	for _, kw := range matched {
		matchedSet[strings.ToLower(kw)] = struct{}{}
	}

	missing := []string{}
	for _, kw := range dedupeKeywords(keywords) {
		if _, ok := matchedSet[strings.ToLower(kw)]; !ok {
			missing = append(missing, kw)
		}
	}
	return missing
}

func dedupeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	var out []string
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		lower := strings.ToLower(kw)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		out = append(out, kw)
	}
	return out
}

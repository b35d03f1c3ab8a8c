package score

import (
	"fmt"
	"strings"
)

// Metric selects the unit an error rate is computed over.
type Metric string

const (
	MetricCER Metric = "cer"
	MetricWER Metric = "wer"
)

// ParseMetric parses a metric name, defaulting to CER for an empty string.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricCER:
		return MetricCER, nil
	case MetricWER:
		return MetricWER, nil
	}
	return "", fmt.Errorf("unknown metric %q (expected cer or wer)", s)
}

// Score returns the error rate of hyp against ref for this metric.
func (m Metric) Score(ref, hyp string) float64 {
	if m == MetricWER {
		return WER(ref, hyp)
	}
	return CER(ref, hyp)
}

// Normalize prepares text for this metric: CER compares the filtered
// character stream, WER keeps word boundaries.
func (m Metric) Normalize(text string) string {
	if m == MetricWER {
		return NormalizeWords(text)
	}
	return Normalize(text)
}

// Label is the column header used for the metric in result tables.
func (m Metric) Label() string {
	return strings.ToUpper(string(m))
}

// EditDistance is the Levenshtein distance between two sequences with unit
// costs for insertion, deletion and substitution.
func EditDistance[T comparable](ref, hyp []T) int {
	if len(ref) == 0 {
		return len(hyp)
	}
	if len(hyp) == 0 {
		return len(ref)
	}

	prev := make([]int, len(hyp)+1)
	curr := make([]int, len(hyp)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ref); i++ {
		curr[0] = i
		for j := 1; j <= len(hyp); j++ {
			if ref[i-1] == hyp[j-1] {
				curr[j] = prev[j-1]
				continue
			}
			curr[j] = 1 + min(prev[j], curr[j-1], prev[j-1])
		}
		prev, curr = curr, prev
	}
	return prev[len(hyp)]
}

// ErrorRate is EditDistance normalized by the reference length. An empty
// reference counts as length 1, so the result is the hypothesis length.
func ErrorRate[T comparable](ref, hyp []T) float64 {
	return float64(EditDistance(ref, hyp)) / float64(max(1, len(ref)))
}

// CER is the character error rate over runes.
func CER(ref, hyp string) float64 {
	return ErrorRate([]rune(ref), []rune(hyp))
}

// WER is the word error rate over whitespace-separated tokens.
func WER(ref, hyp string) float64 {
	return ErrorRate(strings.Fields(ref), strings.Fields(hyp))
}

package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"你好, World! 123", "你好World123"},
		{"猫坐在垫子上。", "猫坐在垫子上"},
		{"  \t\n", ""},
		{"", ""},
		{"ÀBC-é", "BC"},
		{"こんにちは", ""},
		{"ＡＢＣ１２３", "ABC123"},
		{"《测试》“引号”", "测试引号"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Normalize(tt.input), "input %q", tt.input)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{"你好, World! 123", "a b\tc", "ＸＹ-9"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalizeWords(t *testing.T) {
	assert.Equal(t, "hello world 42", NormalizeWords("hello, world! -- 42."))
	assert.Equal(t, "", NormalizeWords("... !!!"))
}

func TestEditDistance(t *testing.T) {
	tests := []struct {
		ref, hyp string
		want     int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"flaw", "lawn", 2},
		{"猫坐在垫子上", "猫坐垫子上", 1},
		{"猫坐在垫子上", "狗坐在地上", 3},
	}

	for _, tt := range tests {
		got := EditDistance([]rune(tt.ref), []rune(tt.hyp))
		assert.Equal(t, tt.want, got, "%q vs %q", tt.ref, tt.hyp)
	}
}

func TestCER(t *testing.T) {
	assert.Equal(t, 0.0, CER("猫坐在垫子上", "猫坐在垫子上"))
	assert.InDelta(t, 1.0/6, CER("猫坐在垫子上", "猫坐垫子上"), 1e-12)
	assert.InDelta(t, 2.0/6, CER("猫坐在垫子上", "猫坐垫上"), 1e-12)

	// insertions can push the rate above 1
	assert.InDelta(t, 2.0, CER("ab", "xyzw"), 1e-12)

	// empty reference divides by one
	assert.Equal(t, 0.0, CER("", ""))
	assert.Equal(t, 3.0, CER("", "abc"))
}

func TestWER(t *testing.T) {
	assert.Equal(t, 0.0, WER("the cat sat", "the  cat\tsat"))
	assert.InDelta(t, 1.0/3, WER("the cat sat", "the bat sat"), 1e-12)
	assert.InDelta(t, 2.0/3, WER("the cat sat", "the sat on"), 1e-12)
	assert.Equal(t, 1.0, WER("", "hello"))
}

func TestParseMetric(t *testing.T) {
	m, err := ParseMetric("")
	require.NoError(t, err)
	assert.Equal(t, MetricCER, m)

	m, err = ParseMetric(" WER ")
	require.NoError(t, err)
	assert.Equal(t, MetricWER, m)

	_, err = ParseMetric("bleu")
	assert.Error(t, err)
}

func TestMetricScore(t *testing.T) {
	ref := "hello, big world"
	hyp := "hello small world!"

	assert.InDelta(t, 1.0/3, MetricWER.Score(MetricWER.Normalize(ref), MetricWER.Normalize(hyp)), 1e-12)

	r, h := MetricCER.Normalize(ref), MetricCER.Normalize(hyp)
	assert.Equal(t, "hellobigworld", r)
	assert.InDelta(t, float64(EditDistance([]rune(r), []rune(h)))/13, MetricCER.Score(r, h), 1e-12)

	assert.Equal(t, "CER", MetricCER.Label())
	assert.Equal(t, "WER", MetricWER.Label())
}

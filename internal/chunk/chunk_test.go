package chunk

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyText(t *testing.T) {
	t.Parallel()

	assert.Nil(t, Split("", 100, 10))
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	t.Parallel()

	chunks := Split("testo breve", 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, "testo breve", chunks[0])
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	t.Parallel()

	first := strings.Repeat("a", 70)
	second := strings.Repeat("b", 60)
	text := first + "\n\n" + second

	chunks := Split(text, 100, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, first+"\n\n", chunks[0])
	assert.Equal(t, second, chunks[1])
}

func TestSplitFallsBackToSentenceBoundary(t *testing.T) {
	t.Parallel()

	first := strings.Repeat("a", 80) + "."
	text := first + " " + strings.Repeat("b", 60)

	chunks := Split(text, 100, 0)
	require.Len(t, chunks, 2)
	assert.Equal(t, first, chunks[0])
}

func TestSplitRejectsBoundaryBeforeMidpoint(t *testing.T) {
	t.Parallel()

	// The only paragraph break sits in the first third of the window, so the
	// cut must be hard at the window end.
	text := strings.Repeat("a", 20) + "\n\n" + strings.Repeat("b", 200)
	chunks := Split(text, 100, 0)
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Len(t, chunks[0], 100)
}

func TestSplitOverlapRepeatsTail(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x", 250)
	chunks := Split(text, 100, 20)
	require.GreaterOrEqual(t, len(chunks), 3)
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-20:]
		assert.True(t, strings.HasPrefix(chunks[i], tail))
	}
}

func TestSplitCoversEntireText(t *testing.T) {
	t.Parallel()

	text := "Primo periodo della legge. Secondo periodo con altre parole. " +
		strings.Repeat("Terzo periodo ripetuto piu volte. ", 20)
	chunks := Split(text, 120, 30)
	require.NotEmpty(t, chunks)
	assert.True(t, strings.HasPrefix(text, chunks[0]))
	assert.True(t, strings.HasSuffix(text, chunks[len(chunks)-1]))
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 120)
		assert.NotEmpty(t, c)
	}
}

func TestSplitStartsAreMonotonic(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("parola ", 500)
	chunks := Split(text, 100, 99)
	prev := -1
	offset := 0
	for _, c := range chunks {
		idx := strings.Index(text[offset:], c)
		require.GreaterOrEqual(t, idx, 0)
		start := offset + idx
		assert.Greater(t, start, prev)
		prev = start
		offset = start
	}
}

func TestSplitNeverSplitsMultibyteRunes(t *testing.T) {
	t.Parallel()

	// No boundaries anywhere, so every cut is hard; none may land inside a
	// two-byte rune.
	text := strings.Repeat("à", 200)
	chunks := Split(text, 25, 0)
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
	assert.Equal(t, text, strings.Join(chunks, ""))
}

func TestSplitOverlapRespectsRuneBoundaries(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("è", 120)
	chunks := Split(text, 30, 7)
	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
	}
}

func TestSplitInvalidOverlapIsIgnored(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("y", 250)
	chunks := Split(text, 100, 100)
	require.Len(t, chunks, 3)
	assert.Equal(t, text, strings.Join(chunks, ""))
}

package lyrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"karaoke-service/internal/models"
)

func lines(offsets ...float64) []models.LyricLine {
	out := make([]models.LyricLine, 0, len(offsets))
	for _, o := range offsets {
		out = append(out, models.LyricLine{TimeOffsetSeconds: o, Text: "line"})
	}
	return out
}

func TestIndexForBeforeFirstLine(t *testing.T) {
	assert.Equal(t, 0, IndexFor(lines(2, 4, 8), 0))
	assert.Equal(t, 0, IndexFor(lines(2, 4, 8), 1.99))
}

func TestIndexForBoundaries(t *testing.T) {
	song := lines(0, 4)

	assert.Equal(t, 0, IndexFor(song, 0))
	assert.Equal(t, 0, IndexFor(song, 3.9))
	assert.Equal(t, 1, IndexFor(song, 4))
	assert.Equal(t, 1, IndexFor(song, 5))
	assert.Equal(t, 1, IndexFor(song, 500))
}

func TestIndexForHoldsPropertyAcrossTimes(t *testing.T) {
	song := lines(0, 1.5, 3, 3, 7.25, 12)

	for step := 0; step <= 300; step++ {
		elapsed := float64(step) * 0.05
		k := IndexFor(song, elapsed)
		require.GreaterOrEqual(t, k, 0)
		require.Less(t, k, len(song))
		require.LessOrEqual(t, song[k].TimeOffsetSeconds, elapsed, "t=%v", elapsed)
		if k < len(song)-1 {
			require.Less(t, elapsed, song[k+1].TimeOffsetSeconds, "t=%v", elapsed)
		}
	}
}

func TestIndexForEmpty(t *testing.T) {
	assert.Equal(t, 0, IndexFor(nil, 3))
	assert.Equal(t, "", LineAt(nil, 3))
}

func TestLineAt(t *testing.T) {
	song := []models.LyricLine{{TimeOffsetSeconds: 0, Text: "a"}, {TimeOffsetSeconds: 4, Text: "b"}}
	assert.Equal(t, "a", LineAt(song, 1))
	assert.Equal(t, "b", LineAt(song, 5))
}

func TestSorted(t *testing.T) {
	assert.True(t, Sorted(lines(0, 1, 1, 2)))
	assert.False(t, Sorted(lines(0, 2, 1)))
}

// Package lyrics maps elapsed playback time onto a song's lyric lines.
package lyrics

import (
	"sort"

	"karaoke-service/internal/models"
)

// IndexFor returns the index of the line active at elapsedSeconds: the largest i with
// lines[i].TimeOffsetSeconds <= elapsedSeconds. Before the first line it returns 0.
// lines must be sorted ascending; an empty slice also yields 0.
func IndexFor(lines []models.LyricLine, elapsedSeconds float64) int {
	next := sort.Search(len(lines), func(i int) bool {
		return lines[i].TimeOffsetSeconds > elapsedSeconds
	})
	if next == 0 {
		return 0
	}
	return next - 1
}

// LineAt returns the text of the line active at elapsedSeconds, or "" for a song without lyrics.
func LineAt(lines []models.LyricLine, elapsedSeconds float64) string {
	if len(lines) == 0 {
		return ""
	}
	return lines[IndexFor(lines, elapsedSeconds)].Text
}

// Sorted reports whether lines are ordered by time offset.
func Sorted(lines []models.LyricLine) bool {
	return sort.SliceIsSorted(lines, func(i, j int) bool {
		return lines[i].TimeOffsetSeconds < lines[j].TimeOffsetSeconds
	})
}

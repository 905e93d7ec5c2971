package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"karaoke-service/internal/repositories"
)

// SongHandler serves the song catalog.
type SongHandler struct {
	songs repositories.SongRepository
}

// NewSongHandler builds a SongHandler.
func NewSongHandler(songs repositories.SongRepository) *SongHandler {
	return &SongHandler{songs: songs}
}

type songSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	LineCount int    `json:"line_count"`
}

// ListSongs returns the catalog without lyrics.
func (h *SongHandler) ListSongs(c *gin.Context) {
	songs, err := h.songs.ListSongs(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load songs"})
		return
	}

	out := make([]songSummary, 0, len(songs))
	for _, s := range songs {
		out = append(out, songSummary{ID: s.ID, Title: s.Title, Artist: s.Artist, LineCount: len(s.Lyrics)})
	}
	c.JSON(http.StatusOK, gin.H{"songs": out})
}

// GetSong returns one song with its lyrics.
func (h *SongHandler) GetSong(c *gin.Context) {
	song, err := h.songs.GetSong(c.Request.Context(), c.Param("song_id"))
	if errors.Is(err, repositories.ErrSongNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "song not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load song"})
		return
	}
	c.JSON(http.StatusOK, song)
}

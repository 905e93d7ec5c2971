package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"log"
	"strings"

	"gopkg.in/yaml.v3"

	"karaoke-service/internal/lyrics"
	"karaoke-service/internal/models"
)

//go:embed songs.yaml
var embeddedSongs []byte

type catalogFile struct {
	Songs []models.Song `yaml:"songs"`
}

// Seeder is the part of the song repository the catalog writes to.
type Seeder interface {
	UpsertSong(ctx context.Context, song models.Song) error
}

// LoadEmbedded parses the catalog compiled into the binary.
func LoadEmbedded() ([]models.Song, error) {
	return Parse(embeddedSongs)
}

// Parse decodes and validates a YAML song catalog.
func Parse(data []byte) ([]models.Song, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(file.Songs) == 0 {
		return nil, fmt.Errorf("catalog has no songs")
	}

	seen := make(map[string]bool, len(file.Songs))
	for i := range file.Songs {
		song := &file.Songs[i]
		song.ID = strings.TrimSpace(song.ID)
		if song.ID == "" {
			return nil, fmt.Errorf("song %d: id is required", i)
		}
		if seen[song.ID] {
			return nil, fmt.Errorf("song %s: duplicate id", song.ID)
		}
		seen[song.ID] = true
		if strings.TrimSpace(song.Title) == "" {
			return nil, fmt.Errorf("song %s: title is required", song.ID)
		}
		if len(song.Lyrics) == 0 {
			return nil, fmt.Errorf("song %s: lyrics are required", song.ID)
		}
		if !lyrics.Sorted(song.Lyrics) {
			return nil, fmt.Errorf("song %s: lyrics must be sorted by time", song.ID)
		}
	}
	return file.Songs, nil
}

// Seed upserts every song into the store.
func Seed(ctx context.Context, repo Seeder, songs []models.Song) error {
	for _, song := range songs {
		if err := repo.UpsertSong(ctx, song); err != nil {
			return fmt.Errorf("seed song %s: %w", song.ID, err)
		}
	}
	log.Printf("catalog seeded songs=%d", len(songs))
	return nil
}

package models

// LyricLine is one timestamped line of a song.
type LyricLine struct {
	TimeOffsetSeconds float64 `db:"time_offset_seconds" json:"time" yaml:"time"`
	Text              string  `db:"text" json:"text" yaml:"text"`
}

// Song is static catalog data. Lyrics are sorted by TimeOffsetSeconds.
type Song struct {
	ID     string      `db:"id" json:"id" yaml:"id"`
	Title  string      `db:"title" json:"title" yaml:"title"`
	Artist string      `db:"artist" json:"artist" yaml:"artist"`
	Lyrics []LyricLine `db:"-" json:"lyrics" yaml:"lyrics"`
}

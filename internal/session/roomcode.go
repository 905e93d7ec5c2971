package session

import (
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	roomCodeAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	roomCodeLength   = 6
)

// NewRoomCode draws a random 6 character base-36 code. Codes are not checked for uniqueness.
func NewRoomCode() (string, error) {
	return gonanoid.Generate(roomCodeAlphabet, roomCodeLength)
}

// NormalizeRoomCode makes lookups case-insensitive.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

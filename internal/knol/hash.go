// Package knol computes stable content hashes for deck entries, so imported
// questions keep their scheduling history across re-imports and rewording of
// whitespace or case.
package knol

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/recallforge/recallforge/internal/domain"
)

// Normalize concatenates the entry's content after cleaning each part.
// It trims whitespace, lowercases, and normalizes line endings for each field
// before joining them. Options keep their order: reordering options is a
// content change.
func Normalize(entry domain.DeckEntry) string {
	normalizePart := func(part string) string {
		p := strings.ToLower(part)
		p = strings.TrimSpace(p)
		p = strings.ReplaceAll(p, "\r\n", "\n")
		return p
	}

	parts := make([]string, 0, len(entry.Options)+3)
	parts = append(parts, normalizePart(entry.Text))
	for _, opt := range entry.Options {
		parts = append(parts, normalizePart(opt))
	}
	parts = append(parts, normalizePart(entry.Answer), normalizePart(entry.Context))

	// Joined with newlines so adjacent fields cannot run together and
	// collide, e.g. "question" + "answer" vs "questionanswer".
	return strings.Join(parts, "\n")
}

// Hash normalizes the entry and returns its SHA-256 hash as a hex string.
// The explanation is deliberately excluded: editing an explanation should
// not reset the question's scheduling state.
func Hash(entry domain.DeckEntry) string {
	normalized := Normalize(entry)
	hashBytes := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hashBytes)
}

// Package dedup holds the pure parts of article deduplication: content
// fingerprints for exact matches and a sequence ratio for near-identical titles.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// DefaultBodySample is how many leading body characters feed the fingerprint.
const DefaultBodySample = 500

// Fingerprinter derives content fingerprints from title and body text.
type Fingerprinter struct {
	bodySample int
}

// NewFingerprinter builds a fingerprinter; non-positive sample falls back to the default.
func NewFingerprinter(bodySample int) Fingerprinter {
	if bodySample <= 0 {
		bodySample = DefaultBodySample
	}
	return Fingerprinter{bodySample: bodySample}
}

// Fingerprint returns a 64-char hex SHA-256 over the normalized title and body sample.
func (f Fingerprinter) Fingerprint(title, body string) string {
	sample := f.bodySample
	if sample <= 0 {
		sample = DefaultBodySample
	}

	normalizedBody := NormalizeText(body)
	if runes := []rune(normalizedBody); len(runes) > sample {
		normalizedBody = string(runes[:sample])
	}

	sum := sha256.Sum256([]byte(NormalizeText(title) + "|" + normalizedBody))
	return hex.EncodeToString(sum[:])
}

// NormalizeText lowercases and trims surrounding whitespace.
func NormalizeText(s string) string {
	return strings.TrimSpace(strings.ToLower(s))
}

// Package checksum fingerprints notes so that unchanged fixtures are skipped on reload.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/starford/notehub/internal/models"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Note returns the digest of the stored fields of n. UpdatedAt is not part of it.
func Note(n models.Note) string {
	return Sum([]byte(strings.Join([]string{
		n.ID,
		n.Title,
		n.Content,
		n.Tag,
		n.CreatedAt.UTC().Format(time.RFC3339Nano),
	}, "\x00")))
}

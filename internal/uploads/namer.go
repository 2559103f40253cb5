package uploads

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"configmarket-backend/internal/shared/util"
)

// StorageName derives a collision-resistant storage name from the upload time,
// a block of random bytes and a sanitized rendering of the original filename:
// <unix-ms>-<hex>-<name>. The original name survives only for human
// readability; uniqueness comes from the timestamp and the random block.
func StorageName(now time.Time, original string) (string, error) {
	sanitized, err := util.SanitizeFileName(original)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}
	sanitized = replaceUnsafe(sanitized)

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}

	return fmt.Sprintf("%d-%s-%s", now.UnixMilli(), hex.EncodeToString(b[:]), sanitized), nil
}

// replaceUnsafe substitutes every rune outside [a-zA-Z0-9.-] with '-'.
func replaceUnsafe(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			out[i] = '-'
		}
	}
	return string(out)
}

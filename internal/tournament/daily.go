package tournament

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// DailySeed derives the shared seed token for a date using
// HMAC(salt, YYYY-MM-DD). Everyone who plays the daily tournament gets the
// same token, so the whole day's session replays identically for all
// players. The token is uppercase hex, which fits the seed grammar.
func DailySeed(date time.Time, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(DateKey(date)))
	sum := h.Sum(nil)
	return strings.ToUpper(hex.EncodeToString(sum[:4]))
}

package session

import (
	"crypto/rand"
	"encoding/base64"
)

// trackingTokenVersion prefixes every issued token so the format can evolve
// without guessing which generation a stored token belongs to.
const trackingTokenVersion = "dt1_"

// NewTrackingToken returns a fresh receiver tracking token. This is the single
// constructor for tokens; nothing else in the codebase mints them.
func NewTrackingToken() string {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the platform is broken; do not hand out
		// a guessable token in that state.
		panic("session: crypto/rand unavailable: " + err.Error())
	}
	return trackingTokenVersion + base64.RawURLEncoding.EncodeToString(buf)
}

// ValidTrackingToken reports whether s looks like a token minted by NewTrackingToken.
func ValidTrackingToken(s string) bool {
	if len(s) <= len(trackingTokenVersion) {
		return false
	}
	if s[:len(trackingTokenVersion)] != trackingTokenVersion {
		return false
	}
	_, err := base64.RawURLEncoding.DecodeString(s[len(trackingTokenVersion):])
	return err == nil
}

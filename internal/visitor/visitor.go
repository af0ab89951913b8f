package visitor

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName is the client-side cookie carrying the visitor id.
	CookieName = "ra_visitor_id"

	// CookieMaxAge keeps returning visitors stable for about a year.
	CookieMaxAge = 365 * 24 * 60 * 60

	// sessionWindow is the wall-clock bucket a session id is stable within.
	sessionWindow = 30 * time.Minute
)

// Fingerprint carries the request attributes a new visitor id is derived
// from. Individual fields may be empty.
type Fingerprint struct {
	UserAgent      string
	AcceptLanguage string
	AcceptEncoding string
	IPAddress      string
}

// VisitorID returns the durable pseudo-anonymous visitor identifier. A
// non-empty existing cookie value is reused untouched; otherwise a fresh id
// is derived from the fingerprint plus a random salt so that two visitors
// with identical headers never collide. The second return reports whether
// the id is newly minted and must be set as a cookie by the caller.
func VisitorID(existingCookie string, fp Fingerprint) (string, bool) {
	if existingCookie != "" {
		return existingCookie, false
	}

	components := make([]string, 0, 4)
	for _, c := range []string{fp.UserAgent, fp.AcceptLanguage, fp.AcceptEncoding, fp.IPAddress} {
		if c != "" {
			components = append(components, c)
		}
	}

	salt := uuid.NewString()
	digest := sha256.Sum256([]byte(strings.Join(components, "|") + salt))

	return hex.EncodeToString(digest[:]), true
}

// SessionID derives the rolling session identifier for a visitor. It is a
// pure function of (visitor id, 30-minute time bucket): stable within a
// bucket, rotating at the boundary. Nothing is persisted.
func SessionID(visitorID string, now time.Time) string {
	bucket := now.Unix() / int64(sessionWindow.Seconds())
	digest := sha256.Sum256([]byte(visitorID + "|" + strconv.FormatInt(bucket, 10)))

	return hex.EncodeToString(digest[:])
}

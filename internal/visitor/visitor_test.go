package visitor

import (
	"testing"
	"time"
)

func testFingerprint() Fingerprint {
	return Fingerprint{
		UserAgent:      "Mozilla/5.0 (X11; Linux x86_64) Firefox/119.0",
		AcceptLanguage: "en-US,en;q=0.9",
		AcceptEncoding: "gzip, deflate, br",
		IPAddress:      "203.0.113.10",
	}
}

func TestVisitorIDReusesCookie(t *testing.T) {
	id, isNew := VisitorID("existing-visitor-id", testFingerprint())

	if isNew {
		t.Error("expected returning visitor")
	}
	if id != "existing-visitor-id" {
		t.Errorf("expected cookie value reused, got %q", id)
	}
}

func TestVisitorIDGeneratesHexDigest(t *testing.T) {
	id, isNew := VisitorID("", testFingerprint())

	if !isNew {
		t.Error("expected new visitor")
	}
	if len(id) != 64 {
		t.Fatalf("expected 64 hex chars, got %d (%q)", len(id), id)
	}
	for _, c := range id {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("non-hex character %q in visitor id", c)
		}
	}
}

func TestVisitorIDSaltPreventsCollisions(t *testing.T) {
	fp := testFingerprint()

	a, _ := VisitorID("", fp)
	b, _ := VisitorID("", fp)

	if a == b {
		t.Error("two visitors with identical fingerprints must get distinct ids")
	}
}

func TestVisitorIDEmptyFingerprint(t *testing.T) {
	id, isNew := VisitorID("", Fingerprint{})

	if !isNew || len(id) != 64 {
		t.Fatalf("expected fresh 64-char id even with empty fingerprint, got %q", id)
	}
}

func TestSessionIDStableWithinWindow(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t1 := base
	t2 := base.Add(29 * time.Minute)

	if SessionID("visitor-a", t1) != SessionID("visitor-a", t2) {
		t.Error("session id must be stable within a 30-minute bucket")
	}
}

func TestSessionIDRotatesAcrossWindows(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t1 := base
	t2 := base.Add(31 * time.Minute)

	if SessionID("visitor-a", t1) == SessionID("visitor-a", t2) {
		t.Error("session id must rotate when the bucket boundary is crossed")
	}
}

func TestSessionIDDiffersPerVisitor(t *testing.T) {
	now := time.Now()

	if SessionID("visitor-a", now) == SessionID("visitor-b", now) {
		t.Error("different visitors must get different session ids")
	}
}

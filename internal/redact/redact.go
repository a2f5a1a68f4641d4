// Package redact turns raw matches into samples that are safe to print,
// log or persist.
package redact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode/utf8"
)

// Masked is returned for values too short to partially reveal.
const Masked = "***REDACTED***"

// Policy controls how much of a match survives redaction.
type Policy struct {
	Prefix int
	Suffix int
	// MaxInput truncates the raw value before redaction.
	MaxInput int
}

// Default keeps four characters on each side.
var Default = Policy{Prefix: 4, Suffix: 4, MaxInput: 160}

// Sample redacts v. Values no longer than Prefix+Suffix+2 runes are fully
// masked so the hidden middle is never shorter than two characters.
func (p Policy) Sample(v string) string {
	v = strings.TrimSpace(v)
	if p.MaxInput > 0 && len(v) > p.MaxInput {
		v = truncateRunes(v, p.MaxInput)
	}
	runes := []rune(v)
	if len(runes) == 0 || len(runes) <= p.Prefix+p.Suffix+2 {
		return Masked
	}
	return string(runes[:p.Prefix]) + "…" + string(runes[len(runes)-p.Suffix:])
}

// Sample redacts v with the default policy.
func Sample(v string) string { return Default.Sample(v) }

func truncateRunes(s string, n int) string {
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// StableHash is a short hex digest of the newline-joined parts. It is used
// for baselines and dedupe and must stay stable across releases.
func StableHash(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\n")))
	return hex.EncodeToString(sum[:])[:24]
}

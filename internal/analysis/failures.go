// Package analysis condenses the failed items of a job into a short digest of
// distinct failure reasons.
package analysis

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/kiranshivaraju/alumnitrack/pkg/models"
)

const maxSampleURLs = 5

// Normalization regexes compiled once at package init.
var (
	reURL        = regexp.MustCompile(`https?://\S+`)
	reHexAddr    = regexp.MustCompile(`0x[0-9a-fA-F]+`)
	reUUID       = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reDuration   = regexp.MustCompile(`\b\d+(\.\d+)?(ns|us|µs|ms|s|m|h)\b`)
	reBracketNum = regexp.MustCompile(`\[\d+\]`)
	reParenNum   = regexp.MustCompile(`\(\d+\)`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// Failure reasons, ordered by how actionable they are.
const (
	ReasonBlocked     = "blocked"
	ReasonTimeout     = "timeout"
	ReasonUnreachable = "unreachable"
	ReasonParse       = "unparseable"
	ReasonPanic       = "panic"
	ReasonOther       = "other"
)

// GroupFailures groups failed queue items by the fingerprint of their error
// message. Items that are not failed are ignored. Groups are sorted by
// (Count DESC, reason rank DESC). Returns an empty slice, never nil.
func GroupFailures(items []*models.QueueItem) []models.FailureGroup {
	groups := make(map[string]*models.FailureGroup)

	for _, it := range items {
		if it.Status != models.StatusFailed {
			continue
		}
		msg := ""
		if it.ErrorMessage != nil {
			msg = *it.ErrorMessage
		}
		fp := Fingerprint(msg)

		g, exists := groups[fp]
		if !exists {
			g = &models.FailureGroup{
				Fingerprint:   fp,
				Reason:        Reason(msg),
				SampleMessage: truncateString(msg, 2000),
				SampleURLs:    []string{},
			}
			groups[fp] = g
		}

		g.Count++
		if len(g.SampleURLs) < maxSampleURLs {
			g.SampleURLs = append(g.SampleURLs, it.LinkedInURL)
		}
		if it.CompletedAt != nil {
			at := it.CompletedAt.UTC()
			if g.FirstFailedAt == nil || at.Before(*g.FirstFailedAt) {
				g.FirstFailedAt = &at
			}
			if g.LastFailedAt == nil || at.After(*g.LastFailedAt) {
				g.LastFailedAt = &at
			}
		}
	}

	out := make([]models.FailureGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if ri, rj := ReasonRank(out[i].Reason), ReasonRank(out[j].Reason); ri != rj {
			return ri > rj
		}
		return out[i].Fingerprint < out[j].Fingerprint
	})

	return out
}

// Fingerprint computes a stable SHA-256 fingerprint for an error message.
func Fingerprint(message string) string {
	normalized := NormalizeMessage(message)
	hash := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", hash)
}

// NormalizeMessage strips the per-item parts of an error message so failures
// with the same cause compare equal.
func NormalizeMessage(msg string) string {
	msg = reURL.ReplaceAllString(msg, "URL")
	msg = reUUID.ReplaceAllString(msg, "UUID")
	msg = reHexAddr.ReplaceAllString(msg, "0xADDR")
	msg = reDuration.ReplaceAllString(msg, "DUR")
	msg = reBracketNum.ReplaceAllString(msg, "[N]")
	msg = reParenNum.ReplaceAllString(msg, "(N)")
	msg = reWhitespace.ReplaceAllString(msg, " ")
	msg = strings.ToLower(msg)
	msg = strings.TrimSpace(msg)
	msg = truncateString(msg, 500)
	return msg
}

// Reason classifies a stored error message by the scrape error it came from.
func Reason(msg string) string {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "panic"):
		return ReasonPanic
	case strings.Contains(m, "blocked"):
		return ReasonBlocked
	case strings.Contains(m, "timeout"):
		return ReasonTimeout
	case strings.Contains(m, "unreachable"):
		return ReasonUnreachable
	case strings.Contains(m, "unparseable"):
		return ReasonParse
	default:
		return ReasonOther
	}
}

// ReasonRank maps a reason to a numeric rank used to break count ties.
func ReasonRank(reason string) int {
	switch reason {
	case ReasonBlocked:
		return 5
	case ReasonPanic:
		return 4
	case ReasonTimeout:
		return 3
	case ReasonUnreachable:
		return 2
	case ReasonParse:
		return 1
	default:
		return 0
	}
}

// truncateString truncates s to maxBytes without splitting UTF-8 runes.
func truncateString(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}

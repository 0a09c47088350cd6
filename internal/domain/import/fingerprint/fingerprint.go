// Package fingerprint derives the deduplication identifier (UID) of a
// transaction. SPEI transfers with a bank-issued tracking key use it
// directly; everything else gets a composite key over several weakly unique
// fields. Collisions between distinct movements are possible and are
// treated as duplicates downstream.
package fingerprint

import (
	"sort"
	"strings"
	"unicode"

	"github.com/FACorreiaa/bajio-reconciler/internal/domain/import/model"
)

const (
	PrefixSPEI = "SPEI"
	PrefixTXN  = "TXN"

	minTrackingKeyLen = 6
	descPrefixLen     = 20
)

// UID returns the fingerprint of t. It is a pure function of the type,
// tracking key, date, time, receipt, amounts and description.
func UID(t model.Transaction) string {
	if t.Type.IsSPEI() && len(t.TrackingKey) >= minTrackingKeyLen {
		return PrefixSPEI + ":" + t.TrackingKey
	}

	var b strings.Builder
	b.WriteString(PrefixTXN)
	b.WriteByte(':')
	b.WriteString(t.Date.String())
	b.WriteByte('|')
	b.WriteString(t.Time)
	b.WriteByte('|')
	b.WriteString(t.ReceiptRef)
	b.WriteByte('|')
	b.WriteString(t.Debit.StringFixed(2))
	b.WriteByte('|')
	b.WriteString(t.Credit.StringFixed(2))
	b.WriteByte('|')
	b.WriteString(descPrefix(t.Description))
	return b.String()
}

// Assign sets the UID of every transaction in place.
func Assign(txs []model.Transaction) {
	for i := range txs {
		txs[i].UID = UID(txs[i])
	}
}

// descPrefix is the first 20 runes of s with all whitespace removed.
func descPrefix(s string) string {
	var b strings.Builder
	n := 0
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		if n == descPrefixLen {
			break
		}
		b.WriteRune(r)
		n++
	}
	return b.String()
}

// Report summarizes the UIDs of a batch.
type Report struct {
	Total      int
	Unique     int
	Duplicates int
	ByPrefix   map[string]int
	Sample     []string
}

// BuildReport counts UIDs, in-batch repeats and prefixes. Empty UIDs are
// ignored. Sample holds up to ten unique UIDs in first-seen order.
func BuildReport(txs []model.Transaction) Report {
	r := Report{ByPrefix: make(map[string]int)}
	seen := make(map[string]struct{}, len(txs))
	for _, t := range txs {
		if t.UID == "" {
			continue
		}
		r.Total++
		prefix, _, _ := strings.Cut(t.UID, ":")
		r.ByPrefix[prefix]++
		if _, ok := seen[t.UID]; ok {
			continue
		}
		seen[t.UID] = struct{}{}
		if len(r.Sample) < 10 {
			r.Sample = append(r.Sample, t.UID)
		}
	}
	r.Unique = len(seen)
	r.Duplicates = r.Total - r.Unique
	return r
}

// Prefixes returns the report prefixes in sorted order.
func (r Report) Prefixes() []string {
	out := make([]string, 0, len(r.ByPrefix))
	for p := range r.ByPrefix {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

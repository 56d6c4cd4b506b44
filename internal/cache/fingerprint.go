package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/resviz/ensembleprov/internal/models"
)

// Fingerprint derives the canonical cache key for a derived artifact. It is
// computed only from primitive, canonical representations: sorted resolved
// source paths, the sorted column set after wildcard expansion, the sampling
// frequency and any filter parameters. Object identity and container
// iteration order never leak into the key, so equal inputs always produce
// equal fingerprints.
func Fingerprint(paths, columns []string, freq models.Frequency, filters []string) string {
	parts := []string{
		joinSorted(paths),
		joinSorted(columns),
		string(freq),
		joinSorted(filters),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1e")))
	return hex.EncodeToString(sum[:])
}

// StatisticsFingerprint keys a statistics artifact under its source table's
// fingerprint plus the vector and realization subset.
func StatisticsFingerprint(tableFingerprint, vector string, realizations []int) string {
	var b strings.Builder
	b.WriteString(tableFingerprint)
	b.WriteByte('\x1e')
	b.WriteString(vector)
	b.WriteByte('\x1e')
	sorted := append([]int(nil), realizations...)
	sort.Ints(sorted)
	for _, r := range sorted {
		b.WriteString(strconv.Itoa(r))
		b.WriteByte('\x1f')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func joinSorted(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, "\x1f")
}

// Package change detects whether the catalog's vehicle hierarchy changed
// between runs.
//
// The fingerprint is a SHA3-256 digest over the canonical form of the
// make→year→model→application graph: every (make, year, model, application
// id) tuple, deduplicated and sorted, one JSON array per line. Discovery
// order does not affect the digest; adding or removing any application id
// does.
package change

import (
	"cmp"
	"encoding/hex"
	"encoding/json"
	"slices"

	"golang.org/x/crypto/sha3"

	"github.com/zachatkinson/carpart-scraper-sub000/internal/model"
)

type tuple struct {
	make  string
	year  int
	model string
	appID int
}

func compareTuples(a, b tuple) int {
	if c := cmp.Compare(a.make, b.make); c != 0 {
		return c
	}
	if c := cmp.Compare(a.year, b.year); c != 0 {
		return c
	}
	if c := cmp.Compare(a.model, b.model); c != 0 {
		return c
	}
	return cmp.Compare(a.appID, b.appID)
}

// Canonical returns the canonical serialization of the hierarchy graph.
func Canonical(h model.Hierarchy) []byte {
	var tuples []tuple
	for _, mk := range h.Makes {
		for _, yr := range mk.Years {
			for _, md := range yr.Models {
				tuples = append(tuples, tuple{make: mk.Name, year: yr.Year, model: md.Model, appID: md.ApplicationID})
			}
		}
	}
	slices.SortFunc(tuples, compareTuples)
	tuples = slices.Compact(tuples)

	var buf []byte
	for _, t := range tuples {
		// Marshalling a fixed-shape array of strings and ints cannot fail.
		line, _ := json.Marshal([]any{t.make, t.year, t.model, t.appID})
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	return buf
}

// Fingerprint returns the hex SHA3-256 digest of the canonical hierarchy.
func Fingerprint(h model.Hierarchy) string {
	sum := sha3.Sum256(Canonical(h))
	return hex.EncodeToString(sum[:])
}

// HasChanged reports whether current differs from previous. An empty
// previous fingerprint means no earlier run to compare against, which
// counts as changed.
func HasChanged(previous, current string) bool {
	if previous == "" {
		return true
	}
	return previous != current
}

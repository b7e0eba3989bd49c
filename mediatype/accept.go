// Package mediatype parses Accept headers into preference lists and compiles the MIME
// patterns that providers are registered under.
package mediatype

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Wildcard is the catch-all media range.
const Wildcard = "*/*"

// Entry is one media range of an Accept header together with its quality value.
type Entry struct {
	Type    string
	Subtype string
	Q       float64
}

// String formats the entry as "type/subtype", without parameters.
func (e Entry) String() string {
	return e.Type + "/" + e.Subtype
}

// Specificity ranks the entry: 2 for exact/exact, 1 for type/*, 0 for */*.
func (e Entry) Specificity() int {
	switch {
	case e.Type == "*":
		return 0
	case e.Subtype == "*":
		return 1
	default:
		return 2
	}
}

var (
	rangeExp = regexp.MustCompile(`^(?:(\*)/(\*)|([a-z0-9-]+)/([a-z0-9+_.-]+|\*))$`)
	qExp     = regexp.MustCompile(`^q=(0(?:\.\d{0,3})?|1(?:\.0{0,3})?)$`)
)

// wildcardEntry is what malformed segments degrade to.
var wildcardEntry = Entry{Type: "*", Subtype: "*", Q: 1.0}

// ParseAccept turns a raw Accept header value into entries, in header order. An empty
// header is read as "*/*". Segments that do not parse degrade individually to "*/*"
// with q=1.0 rather than failing the whole header.
func ParseAccept(header string) []Entry {
	if strings.TrimSpace(header) == "" {
		header = Wildcard
	}

	segments := strings.Split(header, ",")
	entries := make([]Entry, 0, len(segments))
	for _, seg := range segments {
		entries = append(entries, parseSegment(seg))
	}

	return entries
}

func parseSegment(seg string) Entry {
	params := strings.Split(strings.ToLower(strings.TrimSpace(seg)), ";")

	m := rangeExp.FindStringSubmatch(strings.TrimSpace(params[0]))
	if m == nil {
		return wildcardEntry
	}

	e := Entry{Type: m[1] + m[3], Subtype: m[2] + m[4], Q: 1.0}
	for _, p := range params[1:] {
		p = strings.ReplaceAll(strings.TrimSpace(p), " ", "")
		if !strings.HasPrefix(p, "q=") {
			continue
		}

		qm := qExp.FindStringSubmatch(p)
		if qm == nil {
			return wildcardEntry
		}

		q, err := strconv.ParseFloat(qm[1], 64)
		if err != nil {
			return wildcardEntry
		}

		e.Q = q
	}

	return e
}

// Sort orders entries in place, most preferred first: descending quality value, then
// descending specificity (exact/exact before type/* before */*). Entries that tie on both
// keep their header order.
func Sort(entries []Entry) {
	slices.SortStableFunc(entries, func(a, b Entry) int {
		if a.Q != b.Q {
			if a.Q > b.Q {
				return -1
			}
			return 1
		}

		return b.Specificity() - a.Specificity()
	})
}

// Preferences parses and sorts the header in one go.
func Preferences(header string) []Entry {
	entries := ParseAccept(header)
	Sort(entries)

	return entries
}

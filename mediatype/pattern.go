package mediatype

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// segmentExp is the character class a wildcard segment expands to.
const segmentExp = `(?:[a-z0-9+_.-]+|\*)`

var templateExp = regexp.MustCompile(`^(?:\*|[a-z0-9-]+)/(?:\*|[a-z0-9+_.-]+)$`)

// Pattern is a compiled MIME template such as "application/json", "text/*" or "*/*".
type Pattern struct {
	template string
	exp      *regexp.Regexp
}

// Compile compiles a "type/subtype" template into an anchored matcher. Either segment may
// be the literal wildcard "*", which then matches one or more of [a-z0-9+_.-] or a literal
// "*" in the candidate.
func Compile(template string) (*Pattern, error) {
	template = strings.ToLower(strings.TrimSpace(template))
	if !templateExp.MatchString(template) {
		return nil, errors.Newf("invalid mime pattern %q", template)
	}

	typ, sub, _ := strings.Cut(template, "/")

	exp, err := regexp.Compile("^" + segment(typ) + "/" + segment(sub) + "$")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile mime pattern %q", template)
	}

	return &Pattern{template: template, exp: exp}, nil
}

// MustCompile is like Compile but panics if the template is invalid.
func MustCompile(template string) *Pattern {
	p, err := Compile(template)
	if err != nil {
		panic("mediatype: " + err.Error())
	}

	return p
}

func segment(s string) string {
	if s == "*" {
		return segmentExp
	}

	return regexp.QuoteMeta(s)
}

// Match reports whether the concrete (or wildcard) media type matches the pattern.
func (p *Pattern) Match(mime string) bool {
	return p.exp.MatchString(strings.ToLower(mime))
}

// MatchAny returns the first candidate the pattern matches.
func (p *Pattern) MatchAny(candidates ...string) (string, bool) {
	for _, c := range candidates {
		if p.Match(c) {
			return c, true
		}
	}

	return "", false
}

// String returns the template the pattern was compiled from.
func (p *Pattern) String() string {
	return p.template
}

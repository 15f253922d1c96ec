// Package canon normalizes raw instruction and delegation text into
// comparable prefix strings.
//
// Canonicalize is the single definition of what "the same instruction"
// means: a parent's declared delegation fragment and a child's own
// instruction text must both pass through it, unmodified, before they
// are compared. Canonicalizing one side differently (or canonicalizing
// a re-derived substring instead of the full fragment) collapses match
// recall to near zero.
package canon

import (
	"html"
	"regexp"
	"strings"
)

// DefaultPrefixLen is the canonical prefix length K used for index keys
// and lookups when the caller does not override it.
const DefaultPrefixLen = 192

// delegationTags are the wrapper tags by which a parent transcript
// declares a child task. Tag content is a delegation fragment, not part
// of the parent's own narrative.
var delegationTags = []string{"new_task", "new-task", "task", "message"}

var delegationREs = compileDelegationREs()

func compileDelegationREs() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(delegationTags))
	for _, tag := range delegationTags {
		res = append(res, regexp.MustCompile(`(?is)<`+tag+`\b[^>]*>(.*?)</\s*`+tag+`\s*>`))
	}
	return res
}

var (
	anyTagRE     = regexp.MustCompile(`<[^<>]*>`)
	escapeRepl   = strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\"`, `"`, `\\`, `\`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// Canonicalize normalizes raw text into a canonical prefix of at most k
// characters. It is deterministic and total: any input yields a string,
// never an error. Pass k <= 0 to use DefaultPrefixLen.
//
// Delegation-tag content is pulled out of the narrative and re-appended
// at the end, so a parent's own words and its declared children's
// fragments do not interleave.
func Canonicalize(raw string, k int) string {
	if k <= 0 {
		k = DefaultPrefixLen
	}

	s := strings.TrimPrefix(raw, "\uFEFF")
	s = escapeRepl.Replace(s)
	s = html.UnescapeString(s)

	s, fragments := splitDelegations(s)
	s = anyTagRE.ReplaceAllString(s, " ")
	if len(fragments) > 0 {
		s = s + " " + strings.Join(fragments, " ")
	}

	s = strings.ToLower(s)
	s = whitespaceRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return truncate(s, k)
}

// ExtractDelegations returns the delegation fragments declared in raw
// text, in declaration order. Fragments are returned raw: callers that
// need a comparable form must Canonicalize each full fragment.
func ExtractDelegations(raw string) []string {
	s := strings.TrimPrefix(raw, "\uFEFF")
	s = escapeRepl.Replace(s)
	s = html.UnescapeString(s)
	_, fragments := splitDelegations(s)
	return fragments
}

// splitDelegations removes delegation-tag spans from s, replacing each
// with a single space, and returns the remaining narrative plus the
// extracted fragment contents in order of appearance.
func splitDelegations(s string) (string, []string) {
	type span struct {
		start, end int
		content    string
	}
	var spans []span
	for _, re := range delegationREs {
		for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
			spans = append(spans, span{start: m[0], end: m[1], content: s[m[2]:m[3]]})
		}
	}
	if len(spans) == 0 {
		return s, nil
	}

	// Order by position so multiple tag kinds interleave correctly.
	for i := 1; i < len(spans); i++ {
		for j := i; j > 0 && spans[j].start < spans[j-1].start; j-- {
			spans[j], spans[j-1] = spans[j-1], spans[j]
		}
	}

	var b strings.Builder
	fragments := make([]string, 0, len(spans))
	prev := 0
	for _, sp := range spans {
		if sp.start < prev {
			continue // nested inside a previously consumed span
		}
		b.WriteString(s[prev:sp.start])
		b.WriteString(" ")
		frag := strings.TrimSpace(anyTagRE.ReplaceAllString(sp.content, " "))
		if frag != "" {
			fragments = append(fragments, frag)
		}
		prev = sp.end
	}
	b.WriteString(s[prev:])
	return b.String(), fragments
}

// truncate bounds s to at most k characters, trimming only trailing
// whitespace introduced by the cut. The result length is <= k.
func truncate(s string, k int) string {
	runes := []rune(s)
	if len(runes) <= k {
		return s
	}
	return strings.TrimRight(string(runes[:k]), " \t\n")
}

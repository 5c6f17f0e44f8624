package filter

import (
	"regexp"
	"strings"
)

// pathMatcher matches a changed path against a configured glob. A pattern
// whose translation fails to compile degrades to substring containment.
type pathMatcher struct {
	pattern   string
	re        *regexp.Regexp
	substring bool
}

func newPathMatcher(pattern string) pathMatcher {
	re, err := regexp.Compile(globRegexp(pattern))
	if err != nil {
		return pathMatcher{pattern: pattern, substring: true}
	}
	return pathMatcher{pattern: pattern, re: re}
}

func (m pathMatcher) matches(path string) bool {
	if m.substring {
		return strings.Contains(path, m.pattern)
	}
	return m.re.MatchString(path)
}

// globRegexp translates a path glob to an anchored regexp. `**` matches
// any sequence of path segments including none, `*` matches a run of
// non-slash characters, everything else is literal.
func globRegexp(pattern string) string {
	segments := strings.Split(pattern, "/")
	var b strings.Builder
	b.WriteString("^")
	needSep := false
	for i, segment := range segments {
		if segment == "**" {
			if i == 0 {
				if len(segments) == 1 {
					b.WriteString(".*")
				} else {
					// Leading `**/` consumes its own trailing slash.
					b.WriteString("(?:.*/)?")
				}
				continue
			}
			// The separator folds into the optional group so `a/**/b`
			// still matches `a/b`.
			b.WriteString("(?:/.*)?")
			continue
		}
		if needSep {
			b.WriteString("/")
		}
		b.WriteString(segmentRegexp(segment))
		needSep = true
	}
	b.WriteString("$")
	return b.String()
}

// segmentRegexp escapes one glob segment, turning `*` into a non-slash
// wildcard.
func segmentRegexp(segment string) string {
	parts := strings.Split(segment, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	return strings.Join(parts, "[^/]*")
}

// branchMatcher matches a branch name against a configured regex. An
// invalid regex degrades to exact string comparison.
type branchMatcher struct {
	pattern string
	re      *regexp.Regexp
}

func newBranchMatcher(pattern string) branchMatcher {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return branchMatcher{pattern: pattern}
	}
	return branchMatcher{pattern: pattern, re: re}
}

func (m branchMatcher) matches(branch string) bool {
	if m.re == nil {
		return branch == m.pattern
	}
	return m.re.MatchString(branch)
}

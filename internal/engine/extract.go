package engine

import (
	"regexp"
	"strings"
)

// Section markers recognised in ingestion text.
const (
	SectionFactual    = "FACTUAL"
	SectionMediatic   = "MEDIATIC"
	SectionSocial     = "SOCIAL"
	SectionBehavioral = "BEHAVIORAL"
)

var anyMarker = regexp.MustCompile(`(?i)\b(?:FACTUAL|MEDIATIC|SOCIAL|BEHAVIORAL)\b`)

// A line holding nothing but a list number or markdown decoration, as left
// behind by the heading of the following section.
var danglingLine = regexp.MustCompile(`^(?:[#*_>\s]*(?:\d{1,2}[.)])?[#*_\s]*|-{3,})$`)

// MissingSection returns the placeholder used when a section is absent.
func MissingSection(name string) string {
	return "no real-time data found for " + name
}

// ExtractSection returns the body of the section headed by name in raw.
//
// The heading is matched case-insensitively on word boundaries. A match that
// opens a line (after optional list numbering or markdown decoration) wins;
// otherwise the first occurrence anywhere is used. Whatever follows it on the
// same line up to a ':' is treated as part of the heading. The body runs until
// the next known section marker or end of text. When the section is absent or
// empty, MissingSection(name) is returned.
func ExtractSection(raw, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return MissingSection(name)
	}
	quoted := regexp.QuoteMeta(name)
	heading, err := regexp.Compile(`(?im)^[ \t#*_>]*(?:\d{1,2}[.)])?[ \t#*_]*` + quoted + `\b`)
	if err != nil {
		return MissingSection(name)
	}
	loc := heading.FindStringIndex(raw)
	if loc == nil {
		loc = regexp.MustCompile(`(?i)\b` + quoted + `\b`).FindStringIndex(raw)
	}
	if loc == nil {
		return MissingSection(name)
	}

	rest := raw[loc[1]:]
	end := len(rest)
	if next := anyMarker.FindStringIndex(rest); next != nil {
		end = next[0]
	}
	body := skipHeading(rest[:end])
	body = dropDanglingLines(strings.TrimSpace(body))
	body = dropLeadingDanglingLines(body)
	if body == "" {
		return MissingSection(name)
	}
	return body
}

// skipHeading drops the heading remainder: everything up to the first ':' or
// newline, whichever comes first. With neither, the text starts the body.
func skipHeading(s string) string {
	i := strings.IndexAny(s, ":\n")
	if i < 0 {
		return s
	}
	return s[i+1:]
}

func dropDanglingLines(s string) string {
	for s != "" {
		i := strings.LastIndexByte(s, '\n')
		last := s[i+1:]
		if !danglingLine.MatchString(strings.TrimSpace(last)) {
			return s
		}
		if i < 0 {
			return ""
		}
		s = strings.TrimSpace(s[:i])
	}
	return s
}

// dropLeadingDanglingLines removes decoration left over from the heading line,
// such as the closing "**" of "**FACTUAL (Macro):**".
func dropLeadingDanglingLines(s string) string {
	for s != "" {
		first, rest, found := strings.Cut(s, "\n")
		if !danglingLine.MatchString(strings.TrimSpace(first)) {
			return s
		}
		if !found {
			return ""
		}
		s = strings.TrimSpace(rest)
	}
	return s
}

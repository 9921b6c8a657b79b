package version

import (
	"regexp"
	"strings"
)

// conventionalSubjectRegex matches a conventional commit subject line:
// type(scope)!: description. The breaking marker and scope are optional.
var conventionalSubjectRegex = regexp.MustCompile(`^(?P<type>[a-zA-Z]+)(?:\((?P<scope>[^)]*)\))?(?P<breaking>!)?:\s*(?P<description>.+)$`)

// featureTypes are the commit types that warrant a minor bump.
var featureTypes = map[string]bool{
	"feat":    true,
	"feature": true,
}

// Classify inspects commit subjects since the last release and returns the
// required bump type: any breaking-change marker wins major, else any
// feature marker wins minor, else patch.
//
// Subjects that do not parse as conventional commits count as patch-level
// changes; the classifier never fails on free-form history.
func Classify(subjects []string) BumpType {
	bump := BumpPatch
	for _, subject := range subjects {
		subject = strings.TrimSpace(subject)
		if isBreaking(subject) {
			return BumpMajor
		}
		if isFeature(subject) {
			bump = BumpMinor
		}
	}
	return bump
}

// isBreaking reports whether a subject carries a breaking-change marker:
// either the "!" after type/scope or an explicit BREAKING CHANGE note.
func isBreaking(subject string) bool {
	if strings.Contains(subject, "BREAKING CHANGE") || strings.Contains(subject, "BREAKING-CHANGE") {
		return true
	}
	m := conventionalSubjectRegex.FindStringSubmatch(subject)
	if m == nil {
		return false
	}
	return m[conventionalSubjectRegex.SubexpIndex("breaking")] == "!"
}

// isFeature reports whether a subject is a feature commit.
func isFeature(subject string) bool {
	m := conventionalSubjectRegex.FindStringSubmatch(subject)
	if m == nil {
		return false
	}
	return featureTypes[strings.ToLower(m[conventionalSubjectRegex.SubexpIndex("type")])]
}

// CommitType extracts the conventional type of a subject for display, or
// "" when the subject is not a conventional commit.
func CommitType(subject string) string {
	m := conventionalSubjectRegex.FindStringSubmatch(strings.TrimSpace(subject))
	if m == nil {
		return ""
	}
	t := strings.ToLower(m[conventionalSubjectRegex.SubexpIndex("type")])
	if m[conventionalSubjectRegex.SubexpIndex("breaking")] == "!" {
		return t + "!"
	}
	return t
}

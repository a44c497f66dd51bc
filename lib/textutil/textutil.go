package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.Trim(name, " \n\t")
	name = whitespaceRegex.ReplaceAllString(name, "")
	return name
}

func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// NameSimilarity is the Jaro-Winkler similarity of two names after normalization,
// 1 means the names are the same.
func NameSimilarity(left, right string) float64 {
	left = NormalizeName(left)
	right = NormalizeName(right)
	if left == right {
		return 1
	}
	return matchr.JaroWinkler(left, right, false)
}

var pathSeparators = strings.NewReplacer("/", "-", "\\", "-")

// PathSafe lowercases a name and removes the characters that would turn it
// into more than one path element.
func PathSafe(name string) string {
	return pathSeparators.Replace(strings.ToLower(strings.TrimSpace(name)))
}

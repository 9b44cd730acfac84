package resources

import "regexp"

// A tag is a [key@value] substring of a resource name where neither
// key nor value contains '@' or ']'.
var tagPattern = regexp.MustCompile(`\[([^@\]]*)@([^@\]]*)\]`)

// StripTags removes every tag from name and returns the cleaned name
// together with the collected key/value pairs. Later tags win on
// duplicate keys.
func StripTags(name string) (string, map[string]string) {
	tags := make(map[string]string)
	for _, m := range tagPattern.FindAllStringSubmatch(name, -1) {
		tags[m[1]] = m[2]
	}
	return tagPattern.ReplaceAllString(name, ""), tags
}

// Package template expands the $(NAME) placeholders recognized in
// resource and deployment path templates and validates that nothing
// unresolved remains after substitution.
package template

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/arthur-debert/resdeploy/pkg/errors"
	"github.com/arthur-debert/resdeploy/pkg/platform"
)

// Substitute replaces every $(key) occurrence with its value, one
// key/value pair at a time, in the order given.
func Substitute(template string, keyValuePairs ...string) string {
	if len(keyValuePairs)%2 != 0 {
		panic("template: odd number of key/value arguments")
	}
	for i := 0; i < len(keyValuePairs); i += 2 {
		template = strings.ReplaceAll(template, "$("+keyValuePairs[i]+")", keyValuePairs[i+1])
	}
	return template
}

// Verify checks a substituted string for residual $( markers and
// returns a TEMPLATE_SYNTAX error describing the first one found.
func Verify(substituted string) (string, error) {
	iStart := strings.Index(substituted, "$(")
	if iStart < 0 {
		return substituted, nil
	}

	rest := substituted[iStart:]
	iEnd := strings.Index(rest, ")")
	iNext := strings.Index(rest[2:], "$(")

	reason := "unknown key"
	if iEnd < 0 || (iNext >= 0 && iNext+2 < iEnd) {
		reason = "key not terminated"
	}

	return "", errors.Newf(errors.ErrTemplateSyntax,
		"template substitution error: %s at position %d: %s", reason, iStart, rest).
		WithDetail("position", iStart)
}

// basicPairs returns the substitutions shared by source and
// destination templates, in their fixed substitution order.
func basicPairs() []string {
	return []string{
		"DLLEXT", strings.TrimPrefix(platform.DllExt(), "."),
		"OS", platform.Name(),
		"ARCH", platform.Arch(),
		"VERSION", platform.Version(),
	}
}

// ExpandSource expands a resource path template. Source templates may
// not contain whitespace, backslashes or '?' after expansion; path
// separators are always forward slashes.
func ExpandSource(tpl string) (string, error) {
	expanded, err := Verify(Substitute(tpl, basicPairs()...))
	if err != nil {
		return "", err
	}

	if strings.ContainsAny(expanded, " \t\r\n\\?") {
		return "", errors.Newf(errors.ErrTemplateSyntax,
			"invalid characters detected in expanded resource path string: %s", expanded)
	}

	return expanded, nil
}

// ExpandDestination expands a deployment path template. Destination
// templates additionally recognize $(TEMP) and $(RANDOM); every
// expansion draws a fresh random token.
func ExpandDestination(tpl string, tempDir string) (string, error) {
	pairs := append(basicPairs(),
		"RANDOM", "/"+RandomDirString(),
		"TEMP", tempDir,
	)
	return Verify(Substitute(tpl, pairs...))
}

// RandomDirString returns a fresh random token of 4 to 8 lowercase hex
// digits, suitable as a one-shot fallback subdirectory name.
func RandomDirString() string {
	u := uuid.New()
	s := strconv.FormatUint(uint64(binary.BigEndian.Uint32(u[0:4])), 16)
	for len(s) < 4 {
		s = "0" + s
	}
	return s
}

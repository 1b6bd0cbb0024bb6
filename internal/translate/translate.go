// Package translate converts raw mock-tool error output into a single
// actionable message suitable for display to the caller.
package translate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// MaxRawLen bounds the fallback message when no rule matches.
const MaxRawLen = 300

// Tool builds differ on quoting the token and pointer, so both are optional.
var missingPointerRe = regexp.MustCompile(`token "?([^\s"]+)"? in "?([^\s"]+)"? does not exist`)

var resolverMarkers = []string{
	"ResolverError",
	"ReferenceError",
	"Could not resolve reference",
	"Cannot resolve",
}

var fileOpenMarkers = []string{
	"ENOENT",
	"no such file or directory",
	"EACCES",
	"could not read",
}

var syntaxMarkers = []string{
	"YAMLException",
	"SyntaxError",
	"unexpected token",
	"end of the stream",
	"invalid character",
}

// Translate maps raw process error text to a user-displayable message.
// Rules are tried in priority order; the first match wins. Input may carry an
// embedded JSON error object, whose message field is preferred for matching
// when it parses.
func Translate(raw string) string {
	text := raw
	if msg, ok := embeddedJSONMessage(raw); ok {
		text = msg
	}

	if m := missingPointerRe.FindStringSubmatch(text); m != nil {
		return fmt.Sprintf("schema component %q referenced from %q does not exist in the specification", m[1], m[2])
	}
	if containsAny(text, resolverMarkers) {
		return "unable to resolve one or more schema references"
	}
	if containsAny(text, fileOpenMarkers) {
		return "specification file could not be read"
	}
	if containsAny(text, syntaxMarkers) {
		return "specification has a syntax error"
	}

	out := strings.TrimSpace(text)
	if len(out) > MaxRawLen {
		out = out[:MaxRawLen] + "..."
	}
	return out
}

// embeddedJSONMessage extracts a message from the first JSON object embedded
// in raw, if any. Parsing failures fall back to plain-text matching.
func embeddedJSONMessage(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return "", false
	}
	var obj struct {
		Message string `json:"message"`
		Detail  string `json:"detail"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil {
		return "", false
	}
	switch {
	case obj.Message != "":
		return obj.Message, true
	case obj.Detail != "":
		return obj.Detail, true
	case obj.Error != "":
		return obj.Error, true
	}
	return "", false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

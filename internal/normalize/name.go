package normalize

import (
	"html"
	"mime"
	"regexp"
	"strings"
	"unicode"

	"github.com/emersion/go-message/charset"
)

var (
	// Legacy directory-service identifiers embedded in display name fields,
	// e.g. "/O=ENRON/OU=NA/CN=RECIPIENTS/CN=JSMITH", optionally wrapped in
	// angle brackets.
	x500Pattern = regexp.MustCompile(`(?i)(?:<\s*)?/?O=[^/>]+(?:/(?:OU|CN|GQ|DD)=[^/>]+)+(?:\s*>)?`)

	angleBlockPattern   = regexp.MustCompile(`<[^>]*>`)
	spaceRunPattern     = regexp.MustCompile(`\s+`)
	localPartSeparators = regexp.MustCompile(`[._\-+]+`)
)

// Tokens that mark a comma-containing name as an organization rather than a
// "Last, First" person name. Matched as substrings of the lowercased name.
var orgTokens = []string{"inc", "ltd", "dept", "department", "company"}

const wrapCutset = " \t\r\n\"'()[]"

// DisplayName cleans a raw display name into a canonical human name.
// When cleaning rejects the candidate and an email address is available,
// a name is derived from the address's local part instead. Returns ""
// when no usable name could be produced. Never fails.
func DisplayName(raw, email string) string {
	if name := cleanDisplayName(raw); name != "" {
		return name
	}
	return NameFromEmail(email)
}

// cleanDisplayName runs the transformer chain over the raw header text.
// Each step operates on the output of the previous one; "" means rejected.
func cleanDisplayName(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	s := decodeEncodedWords(raw)
	s = html.UnescapeString(s)
	s = x500Pattern.ReplaceAllString(s, "")
	s = angleBlockPattern.ReplaceAllString(s, "")
	s = strings.Trim(s, wrapCutset)
	s = strings.Trim(s, wrapCutset) // nested wrapping, e.g. "("Smith")"
	s = strings.TrimSpace(spaceRunPattern.ReplaceAllString(s, " "))

	if s == "" || strings.Contains(s, "@") {
		return ""
	}

	s = reorderComma(s)

	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = titleToken(f)
	}
	s = strings.Join(fields, " ")

	if letterCount(s) < 2 {
		return ""
	}
	return s
}

// NameFromEmail derives a display name from the local part of an address:
// separator runs become spaces and each token is title-cased. Returns ""
// when the result has fewer than two letters.
func NameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found || local == "" {
		return ""
	}

	local = localPartSeparators.ReplaceAllString(local, " ")
	local = strings.TrimSpace(spaceRunPattern.ReplaceAllString(local, " "))
	if local == "" {
		return ""
	}

	fields := strings.Fields(local)
	for i, f := range fields {
		fields[i] = titleToken(f)
	}
	name := strings.Join(fields, " ")

	if letterCount(name) < 2 {
		return ""
	}
	return name
}

// Domain returns the lowercased domain of an address, or "" when the
// input does not contain one.
func Domain(email string) string {
	_, domain, found := strings.Cut(email, "@")
	if !found {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(domain))
}

// HasDirectoryArtifact reports whether the text still contains a
// directory-service distinguished-name fragment.
func HasDirectoryArtifact(s string) bool {
	return x500Pattern.MatchString(s)
}

// decodeEncodedWords decodes RFC 2047 encoded words, using the original
// text unchanged when decoding fails.
func decodeEncodedWords(s string) string {
	dec := &mime.WordDecoder{CharsetReader: charset.Reader}
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(decoded)
}

// reorderComma rewrites "Last, First" to "First Last" unless either side
// carries an organizational token ("Enron, Inc" stays as-is).
func reorderComma(name string) string {
	if !strings.Contains(name, ",") {
		return name
	}
	if containsOrgToken(name) {
		return name
	}
	last, rest, _ := strings.Cut(name, ",")
	last, rest = strings.TrimSpace(last), strings.TrimSpace(rest)
	if last == "" || rest == "" {
		return name
	}
	if containsOrgToken(rest) {
		return name
	}
	return rest + " " + last
}

func containsOrgToken(name string) bool {
	lower := strings.ToLower(name)
	for _, tok := range orgTokens {
		if strings.Contains(lower, tok) {
			return true
		}
	}
	return false
}

// titleToken title-cases one whitespace-separated token. All-uppercase
// tokens of two or more letters are kept verbatim (acronyms like "IT").
// Other tokens are split on hyphens and apostrophes and each alphabetic
// segment is capitalized, preserving the separators.
func titleToken(tok string) string {
	if len(tok) >= 2 && isAcronym(tok) {
		return tok
	}

	var b strings.Builder
	start := 0
	for i, r := range tok {
		if r == '-' || r == '\'' {
			b.WriteString(capitalizeSegment(tok[start:i]))
			b.WriteRune(r)
			start = i + 1
		}
	}
	b.WriteString(capitalizeSegment(tok[start:]))
	return b.String()
}

// isAcronym reports whether the token consists of cased characters that
// are all uppercase.
func isAcronym(tok string) bool {
	hasUpper := false
	for _, r := range tok {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}

// capitalizeSegment uppercases the first rune and lowercases the rest.
// Segments containing non-letters pass through unchanged.
func capitalizeSegment(seg string) string {
	if seg == "" {
		return seg
	}
	for _, r := range seg {
		if !unicode.IsLetter(r) {
			return seg
		}
	}
	runes := []rune(strings.ToLower(seg))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func letterCount(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			n++
		}
	}
	return n
}

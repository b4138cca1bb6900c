package parser

import (
	"mime"
	"regexp"
	"strings"
)

var (
	tagRe        = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Normalize strips tag-delimited markup and collapses whitespace runs to
// single spaces. It always succeeds; empty input yields empty output.
func Normalize(raw string) string {
	text := tagRe.ReplaceAllString(raw, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// DecodeSubject decodes MIME encoded-words in a message subject.
// Undecodable subjects are returned as-is.
func DecodeSubject(subject string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(subject)
	if err != nil {
		return subject
	}
	return decoded
}

// Copyright 2024 The Matrix.org Foundation C.I.C.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package inspect

import (
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/net/html"
)

// maskedFields are the content paths the masker rewrites, in gjson
// syntax, and whether they hold HTML. The m.new_content paths cover the
// replacement text of edits.
var maskedFields = []struct {
	path string
	html bool
}{
	{"body", false},
	{"formatted_body", true},
	{`m\.new_content.body`, false},
	{`m\.new_content.formatted_body`, true},
}

// Masker replaces blocked words with asterisks. Terms match whole words
// only, case-insensitively, and are applied one after another in the
// order they were configured.
type Masker struct {
	terms []*regexp.Regexp
}

// NewMasker compiles the given terms. Blank terms are ignored.
func NewMasker(terms []string) *Masker {
	m := &Masker{}
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if term == "" {
			continue
		}
		m.terms = append(m.terms, regexp.MustCompile("(?i)"+regexp.QuoteMeta(term)))
	}
	return m
}

// Empty reports whether the masker has no terms to mask.
func (m *Masker) Empty() bool {
	return len(m.terms) == 0
}

// Mask returns text with every whole-word occurrence of every term
// replaced by as many '*' as the occurrence has characters.
func (m *Masker) Mask(text string) (string, bool) {
	out := text
	for _, re := range m.terms {
		out = maskTerm(re, out)
	}
	return out, out != text
}

func maskTerm(re *regexp.Regexp, text string) string {
	var sb strings.Builder
	written, pos := 0, 0
	for pos <= len(text) {
		loc := re.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			break
		}
		if !isBoundary(text, start) || !isBoundary(text, end) {
			_, size := utf8.DecodeRuneInString(text[start:])
			pos = start + size
			continue
		}
		sb.WriteString(text[written:start])
		sb.WriteString(strings.Repeat("*", utf8.RuneCountInString(text[start:end])))
		written, pos = end, end
	}
	if written == 0 {
		return text
	}
	sb.WriteString(text[written:])
	return sb.String()
}

// isBoundary reports whether there is a word boundary at byte offset i,
// using Unicode letters, digits and '_' as word characters.
func isBoundary(text string, i int) bool {
	before, after := false, false
	if i > 0 {
		r, _ := utf8.DecodeLastRuneInString(text[:i])
		before = isWordRune(r)
	}
	if i < len(text) {
		r, _ := utf8.DecodeRuneInString(text[i:])
		after = isWordRune(r)
	}
	return before != after
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// MaskContent masks the text fields of a message content. It returns the
// original content unchanged if nothing was masked.
func (m *Masker) MaskContent(content []byte) ([]byte, bool, error) {
	if m.Empty() {
		return content, false, nil
	}
	out := content
	modified := false
	for _, f := range maskedFields {
		field := gjson.GetBytes(out, f.path)
		if field.Type != gjson.String {
			continue
		}
		mask := m.Mask
		if f.html {
			mask = m.MaskHTML
		}
		masked, changed := mask(field.Str)
		if !changed {
			continue
		}
		var err error
		if out, err = sjson.SetBytes(out, f.path, masked); err != nil {
			return content, false, err
		}
		modified = true
	}
	return out, modified, nil
}

// MaskHTML masks the text nodes of an HTML fragment. Tags, attributes and
// comments are copied through untouched.
func (m *Masker) MaskHTML(fragment string) (string, bool) {
	var out bytes.Buffer
	z := html.NewTokenizer(strings.NewReader(fragment))
	modified := false
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				// Unparseable markup is masked as plain text.
				return m.Mask(fragment)
			}
			break
		}
		raw := z.Raw()
		if tt != html.TextToken {
			out.Write(raw)
			continue
		}
		masked, changed := m.Mask(string(z.Text()))
		if !changed {
			out.Write(raw)
			continue
		}
		out.WriteString(html.EscapeString(masked))
		modified = true
	}
	if !modified {
		return fragment, false
	}
	return out.String(), true
}

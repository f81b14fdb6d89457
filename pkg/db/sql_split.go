/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package db

import (
	"strings"
	"unicode"
)

// statementSplitter walks Postgres DDL and breaks it on top-level semicolons.
// Quoted strings, identifiers, comments and dollar-quoted bodies are opaque.
type statementSplitter struct {
	src   string
	pos   int
	cur   strings.Builder
	out   []string
	quote byte
	tag   string
}

// splitStatements returns the non-empty statements in src without their
// trailing semicolons. Comments are dropped.
func splitStatements(src string) []string {
	s := &statementSplitter{src: src}
	s.run()

	return s.out
}

func (s *statementSplitter) run() {
	for s.pos < len(s.src) {
		switch {
		case s.tag != "":
			s.inDollarBody()
		case s.quote != 0:
			s.inQuoted()
		default:
			s.topLevel()
		}
	}

	s.flush()
}

func (s *statementSplitter) topLevel() {
	ch := s.src[s.pos]
	rest := s.src[s.pos:]

	switch {
	case strings.HasPrefix(rest, "--"):
		end := strings.IndexByte(rest, '\n')
		if end < 0 {
			s.pos = len(s.src)
			return
		}

		s.pos += end
	case strings.HasPrefix(rest, "/*"):
		end := strings.Index(rest[2:], "*/")
		if end < 0 {
			s.pos = len(s.src)
			return
		}

		s.pos += end + 4
	case ch == '\'' || ch == '"':
		s.quote = ch
		s.emit(1)
	case ch == '$':
		if tag := dollarTag(rest); tag != "" {
			s.tag = tag
			s.emit(len(tag))

			return
		}

		s.emit(1)
	case ch == ';':
		s.pos++
		s.flush()
	default:
		s.emit(1)
	}
}

func (s *statementSplitter) inQuoted() {
	ch := s.src[s.pos]
	s.emit(1)

	if ch == s.quote {
		s.quote = 0
	}
}

func (s *statementSplitter) inDollarBody() {
	if strings.HasPrefix(s.src[s.pos:], s.tag) {
		s.emit(len(s.tag))
		s.tag = ""

		return
	}

	s.emit(1)
}

func (s *statementSplitter) emit(n int) {
	s.cur.WriteString(s.src[s.pos : s.pos+n])
	s.pos += n
}

func (s *statementSplitter) flush() {
	if stmt := strings.TrimSpace(s.cur.String()); stmt != "" {
		s.out = append(s.out, stmt)
	}

	s.cur.Reset()
}

// dollarTag returns "$$" or "$name$" when src opens a dollar-quoted body.
func dollarTag(src string) string {
	for i := 1; i < len(src); i++ {
		ch := rune(src[i])

		if ch == '$' {
			return src[:i+1]
		}

		if ch != '_' && !unicode.IsLetter(ch) && !unicode.IsDigit(ch) {
			return ""
		}
	}

	return ""
}

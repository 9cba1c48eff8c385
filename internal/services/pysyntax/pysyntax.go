// Package pysyntax is a tokenizer-level Python 3 syntax checker.
//
// It catches the mistakes students actually make in short sensor scripts
// (unbalanced brackets, broken strings and f-strings, indentation, missing
// colons, Python 2 print statements, pasted smart quotes) without running an
// interpreter. It is not a full parser: grammar errors inside an otherwise
// well-formed line pass. Messages follow CPython 3.12 wording.
package pysyntax

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"formatif-grader/internal/domain/model"
)

// Error is a syntax error with a 1-based line and column.
type Error struct {
	Line   int
	Offset int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// Unwrap lets callers match with errors.Is(err, model.ErrSyntax).
func (e *Error) Unwrap() error { return model.ErrSyntax }

// Check returns nil when src tokenizes as valid Python, or an *Error.
// Empty source is valid.
func Check(src string) error {
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	s := &scanner{src: []rune(src), line: 1, indents: []int{0}}
	return s.run()
}

var compoundKeywords = map[string]struct{}{
	"if": {}, "elif": {}, "else": {}, "for": {}, "while": {}, "def": {},
	"class": {}, "try": {}, "except": {}, "finally": {}, "with": {},
}

var stringPrefixes = map[string]struct{}{
	"r": {}, "u": {}, "b": {}, "f": {}, "br": {}, "rb": {}, "fr": {}, "rf": {},
}

type bracket struct {
	ch        rune
	line, col int
}

type lineInfo struct {
	startLine int
	keyword   string
	sawColon  bool
	last      rune
}

type scanner struct {
	src      []rune
	pos      int
	line     int
	col      int
	brackets []bracket
	indents  []int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peek() rune { return s.peekAt(0) }

func (s *scanner) peekAt(n int) rune {
	if s.pos+n >= len(s.src) {
		return 0
	}
	return s.src[s.pos+n]
}

func (s *scanner) advance() {
	if s.eof() {
		return
	}
	if s.src[s.pos] == '\n' {
		s.line++
		s.col = 0
	} else {
		s.col++
	}
	s.pos++
}

func (s *scanner) fail(line, col int, format string, args ...any) error {
	return &Error{Line: line, Offset: col + 1, Msg: fmt.Sprintf(format, args...)}
}

// lastLine is the line of the last consumed character.
func (s *scanner) lastLine() int {
	if s.pos > 0 && s.src[s.pos-1] == '\n' {
		return s.line - 1
	}
	return s.line
}

func (s *scanner) run() error {
	var pending *lineInfo // header line waiting for an indented block
	for {
		col := s.indentation()
		if s.eof() {
			break
		}
		switch s.peek() {
		case '\n':
			s.advance()
			continue
		case '#':
			s.skipComment()
			continue
		}

		top := s.indents[len(s.indents)-1]
		switch {
		case pending != nil:
			if col <= top {
				return s.fail(s.line, col, "%s", expectedBlock(*pending))
			}
			s.indents = append(s.indents, col)
		case col > top:
			return s.fail(s.line, col, "unexpected indent")
		case col < top:
			for len(s.indents) > 1 && s.indents[len(s.indents)-1] > col {
				s.indents = s.indents[:len(s.indents)-1]
			}
			if s.indents[len(s.indents)-1] != col {
				return s.fail(s.line, col, "unindent does not match any outer indentation level")
			}
		}

		info, err := s.logicalLine()
		if err != nil {
			return err
		}
		if _, ok := compoundKeywords[info.keyword]; ok && !info.sawColon && len(s.brackets) == 0 {
			return s.fail(info.startLine, s.col, "expected ':'")
		}
		pending = nil
		if info.last == ':' {
			pending = &info
		}
	}

	if len(s.brackets) > 0 {
		b := s.brackets[len(s.brackets)-1]
		return s.fail(b.line, b.col, "'%c' was never closed", b.ch)
	}
	if pending != nil {
		return s.fail(pending.startLine+1, 0, "%s", expectedBlock(*pending))
	}
	return nil
}

func expectedBlock(h lineInfo) string {
	switch h.keyword {
	case "":
		return "expected an indented block"
	case "def":
		return fmt.Sprintf("expected an indented block after function definition on line %d", h.startLine)
	case "class":
		return fmt.Sprintf("expected an indented block after class definition on line %d", h.startLine)
	default:
		return fmt.Sprintf("expected an indented block after '%s' statement on line %d", h.keyword, h.startLine)
	}
}

// indentation consumes leading whitespace and returns the column, tabs
// advancing to the next multiple of eight.
func (s *scanner) indentation() int {
	col := 0
	for !s.eof() {
		switch s.peek() {
		case ' ':
			col++
		case '\t':
			col = (col/8 + 1) * 8
		case '\f':
			col = 0
		default:
			return col
		}
		s.advance()
	}
	return col
}

func (s *scanner) skipComment() {
	for !s.eof() && s.peek() != '\n' {
		s.advance()
	}
}

// logicalLine scans up to and including the newline that ends the logical
// line. Newlines inside brackets or after a backslash do not end it.
func (s *scanner) logicalLine() (lineInfo, error) {
	info := lineInfo{startLine: s.line}
	tokens := 0
	for !s.eof() {
		r := s.peek()
		switch {
		case r == '\n':
			s.advance()
			if len(s.brackets) == 0 {
				return info, nil
			}
			continue
		case r == ' ' || r == '\t' || r == '\f':
			s.advance()
			continue
		case r == '#':
			s.skipComment()
			continue
		case r == '\\':
			line, col := s.line, s.col
			s.advance()
			if s.peek() != '\n' {
				return info, s.fail(line, col, "unexpected character after line continuation character")
			}
			s.advance()
			continue
		case isIdentStart(r):
			line, col := s.line, s.col
			word := s.scanWord()
			if isStringPrefix(word) && isQuote(s.peek()) {
				if err := s.scanString(word); err != nil {
					return info, err
				}
				info.last = '"'
				break
			}
			if tokens == 0 {
				info.keyword = word
				if word == "print" && s.looksLikePrintStatement() {
					return info, s.fail(line, col, "Missing parentheses in call to 'print'. Did you mean print(...)?")
				}
			}
			info.last = 'a'
		case isDigit(r) || (r == '.' && isDigit(s.peekAt(1))):
			s.scanNumber()
			info.last = '0'
		case isQuote(r):
			if err := s.scanString(""); err != nil {
				return info, err
			}
			info.last = '"'
		case r == '(' || r == '[' || r == '{':
			s.brackets = append(s.brackets, bracket{ch: r, line: s.line, col: s.col})
			s.advance()
			info.last = r
		case r == ')' || r == ']' || r == '}':
			if err := s.closeBracket(r); err != nil {
				return info, err
			}
			info.last = r
		case r == ':':
			s.advance()
			if s.peek() == '=' {
				s.advance()
				info.last = '='
				break
			}
			if len(s.brackets) == 0 {
				info.sawColon = true
			}
			info.last = ':'
		case r == '$' || r == '?' || r == '`':
			return info, s.fail(s.line, s.col, "invalid syntax")
		case r >= unicode.MaxASCII:
			return info, s.fail(s.line, s.col, "invalid character '%c' (U+%04X)", r, r)
		default:
			s.advance()
			info.last = r
		}
		tokens++
	}
	return info, nil
}

func (s *scanner) closeBracket(r rune) error {
	if len(s.brackets) == 0 {
		return s.fail(s.line, s.col, "unmatched '%c'", r)
	}
	open := s.brackets[len(s.brackets)-1]
	if !matches(open.ch, r) {
		if open.line != s.line {
			return s.fail(s.line, s.col, "closing parenthesis '%c' does not match opening parenthesis '%c' on line %d", r, open.ch, open.line)
		}
		return s.fail(s.line, s.col, "closing parenthesis '%c' does not match opening parenthesis '%c'", r, open.ch)
	}
	s.brackets = s.brackets[:len(s.brackets)-1]
	s.advance()
	return nil
}

func (s *scanner) looksLikePrintStatement() bool {
	i := 0
	for s.peekAt(i) == ' ' || s.peekAt(i) == '\t' {
		i++
	}
	if i == 0 {
		return false
	}
	next := s.peekAt(i)
	if next == 'i' && s.peekAt(i+1) == 'n' && !isIdentPart(s.peekAt(i+2)) {
		return false
	}
	return isQuote(next) || isIdentStart(next) || isDigit(next)
}

func (s *scanner) scanWord() string {
	start := s.pos
	for !s.eof() && isIdentPart(s.peek()) {
		s.advance()
	}
	return string(s.src[start:s.pos])
}

func (s *scanner) scanNumber() {
	for !s.eof() {
		r := s.peek()
		if isIdentPart(r) || r == '.' {
			s.advance()
			continue
		}
		if (r == '+' || r == '-') && (s.src[s.pos-1] == 'e' || s.src[s.pos-1] == 'E') && !isHex(s.src, s.pos) {
			s.advance()
			continue
		}
		return
	}
}

// isHex reports whether the number ending before pos started with 0x.
func isHex(src []rune, pos int) bool {
	i := pos - 1
	for i > 0 && (isIdentPart(src[i-1]) || src[i-1] == '.') {
		i--
	}
	return i+1 < len(src) && src[i] == '0' && (src[i+1] == 'x' || src[i+1] == 'X')
}

func (s *scanner) scanString(prefix string) error {
	lower := strings.ToLower(prefix)
	fstr := strings.Contains(lower, "f")
	startLine, startCol := s.line, s.col-len([]rune(prefix))
	q := s.peek()
	triple := s.peekAt(1) == q && s.peekAt(2) == q
	if triple {
		s.advance()
		s.advance()
	}
	s.advance()

	for {
		if s.eof() {
			return s.unterminated(triple, startLine, startCol)
		}
		r := s.peek()
		switch {
		case r == '\\':
			s.advance()
			s.advance()
		case r == '\n' && !triple:
			return s.unterminated(false, startLine, startCol)
		case r == q:
			s.advance()
			if !triple {
				return nil
			}
			if s.peek() == q && s.peekAt(1) == q {
				s.advance()
				s.advance()
				return nil
			}
		case fstr && r == '{':
			if s.peekAt(1) == '{' {
				s.advance()
				s.advance()
				continue
			}
			s.advance()
			if err := s.scanReplacement(q, triple, startLine, startCol); err != nil {
				return err
			}
		case fstr && r == '}':
			if s.peekAt(1) == '}' {
				s.advance()
				s.advance()
				continue
			}
			return s.fail(s.line, s.col, "f-string: single '}' is not allowed")
		default:
			s.advance()
		}
	}
}

func (s *scanner) unterminated(triple bool, line, col int) error {
	if triple {
		return s.fail(line, col, "unterminated triple-quoted string literal (detected at line %d)", s.lastLine())
	}
	return s.fail(line, col, "unterminated string literal (detected at line %d)", s.line)
}

// scanReplacement consumes an f-string replacement field after its '{'.
func (s *scanner) scanReplacement(q rune, triple bool, line, col int) error {
	depth := 0
	for {
		if s.eof() {
			return s.unterminated(triple, line, col)
		}
		r := s.peek()
		switch {
		case r == '\n' && !triple:
			return s.unterminated(false, line, col)
		case isQuote(r):
			if err := s.scanNested("", q, triple); err != nil {
				return err
			}
		case isIdentStart(r):
			word := s.scanWord()
			if isStringPrefix(word) && isQuote(s.peek()) {
				if err := s.scanNested(word, q, triple); err != nil {
					return err
				}
			}
		case r == '(' || r == '[' || r == '{':
			depth++
			s.advance()
		case r == ')' || r == ']':
			depth--
			s.advance()
		case r == '}':
			s.advance()
			if depth == 0 {
				return nil
			}
			depth--
		case r == ':' && depth == 0:
			s.advance()
			return s.scanFormatSpec(q, triple, line, col)
		default:
			s.advance()
		}
	}
}

// scanNested scans a string literal inside a replacement field. Quotes may
// repeat the enclosing ones; an unterminated literal opened with exactly the
// enclosing quote means the field itself was never closed.
func (s *scanner) scanNested(prefix string, q rune, triple bool) error {
	r := s.peek()
	line, col := s.line, s.col
	nestedTriple := s.peekAt(1) == r && s.peekAt(2) == r
	err := s.scanString(prefix)
	var se *Error
	if err != nil && r == q && nestedTriple == triple && errors.As(err, &se) && strings.HasPrefix(se.Msg, "unterminated") {
		return s.fail(line, col, "f-string: expecting '}'")
	}
	return err
}

func (s *scanner) scanFormatSpec(q rune, triple bool, line, col int) error {
	for {
		if s.eof() {
			return s.unterminated(triple, line, col)
		}
		r := s.peek()
		switch {
		case r == '\n' && !triple:
			return s.unterminated(false, line, col)
		case r == q && !triple:
			return s.fail(s.line, s.col, "f-string: expecting '}'")
		case r == '{':
			s.advance()
			if err := s.scanReplacement(q, triple, line, col); err != nil {
				return err
			}
		case r == '}':
			s.advance()
			return nil
		default:
			s.advance()
		}
	}
}

func matches(open, close rune) bool {
	return (open == '(' && close == ')') || (open == '[' && close == ']') || (open == '{' && close == '}')
}

func isQuote(r rune) bool { return r == '"' || r == '\'' }

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }

func isIdentPart(r rune) bool { return isIdentStart(r) || unicode.IsDigit(r) }

func isStringPrefix(word string) bool {
	_, ok := stringPrefixes[strings.ToLower(word)]
	return ok
}

// Checker adapts Check to the validator's context-aware backend interface.
type Checker struct{}

// CheckSyntax never blocks; ctx is accepted for parity with the container backend.
func (Checker) CheckSyntax(_ context.Context, _ string, src string) error {
	return Check(src)
}

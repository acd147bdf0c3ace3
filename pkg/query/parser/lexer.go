// Package parser implements a hand-written recursive-descent/Pratt parser
// for the query language (spec §4.1), in the style of the teacher's
// position-tagged fatal errors (pkg/logql/engine.go wraps everything through
// github.com/pkg/errors; this parser follows the same convention for its
// own ParseError type).
package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TokenKind enumerates the lexical token classes the query grammar needs.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokNumber
	TokString
	TokDuration
	TokLBrace
	TokRBrace
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokComma
	TokColon
	TokOp // =, !=, =~, !~, ==, >=, <=, >, <, +, -, *, /, %, ^
)

// Token is one lexical unit with its source position.
type Token struct {
	Kind   TokenKind
	Text   string
	Line   int
	Column int
	// Pos is the byte offset into the source the token starts at. It's used
	// by pkg/program to carve the query clause's unconsumed remainder back
	// out of the original program string after a prefix parse.
	Pos int
}

func (t Token) String() string {
	if t.Kind == TokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.Text)
}

// Lexer tokenizes a query string. It is not reusable across queries.
type Lexer struct {
	src        string
	pos        int
	line, col  int
}

// NewLexer returns a Lexer positioned at the start of src.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1, col: 1}
}

func (l *Lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) advance() byte {
	b := l.src[l.pos]
	l.pos++
	if b == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return b
}

func (l *Lexer) skipSpace() {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
			for i := 0; i < size; i++ {
				l.advance()
			}
			continue
		}
		break
	}
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isIdentCont(b byte) bool {
	return isIdentStart(b) || (b >= '0' && b <= '9')
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// Next returns the next token, or a TokEOF token when the input is
// exhausted.
func (l *Lexer) Next() (Token, error) {
	l.skipSpace()
	line, col, pos := l.line, l.col, l.pos
	tok, err := l.next(line, col)
	tok.Pos = pos
	return tok, err
}

func (l *Lexer) next(line, col int) (Token, error) {
	if l.pos >= len(l.src) {
		return Token{Kind: TokEOF, Line: line, Column: col}, nil
	}

	b := l.peekByte()
	switch {
	case b == '{':
		l.advance()
		return Token{Kind: TokLBrace, Text: "{", Line: line, Column: col}, nil
	case b == '}':
		l.advance()
		return Token{Kind: TokRBrace, Text: "}", Line: line, Column: col}, nil
	case b == '(':
		l.advance()
		return Token{Kind: TokLParen, Text: "(", Line: line, Column: col}, nil
	case b == ')':
		l.advance()
		return Token{Kind: TokRParen, Text: ")", Line: line, Column: col}, nil
	case b == '[':
		l.advance()
		return Token{Kind: TokLBracket, Text: "[", Line: line, Column: col}, nil
	case b == ']':
		l.advance()
		return Token{Kind: TokRBracket, Text: "]", Line: line, Column: col}, nil
	case b == ',':
		l.advance()
		return Token{Kind: TokComma, Text: ",", Line: line, Column: col}, nil
	case b == ':':
		l.advance()
		return Token{Kind: TokColon, Text: ":", Line: line, Column: col}, nil
	case b == '"' || b == '\'' || b == '`':
		return l.lexString(line, col)
	case isIdentStart(b):
		return l.lexIdentOrDuration(line, col), nil
	case isDigit(b) || (b == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.lexNumber(line, col), nil
	default:
		return l.lexOp(line, col)
	}
}

func (l *Lexer) lexString(line, col int) (Token, error) {
	quote := l.advance()
	var sb strings.Builder
	for {
		if l.pos >= len(l.src) {
			return Token{}, &ParseError{Line: line, Column: col, Msg: "unterminated string literal", Fatal: true}
		}
		b := l.peekByte()
		if b == quote {
			l.advance()
			break
		}
		if b == '\\' && l.pos+1 < len(l.src) {
			l.advance()
			esc := l.advance()
			switch esc {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case '\\', '"', '\'', '`':
				sb.WriteByte(esc)
			default:
				sb.WriteByte(esc)
			}
			continue
		}
		sb.WriteByte(l.advance())
	}
	return Token{Kind: TokString, Text: sb.String(), Line: line, Column: col}, nil
}

var durationUnits = []string{"ms", "y", "w", "d", "h", "m", "s"}

// lexIdentOrDuration greedily lexes an identifier, then checks whether it is
// actually the start of a duration literal (digits followed by unit
// letters, e.g. `5m`, `1h30m`) — distinguished from plain idents by the
// leading character being a digit, which lexNumber already intercepts, so
// this path only ever produces TokIdent.
func (l *Lexer) lexIdentOrDuration(line, col int) Token {
	start := l.pos
	for l.pos < len(l.src) && isIdentCont(l.peekByte()) {
		l.advance()
	}
	return Token{Kind: TokIdent, Text: l.src[start:l.pos], Line: line, Column: col}
}

// lexNumber lexes a float literal, or — if immediately followed by one of
// the duration unit suffixes — a duration literal instead (spec §4.1:
// "digits-unit pairs in strictly descending unit order").
func (l *Lexer) lexNumber(line, col int) Token {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peekByte()) {
		l.advance()
	}
	isDuration := false
	for {
		matchedUnit := ""
		for _, u := range durationUnits {
			if strings.HasPrefix(l.src[l.pos:], u) {
				after := l.pos + len(u)
				if after < len(l.src) && isIdentCont(l.src[after]) {
					continue // e.g. "ms" inside "mseconds" - not a real suffix boundary
				}
				if len(u) > len(matchedUnit) {
					matchedUnit = u
				}
			}
		}
		if matchedUnit == "" {
			break
		}
		isDuration = true
		for range matchedUnit {
			l.advance()
		}
		digitsStart := l.pos
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
		if l.pos == digitsStart {
			break
		}
	}
	if isDuration {
		return Token{Kind: TokDuration, Text: l.src[start:l.pos], Line: line, Column: col}
	}
	if l.pos < len(l.src) && l.peekByte() == '.' {
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peekByte()) {
			l.advance()
		}
	}
	return Token{Kind: TokNumber, Text: l.src[start:l.pos], Line: line, Column: col}
}

func (l *Lexer) lexOp(line, col int) (Token, error) {
	two := ""
	if l.pos+1 < len(l.src) {
		two = l.src[l.pos : l.pos+2]
	}
	switch two {
	case "!=", "=~", "!~", "==", ">=", "<=":
		l.advance()
		l.advance()
		return Token{Kind: TokOp, Text: two, Line: line, Column: col}, nil
	}
	b := l.advance()
	switch b {
	case '=', '>', '<', '+', '-', '*', '/', '%', '^':
		return Token{Kind: TokOp, Text: string(b), Line: line, Column: col}, nil
	}
	return Token{}, &ParseError{Line: line, Column: col, Msg: fmt.Sprintf("unexpected character %q", b), Fatal: true}
}

// Package program parses the pipeline program string a user passes to pq:
// a decoder clause, followed by optional map/select/formatter clauses in
// that order, each introduced by its own '|' (spec §6 "Program grammar").
//
// Grounded on the original Rust implementation's src/program.rs, which
// parses the same grammar with nom combinators; this package keeps that
// grammar and its clause-by-clause optionality but implements it as a
// small hand-written scanner in the style of pkg/query/parser, rather than
// porting nom.
package program

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iximiuz/pq/pkg/query/ast"
	"github.com/iximiuz/pq/pkg/query/parser"
)

// ParseError is a byte-offset-tagged program parse error (spec §7 "Program
// parse error").
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("program parse error at byte %d: %s", e.Pos, e.Msg)
}

func errAt(pos int, format string, args ...interface{}) *ParseError {
	return &ParseError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// DecoderKind selects which decoding strategy a Program's Decoder clause
// uses.
type DecoderKind int

const (
	DecoderRegex DecoderKind = iota
	DecoderJSON
)

// Decoder is the program's mandatory leading clause.
type Decoder struct {
	Kind    DecoderKind
	Pattern string // regex source, only set when Kind == DecoderRegex
}

// FieldLoc locates a value inside a decoded entry: either by tuple
// position (".0", ".1", ...) or by dict key (".foo"). Exactly one of
// ByName's two forms applies, mirroring the original's FieldLoc enum.
type FieldLoc struct {
	ByName   bool
	Name     string
	Position int
}

func (l FieldLoc) String() string {
	if l.ByName {
		return "." + l.Name
	}
	return "." + strconv.Itoa(l.Position)
}

// FieldType is the optional type annotation on a mapper field.
type FieldType int

const (
	// FieldAuto leaves the type to the mapper: a value that parses as a
	// number becomes a sample value, anything else becomes a label.
	FieldAuto FieldType = iota
	FieldString
	FieldNumber
	FieldTimestamp
)

// MapperField is one entry in a map clause's field list: either a dynamic
// field pulled out of the decoded entry (Loc set), or a constant label
// (Const true, ConstValue set).
type MapperField struct {
	// Dynamic field.
	Loc      FieldLoc
	Type     FieldType
	TSLayout string // optional explicit Go time layout for Type == FieldTimestamp

	// Constant label, e.g. `job: "nginx"`.
	Const      bool
	ConstName  string
	ConstValue string

	Alias string
}

// EndName returns the field's name in the produced record: the alias if
// given, else the dict key / constant name, else a synthesized "f<pos>"
// for a positional field without an alias (spec §6 "Mapper field list").
func (f MapperField) EndName() string {
	if f.Alias != "" {
		return f.Alias
	}
	if f.Const {
		return f.ConstName
	}
	if f.Loc.ByName {
		return f.Loc.Name
	}
	return "f" + strconv.Itoa(f.Loc.Position)
}

// Mapper is the program's optional `map { ... }` clause.
type Mapper struct {
	Fields []MapperField
}

// FormatterKind selects the program's optional trailing output formatter.
type FormatterKind int

const (
	FormatHumanReadable FormatterKind = iota
	FormatJSON
	FormatPromAPI
)

// Program is the fully parsed pipeline: a mandatory decoder, plus whichever
// of the map/select/format clauses were present.
type Program struct {
	Decoder Decoder

	Mapper *Mapper // nil if no `map` clause

	Query ast.Expr // nil if no `select` clause

	HasFormatter bool
	Formatter    FormatterKind
}

// Parse parses a full pipeline program string.
func Parse(src string) (*Program, error) {
	s := &scanner{src: src}

	dec, err := s.parseDecoder()
	if err != nil {
		return nil, err
	}
	prog := &Program{Decoder: dec}

	mapper, ok, err := s.tryMapperClause()
	if err != nil {
		return nil, err
	}
	if ok {
		prog.Mapper = mapper
	}

	query, ok, err := s.tryQueryClause()
	if err != nil {
		return nil, err
	}
	if ok {
		prog.Query = query
	}

	formatter, ok, err := s.tryFormatterClause()
	if err != nil {
		return nil, err
	}
	if ok {
		prog.HasFormatter = true
		prog.Formatter = formatter
	}

	s.skipSpace()
	if !s.eof() {
		return nil, errAt(s.pos, "unexpected trailing input %q", s.src[s.pos:])
	}

	return prog, nil
}

// scanner is a small hand-rolled cursor over the program source, in the
// style of pkg/query/parser's Lexer but operating directly on bytes since
// the program grammar has no need for a separate tokenization pass.
type scanner struct {
	src string
	pos int
}

func (s *scanner) eof() bool { return s.pos >= len(s.src) }

func (s *scanner) peekByte() byte {
	if s.eof() {
		return 0
	}
	return s.src[s.pos]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' }

func (s *scanner) skipSpace() {
	for !s.eof() && isSpace(s.src[s.pos]) {
		s.pos++
	}
}

func (s *scanner) consumeByte(b byte) bool {
	if !s.eof() && s.src[s.pos] == b {
		s.pos++
		return true
	}
	return false
}

// consumeKeyword matches kw case-insensitively, requiring it not be
// followed by an identifier-continuation byte (so "json" doesn't match a
// prefix of "jsonish"). It consumes the keyword on success.
func (s *scanner) consumeKeyword(kw string) bool {
	if s.pos+len(kw) > len(s.src) {
		return false
	}
	if !strings.EqualFold(s.src[s.pos:s.pos+len(kw)], kw) {
		return false
	}
	end := s.pos + len(kw)
	if end < len(s.src) && isIdentByte(s.src[end]) {
		return false
	}
	s.pos = end
	return true
}

func isIdentByte(b byte) bool {
	return b == '_' ||
		(b >= 'a' && b <= 'z') ||
		(b >= 'A' && b <= 'Z') ||
		(b >= '0' && b <= '9')
}

func isIdentStart(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func (s *scanner) scanIdent() (string, bool) {
	if s.eof() || !isIdentStart(s.src[s.pos]) {
		return "", false
	}
	start := s.pos
	s.pos++
	for !s.eof() && isIdentByte(s.src[s.pos]) {
		s.pos++
	}
	return s.src[start:s.pos], true
}

func (s *scanner) scanDigits() (string, bool) {
	start := s.pos
	for !s.eof() && s.src[s.pos] >= '0' && s.src[s.pos] <= '9' {
		s.pos++
	}
	if s.pos == start {
		return "", false
	}
	return s.src[start:s.pos], true
}

// scanString reads a "..." literal with \\, \", \/, \n, \t and \r escapes;
// any other escape is an error.
func (s *scanner) scanString() (string, error) {
	if !s.consumeByte('"') {
		return "", errAt(s.pos, "expected a quoted string")
	}
	var sb strings.Builder
	for {
		if s.eof() {
			return "", errAt(s.pos, "unterminated string literal")
		}
		c := s.src[s.pos]
		if c == '"' {
			s.pos++
			return sb.String(), nil
		}
		if c == '\\' {
			s.pos++
			if s.eof() {
				return "", errAt(s.pos, "unterminated string literal")
			}
			switch s.src[s.pos] {
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case '/':
				sb.WriteByte('/')
			default:
				return "", errAt(s.pos, "unknown escape sequence \\%c", s.src[s.pos])
			}
			s.pos++
			continue
		}
		sb.WriteByte(c)
		s.pos++
	}
}

// parseDecoder parses the program's mandatory leading clause: a
// slash-delimited regex or the bare word "json" (spec §6 "Decoder").
func (s *scanner) parseDecoder() (Decoder, error) {
	s.skipSpace()
	switch {
	case s.peekByte() == '/':
		pattern, err := s.scanRegex()
		if err != nil {
			return Decoder{}, err
		}
		return Decoder{Kind: DecoderRegex, Pattern: pattern}, nil
	case s.consumeKeyword("json"):
		return Decoder{Kind: DecoderJSON}, nil
	default:
		return Decoder{}, errAt(s.pos, "expected a decoder (/regex/ or json)")
	}
}

// scanRegex reads a /.../ literal, honoring \/ as an escaped literal slash
// (spec §6: "a literal slash inside the pattern is written \/"). Any other
// backslash sequence is passed through untouched, since it's regex syntax,
// not a decoder-literal escape.
func (s *scanner) scanRegex() (string, error) {
	start := s.pos
	s.pos++ // leading '/'
	var sb strings.Builder
	for {
		if s.eof() {
			return "", errAt(start, "unterminated regex literal")
		}
		c := s.src[s.pos]
		if c == '\\' && s.pos+1 < len(s.src) && s.src[s.pos+1] == '/' {
			sb.WriteByte('/')
			s.pos += 2
			continue
		}
		if c == '/' {
			s.pos++
			return sb.String(), nil
		}
		sb.WriteByte(c)
		s.pos++
	}
}

// tryOptionalPipeClause attempts to consume '|' followed by keyword kw. If
// either is absent, it rewinds to the snapshot taken before the attempt and
// reports matched=false; the clause's own inner parse errors (once kw did
// match) are always fatal.
func (s *scanner) tryOptionalPipeClause(kw string) (matched bool) {
	save := s.pos
	s.skipSpace()
	if !s.consumeByte('|') {
		s.pos = save
		return false
	}
	s.skipSpace()
	if !s.consumeKeyword(kw) {
		s.pos = save
		return false
	}
	return true
}

// tryMapperClause parses an optional `map { field (, field)* }` clause.
func (s *scanner) tryMapperClause() (*Mapper, bool, error) {
	if !s.tryOptionalPipeClause("map") {
		return nil, false, nil
	}

	s.skipSpace()
	if !s.consumeByte('{') {
		return nil, false, errAt(s.pos, "expected '{' after map")
	}

	var fields []MapperField
	for {
		s.skipSpace()
		if s.consumeByte('}') {
			break
		}
		if len(fields) > 0 {
			if !s.consumeByte(',') {
				return nil, false, errAt(s.pos, "expected ',' or '}' in field list")
			}
			s.skipSpace()
		}
		f, err := s.parseMapperField()
		if err != nil {
			return nil, false, err
		}
		fields = append(fields, f)
	}

	if len(fields) == 0 {
		return nil, false, errAt(s.pos, "map field list must not be empty")
	}
	if err := validateMapperFields(fields); err != nil {
		return nil, false, err
	}

	return &Mapper{Fields: fields}, true, nil
}

// parseMapperField parses one field-list entry: either a dynamic field
// (".pos" or ".name", an optional ":type", an optional "as alias") or a
// constant label ("name: \"value\"").
func (s *scanner) parseMapperField() (MapperField, error) {
	s.skipSpace()
	if s.peekByte() == '.' {
		return s.parseDynamicField()
	}
	return s.parseConstField()
}

func (s *scanner) parseDynamicField() (MapperField, error) {
	start := s.pos
	s.pos++ // '.'

	var loc FieldLoc
	if digits, ok := s.scanDigits(); ok {
		pos, err := strconv.Atoi(digits)
		if err != nil {
			return MapperField{}, errAt(start, "invalid field position %q", digits)
		}
		loc = FieldLoc{Position: pos}
	} else if name, ok := s.scanIdent(); ok {
		loc = FieldLoc{ByName: true, Name: name}
	} else {
		return MapperField{}, errAt(s.pos, "expected a field position or name after '.'")
	}

	f := MapperField{Loc: loc, Type: FieldAuto}

	s.skipSpace()
	if s.consumeByte(':') {
		s.skipSpace()
		typ, err := s.parseFieldType(&f)
		if err != nil {
			return MapperField{}, err
		}
		f.Type = typ
	}

	s.skipSpace()
	if s.consumeKeyword("as") {
		s.skipSpace()
		alias, ok := s.scanIdent()
		if !ok {
			return MapperField{}, errAt(s.pos, "expected an identifier after 'as'")
		}
		f.Alias = alias
	}

	return f, nil
}

func (s *scanner) parseFieldType(f *MapperField) (FieldType, error) {
	switch {
	case s.consumeKeyword("str"):
		return FieldString, nil
	case s.consumeKeyword("num"):
		return FieldNumber, nil
	case s.consumeKeyword("ts"):
		s.skipSpace()
		if s.peekByte() == '"' {
			layout, err := s.scanString()
			if err != nil {
				return FieldAuto, err
			}
			f.TSLayout = layout
		}
		return FieldTimestamp, nil
	default:
		return FieldAuto, errAt(s.pos, "expected a field type (str, num, ts)")
	}
}

func (s *scanner) parseConstField() (MapperField, error) {
	name, ok := s.scanIdent()
	if !ok {
		return MapperField{}, errAt(s.pos, "expected a field locator or a constant field name")
	}
	s.skipSpace()
	if !s.consumeByte(':') {
		return MapperField{}, errAt(s.pos, "expected ':' after constant field name %q", name)
	}
	s.skipSpace()
	value, err := s.scanString()
	if err != nil {
		return MapperField{}, err
	}
	return MapperField{Const: true, ConstName: name, ConstValue: value, Type: FieldString}, nil
}

// validateMapperFields enforces spec §6's field-list invariants: locators
// must all be positional or all be named (never mixed), at most one
// timestamp field, and no two fields resolving to the same end name.
func validateMapperFields(fields []MapperField) error {
	var positional, named bool
	tsCount := 0
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		if !f.Const {
			if f.Loc.ByName {
				named = true
			} else {
				positional = true
			}
		}
		if f.Type == FieldTimestamp {
			tsCount++
		}
		end := f.EndName()
		if seen[end] {
			return errAt(0, "duplicate field name %q in map clause", end)
		}
		seen[end] = true
	}

	if positional && named {
		return errAt(0, "map field list mixes positional and named locators")
	}
	if tsCount > 1 {
		return errAt(0, "map field list declares more than one timestamp field")
	}
	return nil
}

// tryQueryClause parses an optional `select <query-expr>` clause, using
// pkg/query/parser's prefix parser so trailing input (a '| formatter'
// clause) is left for the rest of the program grammar to consume.
func (s *scanner) tryQueryClause() (ast.Expr, bool, error) {
	if !s.tryOptionalPipeClause("select") {
		return nil, false, nil
	}

	s.skipSpace()
	expr, rest, err := parser.ParsePrefix(s.src[s.pos:])
	if err != nil {
		return nil, false, wrapQueryError(s.pos, err)
	}

	consumed := len(s.src) - s.pos - len(rest)
	s.pos += consumed
	return expr, true, nil
}

func wrapQueryError(base int, err error) error {
	if pe, ok := err.(*parser.ParseError); ok {
		return errAt(base, "in query: %s", pe.Msg)
	}
	return errAt(base, "in query: %s", err.Error())
}

// tryFormatterClause parses an optional trailing formatter clause. Each
// keyword is tried independently; tryOptionalPipeClause rewinds on its own
// mismatch, so failing one attempt leaves the scanner ready for the next.
func (s *scanner) tryFormatterClause() (FormatterKind, bool, error) {
	switch {
	case s.tryOptionalPipeClause("to_json"):
		return FormatJSON, true, nil
	case s.tryOptionalPipeClause("to_promapi"):
		return FormatPromAPI, true, nil
	case s.tryOptionalPipeClause("human_readable"):
		return FormatHumanReadable, true, nil
	default:
		return FormatHumanReadable, false, nil
	}
}

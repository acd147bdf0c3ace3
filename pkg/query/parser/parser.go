package parser

import (
	"strconv"
	"strings"
	"time"

	"github.com/iximiuz/pq/pkg/labels"
	"github.com/iximiuz/pq/pkg/query/ast"
)

var aggregateOps = map[string]ast.AggregateOp{
	"sum":          ast.AggSum,
	"min":          ast.AggMin,
	"max":          ast.AggMax,
	"avg":          ast.AggAvg,
	"count":        ast.AggCount,
	"group":        ast.AggGroup,
	"stddev":       ast.AggStddev,
	"stdvar":       ast.AggStdvar,
	"topk":         ast.AggTopK,
	"bottomk":      ast.AggBottomK,
	"quantile":     ast.AggQuantile,
	"count_values": ast.AggCountValues,
}

var knownFunctions = map[string]bool{
	"avg_over_time":   true,
	"count_over_time": true,
	"last_over_time":  true,
	"min_over_time":   true,
	"max_over_time":   true,
	"sum_over_time":   true,
	"vector":          true,
	"clamp":           true,
	"clamp_max":       true,
	"clamp_min":       true,
	"label_replace":   true,
}

var binaryKeywords = map[string]ast.BinaryOp{
	"or":     ast.OpOr,
	"and":    ast.OpAnd,
	"unless": ast.OpUnless,
}

var opTokens = map[string]ast.BinaryOp{
	"==": ast.OpEql,
	"!=": ast.OpNeq,
	">":  ast.OpGt,
	">=": ast.OpGte,
	"<":  ast.OpLt,
	"<=": ast.OpLte,
	"+":  ast.OpAdd,
	"-":  ast.OpSub,
	"*":  ast.OpMul,
	"/":  ast.OpDiv,
	"%":  ast.OpMod,
	"^":  ast.OpPow,
}

// unaryPrecedence is the binding power of a prefix +/-, equal to `*` per
// spec §4.1.
const unaryPrecedence = 50

// Parser turns a token stream into an ast.Expr.
type Parser struct {
	tokens []Token
	pos    int
}

// Parse parses src as a complete query expression, rejecting trailing
// input (spec §4.1).
func Parse(src string) (ast.Expr, error) {
	lx := NewLexer(src)
	var tokens []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			break
		}
	}

	p := &Parser{tokens: tokens}
	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.cur().Kind != TokEOF {
		return nil, errAt(p.cur(), "unexpected trailing input %s", p.cur())
	}
	return expr, nil
}

// ParsePrefix parses as much of src as forms one complete query expression
// and returns the unconsumed remainder, trimmed of leading space. It is used
// by pkg/program to parse the query clause embedded in a larger pipeline
// program, where trailing input (a '|' formatter clause) is expected rather
// than an error.
func ParsePrefix(src string) (ast.Expr, string, error) {
	lx := NewLexer(src)
	var tokens []Token
	for {
		tok, err := lx.Next()
		if err != nil {
			// '|' is not a query token; the query prefix ends in front of it.
			if pe, ok := err.(*ParseError); ok && tok.Pos < len(src) && src[tok.Pos] == '|' {
				tokens = append(tokens, Token{Kind: TokEOF, Line: pe.Line, Column: pe.Column, Pos: tok.Pos})
				break
			}
			return nil, "", err
		}
		tokens = append(tokens, tok)
		if tok.Kind == TokEOF {
			break
		}
	}

	p := &Parser{tokens: tokens}
	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, "", err
	}
	rest := strings.TrimLeft(src[p.cur().Pos:], " \t\n\r")
	return expr, rest, nil
}

func (p *Parser) cur() Token  { return p.tokens[p.pos] }
func (p *Parser) advance() Token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) expect(kind TokenKind, what string) (Token, error) {
	if p.cur().Kind != kind {
		return Token{}, errAt(p.cur(), "expected %s, found %s", what, p.cur())
	}
	return p.advance(), nil
}

func (p *Parser) expectIdent(text string) error {
	if p.cur().Kind != TokIdent || p.cur().Text != text {
		return errAt(p.cur(), "expected %q, found %s", text, p.cur())
	}
	p.advance()
	return nil
}

// peekBinaryOp reports whether the current token starts a binary operator,
// and which one.
func (p *Parser) peekBinaryOp() (ast.BinaryOp, bool) {
	tok := p.cur()
	if tok.Kind == TokOp {
		op, ok := opTokens[tok.Text]
		return op, ok
	}
	if tok.Kind == TokIdent {
		op, ok := binaryKeywords[tok.Text]
		return op, ok
	}
	return 0, false
}

func (p *Parser) parseExpr(minPrec int) (ast.Expr, error) {
	lhs, err := p.parseUnaryOrPrimary()
	if err != nil {
		return nil, err
	}

	for {
		op, ok := p.peekBinaryOp()
		if !ok {
			break
		}
		prec := op.Precedence()
		if prec < minPrec {
			break
		}
		opTok := p.advance()

		isBool, labelMatching, groupModifier, err := p.parseBinaryModifiers(op, opTok)
		if err != nil {
			return nil, err
		}

		nextMin := prec + 1
		if op.RightAssociative() {
			nextMin = prec
		}
		rhs, err := p.parseExpr(nextMin)
		if err != nil {
			return nil, err
		}
		lhs = &ast.BinaryExpr{
			Op:            op,
			LHS:           lhs,
			RHS:           rhs,
			Bool:          isBool,
			LabelMatching: labelMatching,
			GroupModifier: groupModifier,
		}
	}
	return lhs, nil
}

func (p *Parser) parseBinaryModifiers(op ast.BinaryOp, opTok Token) (bool, *ast.LabelMatching, *ast.GroupModifier, error) {
	isBool := false
	if p.cur().Kind == TokIdent && p.cur().Text == "bool" {
		p.advance()
		isBool = true
	}
	if isBool && !op.IsComparison() {
		return false, nil, nil, errAt(opTok, "bool modifier is only valid on comparison operators")
	}

	var lm *ast.LabelMatching
	if p.cur().Kind == TokIdent && (p.cur().Text == "on" || p.cur().Text == "ignoring") {
		if op.IsLogical() {
			return false, nil, nil, errAt(p.cur(), "on/ignoring is not permitted on logical operator %s", op)
		}
		on := p.cur().Text == "on"
		p.advance()
		labelsList, err := p.parseLabelNameList()
		if err != nil {
			return false, nil, nil, err
		}
		lm = &ast.LabelMatching{On: on, Labels: labelsList}
	}

	var gm *ast.GroupModifier
	if p.cur().Kind == TokIdent && (p.cur().Text == "group_left" || p.cur().Text == "group_right") {
		if op.IsLogical() {
			return false, nil, nil, errAt(p.cur(), "group_left/group_right is not permitted on logical operator %s", op)
		}
		if lm == nil {
			return false, nil, nil, errAt(p.cur(), "group_left/group_right requires a preceding on(...) or ignoring(...)")
		}
		card := ast.MatchManyToOne
		if p.cur().Text == "group_right" {
			card = ast.MatchOneToMany
		}
		p.advance()
		var include []string
		if p.cur().Kind == TokLParen {
			include, _ = p.parseLabelNameList()
		}
		gm = &ast.GroupModifier{Card: card, Include: include}
	}

	return isBool, lm, gm, nil
}

// parseLabelNameList parses a parenthesized, possibly empty, comma
// separated list of identifiers: `(a, b, c)`.
func (p *Parser) parseLabelNameList() ([]string, error) {
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var names []string
	for p.cur().Kind != TokRParen {
		tok, err := p.expect(TokIdent, "label name")
		if err != nil {
			return nil, err
		}
		names = append(names, tok.Text)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return names, nil
}

func (p *Parser) parseUnaryOrPrimary() (ast.Expr, error) {
	tok := p.cur()
	if tok.Kind == TokOp && (tok.Text == "+" || tok.Text == "-") {
		p.advance()
		operand, err := p.parseExpr(unaryPrecedence)
		if err != nil {
			return nil, err
		}
		op := ast.UnaryPlus
		if tok.Text == "-" {
			op = ast.UnaryMinus
		}
		return &ast.UnaryExpr{Op: op, Expr: operand}, nil
	}
	return p.parsePrimary()
}

func (p *Parser) parsePrimary() (ast.Expr, error) {
	tok := p.cur()
	switch tok.Kind {
	case TokNumber:
		p.advance()
		f, err := strconv.ParseFloat(tok.Text, 64)
		if err != nil {
			return nil, errAt(tok, "invalid number literal %q", tok.Text)
		}
		return &ast.NumberLiteral{Value: f}, nil

	case TokString:
		p.advance()
		return &ast.StringLiteral{Value: tok.Text}, nil

	case TokLParen:
		p.advance()
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		return &ast.Parentheses{Inner: inner}, nil

	case TokIdent:
		name := tok.Text
		if _, ok := aggregateOps[name]; ok {
			return p.parseAggregate(name)
		}
		if knownFunctions[name] && p.peekAhead(1).Kind == TokLParen {
			return p.parseFunctionCall(name)
		}
		return p.parseVectorSelector()

	default:
		return nil, errAt(tok, "expected an expression, found %s", tok)
	}
}

func (p *Parser) peekAhead(n int) Token {
	idx := p.pos + n
	if idx >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[idx]
}

func (p *Parser) parseAggregate(name string) (ast.Expr, error) {
	op := aggregateOps[name]
	p.advance() // consume op name

	modifier, err := p.tryParseAggregateModifier()
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}

	var param ast.Expr
	first, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	var inner ast.Expr
	if p.cur().Kind == TokComma {
		if !op.RequiresParam() {
			return nil, errAt(p.cur(), "%s does not take a parameter", name)
		}
		p.advance()
		param = first
		inner, err = p.parseExpr(0)
		if err != nil {
			return nil, err
		}
	} else {
		if op.RequiresParam() {
			return nil, errAt(p.cur(), "%s requires a leading parameter", name)
		}
		inner = first
	}

	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}

	if modifier == nil {
		modifier, err = p.tryParseAggregateModifier()
		if err != nil {
			return nil, err
		}
	}

	return &ast.AggregateExpr{Op: op, Inner: inner, Modifier: modifier, Param: param}, nil
}

func (p *Parser) tryParseAggregateModifier() (*ast.AggregateModifier, error) {
	if p.cur().Kind != TokIdent || (p.cur().Text != "by" && p.cur().Text != "without") {
		return nil, nil
	}
	by := p.cur().Text == "by"
	p.advance()
	names, err := p.parseLabelNameList()
	if err != nil {
		return nil, err
	}
	return &ast.AggregateModifier{By: by, Labels: names}, nil
}

func (p *Parser) parseFunctionCall(name string) (ast.Expr, error) {
	p.advance() // consume function name
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []ast.Expr
	for p.cur().Kind != TokRParen {
		arg, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if p.cur().Kind == TokComma {
			p.advance()
			continue
		}
		break
	}
	closeTok, err := p.expect(TokRParen, "')'")
	if err != nil {
		return nil, err
	}

	if name == "vector" {
		if len(args) != 1 {
			return nil, errAt(closeTok, "vector() takes exactly one argument")
		}
		if args[0].Kind() != ast.KindScalar {
			return nil, errAt(closeTok, "vector() argument must be a scalar")
		}
	}

	return ast.NewFunctionCall(name, args), nil
}

// parseVectorSelector parses `ident? '{' matcher_list? '}'? ('[' duration ']')?`
// requiring at least one of: a name, matchers, or braces with content
// (spec §4.1).
func (p *Parser) parseVectorSelector() (ast.Expr, error) {
	startTok := p.cur()
	var matchers []labels.Matcher
	nameTok := startTok
	hadName := false
	hadBraces := false

	if p.cur().Kind == TokIdent {
		nameTok = p.advance()
		hadName = true
	}

	if p.cur().Kind == TokLBrace {
		hadBraces = true
		p.advance()
		for p.cur().Kind != TokRBrace {
			m, err := p.parseMatcher()
			if err != nil {
				return nil, err
			}
			matchers = append(matchers, m)
			if p.cur().Kind == TokComma {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expect(TokRBrace, "'}'"); err != nil {
			return nil, err
		}
	}

	if !hadName && !hadBraces {
		return nil, errAt(p.cur(), "expected a metric name or '{', found %s", p.cur())
	}

	var rng *time.Duration
	if p.cur().Kind == TokLBracket {
		p.advance()
		durTok, err := p.expect(TokDuration, "duration")
		if err != nil {
			return nil, err
		}
		d, err := ast.ParseDuration(durTok.Text)
		if err != nil {
			return nil, errAt(durTok, "%s", err)
		}
		rng = &d
		if _, err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
	}

	// The braces-supplied matchers are validated against spec §3's
	// construction invariants *before* the synthetic name matcher (if any)
	// is added, mirroring the original implementation's VectorSelector::new,
	// which validates the user-supplied matcher list, then appends the name
	// matcher only on success.
	sel, err := ast.NewVectorSelector(matchers, hadName, rng)
	if err != nil {
		return nil, errAt(startTok, "%s", err)
	}
	if hadName {
		m, err := labels.NewMatcher(labels.MatchEqual, labels.MetricName, nameTok.Text)
		if err != nil {
			return nil, errAt(nameTok, "%s", err)
		}
		sel.Matchers = append(sel.Matchers, m)
	}
	return sel, nil
}

func (p *Parser) parseMatcher() (labels.Matcher, error) {
	nameTok, err := p.expect(TokIdent, "label name")
	if err != nil {
		return labels.Matcher{}, err
	}
	opTok := p.cur()
	var op labels.MatchOp
	if opTok.Kind != TokOp {
		return labels.Matcher{}, errAt(opTok, "expected a matcher operator (=, !=, =~, !~), found %s", opTok)
	}
	switch opTok.Text {
	case "=":
		op = labels.MatchEqual
	case "!=":
		op = labels.MatchNotEqual
	case "=~":
		op = labels.MatchRegexp
	case "!~":
		op = labels.MatchNotRegexp
	default:
		return labels.Matcher{}, errAt(opTok, "expected a matcher operator (=, !=, =~, !~), found %s", opTok)
	}
	p.advance()

	valueTok, err := p.expect(TokString, "string literal")
	if err != nil {
		return labels.Matcher{}, err
	}
	m, err := labels.NewMatcher(op, nameTok.Text, valueTok.Text)
	if err != nil {
		return labels.Matcher{}, errAt(valueTok, "%s", err)
	}
	return m, nil
}

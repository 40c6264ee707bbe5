package pil

import (
	"fmt"

	"github.com/ace-zkvm/ace/ast"
)

// Parser is a recursive-descent parser over the token stream a Lexer
// produces. It implements spec §2's stage A ("parse source text into a
// surface AST") for just the subset of PIL the condenser (package
// condenser) needs to see: column declarations, value/function
// definitions, public declarations, and identity statements. Full trait
// declarations, type inference, and machine/namespace nesting that the
// original language supports are intentionally thin here -- the condenser
// only requires a well-formed ast.Program, not a faithful reimplementation
// of the whole surface language (spec §1 Non-goals: "a from-scratch PIL
// compiler front end").
type Parser struct {
	toks []Token
	pos  int
	errs []error

	prog        *ast.Program
	nextIdentID int
}

// NewParser constructs a Parser over an already-lexed token stream.
func NewParser(toks []Token) *Parser {
	return &Parser{
		toks: toks,
		prog: &ast.Program{
			Definitions: map[string]*ast.Definition{},
		},
	}
}

// ParseSource lexes and parses src in one step, mirroring go-corset's
// compiler.ParseSourceFiles which folds lexing into the parse stage.
func ParseSource(src string) (*ast.Program, []error) {
	lx := NewLexer(src)
	toks, errs := lx.Tokenize()
	if len(errs) > 0 {
		return nil, errs
	}
	p := NewParser(toks)
	return p.Parse()
}

func (p *Parser) cur() Token {
	if p.pos >= len(p.toks) {
		return Token{Kind: TokEOF}
	}
	return p.toks[p.pos]
}

func (p *Parser) at(k TokenKind) bool { return p.cur().Kind == k }

func (p *Parser) atKeyword(kw string) bool {
	return p.cur().Kind == TokIdent && p.cur().Text == kw
}

func (p *Parser) advance() Token {
	t := p.cur()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *Parser) expect(k TokenKind, what string) (Token, bool) {
	if !p.at(k) {
		p.errs = append(p.errs, fmt.Errorf("pil:%d: expected %s, got %q", p.cur().Line, what, p.cur().Text))
		return Token{}, false
	}
	return p.advance(), true
}

// Parse runs the parser to completion, returning the resulting Program and
// any syntax errors encountered (errors are accumulated rather than fatal,
// matching go-corset's []SyntaxError accumulation so a single source file
// reports every problem in one pass).
func (p *Parser) Parse() (*ast.Program, []error) {
	for !p.at(TokEOF) {
		p.parseStatement()
	}
	if len(p.errs) > 0 {
		return nil, p.errs
	}
	return p.prog, nil
}

func (p *Parser) parseStatement() {
	switch {
	case p.atKeyword("col"):
		p.parseColDecl()
	case p.atKeyword("let"):
		p.parseLetDecl()
	case p.atKeyword("public"):
		p.parsePublicDecl()
	default:
		p.parseIdentityStatement()
	}
}

func (p *Parser) parseColDecl() {
	line := p.cur().Line
	p.advance() // "col"

	kind := ast.KindWitnessColumn
	switch {
	case p.atKeyword("witness"):
		p.advance()
		kind = ast.KindWitnessColumn
	case p.atKeyword("fixed"):
		p.advance()
		kind = ast.KindFixedColumn
	case p.atKeyword("intermediate"):
		p.advance()
		kind = ast.KindIntermediateColumn
	}

	name, ok := p.expect(TokIdent, "column name")
	if !ok {
		p.syncToSemicolon()
		return
	}

	var value ast.Expression
	if p.at(TokEq) {
		p.advance()
		value = p.parseExpr()
	}
	p.expect(TokSemicolon, "';'")

	p.prog.Definitions[name.Text] = &ast.Definition{Name: name.Text, Value: value, Kind: kind}
	p.appendSourceItem(ast.SourceItem{Kind: ast.SourceDefinition, Name: name.Text})
	_ = line
}

func (p *Parser) parseLetDecl() {
	p.advance() // "let"
	name, ok := p.expect(TokIdent, "identifier")
	if !ok {
		p.syncToSemicolon()
		return
	}

	var typ *ast.TypeScheme
	if p.at(TokColon) {
		p.advance()
		t := p.parseType()
		typ = &ast.TypeScheme{Body: t}
	}

	var value ast.Expression
	if p.at(TokEq) {
		p.advance()
		value = p.parseExpr()
	}
	p.expect(TokSemicolon, "';'")

	p.prog.Definitions[name.Text] = &ast.Definition{Name: name.Text, Type: typ, Value: value, Kind: ast.KindValue}
	p.appendSourceItem(ast.SourceItem{Kind: ast.SourceDefinition, Name: name.Text})
}

func (p *Parser) parsePublicDecl() {
	p.advance() // "public"
	name, ok := p.expect(TokIdent, "public name")
	if !ok {
		p.syncToSemicolon()
		return
	}
	p.expect(TokEq, "'='")
	col, ok := p.expect(TokIdent, "column reference")
	if !ok {
		p.syncToSemicolon()
		return
	}
	row := 0
	if p.at(TokLParen) {
		p.advance()
		numTok, ok := p.expect(TokNumber, "row index")
		if ok {
			n, valid := parseBigInt(numTok.Text)
			if valid {
				row = int(n.Int64())
			}
		}
		p.expect(TokRParen, "')'")
	}
	p.expect(TokSemicolon, "';'")

	p.prog.Publics = append(p.prog.Publics, &ast.PublicDecl{Name: name.Text, Column: col.Text, Row: row})
	p.appendSourceItem(ast.SourceItem{Kind: ast.SourcePublic, Name: name.Text})
}

func (p *Parser) parseIdentityStatement() {
	line := p.cur().Line
	expr := p.parseExpr()
	p.expect(TokSemicolon, "';'")

	idx := len(p.prog.Identities)
	p.prog.Identities = append(p.prog.Identities, &ast.IdentityStmt{Expr: expr, Line: line})
	p.appendSourceItem(ast.SourceItem{Kind: ast.SourceIdentity, Idx: idx})
}

func (p *Parser) appendSourceItem(item ast.SourceItem) {
	p.prog.SourceOrder = append(p.prog.SourceOrder, item)
}

// syncToSemicolon recovers from a parse error within one statement by
// skipping to the next ';', so one malformed statement does not cascade
// into unrelated errors for the rest of the file.
func (p *Parser) syncToSemicolon() {
	for !p.at(TokEOF) && !p.at(TokSemicolon) {
		p.advance()
	}
	if p.at(TokSemicolon) {
		p.advance()
	}
}

func (p *Parser) parseType() ast.Type {
	if p.at(TokIdent) {
		name := p.advance().Text
		if p.at(TokLBracket) {
			p.advance()
			p.expect(TokRBracket, "']'")
			return ast.Type{Args: []ast.Type{{Name: name}}}
		}
		if p.at(TokArrow) {
			p.advance()
			ret := p.parseType()
			return ast.Type{Args: []ast.Type{{Name: name}}, Ret: &ret}
		}
		return ast.Type{Name: name}
	}
	p.errs = append(p.errs, fmt.Errorf("pil:%d: expected type", p.cur().Line))
	return ast.Type{}
}

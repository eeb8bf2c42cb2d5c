package calc

import (
	"fmt"
	"strconv"
)

// Node is an expression tree node.
type Node interface {
	Eval() (float64, error)
}

// Number is a numeric literal.
type Number struct {
	Value float64
}

// Unary is a sign applied to an operand.
type Unary struct {
	Op TokenType
	X  Node
}

// Binary is an arithmetic operation. Pos locates the operator.
type Binary struct {
	Op   TokenType
	Pos  int
	L, R Node
}

// Parse builds an expression tree from tokens produced by Tokenize.
//
//	expr    := term (('+' | '-') term)*
//	term    := unary (('*' | '/') unary)*
//	unary   := ('-' | '+') unary | primary
//	primary := number | '(' expr ')'
func Parse(tokens []Token) (Node, error) {
	if len(tokens) == 0 || tokens[0].Type == TokenEOF {
		return nil, &Error{Kind: EmptyExpression, Pos: -1, Msg: "nothing to evaluate"}
	}
	if err := checkParens(tokens); err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.Type != TokenEOF {
		return nil, unexpected(t.Pos, fmt.Sprintf("unexpected %s", t.Type))
	}
	return n, nil
}

// checkParens reports unmatched parentheses before parsing so they are not
// mistaken for ordinary syntax errors.
func checkParens(tokens []Token) error {
	var open []int
	for _, t := range tokens {
		switch t.Type {
		case TokenLParen:
			open = append(open, t.Pos)
		case TokenRParen:
			if len(open) == 0 {
				return &Error{Kind: UnbalancedParentheses, Pos: t.Pos, Msg: "')' without matching '('"}
			}
			open = open[:len(open)-1]
		}
	}
	if len(open) > 0 {
		return &Error{Kind: UnbalancedParentheses, Pos: open[len(open)-1], Msg: "'(' is never closed"}
	}
	return nil
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() Token {
	return p.tokens[p.pos]
}

func (p *parser) next() Token {
	t := p.tokens[p.pos]
	if t.Type != TokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) expr() (Node, error) {
	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op.Type != TokenPlus && op.Type != TokenMinus {
			return left, nil
		}
		p.next()
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op.Type, Pos: op.Pos, L: left, R: right}
	}
}

func (p *parser) term() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek()
		if op.Type != TokenStar && op.Type != TokenSlash {
			return left, nil
		}
		p.next()
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &Binary{Op: op.Type, Pos: op.Pos, L: left, R: right}
	}
}

func (p *parser) unary() (Node, error) {
	if t := p.peek(); t.Type == TokenMinus || t.Type == TokenPlus {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &Unary{Op: t.Type, X: x}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.Type {
	case TokenNumber:
		v, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, unexpected(t.Pos, fmt.Sprintf("invalid number %q", t.Text))
		}
		return &Number{Value: v}, nil
	case TokenLParen:
		inner, err := p.expr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.Type != TokenRParen {
			return nil, unexpected(closing.Pos, fmt.Sprintf("expected ')', found %s", closing.Type))
		}
		return inner, nil
	case TokenEOF:
		return nil, unexpected(t.Pos, "unexpected end of expression")
	default:
		return nil, unexpected(t.Pos, fmt.Sprintf("unexpected %s", t.Type))
	}
}

// Package calc evaluates arithmetic expressions for the calculator provider.
//
// Evaluation runs in three independent stages: Tokenize turns text into
// tokens, Parse builds an expression tree by recursive descent, and Eval
// walks the tree. Format renders the result.
package calc

import (
	"fmt"
)

// TokenType identifies the kind of a lexical token.
type TokenType int

const (
	TokenNumber TokenType = iota
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenLParen
	TokenRParen
	TokenEOF
)

var tokenTypeNames = [...]string{
	TokenNumber: "number",
	TokenPlus:   "'+'",
	TokenMinus:  "'-'",
	TokenStar:   "'*'",
	TokenSlash:  "'/'",
	TokenLParen: "'('",
	TokenRParen: "')'",
	TokenEOF:    "end of expression",
}

func (t TokenType) String() string {
	if int(t) < len(tokenTypeNames) {
		return tokenTypeNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

// Token is one lexical item. Pos is the byte offset of its first
// character in the source.
type Token struct {
	Type TokenType
	Pos  int
	Text string
}

// Tokenize splits src into tokens, always ending with a TokenEOF whose Pos
// is len(src). Whitespace separates tokens and is otherwise ignored.
func Tokenize(src string) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || c == '.':
			start := i
			sawDigit, sawDot := false, false
			for i < len(src) && (isDigit(src[i]) || src[i] == '.') {
				if src[i] == '.' {
					if sawDot {
						return nil, unexpected(i, "second decimal point in number")
					}
					sawDot = true
				} else {
					sawDigit = true
				}
				i++
			}
			if !sawDigit {
				return nil, unexpected(start, "decimal point without digits")
			}
			tokens = append(tokens, Token{Type: TokenNumber, Pos: start, Text: src[start:i]})
		default:
			t, ok := operatorTokens[c]
			if !ok {
				return nil, unexpected(i, fmt.Sprintf("unexpected character %q", c))
			}
			tokens = append(tokens, Token{Type: t, Pos: i, Text: src[i : i+1]})
			i++
		}
	}
	tokens = append(tokens, Token{Type: TokenEOF, Pos: len(src)})
	return tokens, nil
}

var operatorTokens = map[byte]TokenType{
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'(': TokenLParen,
	')': TokenRParen,
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

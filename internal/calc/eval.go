package calc

import (
	"math"
	"strconv"
	"strings"
)

func (n *Number) Eval() (float64, error) { return n.Value, nil }

func (u *Unary) Eval() (float64, error) {
	v, err := u.X.Eval()
	if err != nil {
		return 0, err
	}
	if u.Op == TokenMinus {
		return -v, nil
	}
	return v, nil
}

func (b *Binary) Eval() (float64, error) {
	l, err := b.L.Eval()
	if err != nil {
		return 0, err
	}
	r, err := b.R.Eval()
	if err != nil {
		return 0, err
	}

	var v float64
	switch b.Op {
	case TokenPlus:
		v = l + r
	case TokenMinus:
		v = l - r
	case TokenStar:
		v = l * r
	case TokenSlash:
		if r == 0 {
			return 0, &Error{Kind: DivisionByZero, Pos: b.Pos, Msg: "division by zero"}
		}
		v = l / r
	default:
		return 0, unexpected(b.Pos, "unknown operator")
	}
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, &Error{Kind: NonFiniteResult, Pos: b.Pos, Msg: "result is out of range"}
	}
	return v, nil
}

// Evaluate tokenizes, parses and evaluates src, returning the formatted
// result.
func Evaluate(src string) (string, error) {
	tokens, err := Tokenize(src)
	if err != nil {
		return "", err
	}
	tree, err := Parse(tokens)
	if err != nil {
		return "", err
	}
	v, err := tree.Eval()
	if err != nil {
		return "", err
	}
	return Format(v), nil
}

// maxIntegral is the magnitude below which integral results are printed
// without a fractional part.
const maxIntegral = 1e15

// fractionDigits bounds the decimals printed for non-integral results.
const fractionDigits = 10

// Format renders v: integral values without a fractional part, others with
// at most fractionDigits decimals and no trailing zeros.
func Format(v float64) string {
	if v == 0 {
		return "0"
	}
	if v == math.Trunc(v) && math.Abs(v) < maxIntegral {
		return strconv.FormatInt(int64(v), 10)
	}
	s := strconv.FormatFloat(v, 'f', fractionDigits, 64)
	if strings.Contains(s, ".") {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

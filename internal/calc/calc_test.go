package calc

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func kindOf(err error) ErrorKind {
	var calcErr *Error
	if errors.As(err, &calcErr) {
		return calcErr.Kind
	}
	return 0
}

func posOf(err error) int {
	var calcErr *Error
	if errors.As(err, &calcErr) {
		return calcErr.Pos
	}
	return -2
}

var _ = Describe("Tokenize", func() {
	It("should split numbers and operators with positions", func() {
		tokens, err := Tokenize("12 + (3.5*.5)")
		Expect(err).NotTo(HaveOccurred())
		types := make([]TokenType, len(tokens))
		for i, t := range tokens {
			types[i] = t.Type
		}
		Expect(types).To(Equal([]TokenType{
			TokenNumber, TokenPlus, TokenLParen, TokenNumber, TokenStar, TokenNumber, TokenRParen, TokenEOF,
		}))
		Expect(tokens[0].Text).To(Equal("12"))
		Expect(tokens[1].Pos).To(Equal(3))
		Expect(tokens[5].Text).To(Equal(".5"))
		Expect(tokens[7].Pos).To(Equal(13))
	})

	It("should reject unknown characters with their position", func() {
		_, err := Tokenize("2 $ 3")
		Expect(kindOf(err)).To(Equal(UnexpectedToken))
		Expect(posOf(err)).To(Equal(2))
	})

	It("should reject a number with two decimal points", func() {
		_, err := Tokenize("1.2.3")
		Expect(kindOf(err)).To(Equal(UnexpectedToken))
		Expect(posOf(err)).To(Equal(3))
	})

	It("should reject a lone decimal point", func() {
		_, err := Tokenize("1 + .")
		Expect(kindOf(err)).To(Equal(UnexpectedToken))
		Expect(posOf(err)).To(Equal(4))
	})
})

var _ = Describe("Parse", func() {
	parse := func(src string) (Node, error) {
		tokens, err := Tokenize(src)
		Expect(err).NotTo(HaveOccurred())
		return Parse(tokens)
	}

	It("should bind * tighter than +", func() {
		tree, err := parse("1+2*3")
		Expect(err).NotTo(HaveOccurred())
		root, ok := tree.(*Binary)
		Expect(ok).To(BeTrue())
		Expect(root.Op).To(Equal(TokenPlus))
		Expect(root.R).To(BeAssignableToTypeOf(&Binary{}))
	})

	It("should be left associative", func() {
		tree, err := parse("8-3-2")
		Expect(err).NotTo(HaveOccurred())
		root := tree.(*Binary)
		Expect(root.L).To(BeAssignableToTypeOf(&Binary{}))
		Expect(root.R).To(Equal(&Number{Value: 2}))
	})

	It("should report an empty expression", func() {
		_, err := parse("   ")
		Expect(kindOf(err)).To(Equal(EmptyExpression))
	})

	DescribeTable("unbalanced parentheses",
		func(src string, pos int) {
			_, err := parse(src)
			Expect(kindOf(err)).To(Equal(UnbalancedParentheses))
			Expect(posOf(err)).To(Equal(pos))
		},
		Entry("missing close", "(2+3", 0),
		Entry("extra close", "2+3)", 3),
		Entry("nested missing close", "((1)", 0),
	)

	DescribeTable("syntax errors",
		func(src string, pos int) {
			_, err := parse(src)
			Expect(kindOf(err)).To(Equal(UnexpectedToken))
			Expect(posOf(err)).To(Equal(pos))
		},
		Entry("trailing operator", "2+", 2),
		Entry("empty parentheses", "()", 1),
		Entry("adjacent numbers", "2 3", 2),
		Entry("leading binary operator", "*2", 0),
		Entry("operator before close", "(2*)", 3),
	)
})

var _ = Describe("Evaluate", func() {
	DescribeTable("valid expressions",
		func(src, want string) {
			got, err := Evaluate(src)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("addition", "2+2", "4"),
		Entry("grouping", "(2+3)*4", "20"),
		Entry("precedence", "2+3*4", "14"),
		Entry("unary minus", "-3+5", "2"),
		Entry("double negation", "--3", "3"),
		Entry("unary plus", "+7", "7"),
		Entry("negated group", "-(2+3)", "-5"),
		Entry("fraction", "1/4", "0.25"),
		Entry("repeating fraction", "1/3", "0.3333333333"),
		Entry("decimal input", "1.5*2", "3"),
		Entry("whitespace", "  10 /  4 ", "2.5"),
		Entry("negative zero", "-0*5", "0"),
		Entry("large integral", "1000000*1000000*1000", "1000000000000000"),
	)

	It("should report division by zero at the operator", func() {
		_, err := Evaluate("1/0")
		Expect(kindOf(err)).To(Equal(DivisionByZero))
		Expect(posOf(err)).To(Equal(1))
		Expect(errors.Is(err, &Error{Kind: DivisionByZero})).To(BeTrue())
	})

	It("should report division by a zero-valued subexpression", func() {
		_, err := Evaluate("5/(2-2)")
		Expect(kindOf(err)).To(Equal(DivisionByZero))
	})

	It("should report results that overflow", func() {
		big := "1" + strings.Repeat("0", 200)
		_, err := Evaluate(big + "*" + big)
		Expect(kindOf(err)).To(Equal(NonFiniteResult))
	})

	It("should report an empty expression", func() {
		_, err := Evaluate("")
		Expect(kindOf(err)).To(Equal(EmptyExpression))
	})
})

var _ = Describe("Format", func() {
	DescribeTable("rendering",
		func(v float64, want string) {
			Expect(Format(v)).To(Equal(want))
		},
		Entry("integer", 42.0, "42"),
		Entry("negative integer", -7.0, "-7"),
		Entry("short fraction", 3.14159, "3.14159"),
		Entry("trimmed zeros", 0.5, "0.5"),
		Entry("bounded digits", 2.0/3.0, "0.6666666667"),
		Entry("beyond integral range", 1e20, "100000000000000000000"),
		Entry("tiny value", 1e-12, "0"),
		Entry("tiny negative value", -1e-12, "0"),
	)
})

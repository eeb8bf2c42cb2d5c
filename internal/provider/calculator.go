package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/0xADE/datacube/internal/calc"
	"github.com/0xADE/datacube/internal/config"
	"github.com/0xADE/datacube/proto"
)

// CalculatorIcon is the icon name set on calculator results.
const CalculatorIcon = "accessories-calculator"

// Calculator evaluates arithmetic expressions.
type Calculator struct {
	prefix string
}

// NewCalculator returns the calculator provider selected by prefix.
func NewCalculator(prefix string) *Calculator {
	return &Calculator{prefix: prefix}
}

func (c *Calculator) Name() string        { return config.ProviderCalculator }
func (c *Calculator) Description() string { return "Arithmetic with + - * / and parentheses" }
func (c *Calculator) Prefix() string      { return c.prefix }

// Query evaluates text. Evaluation errors are reported in the result with
// no items.
func (c *Calculator) Query(_ context.Context, text string, _ int) (Result, error) {
	value, err := calc.Evaluate(text)
	if err != nil {
		var ce *calc.Error
		if !errors.As(err, &ce) {
			return Result{}, err
		}
		return Result{Error: &proto.ErrorDescriptor{
			Kind:     ce.Kind.String(),
			Message:  ce.Msg,
			Position: ce.Pos,
		}}, nil
	}

	expr := strings.TrimSpace(text)
	return Result{Items: []proto.Item{{
		Label:   value,
		Detail:  expr + " =",
		Score:   1,
		Payload: value,
		Icon:    CalculatorIcon,
		Metadata: map[string]string{
			"expression": expr,
			"result":     value,
		},
	}}}, nil
}

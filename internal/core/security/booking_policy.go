// Package security provides clinic-level operation policies.
package security

import (
	"fmt"

	"github.com/google/cel-go/cel"

	"clinicore/internal/core/apperror"
)

// BookingInput carries the facts a booking rule can reference.
type BookingInput struct {
	// DurationMinutes is the appointment length.
	DurationMinutes int64
	// StartHour is the hour-of-day of the start time (0-23).
	StartHour int64
	// Weekday is the ISO weekday of the appointment date (1=Monday .. 7=Sunday).
	Weekday int64
	// LineCount is the number of treatment lines.
	LineCount int64
	// TotalAmount is the computed appointment total, as float for rule math.
	TotalAmount float64
}

// BookingPolicy validates appointment creation against a clinic-configured rule.
// The rule is a CEL expression over the BookingInput fields that must evaluate
// to true for the booking to be accepted, e.g.:
//
//	start_hour >= 8 && start_hour < 20 && duration_minutes <= 240
type BookingPolicy struct {
	expr string
	prg  cel.Program
}

// DefaultBookingRule accepts any appointment within working hours.
const DefaultBookingRule = "duration_minutes > 0"

// NewBookingPolicy compiles the rule expression once at startup.
func NewBookingPolicy(expr string) (*BookingPolicy, error) {
	if expr == "" {
		expr = DefaultBookingRule
	}

	env, err := cel.NewEnv(
		cel.Variable("duration_minutes", cel.IntType),
		cel.Variable("start_hour", cel.IntType),
		cel.Variable("weekday", cel.IntType),
		cel.Variable("line_count", cel.IntType),
		cel.Variable("total_amount", cel.DoubleType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile booking rule: %w", iss.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("booking rule must evaluate to bool, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build booking rule program: %w", err)
	}

	return &BookingPolicy{expr: expr, prg: prg}, nil
}

// MustBookingPolicy compiles the rule, panicking on error. Use for constants and tests.
func MustBookingPolicy(expr string) *BookingPolicy {
	p, err := NewBookingPolicy(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Check evaluates the rule and returns a business-rule error when it rejects.
func (p *BookingPolicy) Check(in BookingInput) error {
	out, _, err := p.prg.Eval(map[string]any{
		"duration_minutes": in.DurationMinutes,
		"start_hour":       in.StartHour,
		"weekday":          in.Weekday,
		"line_count":       in.LineCount,
		"total_amount":     in.TotalAmount,
	})
	if err != nil {
		return apperror.NewInternal(fmt.Errorf("evaluate booking rule: %w", err))
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return apperror.NewInternal(fmt.Errorf("booking rule returned non-bool %T", out.Value()))
	}
	if !ok {
		return apperror.NewBusinessRule(
			apperror.CodeBookingPolicy,
			"appointment rejected by clinic booking policy",
		).WithDetail("rule", p.expr)
	}

	return nil
}

// Rule returns the configured expression (for diagnostics).
func (p *BookingPolicy) Rule() string {
	return p.expr
}

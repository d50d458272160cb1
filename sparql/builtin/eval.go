package builtin

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

// Eval computes expr's value under row, consulting env for the
// capabilities Eval cannot provide on its own. A returned error means the
// expression is unbound or raised a type error, per §4.11's Option<Term>
// framing — callers (Filter, BIND) treat an error the same way SPARQL
// treats a type error: the solution is dropped (Filter) or the variable
// stays unbound (Extend/BIND), never a panic.
func Eval(ctx context.Context, expr algebra.Expr, row *binding.Binding, env Env) (rdf.Term, error) {
	switch e := expr.(type) {
	case *algebra.VarExpr:
		t, ok := row.Get(e.Variable.Name)
		if !ok {
			return nil, fmt.Errorf("builtin: unbound variable ?%s", e.Variable.Name)
		}
		return t, nil

	case *algebra.LitExpr:
		return e.Value, nil

	case *algebra.AggregateRefExpr:
		t, ok := row.Get(e.Variable.Name)
		if !ok {
			return nil, fmt.Errorf("builtin: unbound aggregate result ?%s", e.Variable.Name)
		}
		return t, nil

	case *algebra.UnaryExpr:
		return evalUnary(ctx, e, row, env)

	case *algebra.BinaryExpr:
		return evalBinary(ctx, e, row, env)

	case *algebra.FuncCallExpr:
		return evalFuncCall(ctx, e, row, env)

	case *algebra.ExistsExpr:
		found, err := env.ExistsMatch(ctx, e.Pattern, row)
		if err != nil {
			return nil, fmt.Errorf("builtin: exists: %w", err)
		}
		if e.Not {
			found = !found
		}
		return boolTerm(found), nil

	case *algebra.InExpr:
		return evalIn(ctx, e, row, env)

	default:
		return nil, fmt.Errorf("builtin: unsupported expression %T", expr)
	}
}

func evalUnary(ctx context.Context, e *algebra.UnaryExpr, row *binding.Binding, env Env) (rdf.Term, error) {
	v, err := Eval(ctx, e.Operand, row, env)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case algebra.OpNot:
		ebv, err := EffectiveBooleanValue(v)
		if err != nil {
			return nil, err
		}
		return boolTerm(!ebv), nil
	case algebra.OpNeg:
		n, err := numericValue(v)
		if err != nil {
			return nil, err
		}
		return numericTerm(-n, v), nil
	case algebra.OpPlus:
		if _, err := numericValue(v); err != nil {
			return nil, err
		}
		return v, nil
	default:
		return nil, fmt.Errorf("builtin: unknown unary operator %v", e.Op)
	}
}

func evalBinary(ctx context.Context, e *algebra.BinaryExpr, row *binding.Binding, env Env) (rdf.Term, error) {
	// && and || must short-circuit: the right operand is only evaluated
	// when the left doesn't already settle the result, and a left-hand
	// error is only fatal if the right side can't independently decide it.
	if e.Op == algebra.OpAnd || e.Op == algebra.OpOr {
		return evalShortCircuit(ctx, e, row, env)
	}

	left, err := Eval(ctx, e.Left, row, env)
	if err != nil {
		return nil, err
	}
	right, err := Eval(ctx, e.Right, row, env)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case algebra.OpEqual:
		return boolTerm(termEquals(left, right)), nil
	case algebra.OpNotEqual:
		return boolTerm(!termEquals(left, right)), nil
	case algebra.OpLess, algebra.OpLessEqual, algebra.OpGreater, algebra.OpGreaterEqual:
		return evalCompare(e.Op, left, right)
	case algebra.OpAdd, algebra.OpSubtract, algebra.OpMultiply, algebra.OpDivide:
		return evalArithmetic(e.Op, left, right)
	default:
		return nil, fmt.Errorf("builtin: unknown binary operator %v", e.Op)
	}
}

func evalShortCircuit(ctx context.Context, e *algebra.BinaryExpr, row *binding.Binding, env Env) (rdf.Term, error) {
	leftVal, leftErr := Eval(ctx, e.Left, row, env)
	var leftEBV *bool
	if leftErr == nil {
		ebv, err := EffectiveBooleanValue(leftVal)
		if err == nil {
			leftEBV = &ebv
		}
	}

	if e.Op == algebra.OpAnd && leftEBV != nil && !*leftEBV {
		return boolTerm(false), nil
	}
	if e.Op == algebra.OpOr && leftEBV != nil && *leftEBV {
		return boolTerm(true), nil
	}

	rightVal, rightErr := Eval(ctx, e.Right, row, env)
	var rightEBV *bool
	if rightErr == nil {
		ebv, err := EffectiveBooleanValue(rightVal)
		if err == nil {
			rightEBV = &ebv
		}
	}

	if e.Op == algebra.OpAnd && rightEBV != nil && !*rightEBV {
		return boolTerm(false), nil
	}
	if e.Op == algebra.OpOr && rightEBV != nil && *rightEBV {
		return boolTerm(true), nil
	}

	if leftErr != nil {
		return nil, leftErr
	}
	if rightErr != nil {
		return nil, rightErr
	}
	if leftEBV == nil || rightEBV == nil {
		return nil, fmt.Errorf("builtin: logical operand has no effective boolean value")
	}
	// Both sides evaluated to a usable boolean and neither short-circuited.
	return boolTerm(*leftEBV && *rightEBV), nil
}

func evalIn(ctx context.Context, e *algebra.InExpr, row *binding.Binding, env Env) (rdf.Term, error) {
	target, err := Eval(ctx, e.Target, row, env)
	if err != nil {
		return nil, err
	}
	var sawErr error
	for _, candidate := range e.Values {
		v, err := Eval(ctx, candidate, row, env)
		if err != nil {
			sawErr = err
			continue
		}
		if termEquals(target, v) {
			return boolTerm(!e.Not), nil
		}
	}
	if sawErr != nil {
		return nil, fmt.Errorf("builtin: in: %w", sawErr)
	}
	return boolTerm(e.Not), nil
}

func termEquals(a, b rdf.Term) bool {
	if a == nil || b == nil {
		return a == b
	}
	if al, ok := a.(*rdf.Literal); ok {
		if bl, ok := b.(*rdf.Literal); ok {
			if rdf.IsNumericDatatype(al.Datatype) && rdf.IsNumericDatatype(bl.Datatype) {
				an, aerr := numericValue(al)
				bn, berr := numericValue(bl)
				if aerr == nil && berr == nil {
					return an == bn
				}
			}
		}
	}
	return a.Equals(b)
}

func evalCompare(op algebra.BinaryOp, left, right rdf.Term) (rdf.Term, error) {
	ln, lerr := numericValue(left)
	rn, rerr := numericValue(right)
	if lerr == nil && rerr == nil {
		switch op {
		case algebra.OpLess:
			return boolTerm(ln < rn), nil
		case algebra.OpLessEqual:
			return boolTerm(ln <= rn), nil
		case algebra.OpGreater:
			return boolTerm(ln > rn), nil
		case algebra.OpGreaterEqual:
			return boolTerm(ln >= rn), nil
		}
	}
	ls, lok := stringValue(left)
	rs, rok := stringValue(right)
	if lok && rok {
		switch op {
		case algebra.OpLess:
			return boolTerm(ls < rs), nil
		case algebra.OpLessEqual:
			return boolTerm(ls <= rs), nil
		case algebra.OpGreater:
			return boolTerm(ls > rs), nil
		case algebra.OpGreaterEqual:
			return boolTerm(ls >= rs), nil
		}
	}
	return nil, fmt.Errorf("builtin: cannot order %s and %s", left, right)
}

func evalArithmetic(op algebra.BinaryOp, left, right rdf.Term) (rdf.Term, error) {
	ln, err := numericValue(left)
	if err != nil {
		return nil, err
	}
	rn, err := numericValue(right)
	if err != nil {
		return nil, err
	}
	switch op {
	case algebra.OpAdd:
		return numericTerm(ln+rn, left), nil
	case algebra.OpSubtract:
		return numericTerm(ln-rn, left), nil
	case algebra.OpMultiply:
		return numericTerm(ln*rn, left), nil
	case algebra.OpDivide:
		if rn == 0 && !isFloatingOperand(left) && !isFloatingOperand(right) {
			return nil, fmt.Errorf("builtin: division by zero")
		}
		return numericTerm(ln/rn, divideResultType(left, right)), nil
	default:
		return nil, fmt.Errorf("builtin: unknown arithmetic operator %v", op)
	}
}

// numericValue extracts a float64 from an rdf.Term that must be a numeric
// literal.
func numericValue(t rdf.Term) (float64, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return 0, fmt.Errorf("builtin: %s is not numeric", t)
	}
	if !rdf.IsNumericDatatype(lit.Datatype) {
		return 0, fmt.Errorf("builtin: %s is not numeric", t)
	}
	n, err := strconv.ParseFloat(lit.Lexical, 64)
	if err != nil {
		return 0, fmt.Errorf("builtin: invalid numeric lexical %q: %w", lit.Lexical, err)
	}
	return n, nil
}

// numericTerm formats n back into a literal, inheriting like's datatype
// when it is itself numeric (so an IRI/+1 arithmetic chain doesn't silently
// collapse everything to decimal) and defaulting to xsd:decimal otherwise.
func numericTerm(n float64, like rdf.Term) *rdf.Literal {
	dt := rdf.XSDDecimal
	if lit, ok := like.(*rdf.Literal); ok && rdf.IsNumericDatatype(lit.Datatype) {
		dt = lit.Datatype
	} else if iri, ok := like.(*rdf.IRI); ok {
		dt = iri
	}
	if math.IsNaN(n) {
		return rdf.NewTypedLiteral("NaN", dt)
	}
	if math.IsInf(n, 1) {
		return rdf.NewTypedLiteral("INF", dt)
	}
	if math.IsInf(n, -1) {
		return rdf.NewTypedLiteral("-INF", dt)
	}
	if dt.Value == rdf.XSDInteger.Value && n == math.Trunc(n) {
		return rdf.NewTypedLiteral(strconv.FormatInt(int64(n), 10), dt)
	}
	return rdf.NewTypedLiteral(strconv.FormatFloat(n, 'f', -1, 64), dt)
}

// isFloatingOperand reports whether t is an xsd:float or xsd:double literal,
// the two datatypes for which §4.11 requires IEEE 754 division semantics
// (INF/-INF/NaN) rather than a division-by-zero error.
func isFloatingOperand(t rdf.Term) bool {
	lit, ok := t.(*rdf.Literal)
	if !ok || lit.Datatype == nil {
		return false
	}
	return lit.Datatype.Value == rdf.XSDFloat.Value || lit.Datatype.Value == rdf.XSDDouble.Value
}

// divideResultType picks OpDivide's result datatype: xsd:double or xsd:float
// propagate (matching IEEE division's own operand type, promoting to double
// if the operands mix), otherwise integer/decimal division yields decimal
// per §4.11.
func divideResultType(left, right rdf.Term) *rdf.IRI {
	if isDatatype(left, rdf.XSDDouble) || isDatatype(right, rdf.XSDDouble) {
		return rdf.XSDDouble
	}
	if isDatatype(left, rdf.XSDFloat) || isDatatype(right, rdf.XSDFloat) {
		return rdf.XSDFloat
	}
	return rdf.XSDDecimal
}

func isDatatype(t rdf.Term, dt *rdf.IRI) bool {
	lit, ok := t.(*rdf.Literal)
	return ok && lit.Datatype != nil && lit.Datatype.Value == dt.Value
}

func stringValue(t rdf.Term) (string, bool) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return "", false
	}
	return lit.Lexical, true
}

func boolTerm(b bool) *rdf.Literal {
	if b {
		return rdf.NewTypedLiteral("true", rdf.XSDBoolean)
	}
	return rdf.NewTypedLiteral("false", rdf.XSDBoolean)
}

// EffectiveBooleanValue implements SPARQL's EBV coercion (§4.11): booleans
// pass through, numerics are false only at zero or NaN, strings are false
// only when empty, and anything else (IRI, blank node, non-numeric/string
// typed literal) has no EBV.
func EffectiveBooleanValue(t rdf.Term) (bool, error) {
	lit, ok := t.(*rdf.Literal)
	if !ok {
		return false, fmt.Errorf("builtin: %s has no effective boolean value", t)
	}
	if lit.Datatype != nil && lit.Datatype.Value == rdf.XSDBoolean.Value {
		return lit.Lexical == "true" || lit.Lexical == "1", nil
	}
	if rdf.IsNumericDatatype(lit.Datatype) {
		n, err := numericValue(lit)
		if err != nil {
			return false, err
		}
		return n != 0 && !math.IsNaN(n), nil
	}
	if lit.Datatype == nil || lit.Datatype.Value == rdf.XSDString.Value || lit.Language != "" {
		return lit.Lexical != "", nil
	}
	return false, fmt.Errorf("builtin: %s has no effective boolean value", t)
}

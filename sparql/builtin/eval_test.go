package builtin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

type fakeEnv struct {
	existsResult bool
	existsErr    error
	now          time.Time
}

func (f *fakeEnv) ExistsMatch(context.Context, algebra.Node, *binding.Binding) (bool, error) {
	return f.existsResult, f.existsErr
}
func (f *fakeEnv) Now() time.Time               { return f.now }
func (f *fakeEnv) FreshBlankNode() rdf.Term      { return rdf.NewBlankNode("fresh") }
func (f *fakeEnv) CustomFunction(iri string) (func(args []rdf.Term) (rdf.Term, error), bool) {
	if iri == "http://example.org/double" {
		return func(args []rdf.Term) (rdf.Term, error) {
			n, err := numericValue(args[0])
			if err != nil {
				return nil, err
			}
			return numericTerm(n*2, args[0]), nil
		}, true
	}
	return nil, false
}

func litInt(n int) *algebra.LitExpr {
	return &algebra.LitExpr{Value: rdf.NewTypedLiteral(itoa(n), rdf.XSDInteger)}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}

func TestEval_VarExpr_Bound(t *testing.T) {
	row := binding.New().Bind("x", rdf.NewIRI(":a"))
	v, err := Eval(context.Background(), &algebra.VarExpr{Variable: rdf.NewVariable("x")}, row, &fakeEnv{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	if !v.Equals(rdf.NewIRI(":a")) {
		t.Errorf("expected :a, got %v", v)
	}
}

func TestEval_VarExpr_Unbound(t *testing.T) {
	row := binding.New()
	_, err := Eval(context.Background(), &algebra.VarExpr{Variable: rdf.NewVariable("x")}, row, &fakeEnv{})
	if err == nil {
		t.Error("expected unbound error")
	}
}

func TestEval_Arithmetic(t *testing.T) {
	expr := &algebra.BinaryExpr{Op: algebra.OpAdd, Left: litInt(2), Right: litInt(3)}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	lit := v.(*rdf.Literal)
	if lit.Lexical != "5" {
		t.Errorf("expected 5, got %s", lit.Lexical)
	}
}

func TestEval_Arithmetic_IntegerDivideByZeroErrors(t *testing.T) {
	expr := &algebra.BinaryExpr{Op: algebra.OpDivide, Left: litInt(1), Right: litInt(0)}
	_, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err == nil {
		t.Fatal("expected integer division by zero to error")
	}
}

func TestEval_Arithmetic_DoubleDivideByZeroYieldsInf(t *testing.T) {
	left := &algebra.LitExpr{Value: rdf.NewTypedLiteral("1.0", rdf.XSDDouble)}
	right := &algebra.LitExpr{Value: rdf.NewTypedLiteral("0.0", rdf.XSDDouble)}
	expr := &algebra.BinaryExpr{Op: algebra.OpDivide, Left: left, Right: right}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("expected IEEE division by zero to succeed, got error: %v", err)
	}
	lit := v.(*rdf.Literal)
	if lit.Lexical != "INF" || !lit.Datatype.Equals(rdf.XSDDouble) {
		t.Errorf("expected xsd:double INF, got %q^^%s", lit.Lexical, lit.Datatype)
	}
}

func TestEval_Arithmetic_DoubleNegativeDivideByZeroYieldsNegInf(t *testing.T) {
	left := &algebra.LitExpr{Value: rdf.NewTypedLiteral("-1.0", rdf.XSDDouble)}
	right := &algebra.LitExpr{Value: rdf.NewTypedLiteral("0.0", rdf.XSDDouble)}
	expr := &algebra.BinaryExpr{Op: algebra.OpDivide, Left: left, Right: right}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("expected IEEE division by zero to succeed, got error: %v", err)
	}
	lit := v.(*rdf.Literal)
	if lit.Lexical != "-INF" {
		t.Errorf("expected -INF, got %q", lit.Lexical)
	}
}

func TestEval_And_ShortCircuitsOnFalseLeftWithoutEvaluatingRight(t *testing.T) {
	falseLit := &algebra.LitExpr{Value: rdf.NewTypedLiteral("false", rdf.XSDBoolean)}
	unboundRight := &algebra.VarExpr{Variable: rdf.NewVariable("never_bound")}
	expr := &algebra.BinaryExpr{Op: algebra.OpAnd, Left: falseLit, Right: unboundRight}

	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("expected short-circuit to suppress the right operand's error, got %v", err)
	}
	ebv, _ := EffectiveBooleanValue(v)
	if ebv {
		t.Error("expected false && <unbound> to be false")
	}
}

func TestEval_Or_ShortCircuitsOnTrueLeftWithoutEvaluatingRight(t *testing.T) {
	trueLit := &algebra.LitExpr{Value: rdf.NewTypedLiteral("true", rdf.XSDBoolean)}
	unboundRight := &algebra.VarExpr{Variable: rdf.NewVariable("never_bound")}
	expr := &algebra.BinaryExpr{Op: algebra.OpOr, Left: trueLit, Right: unboundRight}

	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("expected short-circuit to suppress the right operand's error, got %v", err)
	}
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected true || <unbound> to be true")
	}
}

func TestEval_And_ErrorPropagatesWhenNeitherSideShortCircuits(t *testing.T) {
	unboundLeft := &algebra.VarExpr{Variable: rdf.NewVariable("missing")}
	trueRight := &algebra.LitExpr{Value: rdf.NewTypedLiteral("true", rdf.XSDBoolean)}
	expr := &algebra.BinaryExpr{Op: algebra.OpAnd, Left: unboundLeft, Right: trueRight}

	_, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err == nil {
		t.Error("expected an error: unbound && true cannot be decided without the left side")
	}
}

func TestEval_Exists(t *testing.T) {
	expr := &algebra.ExistsExpr{Pattern: &algebra.BGP{}}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{existsResult: true})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected EXISTS to be true")
	}
}

func TestEval_Exists_PropagatesError(t *testing.T) {
	expr := &algebra.ExistsExpr{Pattern: &algebra.BGP{}}
	_, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{existsErr: errors.New("boom")})
	if err == nil {
		t.Error("expected error to propagate")
	}
}

func TestEval_InExpr(t *testing.T) {
	target := &algebra.LitExpr{Value: rdf.NewIRI(":b")}
	values := []algebra.Expr{&algebra.LitExpr{Value: rdf.NewIRI(":a")}, &algebra.LitExpr{Value: rdf.NewIRI(":b")}}
	expr := &algebra.InExpr{Target: target, Values: values}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected IN to be true")
	}
}

func TestEval_CustomFunction(t *testing.T) {
	expr := &algebra.FuncCallExpr{Name: "http://example.org/double", Args: []algebra.Expr{litInt(21)}}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	lit := v.(*rdf.Literal)
	if lit.Lexical != "42" {
		t.Errorf("expected 42, got %s", lit.Lexical)
	}
}

func TestEffectiveBooleanValue_NumericZeroIsFalse(t *testing.T) {
	ebv, err := EffectiveBooleanValue(rdf.NewTypedLiteral("0", rdf.XSDInteger))
	if err != nil {
		t.Fatalf("ebv: %v", err)
	}
	if ebv {
		t.Error("expected 0 to be false")
	}
}

func TestEffectiveBooleanValue_IRIHasNone(t *testing.T) {
	_, err := EffectiveBooleanValue(rdf.NewIRI(":a"))
	if err == nil {
		t.Error("expected an IRI to have no effective boolean value")
	}
}

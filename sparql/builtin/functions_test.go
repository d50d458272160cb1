package builtin

import (
	"context"
	"testing"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

func call(t *testing.T, name string, args ...algebra.Expr) rdf.Term {
	t.Helper()
	v, err := Eval(context.Background(), &algebra.FuncCallExpr{Name: name, Args: args}, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func lit(s string) *algebra.LitExpr { return &algebra.LitExpr{Value: rdf.NewLiteral(s)} }
func iri(s string) *algebra.LitExpr { return &algebra.LitExpr{Value: rdf.NewIRI(s)} }

func TestFn_Strlen(t *testing.T) {
	v := call(t, "STRLEN", lit("hello"))
	if v.(*rdf.Literal).Lexical != "5" {
		t.Errorf("expected 5, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_Substr_TwoArgs(t *testing.T) {
	v := call(t, "SUBSTR", lit("hello"), litInt(2))
	if v.(*rdf.Literal).Lexical != "ello" {
		t.Errorf("expected ello, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_Substr_ThreeArgs(t *testing.T) {
	v := call(t, "SUBSTR", lit("hello"), litInt(2), litInt(3))
	if v.(*rdf.Literal).Lexical != "ell" {
		t.Errorf("expected ell, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_Contains(t *testing.T) {
	v := call(t, "CONTAINS", lit("hello world"), lit("world"))
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected CONTAINS to be true")
	}
}

func TestFn_StrStartsEnds(t *testing.T) {
	v := call(t, "STRSTARTS", lit("hello"), lit("he"))
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected STRSTARTS to be true")
	}
	v = call(t, "STRENDS", lit("hello"), lit("lo"))
	ebv, _ = EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected STRENDS to be true")
	}
}

func TestFn_Concat(t *testing.T) {
	v := call(t, "CONCAT", lit("foo"), lit("bar"))
	if v.(*rdf.Literal).Lexical != "foobar" {
		t.Errorf("expected foobar, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_UcaseLcase(t *testing.T) {
	v := call(t, "UCASE", lit("Hello"))
	if v.(*rdf.Literal).Lexical != "HELLO" {
		t.Errorf("expected HELLO, got %s", v.(*rdf.Literal).Lexical)
	}
	v = call(t, "LCASE", lit("Hello"))
	if v.(*rdf.Literal).Lexical != "hello" {
		t.Errorf("expected hello, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_IsIRI_IsLiteral(t *testing.T) {
	v := call(t, "ISIRI", iri(":a"))
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected ISIRI(:a) to be true")
	}
	v = call(t, "ISLITERAL", lit("x"))
	ebv, _ = EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected ISLITERAL to be true")
	}
}

func TestFn_Abs(t *testing.T) {
	v := call(t, "ABS", litInt(-7))
	if v.(*rdf.Literal).Lexical != "7" {
		t.Errorf("expected 7, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_Hash_MD5Deterministic(t *testing.T) {
	v1 := call(t, "MD5", lit("hello"))
	v2 := call(t, "MD5", lit("hello"))
	if v1.(*rdf.Literal).Lexical != v2.(*rdf.Literal).Lexical {
		t.Error("expected MD5 to be deterministic")
	}
	if len(v1.(*rdf.Literal).Lexical) != 32 {
		t.Errorf("expected 32 hex chars, got %d", len(v1.(*rdf.Literal).Lexical))
	}
}

func TestFn_SameTerm(t *testing.T) {
	v := call(t, "SAMETERM", iri(":a"), iri(":a"))
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected SAMETERM(:a, :a) to be true")
	}
	v = call(t, "SAMETERM", iri(":a"), iri(":b"))
	ebv, _ = EffectiveBooleanValue(v)
	if ebv {
		t.Error("expected SAMETERM(:a, :b) to be false")
	}
}

func TestFn_BNode_DelegatesToEnv(t *testing.T) {
	v, err := Eval(context.Background(), &algebra.FuncCallExpr{Name: "BNODE"}, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("bnode: %v", err)
	}
	if _, ok := v.(*rdf.BlankNode); !ok {
		t.Errorf("expected a blank node, got %T", v)
	}
}

func TestFn_Bound_TrueWhenBound(t *testing.T) {
	row := binding.New().Bind("x", rdf.NewIRI(":a"))
	expr := &algebra.FuncCallExpr{Name: "BOUND", Args: []algebra.Expr{&algebra.VarExpr{Variable: rdf.NewVariable("x")}}}
	v, err := Eval(context.Background(), expr, row, &fakeEnv{})
	if err != nil {
		t.Fatalf("bound: %v", err)
	}
	ebv, _ := EffectiveBooleanValue(v)
	if !ebv {
		t.Error("expected BOUND(?x) to be true")
	}
}

func TestFn_Bound_FalseWhenUnboundDoesNotError(t *testing.T) {
	row := binding.New()
	expr := &algebra.FuncCallExpr{Name: "BOUND", Args: []algebra.Expr{&algebra.VarExpr{Variable: rdf.NewVariable("never")}}}
	v, err := Eval(context.Background(), expr, row, &fakeEnv{})
	if err != nil {
		t.Fatalf("expected BOUND to never error on an unbound var, got %v", err)
	}
	ebv, _ := EffectiveBooleanValue(v)
	if ebv {
		t.Error("expected BOUND(?never) to be false")
	}
}

func TestFn_Coalesce_SkipsErroringArgsAndReturnsFirstUsable(t *testing.T) {
	row := binding.New()
	expr := &algebra.FuncCallExpr{Name: "COALESCE", Args: []algebra.Expr{
		&algebra.VarExpr{Variable: rdf.NewVariable("unbound")},
		lit("fallback"),
	}}
	v, err := Eval(context.Background(), expr, row, &fakeEnv{})
	if err != nil {
		t.Fatalf("coalesce: %v", err)
	}
	if v.(*rdf.Literal).Lexical != "fallback" {
		t.Errorf("expected fallback, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_Coalesce_AllErrorPropagatesLastError(t *testing.T) {
	row := binding.New()
	expr := &algebra.FuncCallExpr{Name: "COALESCE", Args: []algebra.Expr{
		&algebra.VarExpr{Variable: rdf.NewVariable("a")},
		&algebra.VarExpr{Variable: rdf.NewVariable("b")},
	}}
	_, err := Eval(context.Background(), expr, row, &fakeEnv{})
	if err == nil {
		t.Error("expected an error when every COALESCE argument is unbound")
	}
}

func TestFn_If_EvaluatesOnlySelectedBranch(t *testing.T) {
	trueCond := &algebra.LitExpr{Value: rdf.NewTypedLiteral("true", rdf.XSDBoolean)}
	unboundBranch := &algebra.VarExpr{Variable: rdf.NewVariable("never_evaluated")}
	expr := &algebra.FuncCallExpr{Name: "IF", Args: []algebra.Expr{trueCond, lit("taken"), unboundBranch}}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("expected IF to never evaluate its untaken branch, got %v", err)
	}
	if v.(*rdf.Literal).Lexical != "taken" {
		t.Errorf("expected taken, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_If_FalseBranchTaken(t *testing.T) {
	falseCond := &algebra.LitExpr{Value: rdf.NewTypedLiteral("false", rdf.XSDBoolean)}
	unboundBranch := &algebra.VarExpr{Variable: rdf.NewVariable("never_evaluated")}
	expr := &algebra.FuncCallExpr{Name: "IF", Args: []algebra.Expr{falseCond, unboundBranch, lit("else")}}
	v, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err != nil {
		t.Fatalf("expected IF to never evaluate its untaken branch, got %v", err)
	}
	if v.(*rdf.Literal).Lexical != "else" {
		t.Errorf("expected else, got %s", v.(*rdf.Literal).Lexical)
	}
}

func TestFn_CustomFunction_UnknownIRIErrors(t *testing.T) {
	expr := &algebra.FuncCallExpr{Name: "http://example.org/nonexistent", Args: []algebra.Expr{lit("x")}}
	_, err := Eval(context.Background(), expr, binding.New(), &fakeEnv{})
	if err == nil {
		t.Error("expected an error for an unregistered custom function")
	}
}

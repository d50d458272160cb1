package builtin

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/quadstore/quadstore/rdf"
	"github.com/quadstore/quadstore/sparql/algebra"
	"github.com/quadstore/quadstore/sparql/binding"
)

func evalFuncCall(ctx context.Context, e *algebra.FuncCallExpr, row *binding.Binding, env Env) (rdf.Term, error) {
	// BOUND never errors on an unbound operand — that is the question it
	// answers — so it must intercept its argument before the generic
	// eager-evaluate-every-arg path below, which would propagate the
	// "unbound variable" error instead.
	switch strings.ToUpper(e.Name) {
	case "BOUND":
		if err := requireArgs("BOUND", e.Args, 1); err != nil {
			return nil, err
		}
		varExpr, ok := e.Args[0].(*algebra.VarExpr)
		if !ok {
			return nil, fmt.Errorf("builtin: BOUND expects a variable")
		}
		_, isBound := row.Get(varExpr.Variable.Name)
		return boolTerm(isBound), nil

	case "COALESCE":
		// Each argument is tried in turn; an error (typically an unbound
		// variable) just moves on to the next one instead of failing the
		// whole expression, so arguments must be evaluated lazily here.
		var lastErr error
		for _, a := range e.Args {
			v, err := Eval(ctx, a, row, env)
			if err != nil {
				lastErr = err
				continue
			}
			return v, nil
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("builtin: coalesce: no arguments")
		}
		return nil, fmt.Errorf("builtin: coalesce: %w", lastErr)

	case "IF":
		if err := requireArgs("IF", e.Args, 3); err != nil {
			return nil, err
		}
		cond, err := Eval(ctx, e.Args[0], row, env)
		if err != nil {
			return nil, err
		}
		ebv, err := EffectiveBooleanValue(cond)
		if err != nil {
			return nil, err
		}
		if ebv {
			return Eval(ctx, e.Args[1], row, env)
		}
		return Eval(ctx, e.Args[2], row, env)
	}

	args := make([]rdf.Term, len(e.Args))
	for i, a := range e.Args {
		v, err := Eval(ctx, a, row, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	if fn, ok := builtinFunctions[strings.ToUpper(e.Name)]; ok {
		return fn(ctx, args, row, env)
	}

	if custom, ok := env.CustomFunction(e.Name); ok {
		v, err := custom(args)
		if err != nil {
			return nil, fmt.Errorf("builtin: custom function %s: %w", e.Name, err)
		}
		return v, nil
	}

	return nil, fmt.Errorf("builtin: unknown function %s", e.Name)
}

type builtinFunc func(ctx context.Context, args []rdf.Term, row *binding.Binding, env Env) (rdf.Term, error)

func requireArgs(name string, args []rdf.Term, n int) error {
	if len(args) != n {
		return fmt.Errorf("builtin: %s expects %d argument(s), got %d", name, n, len(args))
	}
	return nil
}

func requireString(name string, t rdf.Term) (string, error) {
	s, ok := stringValue(t)
	if !ok {
		return "", fmt.Errorf("builtin: %s expects a string literal, got %s", name, t)
	}
	return s, nil
}

var builtinFunctions map[string]builtinFunc

func init() {
	builtinFunctions = map[string]builtinFunc{
		"STR":            fnStr,
		"LANG":           fnLang,
		"DATATYPE":       fnDatatype,
		"ISIRI":          fnIsIRI,
		"ISURI":          fnIsIRI,
		"ISBLANK":        fnIsBlank,
		"ISLITERAL":      fnIsLiteral,
		"ISNUMERIC":      fnIsNumeric,
		"STRLEN":         fnStrlen,
		"SUBSTR":         fnSubstr,
		"UCASE":          fnUcase,
		"LCASE":          fnLcase,
		"CONTAINS":       fnContains,
		"STRSTARTS":      fnStrStarts,
		"STRENDS":        fnStrEnds,
		"CONCAT":         fnConcat,
		"REPLACE":        fnReplace,
		"ABS":            fnAbs,
		"CEIL":           fnCeil,
		"FLOOR":          fnFloor,
		"ROUND":          fnRound,
		"NOW":            fnNow,
		"MD5":            fnHash(md5Sum),
		"SHA1":           fnHash(sha1Sum),
		"SHA256":         fnHash(sha256Sum),
		"SHA512":         fnHash(sha512Sum),
		"UUID":           fnUUID,
		"STRUUID":        fnStrUUID,
		"ENCODE_FOR_URI": fnEncodeForURI,
		"LANGMATCHES":    fnLangMatches,
		"SAMETERM":       fnSameTerm,
		"BNODE":          fnBNode,
	}
}

func fnStr(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("STR", args, 1); err != nil {
		return nil, err
	}
	switch t := args[0].(type) {
	case *rdf.IRI:
		return rdf.NewLiteral(t.Value), nil
	case *rdf.Literal:
		return rdf.NewLiteral(t.Lexical), nil
	default:
		return nil, fmt.Errorf("builtin: STR undefined for %s", t)
	}
}

func fnLang(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("LANG", args, 1); err != nil {
		return nil, err
	}
	lit, ok := args[0].(*rdf.Literal)
	if !ok {
		return nil, fmt.Errorf("builtin: LANG expects a literal")
	}
	return rdf.NewLiteral(lit.Language), nil
}

func fnDatatype(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("DATATYPE", args, 1); err != nil {
		return nil, err
	}
	lit, ok := args[0].(*rdf.Literal)
	if !ok {
		return nil, fmt.Errorf("builtin: DATATYPE expects a literal")
	}
	if lit.Datatype == nil {
		return rdf.XSDString, nil
	}
	return lit.Datatype, nil
}

func fnIsIRI(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	_, ok := args[0].(*rdf.IRI)
	return boolTerm(ok), nil
}

func fnIsBlank(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	_, ok := args[0].(*rdf.BlankNode)
	return boolTerm(ok), nil
}

func fnIsLiteral(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	_, ok := args[0].(*rdf.Literal)
	return boolTerm(ok), nil
}

func fnIsNumeric(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	lit, ok := args[0].(*rdf.Literal)
	return boolTerm(ok && rdf.IsNumericDatatype(lit.Datatype)), nil
}

func fnStrlen(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("STRLEN", args, 1); err != nil {
		return nil, err
	}
	s, err := requireString("STRLEN", args[0])
	if err != nil {
		return nil, err
	}
	return rdf.NewTypedLiteral(strconv.Itoa(len([]rune(s))), rdf.XSDInteger), nil
}

func fnSubstr(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if len(args) != 2 && len(args) != 3 {
		return nil, fmt.Errorf("builtin: SUBSTR expects 2 or 3 arguments")
	}
	s, err := requireString("SUBSTR", args[0])
	if err != nil {
		return nil, err
	}
	start, err := numericValue(args[1])
	if err != nil {
		return nil, err
	}
	runes := []rune(s)
	from := int(start) - 1
	if from < 0 {
		from = 0
	}
	if from > len(runes) {
		from = len(runes)
	}
	to := len(runes)
	if len(args) == 3 {
		length, err := numericValue(args[2])
		if err != nil {
			return nil, err
		}
		to = from + int(length)
		if to > len(runes) {
			to = len(runes)
		}
		if to < from {
			to = from
		}
	}
	return rdf.NewLiteral(string(runes[from:to])), nil
}

func fnUcase(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	s, err := requireString("UCASE", args[0])
	if err != nil {
		return nil, err
	}
	return rdf.NewLiteral(strings.ToUpper(s)), nil
}

func fnLcase(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	s, err := requireString("LCASE", args[0])
	if err != nil {
		return nil, err
	}
	return rdf.NewLiteral(strings.ToLower(s)), nil
}

func fnContains(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("CONTAINS", args, 2); err != nil {
		return nil, err
	}
	s, err := requireString("CONTAINS", args[0])
	if err != nil {
		return nil, err
	}
	sub, err := requireString("CONTAINS", args[1])
	if err != nil {
		return nil, err
	}
	return boolTerm(strings.Contains(s, sub)), nil
}

func fnStrStarts(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("STRSTARTS", args, 2); err != nil {
		return nil, err
	}
	s, err := requireString("STRSTARTS", args[0])
	if err != nil {
		return nil, err
	}
	prefix, err := requireString("STRSTARTS", args[1])
	if err != nil {
		return nil, err
	}
	return boolTerm(strings.HasPrefix(s, prefix)), nil
}

func fnStrEnds(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("STRENDS", args, 2); err != nil {
		return nil, err
	}
	s, err := requireString("STRENDS", args[0])
	if err != nil {
		return nil, err
	}
	suffix, err := requireString("STRENDS", args[1])
	if err != nil {
		return nil, err
	}
	return boolTerm(strings.HasSuffix(s, suffix)), nil
}

func fnConcat(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	var sb strings.Builder
	for _, a := range args {
		s, err := requireString("CONCAT", a)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	return rdf.NewLiteral(sb.String()), nil
}

func fnReplace(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("REPLACE", args, 3); err != nil {
		return nil, err
	}
	s, err := requireString("REPLACE", args[0])
	if err != nil {
		return nil, err
	}
	pattern, err := requireString("REPLACE", args[1])
	if err != nil {
		return nil, err
	}
	replacement, err := requireString("REPLACE", args[2])
	if err != nil {
		return nil, err
	}
	return rdf.NewLiteral(strings.ReplaceAll(s, pattern, replacement)), nil
}

func fnAbs(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	n, err := numericValue(args[0])
	if err != nil {
		return nil, err
	}
	return numericTerm(math.Abs(n), args[0]), nil
}

func fnCeil(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	n, err := numericValue(args[0])
	if err != nil {
		return nil, err
	}
	return numericTerm(math.Ceil(n), args[0]), nil
}

func fnFloor(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	n, err := numericValue(args[0])
	if err != nil {
		return nil, err
	}
	return numericTerm(math.Floor(n), args[0]), nil
}

func fnRound(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	n, err := numericValue(args[0])
	if err != nil {
		return nil, err
	}
	return numericTerm(math.Round(n), args[0]), nil
}

func fnNow(_ context.Context, args []rdf.Term, _ *binding.Binding, env Env) (rdf.Term, error) {
	if err := requireArgs("NOW", args, 0); err != nil {
		return nil, err
	}
	return rdf.NewTypedLiteral(env.Now().Format("2006-01-02T15:04:05.999999999Z07:00"), rdf.XSDDateTime), nil
}

func md5Sum(b []byte) []byte    { sum := md5.Sum(b); return sum[:] }
func sha1Sum(b []byte) []byte   { sum := sha1.Sum(b); return sum[:] }
func sha256Sum(b []byte) []byte { sum := sha256.Sum256(b); return sum[:] }
func sha512Sum(b []byte) []byte { sum := sha512.Sum512(b); return sum[:] }

func fnHash(sum func([]byte) []byte) builtinFunc {
	return func(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
		s, err := requireString("hash function", args[0])
		if err != nil {
			return nil, err
		}
		return rdf.NewLiteral(hex.EncodeToString(sum([]byte(s)))), nil
	}
}

func fnUUID(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("UUID", args, 0); err != nil {
		return nil, err
	}
	return rdf.NewIRI("urn:uuid:" + uuid.NewString()), nil
}

func fnStrUUID(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("STRUUID", args, 0); err != nil {
		return nil, err
	}
	return rdf.NewLiteral(uuid.NewString()), nil
}

func fnEncodeForURI(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	s, err := requireString("ENCODE_FOR_URI", args[0])
	if err != nil {
		return nil, err
	}
	return rdf.NewLiteral(url.QueryEscape(s)), nil
}

func fnLangMatches(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("LANGMATCHES", args, 2); err != nil {
		return nil, err
	}
	tag, err := requireString("LANGMATCHES", args[0])
	if err != nil {
		return nil, err
	}
	want, err := requireString("LANGMATCHES", args[1])
	if err != nil {
		return nil, err
	}
	if want == "*" {
		return boolTerm(tag != ""), nil
	}
	return boolTerm(strings.EqualFold(tag, want) || strings.HasPrefix(strings.ToLower(tag), strings.ToLower(want)+"-")), nil
}

func fnSameTerm(_ context.Context, args []rdf.Term, _ *binding.Binding, _ Env) (rdf.Term, error) {
	if err := requireArgs("SAMETERM", args, 2); err != nil {
		return nil, err
	}
	return boolTerm(args[0].Equals(args[1])), nil
}

func fnBNode(_ context.Context, args []rdf.Term, _ *binding.Binding, env Env) (rdf.Term, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("builtin: BNODE expects 0 or 1 arguments")
	}
	return env.FreshBlankNode(), nil
}

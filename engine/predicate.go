package engine

import (
	"fmt"

	"github.com/scardb/scardb/ast"
	"github.com/scardb/scardb/enginerr"
	"github.com/scardb/scardb/value"
)

// binding associates one table (by its name or query alias) with the
// schema and row currently being evaluated against it. SELECT and
// UPDATE/DELETE on a single table use exactly one binding; a two-table
// JOIN uses two.
type binding struct {
	name string
	row  []value.Value
	cols []string // column names in schema declaration order
}

// tupleCtx is the evaluation context for one candidate output row: the
// set of table bindings an Expr's ColumnRef nodes resolve against.
type tupleCtx struct {
	bindings []binding
}

func (c tupleCtx) resolve(ref ast.ColumnRef) (value.Value, error) {
	const op = "engine.resolveColumn"
	if ref.Table != "" {
		for _, b := range c.bindings {
			if b.name != ref.Table {
				continue
			}
			for i, cn := range b.cols {
				if cn == ref.Column {
					return b.row[i], nil
				}
			}
			return value.Value{}, enginerr.New(op, enginerr.ErrUnknownColumn, fmt.Errorf("%s.%s", ref.Table, ref.Column))
		}
		return value.Value{}, enginerr.New(op, enginerr.ErrUnknownColumn, fmt.Errorf("no table %q in scope", ref.Table))
	}
	for _, b := range c.bindings {
		for i, cn := range b.cols {
			if cn == ref.Column {
				return b.row[i], nil
			}
		}
	}
	return value.Value{}, enginerr.New(op, enginerr.ErrUnknownColumn, fmt.Errorf("%s", ref.Column))
}

// literalValue converts an ast.Literal's native Go payload into a
// value.Value.
func literalValue(lit ast.Literal) (value.Value, error) {
	switch v := lit.Val.(type) {
	case bool:
		return value.Bool(v), nil
	case int64:
		return value.Int(v), nil
	case int:
		return value.Int(int64(v)), nil
	case string:
		return value.Varchar(v), nil
	default:
		return value.Value{}, enginerr.New("engine.literalValue", enginerr.ErrUnsupported, fmt.Errorf("unsupported literal type %T", v))
	}
}

// evalScalar evaluates a ColumnRef or Literal leaf expression to a
// value.Value. Comparison/And/Or/Not are handled by evalPredicate.
func evalScalar(ctx tupleCtx, e ast.Expr) (value.Value, error) {
	switch ex := e.(type) {
	case ast.ColumnRef:
		return ctx.resolve(ex)
	case ast.Literal:
		return literalValue(ex)
	default:
		return value.Value{}, enginerr.New("engine.evalScalar", enginerr.ErrUnsupported, fmt.Errorf("%T is not a scalar expression", e))
	}
}

// evalPredicate evaluates a WHERE/ON boolean expression tree: a flat
// switch over Comparison/And/Or/Not, per spec.md §9's guidance to avoid
// a visitor pattern built on runtime polymorphism.
func evalPredicate(ctx tupleCtx, e ast.Expr) (bool, error) {
	switch ex := e.(type) {
	case ast.Comparison:
		lv, err := evalScalar(ctx, ex.Left)
		if err != nil {
			return false, err
		}
		rv, err := evalScalar(ctx, ex.Right)
		if err != nil {
			return false, err
		}
		c, err := value.Compare(lv, rv)
		if err != nil {
			return false, enginerr.New("engine.evalPredicate", enginerr.ErrTypeMismatch, err)
		}
		switch ex.Op {
		case ast.OpEq:
			return c == 0, nil
		case ast.OpNe:
			return c != 0, nil
		case ast.OpLt:
			return c < 0, nil
		case ast.OpLe:
			return c <= 0, nil
		case ast.OpGt:
			return c > 0, nil
		case ast.OpGe:
			return c >= 0, nil
		default:
			return false, enginerr.New("engine.evalPredicate", enginerr.ErrUnsupported, fmt.Errorf("comparison op %v", ex.Op))
		}
	case ast.And:
		l, err := evalPredicate(ctx, ex.Left)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return evalPredicate(ctx, ex.Right)
	case ast.Or:
		l, err := evalPredicate(ctx, ex.Left)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return evalPredicate(ctx, ex.Right)
	case ast.Not:
		v, err := evalPredicate(ctx, ex.Expr)
		if err != nil {
			return false, err
		}
		return !v, nil
	default:
		return false, enginerr.New("engine.evalPredicate", enginerr.ErrUnsupported, fmt.Errorf("%T is not a boolean expression", e))
	}
}

// pkEquality inspects where and reports (literal value, true) if it is
// exactly `pk_column = literal` with no conjunction — the one shape the
// planner may turn into an Index Lookup (spec.md §4.6).
func pkEquality(where ast.Expr, pkName string) (value.Value, bool) {
	cmp, ok := where.(ast.Comparison)
	if !ok || cmp.Op != ast.OpEq {
		return value.Value{}, false
	}
	ref, lit, ok := splitRefLiteral(cmp.Left, cmp.Right)
	if !ok || ref.Column != pkName {
		return value.Value{}, false
	}
	v, err := literalValue(lit)
	if err != nil {
		return value.Value{}, false
	}
	return v, true
}

func splitRefLiteral(a, b ast.Expr) (ast.ColumnRef, ast.Literal, bool) {
	if ref, ok := a.(ast.ColumnRef); ok {
		if lit, ok := b.(ast.Literal); ok {
			return ref, lit, true
		}
	}
	if ref, ok := b.(ast.ColumnRef); ok {
		if lit, ok := a.(ast.Literal); ok {
			return ref, lit, true
		}
	}
	return ast.ColumnRef{}, ast.Literal{}, false
}

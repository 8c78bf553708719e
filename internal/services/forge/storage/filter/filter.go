// Package filter parses AIP-160 filter expressions over esprit stacks. A
// parsed Expr renders as a SQL condition for the SQLite store and evaluates
// directly against stacks for the in-memory store.
package filter

import (
	"fmt"
	"strings"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"

	"github.com/louisbranch/espritforge/internal/services/forge/domain/esprit"
)

// Declarations returns the identifiers a stack filter may reference.
func Declarations() (*filtering.Declarations, error) {
	return filtering.NewDeclarations(
		filtering.DeclareStandardFunctions(),
		filtering.DeclareIdent("element", filtering.TypeString),
		filtering.DeclareIdent("base_id", filtering.TypeString),
		filtering.DeclareIdent("tier", filtering.TypeInt),
		filtering.DeclareIdent("awakening_level", filtering.TypeInt),
		filtering.DeclareIdent("quantity", filtering.TypeInt),
	)
}

// SQLCondition is a WHERE clause fragment with positional parameters.
type SQLCondition struct {
	Clause string
	Params []any
}

type field struct {
	column string
	str    func(esprit.Stack) string
	num    func(esprit.Stack) int64
}

var fields = map[string]field{
	"element":         {column: "element", str: func(s esprit.Stack) string { return string(s.Element) }},
	"base_id":         {column: "base_id", str: func(s esprit.Stack) string { return s.BaseID }},
	"tier":            {column: "tier", num: func(s esprit.Stack) int64 { return int64(s.Tier) }},
	"awakening_level": {column: "awakening_level", num: func(s esprit.Stack) int64 { return int64(s.AwakeningLevel) }},
	"quantity":        {column: "quantity", num: func(s esprit.Stack) int64 { return int64(s.Quantity) }},
}

// Expr is a parsed filter. The zero value and nil both match everything.
type Expr struct {
	source string
	root   node
}

type node interface {
	sql() SQLCondition
	match(esprit.Stack) bool
}

// Parse parses an AIP-160 filter. A blank filter returns nil.
func Parse(filterStr string) (*Expr, error) {
	if strings.TrimSpace(filterStr) == "" {
		return nil, nil
	}
	decls, err := Declarations()
	if err != nil {
		return nil, fmt.Errorf("create declarations: %w", err)
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	root, err := translateExpr(parsed.CheckedExpr.GetExpr())
	if err != nil {
		return nil, err
	}
	return &Expr{source: filterStr, root: root}, nil
}

// String returns the filter text as given to Parse.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.source
}

// SQL renders the filter as a WHERE fragment. An empty filter yields an
// empty clause.
func (e *Expr) SQL() SQLCondition {
	if e == nil || e.root == nil {
		return SQLCondition{}
	}
	return e.root.sql()
}

// Match evaluates the filter against one stack.
func (e *Expr) Match(s esprit.Stack) bool {
	if e == nil || e.root == nil {
		return true
	}
	return e.root.match(s)
}

func translateExpr(e *expr.Expr) (node, error) {
	if e == nil {
		return nil, nil
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return translateCall(kind.CallExpr)
	default:
		return nil, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func translateCall(call *expr.Expr_Call) (node, error) {
	switch call.Function {
	case filtering.FunctionAnd:
		return translateJunction(call.Args, "AND")
	case filtering.FunctionOr:
		return translateJunction(call.Args, "OR")
	case filtering.FunctionNot:
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("NOT requires 1 argument")
		}
		inner, err := translateExpr(call.Args[0])
		if err != nil {
			return nil, err
		}
		return notNode{inner: inner}, nil
	case filtering.FunctionEquals:
		return translateComparison(call.Args, "=")
	case filtering.FunctionNotEquals:
		return translateComparison(call.Args, "!=")
	case filtering.FunctionLessThan:
		return translateComparison(call.Args, "<")
	case filtering.FunctionLessEquals:
		return translateComparison(call.Args, "<=")
	case filtering.FunctionGreaterThan:
		return translateComparison(call.Args, ">")
	case filtering.FunctionGreaterEquals:
		return translateComparison(call.Args, ">=")
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func translateJunction(args []*expr.Expr, op string) (node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s requires 2 arguments", op)
	}
	left, err := translateExpr(args[0])
	if err != nil {
		return nil, err
	}
	right, err := translateExpr(args[1])
	if err != nil {
		return nil, err
	}
	return junction{op: op, left: left, right: right}, nil
}

func translateComparison(args []*expr.Expr, op string) (node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}
	name, err := extractFieldName(args[0])
	if err != nil {
		return nil, err
	}
	f, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", name)
	}
	value, err := extractConstValue(args[1])
	if err != nil {
		return nil, err
	}
	c := comparison{field: f, op: op}
	switch v := value.(type) {
	case string:
		if f.str == nil {
			return nil, fmt.Errorf("field %s expects a number", name)
		}
		c.str = v
	case int64:
		if f.num == nil {
			return nil, fmt.Errorf("field %s expects a string", name)
		}
		c.num = v
	default:
		return nil, fmt.Errorf("unsupported value %v for field %s", value, name)
	}
	return c, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractConstValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	kind, ok := e.ExprKind.(*expr.Expr_ConstExpr)
	if !ok {
		return nil, fmt.Errorf("expected constant, got %T", e.ExprKind)
	}
	switch c := kind.ConstExpr.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return c.StringValue, nil
	case *expr.Constant_Int64Value:
		return c.Int64Value, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", c)
	}
}

type junction struct {
	op          string
	left, right node
}

func (j junction) sql() SQLCondition {
	l, r := j.left.sql(), j.right.sql()
	return SQLCondition{
		Clause: fmt.Sprintf("(%s %s %s)", l.Clause, j.op, r.Clause),
		Params: append(l.Params, r.Params...),
	}
}

func (j junction) match(s esprit.Stack) bool {
	if j.op == "AND" {
		return j.left.match(s) && j.right.match(s)
	}
	return j.left.match(s) || j.right.match(s)
}

type notNode struct{ inner node }

func (n notNode) sql() SQLCondition {
	c := n.inner.sql()
	return SQLCondition{Clause: fmt.Sprintf("NOT (%s)", c.Clause), Params: c.Params}
}

func (n notNode) match(s esprit.Stack) bool { return !n.inner.match(s) }

type comparison struct {
	field field
	op    string
	str   string
	num   int64
}

func (c comparison) sql() SQLCondition {
	var param any = c.num
	if c.field.str != nil {
		param = c.str
	}
	return SQLCondition{Clause: fmt.Sprintf("%s %s ?", c.field.column, c.op), Params: []any{param}}
}

func (c comparison) match(s esprit.Stack) bool {
	var cmp int
	if c.field.str != nil {
		cmp = strings.Compare(c.field.str(s), c.str)
	} else {
		v := c.field.num(s)
		switch {
		case v < c.num:
			cmp = -1
		case v > c.num:
			cmp = 1
		}
	}
	switch c.op {
	case "=":
		return cmp == 0
	case "!=":
		return cmp != 0
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

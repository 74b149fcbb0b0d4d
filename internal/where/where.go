package where

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/chromaffi/internal/metadata"
)

// ErrInvalidFilter is returned for filters that do not follow the grammar.
var ErrInvalidFilter = errors.New("where: invalid filter")

// Source is what an expression is evaluated against.
type Source interface {
	// Universe returns the live record offsets. Callers must not modify it.
	Universe() *roaring.Bitmap
	// Metadata returns the inverted metadata index.
	Metadata() *metadata.Index
	// Document returns the text of the record at offset id.
	Document(id uint32) (string, bool)
}

// Expr is a parsed filter expression.
type Expr interface {
	// Eval returns the matching offsets, always a subset of the universe.
	Eval(src Source) *roaring.Bitmap
	String() string
}

// Op is a comparison operator.
type Op string

// Operators.
const (
	OpEq          Op = "$eq"
	OpNe          Op = "$ne"
	OpGt          Op = "$gt"
	OpGte         Op = "$gte"
	OpLt          Op = "$lt"
	OpLte         Op = "$lte"
	OpIn          Op = "$in"
	OpNin         Op = "$nin"
	OpAnd         Op = "$and"
	OpOr          Op = "$or"
	OpContains    Op = "$contains"
	OpNotContains Op = "$not_contains"
	OpRegex       Op = "$regex"
	OpNotRegex    Op = "$not_regex"
)

// Compare matches a single metadata key against a value.
type Compare struct {
	Key   string
	Op    Op
	Value metadata.Value
}

// Eval implements Expr.
func (c *Compare) Eval(src Source) *roaring.Bitmap {
	ix := src.Metadata()

	var out *roaring.Bitmap
	switch c.Op {
	case OpEq:
		out = ix.Equal(c.Key, c.Value)
	case OpNe:
		out = roaring.AndNot(src.Universe(), ix.Equal(c.Key, c.Value))
	default:
		out = ix.Match(c.Key, func(v metadata.Value) bool {
			r, ok := v.Compare(c.Value)
			if !ok {
				return false
			}
			switch c.Op {
			case OpGt:
				return r > 0
			case OpGte:
				return r >= 0
			case OpLt:
				return r < 0
			case OpLte:
				return r <= 0
			}
			return false
		})
	}
	out.And(src.Universe())
	return out
}

func (c *Compare) String() string {
	v, _ := c.Value.MarshalJSON()
	return fmt.Sprintf("%s %s %s", c.Key, c.Op, v)
}

// Set matches a metadata key against a list of values.
type Set struct {
	Key    string
	Negate bool
	Values []metadata.Value
}

// Eval implements Expr.
func (s *Set) Eval(src Source) *roaring.Bitmap {
	in := src.Metadata().In(s.Key, s.Values)
	if s.Negate {
		return roaring.AndNot(src.Universe(), in)
	}
	in.And(src.Universe())
	return in
}

func (s *Set) String() string {
	op := OpIn
	if s.Negate {
		op = OpNin
	}
	parts := make([]string, len(s.Values))
	for i, v := range s.Values {
		b, _ := v.MarshalJSON()
		parts[i] = string(b)
	}
	return fmt.Sprintf("%s %s [%s]", s.Key, op, strings.Join(parts, ","))
}

// Logical combines child expressions with $and or $or.
type Logical struct {
	Op       Op
	Children []Expr
}

// Eval implements Expr.
func (l *Logical) Eval(src Source) *roaring.Bitmap {
	var out *roaring.Bitmap
	for _, c := range l.Children {
		bm := c.Eval(src)
		switch {
		case out == nil:
			out = bm
		case l.Op == OpAnd:
			out.And(bm)
		default:
			out.Or(bm)
		}
		if l.Op == OpAnd && out.IsEmpty() {
			break
		}
	}
	if out == nil {
		return src.Universe().Clone()
	}
	return out
}

func (l *Logical) String() string {
	parts := make([]string, len(l.Children))
	for i, c := range l.Children {
		parts[i] = "(" + c.String() + ")"
	}
	return strings.Join(parts, " "+string(l.Op)+" ")
}

// Text matches the record document by substring or regular expression.
type Text struct {
	Op      Op
	Pattern string
	re      *regexp.Regexp
}

// Eval implements Expr.
func (t *Text) Eval(src Source) *roaring.Bitmap {
	matches := roaring.New()
	it := src.Universe().Iterator()
	for it.HasNext() {
		id := it.Next()
		doc, ok := src.Document(id)
		if !ok {
			continue
		}
		var hit bool
		if t.re != nil {
			hit = t.re.MatchString(doc)
		} else {
			hit = strings.Contains(doc, t.Pattern)
		}
		if hit {
			matches.Add(id)
		}
	}
	if t.Op == OpNotContains || t.Op == OpNotRegex {
		return roaring.AndNot(src.Universe(), matches)
	}
	return matches
}

func (t *Text) String() string {
	return fmt.Sprintf("document %s %q", t.Op, t.Pattern)
}

// Combine joins non-nil expressions with $and. It returns nil if all are nil.
func Combine(exprs ...Expr) Expr {
	var children []Expr
	for _, e := range exprs {
		if e != nil {
			children = append(children, e)
		}
	}
	switch len(children) {
	case 0:
		return nil
	case 1:
		return children[0]
	default:
		return &Logical{Op: OpAnd, Children: children}
	}
}

// ParseWhere parses a metadata filter. An empty object yields a nil Expr.
func ParseWhere(data []byte) (Expr, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return parseWhereObject(obj)
}

// ParseWhereDocument parses a document filter. An empty object yields a nil Expr.
func ParseWhereDocument(data []byte) (Expr, error) {
	obj, err := decodeObject(data)
	if err != nil {
		return nil, err
	}
	if len(obj) == 0 {
		return nil, nil
	}
	return parseDocumentObject(obj)
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFilter, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", ErrInvalidFilter)
	}
	if obj == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrInvalidFilter)
	}
	return obj, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidFilter, fmt.Sprintf(format, args...))
}

// sortedKeys keeps parse output deterministic.
func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func parseWhereObject(obj map[string]any) (Expr, error) {
	if len(obj) == 0 {
		return nil, invalid("empty where expression")
	}

	exprs := make([]Expr, 0, len(obj))
	for _, k := range sortedKeys(obj) {
		var (
			e   Expr
			err error
		)
		switch Op(k) {
		case OpAnd, OpOr:
			e, err = parseLogical(Op(k), obj[k], parseWhereObject)
		default:
			if strings.HasPrefix(k, "$") {
				return nil, invalid("unsupported operator %s at top level", k)
			}
			e, err = parseField(k, obj[k])
		}
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	return Combine(exprs...), nil
}

func parseLogical(op Op, raw any, parse func(map[string]any) (Expr, error)) (Expr, error) {
	list, ok := raw.([]any)
	if !ok || len(list) == 0 {
		return nil, invalid("expected %s to be a non-empty list of expressions", op)
	}
	children := make([]Expr, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, invalid("%s element %d is not an object", op, i)
		}
		e, err := parse(obj)
		if err != nil {
			return nil, err
		}
		children = append(children, e)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return &Logical{Op: op, Children: children}, nil
}

func scalar(raw any) (metadata.Value, error) {
	v, err := metadata.FromAny(raw)
	if err != nil {
		return metadata.Value{}, err
	}
	if v.Kind == metadata.KindNull {
		return metadata.Value{}, errors.New("null is not a valid operand")
	}
	return v, nil
}

func parseField(key string, raw any) (Expr, error) {
	opObj, ok := raw.(map[string]any)
	if !ok {
		v, err := scalar(raw)
		if err != nil {
			return nil, invalid("key %q: %v", key, err)
		}
		return &Compare{Key: key, Op: OpEq, Value: v}, nil
	}

	if len(opObj) != 1 {
		return nil, invalid("key %q: expected exactly one operator, got %d", key, len(opObj))
	}

	for name, operand := range opObj {
		switch op := Op(name); op {
		case OpEq, OpNe:
			v, err := scalar(operand)
			if err != nil {
				return nil, invalid("key %q: %s: %v", key, op, err)
			}
			return &Compare{Key: key, Op: op, Value: v}, nil
		case OpGt, OpGte, OpLt, OpLte:
			v, err := scalar(operand)
			if err != nil {
				return nil, invalid("key %q: %s: %v", key, op, err)
			}
			if !v.IsNumeric() {
				return nil, invalid("key %q: %s requires a numeric operand", key, op)
			}
			return &Compare{Key: key, Op: op, Value: v}, nil
		case OpIn, OpNin:
			list, ok := operand.([]any)
			if !ok || len(list) == 0 {
				return nil, invalid("key %q: %s requires a non-empty list", key, op)
			}
			values := make([]metadata.Value, len(list))
			for i, item := range list {
				v, err := scalar(item)
				if err != nil {
					return nil, invalid("key %q: %s element %d: %v", key, op, i, err)
				}
				values[i] = v
			}
			return &Set{Key: key, Negate: op == OpNin, Values: values}, nil
		default:
			return nil, invalid("key %q: unsupported operator %s", key, name)
		}
	}
	panic("unreachable")
}

func parseDocumentObject(obj map[string]any) (Expr, error) {
	if len(obj) != 1 {
		return nil, invalid("where_document expects exactly one operator, got %d", len(obj))
	}

	for name, operand := range obj {
		switch op := Op(name); op {
		case OpAnd, OpOr:
			return parseLogical(op, operand, parseDocumentObject)
		case OpContains, OpNotContains:
			s, ok := operand.(string)
			if !ok {
				return nil, invalid("%s requires a string operand", op)
			}
			return &Text{Op: op, Pattern: s}, nil
		case OpRegex, OpNotRegex:
			s, ok := operand.(string)
			if !ok {
				return nil, invalid("%s requires a string operand", op)
			}
			re, err := regexp.Compile(s)
			if err != nil {
				return nil, invalid("%s: %v", op, err)
			}
			return &Text{Op: op, Pattern: s, re: re}, nil
		default:
			return nil, invalid("unsupported where_document operator %s", name)
		}
	}
	panic("unreachable")
}

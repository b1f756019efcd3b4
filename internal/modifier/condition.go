package modifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Facts is the flattened view of a pricing context a condition tree is
// evaluated against.
type Facts struct {
	Quantity      int
	OrderValue    decimal.Decimal
	SegmentCode   string
	SegmentTier   int
	Country       string
	Pincode       string
	Authenticated bool
	// Attributes maps selected attribute type to its value.
	Attributes map[string]string
}

// Condition is a closed combination rule: a comparison leaf or a boolean
// composite. The sealed interface keeps the tree a tagged variant rather
// than an arbitrary nested structure.
type Condition interface {
	Eval(f Facts) (bool, error)
	isCondition()
}

// Comparison operators supported by Cmp leaves.
const (
	OpEq       = "eq"
	OpNe       = "ne"
	OpGt       = "gt"
	OpGte      = "gte"
	OpLt       = "lt"
	OpLte      = "lte"
	OpIn       = "in"
	OpContains = "contains"
)

// Cmp compares a context field against a literal value.
type Cmp struct {
	Field string
	Op    string
	Value string
}

// And is true when every child is true. An empty And is true.
type And struct {
	All []Condition
}

// Or is true when any child is true. An empty Or is false.
type Or struct {
	Any []Condition
}

// Not negates its child.
type Not struct {
	Cond Condition
}

func (Cmp) isCondition() {}
func (And) isCondition() {}
func (Or) isCondition()  {}
func (Not) isCondition() {}

// Eval resolves the field and applies the operator.
func (c Cmp) Eval(f Facts) (bool, error) {
	actual, ok := f.lookup(c.Field)
	if !ok {
		return false, fmt.Errorf("condition: unknown field %q", c.Field)
	}
	expect := strings.TrimSpace(c.Value)
	switch strings.ToLower(strings.TrimSpace(c.Op)) {
	case OpEq:
		return equalLoose(actual, expect), nil
	case OpNe:
		return !equalLoose(actual, expect), nil
	case OpGt, OpGte, OpLt, OpLte:
		return compareOrdered(actual, expect, strings.ToLower(strings.TrimSpace(c.Op)))
	case OpIn:
		for _, candidate := range strings.Split(expect, ",") {
			if equalLoose(actual, strings.TrimSpace(candidate)) {
				return true, nil
			}
		}
		return false, nil
	case OpContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(expect)), nil
	default:
		return false, fmt.Errorf("condition: unknown operator %q", c.Op)
	}
}

// Eval short-circuits on the first false child.
func (a And) Eval(f Facts) (bool, error) {
	for _, child := range a.All {
		if child == nil {
			return false, fmt.Errorf("condition: nil child in and")
		}
		ok, err := child.Eval(f)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Eval short-circuits on the first true child.
func (o Or) Eval(f Facts) (bool, error) {
	for _, child := range o.Any {
		if child == nil {
			return false, fmt.Errorf("condition: nil child in or")
		}
		ok, err := child.Eval(f)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Eval negates the child result.
func (n Not) Eval(f Facts) (bool, error) {
	if n.Cond == nil {
		return false, fmt.Errorf("condition: nil child in not")
	}
	ok, err := n.Cond.Eval(f)
	if err != nil {
		return false, err
	}
	return !ok, nil
}

func (f Facts) lookup(field string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(field)) {
	case "quantity":
		return fmt.Sprintf("%d", f.Quantity), true
	case "order_value":
		return f.OrderValue.String(), true
	case "segment":
		return f.SegmentCode, true
	case "tier":
		return fmt.Sprintf("%d", f.SegmentTier), true
	case "country":
		return f.Country, true
	case "pincode":
		return f.Pincode, true
	case "authenticated":
		if f.Authenticated {
			return "true", true
		}
		return "false", true
	default:
		if attrType, ok := strings.CutPrefix(strings.TrimSpace(field), "attr:"); ok {
			value, present := f.Attributes[attrType]
			if !present {
				return "", true
			}
			return value, true
		}
		return "", false
	}
}

// equalLoose compares numerically when both sides parse as decimals, else
// case-insensitively as strings.
func equalLoose(a, b string) bool {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA == nil && errB == nil {
		return da.Equal(db)
	}
	return strings.EqualFold(a, b)
}

func compareOrdered(a, b, op string) (bool, error) {
	da, errA := decimal.NewFromString(a)
	db, errB := decimal.NewFromString(b)
	if errA != nil || errB != nil {
		return false, fmt.Errorf("condition: %s requires numeric operands, got %q and %q", op, a, b)
	}
	cmp := da.Cmp(db)
	switch op {
	case OpGt:
		return cmp > 0, nil
	case OpGte:
		return cmp >= 0, nil
	case OpLt:
		return cmp < 0, nil
	case OpLte:
		return cmp <= 0, nil
	}
	return false, fmt.Errorf("condition: unknown ordered operator %q", op)
}

// conditionNode is the wire form of a condition tree.
type conditionNode struct {
	Type  string          `json:"type"`
	Field string          `json:"field,omitempty"`
	Op    string          `json:"op,omitempty"`
	Value string          `json:"value,omitempty"`
	All   []conditionNode `json:"all,omitempty"`
	Any   []conditionNode `json:"any,omitempty"`
	Cond  *conditionNode  `json:"cond,omitempty"`
}

// DecodeCondition parses the JSON wire form of a condition tree.
func DecodeCondition(data []byte) (Condition, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var node conditionNode
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("condition: decode: %w", err)
	}
	return node.build()
}

// EncodeCondition serialises a condition tree to its JSON wire form.
func EncodeCondition(c Condition) ([]byte, error) {
	if c == nil {
		return nil, nil
	}
	node, err := toNode(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(node)
}

func (n conditionNode) build() (Condition, error) {
	switch strings.ToLower(n.Type) {
	case "cmp":
		if strings.TrimSpace(n.Field) == "" || strings.TrimSpace(n.Op) == "" {
			return nil, fmt.Errorf("condition: cmp requires field and op")
		}
		return Cmp{Field: n.Field, Op: n.Op, Value: n.Value}, nil
	case "and":
		children, err := buildChildren(n.All)
		if err != nil {
			return nil, err
		}
		return And{All: children}, nil
	case "or":
		children, err := buildChildren(n.Any)
		if err != nil {
			return nil, err
		}
		return Or{Any: children}, nil
	case "not":
		if n.Cond == nil {
			return nil, fmt.Errorf("condition: not requires a child")
		}
		child, err := n.Cond.build()
		if err != nil {
			return nil, err
		}
		return Not{Cond: child}, nil
	default:
		return nil, fmt.Errorf("condition: unknown node type %q", n.Type)
	}
}

func buildChildren(nodes []conditionNode) ([]Condition, error) {
	out := make([]Condition, 0, len(nodes))
	for _, n := range nodes {
		child, err := n.build()
		if err != nil {
			return nil, err
		}
		out = append(out, child)
	}
	return out, nil
}

func toNode(c Condition) (conditionNode, error) {
	switch v := c.(type) {
	case Cmp:
		return conditionNode{Type: "cmp", Field: v.Field, Op: v.Op, Value: v.Value}, nil
	case And:
		children, err := toNodes(v.All)
		if err != nil {
			return conditionNode{}, err
		}
		return conditionNode{Type: "and", All: children}, nil
	case Or:
		children, err := toNodes(v.Any)
		if err != nil {
			return conditionNode{}, err
		}
		return conditionNode{Type: "or", Any: children}, nil
	case Not:
		if v.Cond == nil {
			return conditionNode{}, fmt.Errorf("condition: not requires a child")
		}
		child, err := toNode(v.Cond)
		if err != nil {
			return conditionNode{}, err
		}
		return conditionNode{Type: "not", Cond: &child}, nil
	default:
		return conditionNode{}, fmt.Errorf("condition: unsupported node %T", c)
	}
}

func toNodes(conds []Condition) ([]conditionNode, error) {
	out := make([]conditionNode, 0, len(conds))
	for _, c := range conds {
		if c == nil {
			return nil, fmt.Errorf("condition: nil child")
		}
		node, err := toNode(c)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}
	return out, nil
}

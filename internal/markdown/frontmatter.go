package markdown

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

const (
	// maxAliasDepth bounds YAML alias expansion so self-referencing anchors
	// cannot recurse forever.
	maxAliasDepth = 64
	// maxValues caps the number of values one front matter may expand to,
	// aliases counted at every place they are used.
	maxValues = 10000
)

// FrontMatter is the "---" delimited block at the top of a note. Span covers
// both delimiters; Raw is the text between them. A YAML error is kept in Err
// and leaves Value null: it never fails the document.
type FrontMatter struct {
	Span
	Raw   string
	Value Value
	Err   error
}

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is a decoded front-matter value. Only the field matching Kind is
// meaningful. Timestamps and other tagged scalars decode as strings.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Str    string
	Items  []Value
	Fields []Field
}

// Field is one key of a mapping, in document order.
type Field struct {
	Key   string
	Value Value
}

// Lookup returns the value stored under key when v is a mapping.
func (v Value) Lookup(key string) (Value, bool) {
	if v.Kind != KindMapping {
		return Value{}, false
	}
	for _, f := range v.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// Strings returns the items of a sequence of strings. It reports false for
// any other shape, including a sequence holding a non-string item.
func (v Value) Strings() ([]string, bool) {
	if v.Kind != KindSequence {
		return nil, false
	}
	out := make([]string, 0, len(v.Items))
	for _, it := range v.Items {
		if it.Kind != KindString {
			return nil, false
		}
		out = append(out, it.Str)
	}
	return out, true
}

// DecodeValue decodes a YAML document into a Value. An empty document is null.
func DecodeValue(src string) (Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(src), &doc); err != nil {
		return Value{}, fmt.Errorf("markdown: front matter: %w", err)
	}
	d := decoder{budget: maxValues}
	return d.fromNode(&doc, 0)
}

var (
	errAliasDepth = errors.New("markdown: front matter: alias nesting too deep")
	errTooLarge   = errors.New("markdown: front matter: too many values after alias expansion")
)

// decoder converts a yaml.Node tree into a Value, spending one unit of
// budget per node visited.
type decoder struct {
	budget int
}

func (d *decoder) fromNode(n *yaml.Node, depth int) (Value, error) {
	if n == nil {
		return Value{}, nil
	}
	if d.budget--; d.budget < 0 {
		return Value{}, errTooLarge
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Value{}, nil
		}
		return d.fromNode(n.Content[0], depth)

	case yaml.AliasNode:
		if depth >= maxAliasDepth {
			return Value{}, errAliasDepth
		}
		return d.fromNode(n.Alias, depth+1)

	case yaml.ScalarNode:
		return fromScalar(n)

	case yaml.SequenceNode:
		v := Value{Kind: KindSequence, Items: make([]Value, 0, len(n.Content))}
		for _, c := range n.Content {
			item, err := d.fromNode(c, depth)
			if err != nil {
				return Value{}, err
			}
			v.Items = append(v.Items, item)
		}
		return v, nil

	case yaml.MappingNode:
		v := Value{Kind: KindMapping, Fields: make([]Field, 0, len(n.Content)/2)}
		for i := 0; i+1 < len(n.Content); i += 2 {
			k := n.Content[i]
			if k.Kind == yaml.AliasNode && k.Alias != nil {
				k = k.Alias
			}
			if k.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("markdown: front matter: line %d: non-scalar mapping key", k.Line)
			}
			val, err := d.fromNode(n.Content[i+1], depth)
			if err != nil {
				return Value{}, err
			}
			v.Fields = append(v.Fields, Field{Key: k.Value, Value: val})
		}
		return v, nil

	default:
		return Value{}, nil
	}
}

func fromScalar(n *yaml.Node) (Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return Value{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return Value{}, fmt.Errorf("markdown: front matter: %w", err)
		}
		return Value{Kind: KindBool, Bool: b}, nil
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return Value{}, fmt.Errorf("markdown: front matter: %w", err)
		}
		return Value{Kind: KindNumber, Number: f}, nil
	default:
		return Value{Kind: KindString, Str: n.Value}, nil
	}
}

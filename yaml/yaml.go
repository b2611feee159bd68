// Package yaml provides a YAML codec implementation.
//
// Records are mapped through yaml.Node so field order survives both
// directions. Numbers keep their textual form where YAML allows it.
package yaml

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/zoobzio/polycrypt"
	"gopkg.in/yaml.v3"
)

const (
	tagNull  = "!!null"
	tagBool  = "!!bool"
	tagStr   = "!!str"
	tagInt   = "!!int"
	tagFloat = "!!float"
)

// yamlCodec implements polycrypt.Codec for YAML.
type yamlCodec struct{}

// New returns a YAML codec.
func New() polycrypt.Codec {
	return &yamlCodec{}
}

// ContentType returns the MIME type for YAML.
func (c *yamlCodec) ContentType() string {
	return "application/yaml"
}

// Marshal encodes v as YAML.
func (c *yamlCodec) Marshal(v any) ([]byte, error) {
	switch t := v.(type) {
	case *polycrypt.Record, []*polycrypt.Record:
		canonical, err := normalizeRecords(t)
		if err != nil {
			return nil, err
		}
		node, err := toNode(canonical)
		if err != nil {
			return nil, err
		}
		return yaml.Marshal(node)
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, s := range t {
			seq.Content = append(seq.Content, strNode(s))
		}
		return yaml.Marshal(seq)
	default:
		return yaml.Marshal(v)
	}
}

// Unmarshal decodes YAML data into v.
func (c *yamlCodec) Unmarshal(data []byte, v any) error {
	switch t := v.(type) {
	case **polycrypt.Record:
		node, err := parse(data)
		if err != nil {
			return err
		}
		if isNull(node) {
			*t = nil
			return nil
		}
		rec, err := toRecord(node)
		if err != nil {
			return err
		}
		*t = rec
		return nil
	case *[]*polycrypt.Record:
		node, err := parse(data)
		if err != nil {
			return err
		}
		if isNull(node) {
			*t = nil
			return nil
		}
		if node.Kind != yaml.SequenceNode {
			return fmt.Errorf("%w: expected a sequence of records", polycrypt.ErrMalformedInput)
		}
		recs := make([]*polycrypt.Record, len(node.Content))
		for i, item := range node.Content {
			item = resolve(item)
			if isNull(item) {
				continue
			}
			rec, err := toRecord(item)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			recs[i] = rec
		}
		*t = recs
		return nil
	case *[]string:
		node, err := parse(data)
		if err != nil {
			return err
		}
		if isNull(node) {
			*t = nil
			return nil
		}
		if node.Kind != yaml.SequenceNode {
			return fmt.Errorf("%w: expected a sequence of names", polycrypt.ErrMalformedInput)
		}
		names := make([]string, len(node.Content))
		for i, item := range node.Content {
			item = resolve(item)
			if item.Kind != yaml.ScalarNode || item.ShortTag() == tagNull {
				return fmt.Errorf("%w: name %d is not a scalar", polycrypt.ErrMalformedInput, i)
			}
			names[i] = item.Value
		}
		*t = names
		return nil
	default:
		return yaml.Unmarshal(data, v)
	}
}

// normalizeRecords converts a record or batch to canonical value types.
func normalizeRecords(v any) (any, error) {
	switch t := v.(type) {
	case *polycrypt.Record:
		return polycrypt.Normalize(t)
	case []*polycrypt.Record:
		out := make([]any, len(t))
		for i, rec := range t {
			n, err := polycrypt.Normalize(rec)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	}
	return v, nil
}

// toNode builds a YAML node from a canonical value.
func toNode(v any) (*yaml.Node, error) {
	switch t := v.(type) {
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagNull, Value: "null"}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagBool, Value: strconv.FormatBool(t)}, nil
	case string:
		return strNode(t), nil
	case json.Number:
		tag := tagInt
		if _, err := t.Int64(); err != nil {
			tag = tagFloat
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: t.String()}, nil
	case []any:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range t {
			n, err := toNode(item)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case *polycrypt.Record:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var err error
		t.Range(func(key string, value any) bool {
			var n *yaml.Node
			n, err = toNode(value)
			if err != nil {
				return false
			}
			m.Content = append(m.Content, strNode(key), n)
			return true
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T", polycrypt.ErrMalformedInput, v)
	}
}

func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagStr, Value: s}
}

// parse decodes data into a node tree and returns the document's root.
func parse(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagNull}, nil
		}
		return resolve(doc.Content[0]), nil
	}
	if doc.Kind == 0 {
		// Empty input
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tagNull}, nil
	}
	return resolve(&doc), nil
}

// resolve follows aliases to the anchored node.
func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == tagNull
}

// toRecord converts a mapping node to a record, rejecting duplicate keys.
func toRecord(n *yaml.Node) (*polycrypt.Record, error) {
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: record must be a mapping", polycrypt.ErrMalformedInput)
	}
	rec := polycrypt.NewRecord()
	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode := resolve(n.Content[i])
		if keyNode.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("%w: field name must be a scalar", polycrypt.ErrMalformedInput)
		}
		key := keyNode.Value
		if rec.Has(key) {
			return nil, fmt.Errorf("%w: duplicate field %q", polycrypt.ErrMalformedInput, key)
		}
		v, err := fromNode(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		rec.Set(key, v)
	}
	return rec, nil
}

// fromNode converts a node to a canonical value.
func fromNode(n *yaml.Node) (any, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.MappingNode:
		return toRecord(n)
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, item := range n.Content {
			v, err := fromNode(item)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return fromScalar(n)
	default:
		return nil, fmt.Errorf("%w: unsupported YAML node", polycrypt.ErrMalformedInput)
	}
}

func fromScalar(n *yaml.Node) (any, error) {
	switch n.ShortTag() {
	case tagNull:
		return nil, nil
	case tagBool:
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("%w: %w", polycrypt.ErrMalformedInput, err)
		}
		return b, nil
	case tagInt, tagFloat:
		return number(n)
	default:
		// Strings and any other scalar tag (timestamps, binary) keep their text.
		return n.Value, nil
	}
}

// number keeps a scalar's text when it is already a JSON number and
// otherwise formats the value YAML resolves it to (0x1F, 1_000, .5).
// A float without a fraction or exponent gains ".0" so it stays a float.
func number(n *yaml.Node) (any, error) {
	if v, err := polycrypt.DecodeValue([]byte(n.Value)); err == nil {
		if num, ok := v.(json.Number); ok && (n.ShortTag() != tagFloat || strings.ContainsAny(n.Value, ".eE")) {
			return num, nil
		}
	}

	var v any
	if err := n.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %w", polycrypt.ErrMalformedInput, err)
	}
	switch t := v.(type) {
	case int:
		return json.Number(strconv.Itoa(t)), nil
	case int64:
		return json.Number(strconv.FormatInt(t, 10)), nil
	case uint64:
		return json.Number(strconv.FormatUint(t, 10)), nil
	case float64:
		return polycrypt.FloatNumber(t, 64)
	default:
		return nil, fmt.Errorf("%w: unsupported number %q", polycrypt.ErrMalformedInput, n.Value)
	}
}

package api

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ValueNode encodes a parameter value so its type survives a YAML round trip.
// Floats always carry a decimal point; parameter loaders treat "1" as an integer.
func ValueNode(v any) (*yaml.Node, error) {
	n := &yaml.Node{Kind: yaml.ScalarNode}
	switch x := v.(type) {
	case bool:
		n.Tag, n.Value = "!!bool", strconv.FormatBool(x)
	case int:
		n.Tag, n.Value = "!!int", strconv.Itoa(x)
	case int64:
		n.Tag, n.Value = "!!int", strconv.FormatInt(x, 10)
	case float64:
		n.Tag, n.Value = "!!float", FormatFloat(x)
	case string:
		n.Tag, n.Value = "!!str", x
	default:
		return nil, fmt.Errorf("unsupported parameter type %T", v)
	}
	return n, nil
}

func FormatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEnN") {
		return s
	}
	return s + ".0"
}

func (p Parameter) MarshalYAML() (interface{}, error) {
	value, err := ValueNode(p.Value)
	if err != nil {
		return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "name"},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name},
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "value"},
			value,
		},
	}, nil
}

// MarshalJSON mirrors MarshalYAML so JSON plans keep float parameters as floats.
func (p Parameter) MarshalJSON() ([]byte, error) {
	value := p.Value
	if f, ok := value.(float64); ok {
		value = json.Number(FormatFloat(f))
	}
	return json.Marshal(struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}{p.Name, value})
}

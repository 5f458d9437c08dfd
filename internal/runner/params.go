package runner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

// ParamsDocument builds {"/**": {"ros__parameters": {...}}} keeping parameter order.
func ParamsDocument(params []api.Parameter) (*yaml.Node, error) {
	values := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, p := range params {
		v, err := api.ValueNode(p.Value)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		values.Content = append(values.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: p.Name}, v)
	}
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Tag: "!!str", Value: "/**"},
			{
				Kind: yaml.MappingNode,
				Tag:  "!!map",
				Content: []*yaml.Node{
					{Kind: yaml.ScalarNode, Tag: "!!str", Value: "ros__parameters"},
					values,
				},
			},
		},
	}, nil
}

func WriteParams(path string, params []api.Parameter) error {
	doc, err := ParamsDocument(params)
	if err != nil {
		return err
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("write params: %w", err)
	}
	return nil
}

package launch

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

type rosterGoals struct {
	X     *float64 `yaml:"x"`
	Y     *float64 `yaml:"y"`
	Theta *float64 `yaml:"theta"`
}

type rosterEntry struct {
	Name  *string      `yaml:"name"`
	Goals *rosterGoals `yaml:"goals"`
}

func (e rosterEntry) robot(index int) (api.RobotSpec, error) {
	missing := func(field string) error {
		return fmt.Errorf("%w: entry %d: %s", ErrMissingField, index, field)
	}
	if e.Name == nil {
		return api.RobotSpec{}, missing("name")
	}
	if e.Goals == nil {
		return api.RobotSpec{}, missing("goals")
	}
	if e.Goals.X == nil {
		return api.RobotSpec{}, missing("goals.x")
	}
	if e.Goals.Y == nil {
		return api.RobotSpec{}, missing("goals.y")
	}
	if e.Goals.Theta == nil {
		return api.RobotSpec{}, missing("goals.theta")
	}
	return api.RobotSpec{
		Name:  *e.Name,
		Goals: api.Goal{X: *e.Goals.X, Y: *e.Goals.Y, Theta: *e.Goals.Theta},
	}, nil
}

// LoadRoster reads a YAML sequence of robots and returns the first n in file
// order. Only the retained entries are validated.
func LoadRoster(path string, n int) ([]api.RobotSpec, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return ParseRoster(content, n)
}

// ParseRoster is LoadRoster over already-read content.
func ParseRoster(content []byte, n int) ([]api.RobotSpec, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: robot count %d is negative", ErrInvalidArgument, n)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRosterParse, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: document is not a sequence", ErrRosterParse)
	}
	items := doc.Content[0].Content
	if n > len(items) {
		n = len(items)
	}
	robots := make([]api.RobotSpec, 0, n)
	for i, item := range items[:n] {
		var e rosterEntry
		if err := item.Decode(&e); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrRosterParse, i, err)
		}
		r, err := e.robot(i)
		if err != nil {
			return nil, err
		}
		robots = append(robots, r)
	}
	return robots, nil
}

package api

import "time"

// v0 contains the public plan types consumed by launch runtimes.

// Goal is the target pose handed to a robot's goal provider.
type Goal struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

// RobotSpec is one roster entry.
type RobotSpec struct {
	Name  string `json:"name" yaml:"name"`
	Goals Goal   `json:"goals" yaml:"goals"`
}

type OutputMode string

const (
	OutputScreen OutputMode = "screen"
	OutputLog    OutputMode = "log"
)

type Remapping struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Parameter values are bool, int, float64 or string.
type Parameter struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// Node describes one process to start. It is never mutated after composition.
type Node struct {
	Package    string      `json:"package" yaml:"package"`
	Executable string      `json:"executable" yaml:"executable"`
	Namespace  string      `json:"namespace" yaml:"namespace"`
	Remappings []Remapping `json:"remappings,omitempty" yaml:"remappings,omitempty"`
	Parameters []Parameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Output     OutputMode  `json:"output" yaml:"output"`
}

// Param returns the value of the named parameter.
func (n Node) Param(name string) (any, bool) {
	for _, p := range n.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

type Argument struct {
	Name  string `json:"name" yaml:"name"`
	Value string `json:"value" yaml:"value"`
}

// Include is a sub-launch handed to the runtime verbatim.
type Include struct {
	Package   string     `json:"package" yaml:"package"`
	File      string     `json:"file" yaml:"file"`
	Path      string     `json:"path" yaml:"path"`
	Arguments []Argument `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// Plan is the fully evaluated launch: includes first, then nodes in composition order.
type Plan struct {
	ID        string            `json:"id" yaml:"id"`
	CreatedAt time.Time         `json:"created_at" yaml:"created_at"`
	Arguments map[string]string `json:"arguments" yaml:"arguments"`
	Includes  []Include         `json:"includes" yaml:"includes"`
	Nodes     []Node            `json:"nodes" yaml:"nodes"`
}

// Namespaces returns the distinct node namespaces in first-seen order.
func (p *Plan) Namespaces() []string {
	seen := map[string]bool{}
	var out []string
	for _, n := range p.Nodes {
		if !seen[n.Namespace] {
			seen[n.Namespace] = true
			out = append(out, n.Namespace)
		}
	}
	return out
}

type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

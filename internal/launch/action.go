package launch

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/3cpo-dev/swarmlaunch/pkg/api"
)

// Action is one step of a launch description. Visiting an action may record
// descriptors into the plan and may yield further actions to visit next.
type Action interface {
	visit(lc *Context, plan *api.Plan) ([]Action, error)
}

// DeclareArgument makes a configuration available with a default value.
type DeclareArgument struct {
	Name        string
	Default     string
	Description string
}

func (a DeclareArgument) visit(lc *Context, _ *api.Plan) ([]Action, error) {
	lc.declareIfUnset(a.Name, a.Default)
	return nil, nil
}

// IncludeAction forwards a sub-launch to the runtime. Its arguments also become
// configurations for the remaining actions unless the operator overrode them.
type IncludeAction struct {
	Package   string
	File      string
	Path      string
	Arguments []api.Argument
}

func (a IncludeAction) visit(lc *Context, plan *api.Plan) ([]Action, error) {
	inc := api.Include{Package: a.Package, File: a.File, Path: a.Path}
	for _, arg := range a.Arguments {
		lc.SetDefault(arg.Name, arg.Value)
		v, err := lc.Configuration(arg.Name)
		if err != nil {
			return nil, err
		}
		inc.Arguments = append(inc.Arguments, api.Argument{Name: arg.Name, Value: v})
	}
	plan.Includes = append(plan.Includes, inc)
	return nil, nil
}

// NodeAction records a single process descriptor.
type NodeAction struct {
	Node api.Node
}

func (a NodeAction) visit(_ *Context, plan *api.Plan) ([]Action, error) {
	plan.Nodes = append(plan.Nodes, a.Node)
	return nil, nil
}

// OpaqueFunction defers building actions until the description executes.
type OpaqueFunction struct {
	Name     string
	Function func(lc *Context) ([]Action, error)
}

func (a OpaqueFunction) visit(lc *Context, _ *api.Plan) ([]Action, error) {
	if a.Function == nil {
		return nil, fmt.Errorf("opaque function %q: nil function", a.Name)
	}
	start := time.Now()
	actions, err := a.Function(lc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.Name, err)
	}
	log.Debug().Str("function", a.Name).Int("actions", len(actions)).Dur("took", time.Since(start)).Msg("opaque function evaluated")
	return actions, nil
}

// Description is an ordered list of actions.
type Description struct {
	actions []Action
}

func NewDescription(actions ...Action) *Description {
	return &Description{actions: actions}
}

// Execute evaluates the description against overrides and returns the complete
// plan. Any failure returns a nil plan.
func Execute(d *Description, overrides map[string]string) (*api.Plan, error) {
	lc := NewContext(overrides)
	plan := &api.Plan{
		ID:       uuid.New().String(),
		Includes: []api.Include{},
		Nodes:    []api.Node{},
	}
	if err := visitAll(lc, plan, d.actions); err != nil {
		return nil, err
	}
	plan.CreatedAt = time.Now().UTC()
	plan.Arguments = lc.Snapshot()
	return plan, nil
}

func visitAll(lc *Context, plan *api.Plan, actions []Action) error {
	for _, a := range actions {
		next, err := a.visit(lc, plan)
		if err != nil {
			return err
		}
		if len(next) > 0 {
			if err := visitAll(lc, plan, next); err != nil {
				return err
			}
		}
	}
	return nil
}

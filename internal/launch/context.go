// Package launch composes swarm launch plans from declarative actions.
//
// A Description is assembled eagerly, but any OpaqueFunction in it runs only when
// the description is executed against a Context carrying resolved arguments.
package launch

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidArgument      = errors.New("invalid launch argument")
	ErrUnknownConfiguration = errors.New("launch configuration not set")
	ErrRosterParse          = errors.New("roster parse")
	ErrMissingField         = errors.New("roster entry missing field")
)

// Context holds the launch configurations visible to actions while a description executes.
type Context struct {
	overrides map[string]string
	configs   map[string]string
}

// NewContext seeds a context with invocation-time overrides. Overrides are never
// replaced by declared defaults or include arguments.
func NewContext(overrides map[string]string) *Context {
	lc := &Context{
		overrides: map[string]string{},
		configs:   map[string]string{},
	}
	for k, v := range overrides {
		lc.overrides[k] = v
		lc.configs[k] = v
	}
	return lc
}

// Configuration performs the named launch configuration.
func (lc *Context) Configuration(name string) (string, error) {
	v, ok := lc.configs[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownConfiguration, name)
	}
	return v, nil
}

func (lc *Context) Overridden(name string) bool {
	_, ok := lc.overrides[name]
	return ok
}

// SetDefault sets name unless an override already provides it.
func (lc *Context) SetDefault(name, value string) {
	if lc.Overridden(name) {
		return
	}
	lc.configs[name] = value
}

func (lc *Context) declareIfUnset(name, value string) {
	if _, ok := lc.configs[name]; ok {
		return
	}
	lc.configs[name] = value
}

// Snapshot copies the current configurations.
func (lc *Context) Snapshot() map[string]string {
	out := make(map[string]string, len(lc.configs))
	for k, v := range lc.configs {
		out[k] = v
	}
	return out
}

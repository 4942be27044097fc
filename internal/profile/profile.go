package profile

import (
	"context"
	"sort"
)

// QualityProfile is one rung of the quality ladder. Higher Level means higher
// visual quality and higher cost.
type QualityProfile struct {
	ID     string             `json:"id" yaml:"id"`
	Name   string             `json:"name" yaml:"name"`
	Level  int                `json:"level" yaml:"level"`
	Params map[string]float64 `json:"params,omitempty" yaml:"params,omitempty"`
}

// Param returns a single renderer parameter.
func (p QualityProfile) Param(name string) (float64, bool) {
	v, ok := p.Params[name]
	return v, ok
}

// ParamNames returns parameter names in sorted order.
func (p QualityProfile) ParamNames() []string {
	names := make([]string, 0, len(p.Params))
	for name := range p.Params {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

func (p QualityProfile) clone() QualityProfile {
	out := p
	if p.Params != nil {
		out.Params = make(map[string]float64, len(p.Params))
		for k, v := range p.Params {
			out.Params[k] = v
		}
	}

	return out
}

// Direction moves along the quality ladder.
type Direction int

const (
	Down Direction = -1
	Up   Direction = 1
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// Applier pushes renderer parameters to the host. It is the only way a
// profile switch reaches the renderer.
type Applier interface {
	ApplyParameter(ctx context.Context, name string, value float64) error
}

// ApplierFunc adapts a function to the Applier interface.
type ApplierFunc func(ctx context.Context, name string, value float64) error

func (f ApplierFunc) ApplyParameter(ctx context.Context, name string, value float64) error {
	return f(ctx, name, value)
}

package input

import "apidash/internal/model"

// Collector holds the input for the currently selected endpoint.
type Collector struct {
	endpoint *model.Endpoint
	current  Input
}

func NewCollector() *Collector {
	return &Collector{}
}

// Select discards any entered values and starts an empty input for ep.
func (c *Collector) Select(ep model.Endpoint) {
	c.endpoint = &ep
	c.current = New(ep.Input)
}

func (c *Collector) SetField(name, value string) error {
	if c.current == nil {
		return ErrNoSelection
	}
	return c.current.Set(name, value)
}

// Current returns the active input, or nil before the first selection.
func (c *Collector) Current() Input {
	return c.current
}

func (c *Collector) Endpoint() (model.Endpoint, bool) {
	if c.endpoint == nil {
		return model.Endpoint{}, false
	}
	return *c.endpoint, true
}

func (c *Collector) Validate() error {
	if c.current == nil {
		return ErrNoSelection
	}
	return Validate(c.current)
}

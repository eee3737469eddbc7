// Package dashboard owns the application state: the catalog, the current
// selection and its input, the dependency store, and the orchestrator that
// sends requests.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"apidash/internal/catalog"
	"apidash/internal/deps"
	"apidash/internal/httpclient"
	"apidash/internal/input"
	"apidash/internal/logging"
	"apidash/internal/model"
	"apidash/internal/openapi"
	"apidash/internal/orchestrator"
)

var ErrUnknownEndpoint = errors.New("unknown endpoint")

type Options struct {
	BaseURL       string
	Client        httpclient.Client
	Strict        bool
	ValidateInput bool
	Logger        *zerolog.Logger
}

// State is a read-only snapshot for the presentation layer.
type State struct {
	Endpoints  []model.Endpoint
	Selected   *model.Endpoint
	Input      input.Input
	InputError error
	Users      []model.User
	Deps       map[model.DependencyKey]string
	Lifecycle  orchestrator.Lifecycle
	Busy       bool
}

type Dashboard struct {
	log       zerolog.Logger
	endpoints []model.Endpoint

	mu        sync.Mutex
	collector *input.Collector

	store *deps.Store
	orch  *orchestrator.Orchestrator
}

// New wires the dashboard. The embedded OpenAPI document must describe every
// catalog endpoint.
func New(ctx context.Context, opts Options) (*Dashboard, error) {
	log := logging.Nop
	if opts.Logger != nil {
		log = *opts.Logger
	}
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = catalog.DefaultBaseURL
	}
	client := opts.Client
	if client == nil {
		client = httpclient.New(0)
	}

	endpoints := catalog.List()
	doc, err := openapi.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := openapi.Covers(doc, endpoints); err != nil {
		return nil, err
	}

	store := deps.NewStore()
	orch := orchestrator.New(baseURL, client, store,
		orchestrator.WithLogger(log),
		orchestrator.WithStrict(opts.Strict),
		orchestrator.WithInputValidation(opts.ValidateInput),
		orchestrator.WithValidator(openapi.NewValidator(doc)),
	)

	log.Debug().Str("base_url", baseURL).Int("endpoints", len(endpoints)).Msg("dashboard ready")
	return &Dashboard{
		log:       log,
		endpoints: endpoints,
		collector: input.NewCollector(),
		store:     store,
		orch:      orch,
	}, nil
}

func (d *Dashboard) Endpoints() []model.Endpoint {
	return append([]model.Endpoint(nil), d.endpoints...)
}

// Select makes id the active endpoint and clears the collected input.
func (d *Dashboard) Select(id string) error {
	ep, ok := catalog.Find(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEndpoint, id)
	}
	d.mu.Lock()
	d.collector.Select(ep)
	d.mu.Unlock()
	d.log.Debug().Str("endpoint", id).Msg("selected")
	return nil
}

func (d *Dashboard) SetField(name, value string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.collector.SetField(name, value)
}

// Send executes the selected endpoint with a copy of the collected input, so
// edits made while the request is in flight do not affect it.
func (d *Dashboard) Send(ctx context.Context) (orchestrator.Lifecycle, error) {
	d.mu.Lock()
	ep, ok := d.collector.Endpoint()
	var in input.Input
	if ok {
		in = d.collector.Current().Clone()
	}
	d.mu.Unlock()

	if !ok {
		return d.orch.State(), input.ErrNoSelection
	}
	return d.orch.Send(ctx, ep, in)
}

// Observe forwards lifecycle transitions to fn.
func (d *Dashboard) Observe(fn orchestrator.Observer) {
	d.orch.Observe(fn)
}

// Users returns the list loaded by the last successful users call, if any.
func (d *Dashboard) Users() []model.User {
	var users []model.User
	if _, err := d.store.Decode(model.KeyUsers, &users); err != nil {
		d.log.Warn().Err(err).Msg("stored users not decodable")
		return nil
	}
	return users
}

// Dependency returns a stored dependency value.
func (d *Dashboard) Dependency(key model.DependencyKey) (any, bool) {
	return d.store.Get(key)
}

// ResetDependencies forgets every produced value.
func (d *Dashboard) ResetDependencies() {
	d.store.Reset()
	d.log.Info().Msg("dependencies cleared")
}

func (d *Dashboard) Snapshot() State {
	s := State{
		Endpoints: d.Endpoints(),
		Users:     d.Users(),
		Deps:      map[model.DependencyKey]string{},
		Lifecycle: d.orch.State(),
		Busy:      d.orch.Busy(),
	}
	d.mu.Lock()
	if ep, ok := d.collector.Endpoint(); ok {
		s.Selected = &ep
		s.Input = d.collector.Current().Clone()
		s.InputError = d.collector.Validate()
	}
	d.mu.Unlock()
	for _, k := range d.store.Keys() {
		if k == model.KeyUsers {
			s.Deps[k] = fmt.Sprintf("%d loaded", len(s.Users))
			continue
		}
		v, _ := d.store.Get(k)
		s.Deps[k] = deps.Format(v)
	}
	return s
}

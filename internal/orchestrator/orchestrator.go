// Package orchestrator sends requests for catalog endpoints and tracks the
// lifecycle of the most recent one.
//
// A send checks the endpoint's dependencies, moves the lifecycle to Loading,
// builds and executes the request, writes any produced dependency values, and
// finally settles in Success or Error. Every path that reaches Loading leaves
// it, including panics in the HTTP client.
//
// Overlapping sends are allowed by default and the last one to resolve is
// what the lifecycle shows, even if it was triggered first. WithStrict
// rejects a send while another is in flight instead.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"apidash/internal/deps"
	"apidash/internal/httpclient"
	"apidash/internal/input"
	"apidash/internal/logging"
	"apidash/internal/model"
	"apidash/internal/openapi"
)

type Option func(*Orchestrator)

func WithLogger(log zerolog.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithStrict rejects a send with ErrInFlight while another is running.
func WithStrict(strict bool) Option {
	return func(o *Orchestrator) { o.strict = strict }
}

// WithInputValidation refuses to send input that fails its field rules.
func WithInputValidation(enabled bool) Option {
	return func(o *Orchestrator) { o.validateInput = enabled }
}

// WithValidator checks decoded payloads against the endpoint's response
// schema.
func WithValidator(v *openapi.Validator) Option {
	return func(o *Orchestrator) { o.validator = v }
}

type Orchestrator struct {
	baseURL   string
	client    httpclient.Client
	store     *deps.Store
	validator *openapi.Validator
	log       zerolog.Logger
	newID     func() string

	strict        bool
	validateInput bool

	mu        sync.Mutex
	state     Lifecycle
	inFlight  int
	observers []Observer
}

func New(baseURL string, client httpclient.Client, store *deps.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		baseURL: baseURL,
		client:  client,
		store:   store,
		log:     logging.Nop,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Observe registers fn to be called after every lifecycle transition.
func (o *Orchestrator) Observe(fn Observer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

func (o *Orchestrator) State() Lifecycle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Busy reports whether any send is in flight.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.inFlight > 0
}

// Send executes ep with in. It blocks until the request resolves and
// returns the lifecycle it settled in. The error is a *PreconditionError,
// an *input.ValidationError, a *TransportError or ErrInFlight.
func (o *Orchestrator) Send(ctx context.Context, ep model.Endpoint, in input.Input) (Lifecycle, error) {
	f, err := o.acquire(ep, in)
	if err != nil {
		return o.State(), err
	}
	defer f.release()

	payload, outputs, err := o.execute(ctx, f, ep, in)
	if err != nil {
		return f.fail(err), err
	}
	return f.succeed(payload, outputs), nil
}

// acquire runs the synchronous guards and, if they pass, publishes Loading.
func (o *Orchestrator) acquire(ep model.Endpoint, in input.Input) (*flight, error) {
	o.mu.Lock()
	if o.strict && o.inFlight > 0 {
		o.mu.Unlock()
		o.log.Debug().Str("endpoint", ep.ID).Msg("send rejected: request in flight")
		return nil, ErrInFlight
	}

	if err := o.precheck(ep, in); err != nil {
		snap := o.setLocked(Lifecycle{Phase: Error, Message: UserMessage(err), Endpoint: ep.ID})
		obs := o.observersLocked()
		o.mu.Unlock()
		o.log.Info().Str("endpoint", ep.ID).Err(err).Msg("send refused")
		notify(obs, snap)
		return nil, err
	}

	f := &flight{o: o, ep: ep, id: o.newID(), start: time.Now()}
	o.inFlight++
	snap := o.setLocked(Lifecycle{Phase: Loading, Endpoint: ep.ID, RequestID: f.id})
	obs := o.observersLocked()
	o.mu.Unlock()

	notify(obs, snap)
	return f, nil
}

func (o *Orchestrator) precheck(ep model.Endpoint, in input.Input) error {
	for _, r := range ep.Requires {
		if _, ok := o.store.Get(r.Key); !ok {
			return &PreconditionError{Key: r.Key, Message: r.Message}
		}
	}
	if o.validateInput && in != nil {
		if err := input.Validate(in); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, f *flight, ep model.Endpoint, in input.Input) (any, map[model.DependencyKey]any, error) {
	req, err := httpclient.BuildRequest(o.baseURL, ep, in, o.store.Get)
	if err != nil {
		return nil, nil, &TransportError{Err: err}
	}
	o.log.Debug().
		Str("request_id", f.id).
		Str("endpoint", ep.ID).
		Str("method", req.Method).
		Str("url", req.URL).
		Msg("send")

	res, err := o.client.Do(ctx, req)
	if err != nil {
		return nil, nil, &TransportError{Err: err}
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, nil, &TransportError{Status: res.StatusCode, Err: fmt.Errorf("unexpected status %q", res.Status)}
	}

	var payload any
	if err := json.Unmarshal(res.Body, &payload); err != nil {
		return nil, nil, &TransportError{Status: res.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	if err := o.validator.ValidateResponse(ep, res.StatusCode, payload); err != nil {
		return nil, nil, &TransportError{Status: res.StatusCode, Err: err}
	}
	outputs, err := deps.Extract(payload, ep.Produces)
	if err != nil {
		return nil, nil, &TransportError{Status: res.StatusCode, Err: err}
	}
	return payload, outputs, nil
}

func (o *Orchestrator) setLocked(l Lifecycle) Lifecycle {
	o.state = l
	return l
}

func (o *Orchestrator) observersLocked() []Observer {
	return append([]Observer(nil), o.observers...)
}

func notify(obs []Observer, l Lifecycle) {
	for _, fn := range obs {
		fn(l)
	}
}

// flight is one send between Loading and its resolution.
type flight struct {
	o     *Orchestrator
	ep    model.Endpoint
	id    string
	start time.Time
	done  bool
}

// succeed writes produced dependency values before publishing Success so
// that a dependent send observing Success also observes the values.
func (f *flight) succeed(payload any, outputs map[model.DependencyKey]any) Lifecycle {
	for k, v := range outputs {
		f.o.store.Set(k, v)
	}
	f.o.log.Info().
		Str("request_id", f.id).
		Str("endpoint", f.ep.ID).
		Dur("elapsed", time.Since(f.start)).
		Int("produced", len(outputs)).
		Msg("request succeeded")
	return f.resolve(Lifecycle{Phase: Success, Payload: payload, Endpoint: f.ep.ID, RequestID: f.id})
}

func (f *flight) fail(err error) Lifecycle {
	f.o.log.Warn().
		Str("request_id", f.id).
		Str("endpoint", f.ep.ID).
		Dur("elapsed", time.Since(f.start)).
		Err(err).
		Msg("request failed")
	return f.resolve(Lifecycle{Phase: Error, Message: UserMessage(err), Endpoint: f.ep.ID, RequestID: f.id})
}

// release settles a flight that neither succeeded nor failed, which only
// happens when the client panics.
func (f *flight) release() {
	if f.done {
		return
	}
	f.fail(&TransportError{Err: errors.New("request aborted")})
}

func (f *flight) resolve(l Lifecycle) Lifecycle {
	o := f.o
	o.mu.Lock()
	f.done = true
	o.inFlight--
	snap := o.setLocked(l)
	obs := o.observersLocked()
	o.mu.Unlock()

	notify(obs, snap)
	return snap
}

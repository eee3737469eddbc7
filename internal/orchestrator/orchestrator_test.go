package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"apidash/internal/catalog"
	"apidash/internal/deps"
	"apidash/internal/httpclient"
	"apidash/internal/input"
	"apidash/internal/model"
	"apidash/internal/openapi"
)

const base = "https://api.test"

type fakeClient struct {
	mu      sync.Mutex
	calls   []httpclient.RequestSpec
	respond func(req httpclient.RequestSpec) (httpclient.Result, error)
}

func (c *fakeClient) Do(_ context.Context, req httpclient.RequestSpec) (httpclient.Result, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	c.mu.Unlock()
	return c.respond(req)
}

func (c *fakeClient) Calls() []httpclient.RequestSpec {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]httpclient.RequestSpec(nil), c.calls...)
}

func reply(status int, body string) func(httpclient.RequestSpec) (httpclient.Result, error) {
	return func(httpclient.RequestSpec) (httpclient.Result, error) {
		return httpclient.Result{StatusCode: status, Status: fmt.Sprintf("%d %s", status, http.StatusText(status)), Body: []byte(body)}, nil
	}
}

func endpoint(t *testing.T, id string) model.Endpoint {
	t.Helper()
	ep, ok := catalog.Find(id)
	require.True(t, ok)
	return ep
}

func newTestOrchestrator(t *testing.T, client httpclient.Client, opts ...Option) (*Orchestrator, *deps.Store) {
	t.Helper()
	doc, err := openapi.Load(context.Background())
	require.NoError(t, err)
	store := deps.NewStore()
	opts = append([]Option{WithValidator(openapi.NewValidator(doc))}, opts...)
	o := New(base, client, store, opts...)
	var n int
	o.newID = func() string {
		n++
		return fmt.Sprintf("req-%d", n)
	}
	return o, store
}

func recordPhases(o *Orchestrator) func() []Phase {
	var mu sync.Mutex
	var phases []Phase
	o.Observe(func(l Lifecycle) {
		mu.Lock()
		phases = append(phases, l.Phase)
		mu.Unlock()
	})
	return func() []Phase {
		mu.Lock()
		defer mu.Unlock()
		return append([]Phase(nil), phases...)
	}
}

func TestInitialStateIsIdle(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeClient{})
	assert.Equal(t, Idle, o.State().Phase)
	assert.False(t, o.Busy())
}

func TestUsersListSuccess(t *testing.T) {
	client := &fakeClient{respond: reply(200, `[{"id":1,"name":"Leanne"}]`)}
	o, store := newTestOrchestrator(t, client)
	phases := recordPhases(o)

	ep := endpoint(t, catalog.GetUsersList)
	l, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.NoError(t, err)

	assert.Equal(t, Success, l.Phase)
	assert.Equal(t, []any{map[string]any{"id": float64(1), "name": "Leanne"}}, l.Payload)
	assert.Equal(t, "req-1", l.RequestID)
	assert.Equal(t, []Phase{Loading, Success}, phases())

	require.Len(t, client.Calls(), 1)
	assert.Equal(t, http.MethodGet, client.Calls()[0].Method)
	assert.Equal(t, base+"/users", client.Calls()[0].URL)

	var users []model.User
	ok, err := store.Decode(model.KeyUsers, &users)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []model.User{{ID: 1, Name: "Leanne"}}, users)
}

func TestCommentsBeforeCreateFailsPrecondition(t *testing.T) {
	client := &fakeClient{respond: reply(200, `[]`)}
	o, _ := newTestOrchestrator(t, client)
	phases := recordPhases(o)

	ep := endpoint(t, catalog.GetCommentsByPost)
	l, err := o.Send(context.Background(), ep, input.New(ep.Input))

	var pre *PreconditionError
	require.ErrorAs(t, err, &pre)
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, model.KeyCreatedPostID, pre.Key)
	assert.Empty(t, client.Calls())

	assert.Equal(t, Error, l.Phase)
	assert.Equal(t, "No post available to fetch comments. Create a post first.", l.Message)
	assert.Nil(t, l.Payload)
	assert.Equal(t, []Phase{Error}, phases(), "never enters Loading")
	assert.False(t, o.Busy())
}

func TestCreateThenComments(t *testing.T) {
	client := &fakeClient{}
	client.respond = func(req httpclient.RequestSpec) (httpclient.Result, error) {
		if req.Method == http.MethodPost {
			return reply(201, `{"id":101,"title":"Hi","body":"World","userId":"1"}`)(req)
		}
		return reply(200, `[{"id":1,"postId":101,"body":"nice"}]`)(req)
	}
	o, store := newTestOrchestrator(t, client)

	create := endpoint(t, catalog.CreateNewPost)
	in := input.New(create.Input)
	require.NoError(t, in.Set("title", "Hi"))
	require.NoError(t, in.Set("body", "World"))
	require.NoError(t, in.Set("userId", "1"))

	l, err := o.Send(context.Background(), create, in)
	require.NoError(t, err)
	assert.Equal(t, Success, l.Phase)

	v, ok := store.Get(model.KeyCreatedPostID)
	require.True(t, ok)
	assert.EqualValues(t, 101, v)

	post := client.Calls()[0]
	assert.Equal(t, "application/json", post.Headers["Content-Type"])
	assert.JSONEq(t, `{"title":"Hi","body":"World","userId":"1"}`, string(post.Body))

	comments := endpoint(t, catalog.GetCommentsByPost)
	l, err = o.Send(context.Background(), comments, input.New(comments.Input))
	require.NoError(t, err)
	assert.Equal(t, Success, l.Phase)

	require.Len(t, client.Calls(), 2)
	assert.Equal(t, base+"/comments?postId=101", client.Calls()[1].URL)
}

func TestProducerWrittenBeforeSuccessIsPublished(t *testing.T) {
	client := &fakeClient{respond: reply(201, `{"id":7}`)}
	o, store := newTestOrchestrator(t, client)

	var seen any
	var seenOK bool
	o.Observe(func(l Lifecycle) {
		if l.Phase == Success {
			seen, seenOK = store.Get(model.KeyCreatedPostID)
		}
	})

	ep := endpoint(t, catalog.CreateNewPost)
	_, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.NoError(t, err)
	require.True(t, seenOK)
	assert.EqualValues(t, 7, seen)
}

func TestLoadingStrictlyDuringCall(t *testing.T) {
	client := &fakeClient{}
	o, _ := newTestOrchestrator(t, client)

	var during Lifecycle
	var busy bool
	client.respond = func(req httpclient.RequestSpec) (httpclient.Result, error) {
		during = o.State()
		busy = o.Busy()
		return reply(200, `[]`)(req)
	}

	ep := endpoint(t, catalog.GetUsersList)
	l, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.NoError(t, err)

	assert.Equal(t, Loading, during.Phase)
	assert.Equal(t, ep.ID, during.Endpoint)
	assert.True(t, busy)
	assert.Equal(t, Success, l.Phase)
	assert.Equal(t, Success, o.State().Phase)
	assert.False(t, o.Busy())
}

func TestFailureModes(t *testing.T) {
	tests := []struct {
		name    string
		respond func(httpclient.RequestSpec) (httpclient.Result, error)
		status  int
	}{
		{
			name: "network",
			respond: func(httpclient.RequestSpec) (httpclient.Result, error) {
				return httpclient.Result{}, errors.New("dial tcp: connection refused")
			},
		},
		{name: "server error", respond: reply(500, `{"error":"boom"}`), status: 500},
		{name: "not json", respond: reply(200, `<html>`), status: 200},
		{name: "empty body", respond: reply(200, ``), status: 200},
		{name: "wrong shape", respond: reply(200, `{"id":1}`), status: 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{respond: tt.respond}
			o, store := newTestOrchestrator(t, client)
			phases := recordPhases(o)

			ep := endpoint(t, catalog.GetUsersList)
			l, err := o.Send(context.Background(), ep, input.New(ep.Input))

			var te *TransportError
			require.ErrorAs(t, err, &te)
			assert.ErrorIs(t, err, ErrTransport)
			assert.Equal(t, tt.status, te.Status)

			assert.Equal(t, Error, l.Phase)
			assert.Equal(t, FetchFailedMessage, l.Message)
			assert.Nil(t, l.Payload)
			assert.Equal(t, []Phase{Loading, Error}, phases())
			assert.False(t, o.Busy())

			_, ok := store.Get(model.KeyUsers)
			assert.False(t, ok, "no producer write on failure")
		})
	}
}

func TestTransportFailureClearsPreviousSuccess(t *testing.T) {
	client := &fakeClient{respond: reply(200, `[{"id":1,"name":"Leanne"}]`)}
	o, _ := newTestOrchestrator(t, client)
	ep := endpoint(t, catalog.GetUsersList)

	l, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.NoError(t, err)
	require.NotNil(t, l.Payload)

	client.respond = func(httpclient.RequestSpec) (httpclient.Result, error) {
		return httpclient.Result{}, errors.New("offline")
	}
	l, err = o.Send(context.Background(), ep, input.New(ep.Input))
	require.Error(t, err)
	assert.Equal(t, Error, l.Phase)
	assert.Nil(t, l.Payload)
	assert.Nil(t, o.State().Payload)
	assert.Equal(t, FetchFailedMessage, o.State().Message)
}

func TestFailedCreateKeepsPreviousPostID(t *testing.T) {
	client := &fakeClient{respond: reply(201, `{"id":101}`)}
	o, store := newTestOrchestrator(t, client)
	ep := endpoint(t, catalog.CreateNewPost)

	_, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.NoError(t, err)

	client.respond = reply(503, `{}`)
	_, err = o.Send(context.Background(), ep, input.New(ep.Input))
	require.Error(t, err)

	v, ok := store.Get(model.KeyCreatedPostID)
	require.True(t, ok)
	assert.EqualValues(t, 101, v)
}

func TestReentrantFromError(t *testing.T) {
	client := &fakeClient{respond: reply(500, `{}`)}
	o, _ := newTestOrchestrator(t, client)
	phases := recordPhases(o)
	ep := endpoint(t, catalog.GetUsersList)

	_, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.Error(t, err)

	client.respond = reply(200, `[]`)
	l, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.NoError(t, err)
	assert.Equal(t, Success, l.Phase)
	assert.Empty(t, l.Message)
	assert.Equal(t, []Phase{Loading, Error, Loading, Success}, phases())
}

func TestPanicLeavesNoLoading(t *testing.T) {
	client := &fakeClient{respond: func(httpclient.RequestSpec) (httpclient.Result, error) {
		panic("client bug")
	}}
	o, _ := newTestOrchestrator(t, client)
	ep := endpoint(t, catalog.GetUsersList)

	assert.Panics(t, func() {
		_, _ = o.Send(context.Background(), ep, input.New(ep.Input))
	})
	assert.Equal(t, Error, o.State().Phase)
	assert.Equal(t, FetchFailedMessage, o.State().Message)
	assert.False(t, o.Busy())
}

func TestStrictRejectsOverlap(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	client := &fakeClient{respond: func(req httpclient.RequestSpec) (httpclient.Result, error) {
		close(started)
		<-release
		return reply(200, `[]`)(req)
	}}
	o, _ := newTestOrchestrator(t, client, WithStrict(true))
	ep := endpoint(t, catalog.GetUsersList)

	done := make(chan error, 1)
	go func() {
		_, err := o.Send(context.Background(), ep, input.New(ep.Input))
		done <- err
	}()
	<-started

	l, err := o.Send(context.Background(), ep, input.New(ep.Input))
	assert.ErrorIs(t, err, ErrInFlight)
	assert.Equal(t, Loading, l.Phase, "rejected send leaves state untouched")

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, Success, o.State().Phase)
	assert.Len(t, client.Calls(), 1)
}

func TestLastResolvedWins(t *testing.T) {
	firstStarted := make(chan struct{})
	releaseFirst := make(chan struct{})
	client := &fakeClient{}
	var once sync.Once
	client.respond = func(req httpclient.RequestSpec) (httpclient.Result, error) {
		first := false
		once.Do(func() { first = true })
		if first {
			close(firstStarted)
			<-releaseFirst
			return reply(200, `[{"id":1,"name":"first"}]`)(req)
		}
		return reply(200, `[{"id":2,"name":"second"}]`)(req)
	}
	o, _ := newTestOrchestrator(t, client)
	ep := endpoint(t, catalog.GetUsersList)

	done := make(chan Lifecycle, 1)
	go func() {
		l, _ := o.Send(context.Background(), ep, input.New(ep.Input))
		done <- l
	}()
	<-firstStarted

	second, err := o.Send(context.Background(), ep, input.New(ep.Input))
	require.NoError(t, err)
	assert.Equal(t, "req-2", second.RequestID)
	assert.True(t, o.Busy(), "first request still in flight")

	close(releaseFirst)
	first := <-done
	assert.Equal(t, "req-1", first.RequestID)
	assert.Equal(t, "req-1", o.State().RequestID, "the later resolution is shown")
	assert.False(t, o.Busy())
}

func TestInputValidation(t *testing.T) {
	client := &fakeClient{respond: reply(201, `{"id":1}`)}
	o, _ := newTestOrchestrator(t, client, WithInputValidation(true))
	ep := endpoint(t, catalog.CreateNewPost)
	in := input.New(ep.Input)
	require.NoError(t, in.Set("title", "Hi"))

	l, err := o.Send(context.Background(), ep, in)
	var ve *input.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, Error, l.Phase)
	assert.Equal(t, "body: required; userId: required", l.Message)
	assert.Empty(t, client.Calls())

	require.NoError(t, in.Set("body", "World"))
	require.NoError(t, in.Set("userId", "1"))
	_, err = o.Send(context.Background(), ep, in)
	assert.NoError(t, err)
}

func TestUserMessage(t *testing.T) {
	assert.Empty(t, UserMessage(nil))
	assert.Equal(t, "create first", UserMessage(&PreconditionError{Message: "create first"}))
	assert.Equal(t, FetchFailedMessage, UserMessage(&TransportError{Err: errors.New("dial tcp 10.0.0.1: refused")}))
	assert.Equal(t, FetchFailedMessage, UserMessage(fmt.Errorf("wrapped: %w", &TransportError{Status: 500, Err: errors.New("x")})))
	assert.Equal(t, "A request is already in progress.", UserMessage(ErrInFlight))
	assert.Equal(t, "title: required", UserMessage(&input.ValidationError{Fields: []input.FieldError{{Field: "title", Message: "required"}}}))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "success", Success.String())
	assert.Equal(t, "error", Error.String())
	assert.Equal(t, "unknown", Phase(42).String())
}

package facade

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Handler is one concrete handler eligible for a call. It carries enough
// metadata for an interceptor to filter on without invoking it. Handlers are
// built fresh for every call.
type Handler struct {
	Owner      string
	Marker     Marker
	Static     bool
	EntryPoint *EntryPoint

	invoke func(ctx context.Context) (any, error)
}

// Name returns the handler's method name.
func (h Handler) Name() string { return h.EntryPoint.Name() }

// Shape returns the handler's return shape.
func (h Handler) Shape() ReturnShape { return h.EntryPoint.Shape() }

// Invoke binds the handler's parameters and calls it. The returned value is
// raw: an Awaitable for asynchronous shapes and a sequence for streams.
func (h Handler) Invoke(ctx context.Context) (any, error) {
	return h.invoke(ctx)
}

// State is a step in an invocation's lifecycle.
type State int

const (
	StateNotStarted State = iota
	StateHandlersResolved
	StateInterceptorsRunning
	StateHandlerInvoked
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateHandlersResolved:
		return "handlers-resolved"
	case StateInterceptorsRunning:
		return "interceptors-running"
	case StateHandlerInvoked:
		return "handler-invoked"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Outcome is how a completed invocation ended.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Operation names the dispatcher entry point that started an invocation.
type Operation string

const (
	OpPublish        Operation = "Publish"
	OpPublishAsync   Operation = "PublishAsync"
	OpSend           Operation = "Send"
	OpSendAsync      Operation = "SendAsync"
	OpCreateStream   Operation = "CreateStream"
	OpAggregate      Operation = "Aggregate"
	OpAggregateAsync Operation = "AggregateAsync"
	OpRoute          Operation = "Route"
)

// Invocation is the per-call context passed by reference through the
// interceptor chain. It is created once per call, owned by that call, and
// discarded when the call completes.
type Invocation struct {
	// ID uniquely identifies the call.
	ID string

	Facade    string
	Operation Operation

	// Method, Owner and Marker describe the first candidate handler.
	Method string
	Owner  string
	Marker Marker

	Args  Arguments
	Shape ReturnShape

	// Handlers is the full candidate list, in registration order.
	Handlers []Handler

	// Aggregated reports whether more than one handler is eligible.
	Aggregated bool

	mu      sync.Mutex
	active  []Handler
	items   map[string]any
	state   State
	outcome Outcome
	err     error
}

func newInvocation(facade string, op Operation, args Arguments) *Invocation {
	return &Invocation{
		ID:        uuid.NewString(),
		Facade:    facade,
		Operation: op,
		Args:      args,
	}
}

// Set stores a value in the invocation's side channel for later links of the
// interceptor chain.
func (inv *Invocation) Set(key string, v any) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.items == nil {
		inv.items = make(map[string]any)
	}
	inv.items[key] = v
}

// Get reads a value from the invocation's side channel.
func (inv *Invocation) Get(key string) (any, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	v, ok := inv.items[key]
	return v, ok
}

// Active returns the handler list reaching the running interceptor. It
// differs from Handlers once an outer interceptor passed a replacement list
// to its continuation.
func (inv *Invocation) Active() []Handler {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.Clone(inv.active)
}

func (inv *Invocation) enter(handlers []Handler) func() {
	inv.mu.Lock()
	prev := inv.active
	inv.active = handlers
	inv.mu.Unlock()
	return func() {
		inv.mu.Lock()
		inv.active = prev
		inv.mu.Unlock()
	}
}

// State returns the current lifecycle state.
func (inv *Invocation) State() State {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// Outcome returns how the invocation ended, or OutcomePending.
func (inv *Invocation) Outcome() Outcome {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.outcome
}

// Err returns the error the invocation completed with.
func (inv *Invocation) Err() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.err
}

func (inv *Invocation) resolved(handlers []Handler) {
	inv.Handlers = handlers
	inv.Aggregated = len(handlers) > 1
	inv.mu.Lock()
	inv.active = handlers
	inv.mu.Unlock()
	if len(handlers) > 0 {
		first := handlers[0]
		inv.Method = first.Name()
		inv.Owner = first.Owner
		inv.Marker = first.Marker
		inv.Shape = first.Shape()
	}
	inv.transition(StateHandlersResolved)
}

// transition moves the state forward. Completed is terminal and states never
// move backwards.
func (inv *Invocation) transition(s State) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.state == StateCompleted || s < inv.state {
		return
	}
	inv.state = s
}

// complete moves the invocation to StateCompleted with the outcome implied by
// err. Only the first call has an effect.
func (inv *Invocation) complete(err error) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.state == StateCompleted {
		return
	}
	inv.state = StateCompleted
	inv.err = err
	switch {
	case err == nil:
		inv.outcome = OutcomeSucceeded
	case IsCanceled(err):
		inv.outcome = OutcomeCanceled
	default:
		inv.outcome = OutcomeFailed
	}
}

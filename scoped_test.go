package facade

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type tenant struct{ name string }

// spyScopes counts scope lifetimes and serves the same services from every
// scope.
type spyScopes struct {
	services Services
	closeErr error

	opened      atomic.Int32
	closed      atomic.Int32
	asyncOpened atomic.Int32
	shutdowns   atomic.Int32
}

type spyScope struct {
	Services
	spy *spyScopes
}

func (sc *spyScope) Close() error {
	sc.spy.closed.Add(1)
	return sc.spy.closeErr
}

type spyAsyncScope struct {
	Services
	spy *spyScopes
}

func (sc *spyAsyncScope) Shutdown(context.Context) error {
	sc.spy.shutdowns.Add(1)
	return sc.spy.closeErr
}

func (f *spyScopes) NewScope(context.Context) (Scope, error) {
	f.opened.Add(1)
	return &spyScope{Services: f.services, spy: f}, nil
}

func (f *spyScopes) NewAsyncScope(context.Context) (AsyncScope, error) {
	f.asyncOpened.Add(1)
	return &spyAsyncScope{Services: f.services, spy: f}, nil
}

type ScopedSuite struct {
	suite.Suite
	ctx    context.Context
	scopes *spyScopes
}

func TestScopedSuite(t *testing.T) {
	suite.Run(t, new(ScopedSuite))
}

func (s *ScopedSuite) SetupTest() {
	s.ctx = context.Background()
	s.scopes = &spyScopes{services: Services{}}
	Provide(s.scopes.services, &tenant{name: "acme"})
}

func (s *ScopedSuite) scoped(eps ...*EntryPoint) *ScopedDispatcher {
	return NewScoped(New(eps), s.scopes)
}

func tenantName() *EntryPoint {
	return NewFunc("Tenant", func(_ context.Context, in Values) (string, error) {
		return Value[*tenant](in, "tenant").name, nil
	}, WithParams(ServiceParam[*tenant]("tenant")))
}

func (s *ScopedSuite) TestSendResolvesFromScopeAndClosesOnce() {
	d := s.scoped(tenantName())

	name, err := Send[string](s.ctx, d, Arguments{})

	s.Require().NoError(err)
	s.Assert().Equal("acme", name)
	s.Assert().EqualValues(1, s.scopes.opened.Load())
	s.Assert().EqualValues(1, s.scopes.closed.Load())
	s.Assert().EqualValues(0, s.scopes.asyncOpened.Load())
}

func (s *ScopedSuite) TestSendWithWrongResultTypeFailsAndClosesOnce() {
	var failed bool
	d := NewScoped(New([]*EntryPoint{tenantName()},
		WithOnFailure(func(context.Context, *Invocation, error, time.Duration) { failed = true }),
	), s.scopes)

	_, err := Send[int](s.ctx, d, Arguments{})

	s.Assert().ErrorIs(err, ErrReturnShapeMismatch)
	s.Assert().True(failed)
	s.Assert().EqualValues(1, s.scopes.closed.Load())
}

func (s *ScopedSuite) TestQueryWithWrongResultTypeShutsDown() {
	d := s.scoped(tenantName())

	_, err := Query[int](s.ctx, d, Arguments{})

	s.Assert().ErrorIs(err, ErrReturnShapeMismatch)
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestPublishClosesScopeOnFailure() {
	boom := errors.New("boom")
	d := s.scoped(NewAction("Fail", func(context.Context, Values) error { return boom }))

	err := d.Publish(s.ctx, Arguments{})

	s.Assert().ErrorIs(err, boom)
	s.Assert().EqualValues(1, s.scopes.closed.Load())
}

func (s *ScopedSuite) TestScopeClosedWhenHandlerPanics() {
	d := s.scoped(NewFunc("Panic", func(context.Context, Values) (int, error) {
		panic("kaboom")
	}))

	s.Assert().Panics(func() {
		_, _ = d.Invoke(s.ctx, Arguments{})
	})
	s.Assert().EqualValues(1, s.scopes.opened.Load())
	s.Assert().EqualValues(1, s.scopes.closed.Load())
}

func (s *ScopedSuite) TestNoMatchStillClosesScope() {
	d := s.scoped(greetEntry())

	_, err := Send[string](s.ctx, d, Arguments{})

	s.Assert().ErrorIs(err, ErrNoMatchingEntryPoint)
	s.Assert().EqualValues(1, s.scopes.closed.Load())
}

func (s *ScopedSuite) TestCloseErrorIsJoined() {
	closeErr := errors.New("close failed")
	s.scopes.closeErr = closeErr
	d := s.scoped(tenantName())

	_, err := Send[string](s.ctx, d, Arguments{})

	s.Assert().ErrorIs(err, closeErr)
}

func (s *ScopedSuite) TestCanceledContextOpensNoScope() {
	d := s.scoped(tenantName())
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	_, err := Send[string](ctx, d, Arguments{})

	s.Assert().ErrorIs(err, ErrCanceled)
	s.Assert().EqualValues(0, s.scopes.opened.Load())
}

func (s *ScopedSuite) TestSendAsyncUsesAsyncScope() {
	d := s.scoped(NewAsyncFunc("Tenant", func(_ context.Context, in Values) *Future[string] {
		t := Value[*tenant](in, "tenant")
		return Go(func() (string, error) { return t.name, nil })
	}, WithParams(ServiceParam[*tenant]("tenant"))))

	name, err := SendAsync[string](s.ctx, d, Arguments{})

	s.Require().NoError(err)
	s.Assert().Equal("acme", name)
	s.Assert().EqualValues(0, s.scopes.opened.Load())
	s.Assert().EqualValues(1, s.scopes.asyncOpened.Load())
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestPublishAsyncShutsDownAfterAwait() {
	d := s.scoped(NewAsyncAction("Notify", func(context.Context, Values) Awaitable {
		return Completed(struct{}{}, nil)
	}))

	s.Require().NoError(d.PublishAsync(s.ctx, Arguments{}))
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestRouteUsesSyncScope() {
	d := s.scoped(tenantName())

	routed, err := d.Route(s.ctx, Arguments{})

	s.Require().NoError(err)
	s.Assert().Equal("acme", routed.Value)
	s.Assert().EqualValues(1, s.scopes.closed.Load())
}

func numbers(n int) *EntryPoint {
	return NewStream("Numbers", func(context.Context, Values) iter.Seq2[int, error] {
		return func(yield func(int, error) bool) {
			for i := range n {
				if !yield(i, nil) {
					return
				}
			}
		}
	})
}

func (s *ScopedSuite) TestStreamHoldsScopeUntilExhausted() {
	d := s.scoped(numbers(3))

	seq, err := CreateStream[int](s.ctx, d, Arguments{})
	s.Require().NoError(err)
	s.Assert().EqualValues(1, s.scopes.asyncOpened.Load())
	s.Assert().EqualValues(0, s.scopes.shutdowns.Load())

	got, err := Collect(seq)
	s.Require().NoError(err)
	s.Assert().Equal([]int{0, 1, 2}, got)
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestStreamShutsDownWhenConsumerStops() {
	d := s.scoped(numbers(10))

	seq, err := CreateStream[int](s.ctx, d, Arguments{})
	s.Require().NoError(err)

	for range seq {
		break
	}
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestStreamShutdownErrorYieldedAtEnd() {
	closeErr := errors.New("shutdown failed")
	s.scopes.closeErr = closeErr
	d := s.scoped(numbers(2))

	seq, err := CreateStream[int](s.ctx, d, Arguments{})
	s.Require().NoError(err)

	got, err := Collect(seq)
	s.Assert().Equal([]int{0, 1}, got)
	s.Assert().ErrorIs(err, closeErr)
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestStreamNeverRangedShutsDownOnCancel() {
	d := s.scoped(numbers(3))
	ctx, cancel := context.WithCancel(s.ctx)

	_, err := CreateStream[int](ctx, d, Arguments{})
	s.Require().NoError(err)
	s.Assert().EqualValues(0, s.scopes.shutdowns.Load())

	cancel()
	s.Assert().Eventually(func() bool {
		return s.scopes.shutdowns.Load() == 1
	}, time.Second, time.Millisecond)
}

func (s *ScopedSuite) TestStreamTypeMismatchShutsDown() {
	d := s.scoped(numbers(3))

	_, err := CreateStream[string](s.ctx, d, Arguments{})

	s.Assert().ErrorIs(err, ErrReturnShapeMismatch)
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestStreamShapeMismatchShutsDown() {
	d := s.scoped(tenantName())

	_, err := CreateStream[string](s.ctx, d, Arguments{})

	s.Assert().ErrorIs(err, ErrReturnShapeMismatch)
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

func (s *ScopedSuite) TestQueryHoldsScopeUntilConsumed() {
	d := s.scoped(tenantName(), tenantName())

	seq, err := Query[string](s.ctx, d, Arguments{})
	s.Require().NoError(err)
	s.Assert().EqualValues(0, s.scopes.shutdowns.Load())

	got, err := Collect(seq)
	s.Require().NoError(err)
	s.Assert().Equal([]string{"acme", "acme"}, got)
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
	s.Assert().EqualValues(0, s.scopes.opened.Load())
}

func (s *ScopedSuite) TestQueryAsyncShutsDownWhenConsumerStops() {
	d := s.scoped(tenantName(), tenantName())

	seq, err := QueryAsync[string](s.ctx, d, Arguments{})
	s.Require().NoError(err)

	for range seq {
		break
	}
	s.Assert().EqualValues(1, s.scopes.shutdowns.Load())
}

package interceptor

import (
	"context"
	"testing"
	"time"

	"github.com/bjaus/facade"
	"github.com/stretchr/testify/suite"
)

type TimeoutSuite struct {
	suite.Suite
	ctx context.Context
}

func TestTimeoutSuite(t *testing.T) {
	suite.Run(t, new(TimeoutSuite))
}

func (s *TimeoutSuite) SetupTest() {
	s.ctx = context.Background()
}

func withDeadlineCheck(name string, has *bool) *facade.EntryPoint {
	return facade.NewAction(name, func(ctx context.Context, _ facade.Values) error {
		_, *has = ctx.Deadline()
		return nil
	})
}

func (s *TimeoutSuite) TestSendAsyncStopsAwaitingAtDeadline() {
	release := make(chan struct{})
	defer close(release)

	d := facade.New([]*facade.EntryPoint{facade.NewAsyncFunc("Stuck", func(context.Context, facade.Values) *facade.Future[string] {
		return facade.Go(func() (string, error) {
			<-release
			return "late", nil
		})
	})}, facade.WithInterceptor(NewTimeout(20*time.Millisecond)))

	_, err := facade.SendAsync[string](s.ctx, d, facade.Arguments{})

	s.Assert().ErrorIs(err, facade.ErrCanceled)
	s.Assert().ErrorIs(err, ErrTimeout)
}

func (s *TimeoutSuite) TestHandlerSeesDeadline() {
	var has bool
	d := facade.New([]*facade.EntryPoint{withDeadlineCheck("Check", &has)},
		facade.WithInterceptor(NewTimeout(time.Second)))

	s.Require().NoError(d.Publish(s.ctx, facade.Arguments{}))
	s.Assert().True(has)
}

func (s *TimeoutSuite) TestAggregatedPublishIsNotBounded() {
	var first, second bool
	d := facade.New([]*facade.EntryPoint{withDeadlineCheck("A", &first), withDeadlineCheck("B", &second)},
		facade.WithInterceptor(NewTimeout(time.Second)))

	s.Require().NoError(d.Publish(s.ctx, facade.Arguments{}))
	s.Assert().False(first)
	s.Assert().False(second)
}

func (s *TimeoutSuite) TestZeroDurationDisables() {
	var has bool
	d := facade.New([]*facade.EntryPoint{withDeadlineCheck("Check", &has)},
		facade.WithInterceptor(NewTimeout(0)))

	s.Require().NoError(d.Publish(s.ctx, facade.Arguments{}))
	s.Assert().False(has)
}

func (s *TimeoutSuite) TestStreamsPassThrough() {
	d := facade.New([]*facade.EntryPoint{counter(3)}, facade.WithInterceptor(NewTimeout(time.Nanosecond)))

	seq, err := facade.CreateStream[int](s.ctx, d, facade.Arguments{})
	s.Require().NoError(err)

	got, err := facade.Collect(seq)
	s.Require().NoError(err)
	s.Assert().Equal([]int{0, 1, 2}, got)
}

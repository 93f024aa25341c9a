package interceptor

import (
	"context"
	"testing"

	"github.com/bjaus/facade"
	"github.com/code19m/errx"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type LoggingSuite struct {
	suite.Suite
	ctx  context.Context
	logs *observer.ObservedLogs
	opt  facade.Option
}

func TestLoggingSuite(t *testing.T) {
	suite.Run(t, new(LoggingSuite))
}

func (s *LoggingSuite) SetupTest() {
	s.ctx = context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	s.logs = logs
	s.opt = facade.WithInterceptor(NewLogging(zap.New(core)))
}

func (s *LoggingSuite) entries() []observer.LoggedEntry {
	return s.logs.FilterMessage(logMessage).AllUntimed()
}

func (s *LoggingSuite) TestSuccessLogsInfoWithInvocationFields() {
	d := facade.New([]*facade.EntryPoint{greet()}, facade.WithFacadeName("greetings"), s.opt)

	_, err := facade.Send[string](s.ctx, d, facade.Arguments{})
	s.Require().NoError(err)

	entries := s.entries()
	s.Require().Len(entries, 1)
	s.Assert().Equal(zapcore.InfoLevel, entries[0].Level)
	s.Assert().Equal("facade_interceptor", entries[0].LoggerName)

	fields := entries[0].ContextMap()
	s.Assert().Equal("greetings", fields["facade"])
	s.Assert().Equal("Send", fields["operation"])
	s.Assert().Equal("Greet", fields["method"])
	s.Assert().Equal("Greeter", fields["owner"])
	s.Assert().Equal("result", fields["shape"])
	s.Assert().NotEmpty(fields["invocation_id"])
	s.Assert().Contains(fields, "duration")
}

func (s *LoggingSuite) TestInternalErrorLogsError() {
	err := errx.New("db down", errx.WithType(errx.T_Internal))
	d := facade.New([]*facade.EntryPoint{failing("Fail", err)}, s.opt)

	_, got := facade.Send[string](s.ctx, d, facade.Arguments{})
	s.Require().Error(got)

	entries := s.entries()
	s.Require().Len(entries, 1)
	s.Assert().Equal(zapcore.ErrorLevel, entries[0].Level)
	s.Assert().Contains(entries[0].ContextMap(), "error")
}

func (s *LoggingSuite) TestResultTypeMismatchLogsFailure() {
	d := facade.New([]*facade.EntryPoint{facade.NewFunc("Loose", func(context.Context, facade.Values) (any, error) {
		return "hi", nil
	})}, s.opt)

	_, err := facade.Send[int](s.ctx, d, facade.Arguments{})
	s.Require().ErrorIs(err, facade.ErrReturnShapeMismatch)

	entries := s.entries()
	s.Require().Len(entries, 1)
	s.Assert().Greater(entries[0].Level, zapcore.InfoLevel)
	s.Assert().Contains(entries[0].ContextMap(), "error")
}

func (s *LoggingSuite) TestValidationErrorLogsWarn() {
	err := errx.New("bad input", errx.WithType(errx.T_Validation))
	d := facade.New([]*facade.EntryPoint{failing("Fail", err)}, s.opt)

	_, got := facade.Send[string](s.ctx, d, facade.Arguments{})
	s.Require().Error(got)

	entries := s.entries()
	s.Require().Len(entries, 1)
	s.Assert().Equal(zapcore.WarnLevel, entries[0].Level)
}

func (s *LoggingSuite) TestCancellationLogsInfo() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	d := facade.New([]*facade.EntryPoint{facade.NewFunc("Slow", func(ctx context.Context, _ facade.Values) (string, error) {
		cancel()
		return "", ctx.Err()
	})}, s.opt)

	_, err := facade.Send[string](ctx, d, facade.Arguments{})
	s.Require().Error(err)

	entries := s.entries()
	s.Require().Len(entries, 1)
	s.Assert().Equal(zapcore.InfoLevel, entries[0].Level)
	s.Assert().Equal(true, entries[0].ContextMap()["canceled"])
}

func (s *LoggingSuite) TestQueryLogsAfterConsumption() {
	d := facade.New([]*facade.EntryPoint{number("A", 1), number("B", 2)}, s.opt)

	seq, err := facade.Query[int](s.ctx, d, facade.Arguments{})
	s.Require().NoError(err)
	s.Assert().Empty(s.entries())

	got, err := facade.Collect(seq)
	s.Require().NoError(err)
	s.Assert().Equal([]int{1, 2}, got)

	entries := s.entries()
	s.Require().Len(entries, 1)
	s.Assert().Equal(true, entries[0].ContextMap()["aggregated"])
	s.Assert().EqualValues(2, entries[0].ContextMap()["handlers"])
}

func (s *LoggingSuite) TestStreamLogsAfterExhaustion() {
	d := facade.New([]*facade.EntryPoint{counter(3)}, s.opt)

	seq, err := facade.CreateStream[int](s.ctx, d, facade.Arguments{})
	s.Require().NoError(err)
	s.Assert().Empty(s.entries())

	_, err = facade.Collect(seq)
	s.Require().NoError(err)
	s.Assert().Len(s.entries(), 1)
}

func (s *LoggingSuite) TestPublishLogsOnce() {
	d := facade.New([]*facade.EntryPoint{
		facade.NewAction("A", func(context.Context, facade.Values) error { return nil }),
		facade.NewAction("B", func(context.Context, facade.Values) error { return nil }),
	}, s.opt)

	s.Require().NoError(d.Publish(s.ctx, facade.Arguments{}))
	s.Assert().Len(s.entries(), 1)
}

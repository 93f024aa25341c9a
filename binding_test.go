package facade

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/suite"
)

type headerBinding struct{}

func (headerBinding) CanBind(bc BindingContext) bool { return bc.Name == "header" }

func (headerBinding) Bind(context.Context, BindingContext) (any, error) { return "from-header", nil }

type BindingSuite struct {
	suite.Suite
	ctx context.Context
	b   *Binding
}

func TestBindingSuite(t *testing.T) {
	suite.Run(t, new(BindingSuite))
}

func (s *BindingSuite) SetupTest() {
	s.ctx = context.Background()
	s.b = NewBinding()
}

func strategyTypes(b *Binding) []reflect.Type {
	var out []reflect.Type
	for _, st := range b.Strategies() {
		out = append(out, reflect.TypeOf(st))
	}
	return out
}

func (s *BindingSuite) TestDefaultOrder() {
	s.Assert().Equal([]reflect.Type{
		reflect.TypeFor[ServiceBinding](),
		reflect.TypeFor[ArgumentBinding](),
		reflect.TypeFor[ContextBinding](),
	}, strategyTypes(s.b))
}

func (s *BindingSuite) TestAddStrategyAppends() {
	s.b.AddStrategy(headerBinding{})

	types := strategyTypes(s.b)
	s.Require().Len(types, 4)
	s.Assert().Equal(reflect.TypeFor[headerBinding](), types[3])
}

func (s *BindingSuite) TestAddStrategyBefore() {
	s.Require().NoError(AddStrategyBefore[ArgumentBinding](s.b, headerBinding{}))

	s.Assert().Equal([]reflect.Type{
		reflect.TypeFor[ServiceBinding](),
		reflect.TypeFor[headerBinding](),
		reflect.TypeFor[ArgumentBinding](),
		reflect.TypeFor[ContextBinding](),
	}, strategyTypes(s.b))
}

func (s *BindingSuite) TestAddStrategyAfter() {
	s.Require().NoError(AddStrategyAfter[ContextBinding](s.b, headerBinding{}))

	types := strategyTypes(s.b)
	s.Assert().Equal(reflect.TypeFor[headerBinding](), types[len(types)-1])
}

func (s *BindingSuite) TestAnchorNotFound() {
	err := AddStrategyBefore[headerBinding](s.b, ArgumentBinding{})

	s.Assert().ErrorIs(err, ErrStrategyAnchorNotFound)
	s.Assert().Len(s.b.Strategies(), 3)
}

func (s *BindingSuite) TestInsertStrategy() {
	s.Require().NoError(s.b.InsertStrategy(0, headerBinding{}))
	s.Assert().Equal(reflect.TypeFor[headerBinding](), strategyTypes(s.b)[0])

	s.Assert().Error(s.b.InsertStrategy(10, headerBinding{}))
	s.Assert().Error(s.b.InsertStrategy(-1, headerBinding{}))
}

func (s *BindingSuite) TestStrategiesReturnsCopy() {
	strategies := s.b.Strategies()
	strategies[0] = headerBinding{}

	s.Assert().Equal(reflect.TypeFor[ServiceBinding](), strategyTypes(s.b)[0])
}

func (s *BindingSuite) TestArgumentBinding() {
	bc := newBindingContext(Param[string]("name"), Arguments{"name": "Ann"}, nil)

	v, err := ResolveParameter[string](s.ctx, s.b, bc)

	s.Require().NoError(err)
	s.Assert().Equal("Ann", v)
}

func (s *BindingSuite) TestArgumentDefault() {
	bc := newBindingContext(OptionalParam("limit", 10), Arguments{}, nil)

	v, err := ResolveParameter[int](s.ctx, s.b, bc)

	s.Require().NoError(err)
	s.Assert().Equal(10, v)
}

func (s *BindingSuite) TestEarlierStrategyWins() {
	s.Require().NoError(AddStrategyBefore[ArgumentBinding](s.b, headerBinding{}))
	bc := newBindingContext(Param[string]("header"), Arguments{"header": "from-args"}, nil)

	v, err := ResolveParameter[string](s.ctx, s.b, bc)

	s.Require().NoError(err)
	s.Assert().Equal("from-header", v)
}

func (s *BindingSuite) TestCustomBinderBypassesChain() {
	s.Require().NoError(AddStrategyBefore[ServiceBinding](s.b, headerBinding{}))
	s.b.RegisterBinder("upper", BinderFunc(func(_ context.Context, bc BindingContext) (any, error) {
		return "custom:" + bc.Name, nil
	}))
	bc := newBindingContext(Param[string]("header").WithBinder("upper"), Arguments{}, nil)

	v, err := ResolveParameter[string](s.ctx, s.b, bc)

	s.Require().NoError(err)
	s.Assert().Equal("custom:header", v)
}

func (s *BindingSuite) TestMissingBinder() {
	bc := newBindingContext(Param[string]("x").WithBinder("nope"), Arguments{"x": "y"}, nil)

	_, err := s.b.Resolve(s.ctx, bc)

	s.Assert().ErrorIs(err, ErrBinderNotRegistered)
}

func (s *BindingSuite) TestFallbackResolvesByType() {
	type repo struct{ name string }
	services := Services{}
	Provide(services, &repo{name: "users"})

	// A missing argument with no default falls through to the resolver.
	bc := newBindingContext(Param[*repo]("repo"), Arguments{}, services)

	v, err := ResolveParameter[*repo](s.ctx, s.b, bc)

	s.Require().NoError(err)
	s.Assert().Equal("users", v.name)
}

func (s *BindingSuite) TestUnresolvable() {
	bc := newBindingContext(Param[int]("count"), Arguments{}, nil)

	_, err := s.b.Resolve(s.ctx, bc)

	s.Assert().ErrorIs(err, ErrParameterNotResolved)
}

func (s *BindingSuite) TestContextByDeclaredType() {
	p := Parameter{Name: "ctx", Type: reflect.TypeFor[context.Context]()}
	bc := newBindingContext(p, Arguments{}, nil)

	v, err := ResolveParameter[context.Context](s.ctx, s.b, bc)

	s.Require().NoError(err)
	s.Assert().Equal(s.ctx, v)
}

func (s *BindingSuite) TestResolveParameterTypeMismatch() {
	bc := newBindingContext(Param[string]("name"), Arguments{"name": 3}, nil)

	_, err := ResolveParameter[string](s.ctx, s.b, bc)

	s.Assert().ErrorIs(err, ErrParameterNotResolved)
}

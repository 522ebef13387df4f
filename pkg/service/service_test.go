package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/bbservices/bbservices/pkg/service"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func failing(err error) service.Routine[string] {
	return service.RoutineFunc[string](func(_ context.Context, s *service.Service[string]) error {
		s.SetObject("partial")
		return err
	})
}

func panicking(v any) service.Routine[string] {
	return service.RoutineFunc[string](func(_ context.Context, _ *service.Service[string]) error {
		panic(v)
	})
}

func TestNotRun(t *testing.T) {
	t.Parallel()
	s := service.New[string](nil)

	require.False(t, s.Ran())
	require.False(t, s.Succeeded())
	require.False(t, s.Failed())
	require.Empty(t, s.Errors())
	require.NoError(t, s.Err())
	require.NotEmpty(t, s.ID())
	require.Equal(t, "service", s.Name())
}

func TestRun_Success(t *testing.T) {
	t.Parallel()
	var called []*service.Service[string]
	s := service.New[string](nil).Run(t.Context(), func(s *service.Service[string]) {
		called = append(called, s)
	})

	require.True(t, s.Ran())
	require.True(t, s.Succeeded())
	require.True(t, s.Successful())
	require.False(t, s.Failed())
	require.Empty(t, s.Errors())
	require.False(t, s.HasErrors())
	require.Equal(t, []*service.Service[string]{s}, called)
}

func TestRun_Failure(t *testing.T) {
	t.Parallel()
	var called int
	s := service.New(failing(errBoom)).Run(t.Context(), func(*service.Service[string]) {
		called++
	})

	require.True(t, s.Ran())
	require.False(t, s.Succeeded())
	require.True(t, s.Failed())
	require.Equal(t, []error{errBoom}, s.Errors())
	require.ErrorIs(t, s.Err(), errBoom)
	require.True(t, s.HasErrors())
	require.Equal(t, 1, called, "callback runs on the failure path too")
	require.Equal(t, "partial", s.Object(), "partial work is not rolled back")
}

func TestRun_Panic(t *testing.T) {
	t.Parallel()

	t.Run("value", func(t *testing.T) {
		t.Parallel()
		s := service.New(panicking("kaboom")).Run(t.Context())
		require.True(t, s.Failed())
		var perr *service.PanicError
		require.ErrorAs(t, s.Err(), &perr)
		require.Equal(t, "kaboom", perr.Value)
		require.NotEmpty(t, perr.Stack)
		require.EqualError(t, perr, "service panicked: kaboom")
	})

	t.Run("error", func(t *testing.T) {
		t.Parallel()
		s := service.New(panicking(errBoom)).Run(t.Context())
		require.True(t, s.Failed())
		require.ErrorIs(t, s.Err(), errBoom)
	})
}

func TestRunE(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		var called int
		s, err := service.New[string](nil).RunE(t.Context(), func(*service.Service[string]) { called++ })
		require.NoError(t, err)
		require.True(t, s.Succeeded())
		require.Equal(t, 1, called)
	})

	t.Run("failure", func(t *testing.T) {
		t.Parallel()
		var called int
		s, err := service.New(failing(errBoom)).RunE(t.Context(), func(*service.Service[string]) { called++ })
		require.ErrorIs(t, err, errBoom)
		require.True(t, s.Failed())
		require.Equal(t, []error{errBoom}, s.Errors())
		require.Zero(t, called, "callback runs on the success path only")
	})

	t.Run("panic", func(t *testing.T) {
		t.Parallel()
		s, err := service.New(panicking("kaboom")).RunE(t.Context())
		var perr *service.PanicError
		require.ErrorAs(t, err, &perr)
		require.Equal(t, []error{err}, s.Errors())
	})
}

func TestRun_Once(t *testing.T) {
	t.Parallel()
	var runs int
	routine := service.RoutineFunc[int](func(_ context.Context, s *service.Service[int]) error {
		runs++
		s.SetObject(runs)
		s.SetSuccessful(true)
		return nil
	})
	s := service.New(routine)
	s.Run(t.Context())

	var called int
	s.Run(t.Context(), func(*service.Service[int]) { called++ })
	_, err := s.RunE(t.Context())

	require.ErrorIs(t, err, service.ErrAlreadyRan)
	require.Equal(t, 1, runs)
	require.Zero(t, called)
	require.Equal(t, 1, s.Object())
	require.True(t, s.Succeeded())
}

func TestRoutineMustMarkSuccess(t *testing.T) {
	t.Parallel()
	routine := service.RoutineFunc[int](func(_ context.Context, s *service.Service[int]) error {
		s.SetObject(42)
		return nil
	})
	s, err := service.New(routine).RunE(t.Context())
	require.NoError(t, err)
	require.True(t, s.Ran())
	require.False(t, s.Succeeded())
	require.True(t, s.Failed())
	require.Empty(t, s.Errors())
}

func TestAddError(t *testing.T) {
	t.Parallel()
	errA, errB := errors.New("a"), errors.New("b")
	routine := service.RoutineFunc[int](func(_ context.Context, s *service.Service[int]) error {
		s.AddError(errA)
		s.AddError(nil)
		s.AddError(errB)
		s.SetSuccessful(true)
		return nil
	})
	s := service.New(routine).Run(t.Context())
	require.True(t, s.Failed())
	require.Equal(t, []error{errA, errB}, s.Errors())
	require.Equal(t, errA, s.Err())
}

type counter struct {
	initialized bool
}

func (c *counter) Initialize(_ context.Context, s *service.Service[[]string]) error {
	c.initialized = true
	s.SetObject([]string{"init"})
	return nil
}

func (c *counter) Work(_ context.Context, s *service.Service[[]string]) error {
	s.SetObject(append(s.Object(), "work"))
	s.SetSuccessful(true)
	return nil
}

func TestInitializer(t *testing.T) {
	t.Parallel()
	c := &counter{}
	s := service.New[[]string](c).Run(t.Context())
	require.True(t, c.initialized)
	require.True(t, s.Succeeded())
	require.Equal(t, []string{"init", "work"}, s.Object())
}

type failingInit struct{}

func (failingInit) Initialize(context.Context, *service.Service[int]) error { return errBoom }
func (failingInit) Work(context.Context, *service.Service[int]) error {
	panic("work must not be called")
}

func TestInitializer_Failure(t *testing.T) {
	t.Parallel()
	s := service.New[int](failingInit{}).Run(t.Context())
	require.True(t, s.Failed())
	require.Equal(t, []error{errBoom}, s.Errors())
}

func TestSuccessFailureOn(t *testing.T) {
	t.Parallel()
	type then struct {
		success int
		failure int
		on      string
	}
	var testCases = []struct {
		scenario string
		given    *service.Service[string]
		then     then
	}{
		{"not run", service.New[string](nil), then{0, 0, "failure"}},
		{"succeeded", service.New[string](nil).Run(context.Background()), then{1, 0, "success"}},
		{"failed", service.New(failing(errBoom)).Run(context.Background()), then{0, 1, "failure"}},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			var success, failure int
			var on string
			s := tt.given
			s.Success(func(*service.Service[string]) { success++ }).
				Failure(func(*service.Service[string]) { failure++ }).
				On(
					func(*service.Service[string]) { on = "success" },
					func(*service.Service[string]) { on = "failure" },
				)
			require.Equal(t, tt.then.success, success)
			require.Equal(t, tt.then.failure, failure)
			require.Equal(t, tt.then.on, on)
			s.On(nil, nil)
		})
	}
}

func TestParams(t *testing.T) {
	t.Parallel()
	s := service.New[string](nil, service.WithParams(service.Params{"name": "bob", "age": 42}))

	require.True(t, s.HasParams())
	require.Equal(t, 2, s.NumberOfParams())
	require.Equal(t, "bob", s.ParamFor("name"))
	require.Nil(t, s.ParamFor("missing"))

	name, ok := service.Param[string](s, "name")
	require.True(t, ok)
	require.Equal(t, "bob", name)

	_, ok = service.Param[string](s, "age")
	require.False(t, ok, "wrong type")

	empty := service.New[string](nil)
	require.False(t, empty.HasParams())
	require.Zero(t, empty.NumberOfParams())
	require.Nil(t, empty.ParamFor("name"))

	empty.SetParams(service.Params{"x": 1})
	require.Equal(t, 1, empty.ParamFor("x"))
}

func TestProduce(t *testing.T) {
	t.Parallel()
	greet := service.Produce(func(_ context.Context, p service.Params) (string, error) {
		name, _ := p["name"].(string)
		if name == "" {
			return "", errBoom
		}
		return "hello " + name, nil
	})

	ok := service.New(greet, service.WithParams(service.Params{"name": "alice"})).Run(t.Context())
	require.True(t, ok.Succeeded())
	require.Equal(t, "hello alice", ok.Object())

	ko := service.New(greet).Run(t.Context())
	require.True(t, ko.Failed())
	require.Empty(t, ko.Object())
}

func TestIdempotentReads(t *testing.T) {
	t.Parallel()
	s := service.New(failing(errBoom)).Run(t.Context())
	for range 3 {
		require.Equal(t, []error{errBoom}, s.Errors())
		require.False(t, s.Succeeded())
		require.Equal(t, "partial", s.Object())
	}

	errs := s.Errors()
	errs[0] = nil
	require.Equal(t, []error{errBoom}, s.Errors(), "errors are copied")
}

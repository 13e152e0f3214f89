package registry

import (
	"context"
	"testing"

	"github.com/cschleiden/go-orchestrator/internal/fn"
	"github.com/cschleiden/go-orchestrator/internal/sync"
	"github.com/stretchr/testify/require"
)

func reg_double(ctx sync.Context, n int) (int, error) {
	return n * 2, nil
}

func reg_noop(ctx sync.Context) error {
	return nil
}

func TestRegistry_RegisterWorkflow(t *testing.T) {
	tests := []struct {
		name     string
		as       string
		workflow any
		lookup   string
		wantErr  bool
	}{
		{name: "function name", workflow: reg_double, lookup: "reg_double"},
		{name: "custom name", as: "double", workflow: reg_double, lookup: "double"},
		{name: "only error", workflow: reg_noop, lookup: "reg_noop"},
		{name: "result without input", workflow: func(ctx sync.Context) (string, error) { return "", nil }},
		{name: "two inputs", workflow: func(ctx sync.Context, a, b int) (int, error) { return a + b, nil }, wantErr: true},
		{name: "three results", workflow: func(ctx sync.Context) (int, int, error) { return 0, 0, nil }, wantErr: true},
		{name: "error not last", workflow: func(ctx sync.Context) (error, int) { return nil, 0 }, wantErr: true},
		{name: "no context", workflow: func(n int) error { return nil }, wantErr: true},
		{name: "activity context", workflow: func(ctx context.Context) error { return nil }, wantErr: true},
		{name: "no results", workflow: func(ctx sync.Context) {}, wantErr: true},
		{name: "no error result", workflow: func(ctx sync.Context) int { return 0 }, wantErr: true},
		{name: "not a function", workflow: "reg_double", wantErr: true},
		{name: "nil", workflow: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()

			err := r.RegisterWorkflow(tt.workflow, WithName(tt.as))
			if tt.wantErr {
				var invalid *ErrInvalidWorkflow
				require.ErrorAs(t, err, &invalid)
				return
			}

			require.NoError(t, err)

			if tt.lookup != "" {
				wf, err := r.GetWorkflow(tt.lookup)
				require.NoError(t, err)
				require.NotNil(t, wf)
			}
		})
	}
}

func TestRegistry_RegisterWorkflow_NameConflict(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterWorkflow(reg_double))

	var conflict *ErrWorkflowAlreadyRegistered
	require.ErrorAs(t, r.RegisterWorkflow(reg_double), &conflict)

	// The same function can be registered under a second name
	require.NoError(t, r.RegisterWorkflow(reg_double, WithName("double")))
	require.ErrorAs(t, r.RegisterWorkflow(reg_noop, WithName("double")), &conflict)
}

func TestRegistry_GetWorkflow_Unknown(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterWorkflow(reg_double))

	_, err := r.GetWorkflow("reg_triple")
	require.ErrorIs(t, err, ErrUnknownWorkflow)
	require.ErrorContains(t, err, "reg_triple")
}

func reg_double_activity(ctx context.Context, n int) (int, error) {
	return n * 2, nil
}

func reg_ping_activity() error {
	return nil
}

func TestRegistry_RegisterActivity(t *testing.T) {
	tests := []struct {
		name     string
		activity any
		wantErr  bool
	}{
		{name: "context and input", activity: reg_double_activity},
		{name: "no context", activity: func(n int) (int, error) { return n, nil }},
		{name: "no parameters", activity: reg_ping_activity},
		{name: "two inputs", activity: func(ctx context.Context, a, b int) error { return nil }, wantErr: true},
		{name: "no results", activity: func(ctx context.Context) {}, wantErr: true},
		{name: "error not last", activity: func(ctx context.Context) (error, int) { return nil, 0 }, wantErr: true},
		{name: "three results", activity: func() (int, int, error) { return 0, 0, nil }, wantErr: true},
		{name: "not a function", activity: 42, wantErr: true},
		{name: "nil", activity: nil, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New()

			err := r.RegisterActivity(tt.activity)
			if tt.wantErr {
				var invalid *ErrInvalidActivity
				require.ErrorAs(t, err, &invalid)
				return
			}

			require.NoError(t, err)

			_, err = r.GetActivity(fn.Name(tt.activity))
			require.NoError(t, err)
		})
	}
}

func TestRegistry_GetActivity_ReturnsRegisteredFunction(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterActivity(reg_double_activity, WithName("double")))

	a, err := r.GetActivity("double")
	require.NoError(t, err)

	double, ok := a.(func(context.Context, int) (int, error))
	require.True(t, ok)

	n, err := double(context.Background(), 21)
	require.NoError(t, err)
	require.Equal(t, 42, n)

	_, err = r.GetActivity("reg_double_activity")
	require.ErrorIs(t, err, ErrUnknownActivity)
}

func TestRegistry_RegisterActivity_NameConflict(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterActivity(reg_double_activity))

	var conflict *ErrActivityAlreadyRegistered
	require.ErrorAs(t, r.RegisterActivity(reg_double_activity), &conflict)
	require.ErrorAs(t, r.RegisterActivity(reg_ping_activity, WithName("reg_double_activity")), &conflict)
}

type reg_calculator struct {
	factor int
}

func (c *reg_calculator) Multiply(ctx context.Context, n int) (int, error) {
	return n * c.factor, nil
}

func (c *reg_calculator) Reset(ctx context.Context) error {
	return nil
}

func (c *reg_calculator) helper() int {
	return c.factor
}

func TestRegistry_RegisterActivity_Struct(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterActivity(&reg_calculator{factor: 3}))

	a, err := r.GetActivity("Multiply")
	require.NoError(t, err)

	multiply, ok := a.(func(context.Context, int) (int, error))
	require.True(t, ok)

	n, err := multiply(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, 15, n)

	_, err = r.GetActivity("Reset")
	require.NoError(t, err)

	// Unexported methods are not activities
	_, err = r.GetActivity("helper")
	require.ErrorIs(t, err, ErrUnknownActivity)

	// Method names are shared with function registrations
	var conflict *ErrActivityAlreadyRegistered
	require.ErrorAs(t, r.RegisterActivity(&reg_calculator{}), &conflict)
}

type reg_broken_activities struct{}

func (reg_broken_activities) Run(ctx context.Context, a, b string) error {
	return nil
}

func TestRegistry_RegisterActivity_InvalidStructMethod(t *testing.T) {
	r := New()

	var invalid *ErrInvalidActivity
	require.ErrorAs(t, r.RegisterActivity(&reg_broken_activities{}), &invalid)
	require.ErrorContains(t, r.RegisterActivity(&reg_broken_activities{}), "method Run")
}

func TestRegistry_Freeze(t *testing.T) {
	r := New()

	require.NoError(t, r.RegisterWorkflow(reg_double))
	require.NoError(t, r.RegisterActivity(reg_double_activity))
	require.False(t, r.Frozen())

	r.Freeze()
	require.True(t, r.Frozen())

	require.ErrorIs(t, r.RegisterWorkflow(reg_noop), ErrRegistryFrozen)
	require.ErrorIs(t, r.RegisterActivity(reg_ping_activity), ErrRegistryFrozen)
	require.ErrorIs(t, r.RegisterActivity(&reg_calculator{}), ErrRegistryFrozen)

	// Lookups keep working
	_, err := r.GetWorkflow("reg_double")
	require.NoError(t, err)

	_, err = r.GetActivity("reg_double_activity")
	require.NoError(t, err)
}

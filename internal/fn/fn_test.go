package fn

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type doubler struct{}

func (d *doubler) Double(ctx context.Context, n int) (int, error) {
	return n * 2, nil
}

func (d *doubler) halve(ctx context.Context, n int) (int, error) {
	return n / 2, nil
}

func double(ctx context.Context, n int) (int, error) {
	return n * 2, nil
}

func greet(ctx context.Context, name string) (string, error) {
	return "hello " + name, nil
}

func done(ctx context.Context) error {
	return nil
}

func record(ctx context.Context, v any) error {
	return nil
}

func Test_Name(t *testing.T) {
	d := &doubler{}

	tests := []struct {
		name string
		f    any
		want string
	}{
		{"function", double, "double"},
		{"exported method", d.Double, "Double"},
		{"unexported method", d.halve, "halve"},
		{"name", "ChildWorkflowNTimes", "ChildWorkflowNTimes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Name(tt.f))
		})
	}
}

func Test_ReturnTypeMatch(t *testing.T) {
	require.NoError(t, ReturnTypeMatch[int](double))
	require.NoError(t, ReturnTypeMatch[string](greet))

	// Only an error is returned, any result type is fine
	require.NoError(t, ReturnTypeMatch[int](done))

	require.NoError(t, ReturnTypeMatch[any](double))

	// Names cannot be checked
	require.NoError(t, ReturnTypeMatch[string]("double"))

	require.EqualError(t, ReturnTypeMatch[string](double), "function must return string, got int")
	require.EqualError(t, ReturnTypeMatch[int](greet), "function must return int, got string")
}

func Test_ParamsMatch(t *testing.T) {
	tests := []struct {
		name    string
		f       any
		skip    int
		args    []any
		wantErr string
	}{
		{name: "matching input", f: double, skip: 1, args: []any{4}},
		{name: "no input", f: done, skip: 1},
		{name: "interface input", f: record, skip: 1, args: []any{struct{}{}}},
		{name: "by name", f: "double", skip: 1, args: []any{"four"}},
		{name: "wrong type", f: double, skip: 1, args: []any{"4"}, wantErr: "mismatched argument type: expected int, got string"},
		{name: "nil for value type", f: double, skip: 1, args: []any{nil}, wantErr: "mismatched argument type: expected int, got <nil>"},
		{name: "missing input", f: double, skip: 1, wantErr: "mismatched argument count: expected 1, got 0"},
		{name: "context not skipped", f: greet, args: []any{"a"}, wantErr: "mismatched argument count: expected 2, got 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ParamsMatch(tt.f, tt.skip, tt.args...)
			if tt.wantErr == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tt.wantErr)
			}
		})
	}
}

package args

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/internal/sync"
	"github.com/stretchr/testify/require"
)

func TestInputToArgs(t *testing.T) {
	tests := []struct {
		name       string
		fn         any
		input      any
		addContext bool
		want       []any
		err        error
	}{
		{
			name:       "just context",
			fn:         func(context.Context) error { return nil },
			addContext: true,
			want:       []any{},
		},
		{
			name:       "workflow context",
			fn:         func(sync.Context, int) error { return nil },
			input:      42,
			addContext: true,
			want:       []any{42},
		},
		{
			name:       "argument with context",
			fn:         func(context.Context, string) error { return nil },
			input:      "hello",
			addContext: true,
			want:       []any{"hello"},
		},
		{
			name:  "no context",
			fn:    func(int) error { return nil },
			input: 23,
			want:  []any{23},
		},
		{
			name: "too many parameters",
			fn:   func(context.Context, int, string) error { return nil },
			err:  ErrTooManyArgs,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var input []any
			if tt.input != nil {
				input = append(input, tt.input)
			}

			p, err := ArgsToInput(converter.DefaultConverter, input...)
			require.NoError(t, err)

			args, addContext, err := InputToArgs(converter.DefaultConverter, reflect.ValueOf(tt.fn), p)
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.addContext, addContext)

			if addContext {
				// Skip the first argument, it will be filled with the context later
				args = args[1:]
			}

			argValues := make([]any, 0)
			for _, arg := range args {
				argValues = append(argValues, arg.Interface())
			}

			require.Equal(t, tt.want, argValues)
		})
	}
}

func TestArgsToInput_TooMany(t *testing.T) {
	_, err := ArgsToInput(converter.DefaultConverter, 1, 2)
	require.ErrorIs(t, err, ErrTooManyArgs)
}

func TestArgsToInput_None(t *testing.T) {
	p, err := ArgsToInput(converter.DefaultConverter)
	require.NoError(t, err)
	require.Nil(t, p)
}

func TestResultFromReturn(t *testing.T) {
	c := converter.DefaultConverter

	r, err := ResultFromReturn(c, reflect.ValueOf(func() (int, error) { return 8, nil }).Call(nil))
	require.NoError(t, err)
	require.JSONEq(t, "8", string(r))

	_, err = ResultFromReturn(c, reflect.ValueOf(func() (int, error) { return 0, errors.New("failed") }).Call(nil))
	require.EqualError(t, err, "failed")

	r, err = ResultFromReturn(c, reflect.ValueOf(func() error { return nil }).Call(nil))
	require.NoError(t, err)
	require.Nil(t, r)
}

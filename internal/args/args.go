package args

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/cschleiden/go-orchestrator/backend/converter"
	"github.com/cschleiden/go-orchestrator/backend/payload"
	"github.com/cschleiden/go-orchestrator/internal/sync"
)

var ErrTooManyArgs = errors.New("workflows and activities accept at most one input")

// ArgsToInput converts the optional single argument to a payload.
func ArgsToInput(c converter.Converter, args ...any) (payload.Payload, error) {
	switch len(args) {
	case 0:
		return nil, nil
	case 1:
		input, err := c.To(args[0])
		if err != nil {
			return nil, fmt.Errorf("converting arg to input: %w", err)
		}

		return input, nil
	default:
		return nil, ErrTooManyArgs
	}
}

// InputToArgs builds the arguments to call fn with. If fn expects a context as its first parameter, the
// first argument is left empty and addContext is true.
func InputToArgs(c converter.Converter, fn reflect.Value, input payload.Payload) (args []reflect.Value, addContext bool, err error) {
	fnT := fn.Type()

	numArgs := fnT.NumIn()
	args = make([]reflect.Value, numArgs)

	start := 0
	if numArgs > 0 && (IsOwnContext(fnT.In(0)) || IsContext(fnT.In(0))) {
		addContext = true
		start = 1
	}

	if numArgs-start > 1 {
		return nil, false, ErrTooManyArgs
	}

	for i := start; i < numArgs; i++ {
		arg := reflect.New(fnT.In(i))
		if err := c.From(input, arg.Interface()); err != nil {
			return nil, false, fmt.Errorf("converting input: %w", err)
		}

		args[i] = arg.Elem()
	}

	return args, addContext, nil
}

// ResultFromReturn converts the values returned by a workflow or activity into a result payload and error.
func ResultFromReturn(c converter.Converter, r []reflect.Value) (payload.Payload, error) {
	if len(r) == 0 {
		return nil, nil
	}

	errResult := r[len(r)-1]
	if !errResult.IsNil() {
		return nil, errResult.Interface().(error)
	}

	if len(r) < 2 {
		return nil, nil
	}

	result, err := c.To(r[0].Interface())
	if err != nil {
		return nil, fmt.Errorf("converting result: %w", err)
	}

	return result, nil
}

func IsOwnContext(inType reflect.Type) bool {
	contextElem := reflect.TypeOf((*sync.Context)(nil)).Elem()
	return inType != nil && inType.Implements(contextElem)
}

func IsContext(inType reflect.Type) bool {
	contextElem := reflect.TypeOf((*context.Context)(nil)).Elem()
	return inType != nil && inType.Implements(contextElem)
}

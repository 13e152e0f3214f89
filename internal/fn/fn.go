package fn

import (
	"fmt"
	"reflect"
	"runtime"
	"strings"
)

// Name returns the name of the function, or the string itself if f is already a name.
func Name(f any) string {
	if name, ok := f.(string); ok {
		return name
	}

	// Adapted from https://stackoverflow.com/a/7053871
	fnName := runtime.FuncForPC(reflect.ValueOf(f).Pointer()).Name()

	s := strings.Split(fnName, ".")
	fnName = s[len(s)-1]

	return strings.TrimSuffix(fnName, "-fm")
}

// ReturnTypeMatch checks that fn returns a value assignable to TResult. Functions only returning an
// error match any TResult.
func ReturnTypeMatch[TResult any](fn any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil
	}

	if fnType.NumOut() < 2 {
		return nil
	}

	resultType := reflect.TypeOf((*TResult)(nil)).Elem()
	if resultType.Kind() == reflect.Interface && resultType.NumMethod() == 0 {
		return nil
	}

	if !fnType.Out(0).AssignableTo(resultType) {
		return fmt.Errorf("function must return %v, got %v", resultType, fnType.Out(0))
	}

	return nil
}

// ParamsMatch checks that args match the parameters of fn after skipping the first skip parameters.
func ParamsMatch(fn any, skip int, args ...any) error {
	fnType := reflect.TypeOf(fn)
	if fnType == nil || fnType.Kind() != reflect.Func {
		return nil
	}

	if fnType.NumIn()-skip != len(args) {
		return fmt.Errorf("mismatched argument count: expected %d, got %d", fnType.NumIn()-skip, len(args))
	}

	for i, arg := range args {
		paramType := fnType.In(i + skip)
		if paramType.Kind() == reflect.Interface {
			continue
		}

		argType := reflect.TypeOf(arg)
		if argType == nil || !argType.AssignableTo(paramType) {
			return fmt.Errorf("mismatched argument type: expected %v, got %v", paramType, argType)
		}
	}

	return nil
}

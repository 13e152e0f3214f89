package sync

// A Context carries values across the boundaries of workflow code.
//
// Unlike context.Context it has no deadline or cancellation, a workflow pass ends when the workflow
// function returns or suspends.
type Context interface {
	// Value returns the value associated with this context for key, or nil
	// if no value is associated with key. Successive calls to Value with
	// the same key returns the same result.
	Value(key any) any

	workflowContext()
}

type emptyCtx struct{}

func (*emptyCtx) Value(key any) any {
	return nil
}

func (*emptyCtx) workflowContext() {}

func (*emptyCtx) String() string {
	return "sync.Background"
}

var background = new(emptyCtx)

// Background returns a non-nil, empty Context.
func Background() Context {
	return background
}

type valueCtx struct {
	Context
	key, val any
}

// WithValue returns a copy of parent in which the value associated with key is val.
func WithValue(parent Context, key, val any) Context {
	if parent == nil {
		panic("cannot create context from nil parent")
	}

	if key == nil {
		panic("nil key")
	}

	return &valueCtx{parent, key, val}
}

func (c *valueCtx) Value(key any) any {
	if c.key == key {
		return c.val
	}

	return c.Context.Value(key)
}

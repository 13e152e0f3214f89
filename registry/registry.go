package registry

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/cschleiden/go-orchestrator/internal/args"
	"github.com/cschleiden/go-orchestrator/internal/fn"
)

// Registry maps workflow and activity names to their functions. It is populated at startup and frozen
// once a worker starts using it.
type Registry struct {
	sync.Mutex

	frozen bool

	workflowMap map[string]any
	activityMap map[string]any
}

// New creates a new registry instance.
func New() *Registry {
	return &Registry{
		workflowMap: make(map[string]any),
		activityMap: make(map[string]any),
	}
}

type registerConfig struct {
	Name string
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// RegisterWorkflow registers a workflow function of the form
//
//	func(ctx workflow.Context[, input I]) ([R, ]error)
func (r *Registry) RegisterWorkflow(workflow any, opts ...RegisterOption) error {
	cfg := registerOptions(opts).applyRegisterOptions(registerConfig{})

	wfType := reflect.TypeOf(workflow)
	if wfType == nil || wfType.Kind() != reflect.Func {
		return &ErrInvalidWorkflow{"workflow is not a function"}
	}

	name := cfg.Name
	if name == "" {
		name = fn.Name(workflow)
	}

	if wfType.NumIn() == 0 {
		return &ErrInvalidWorkflow{"workflow does not accept context parameter"}
	}

	if !args.IsOwnContext(wfType.In(0)) {
		return &ErrInvalidWorkflow{"workflow does not accept context as first parameter"}
	}

	if wfType.NumIn() > 2 {
		return &ErrInvalidWorkflow{"workflow must accept at most one input"}
	}

	if wfType.NumOut() == 0 {
		return &ErrInvalidWorkflow{"workflow must return error"}
	}

	if wfType.NumOut() > 2 {
		return &ErrInvalidWorkflow{"workflow must return at most two values"}
	}

	if !wfType.Out(wfType.NumOut() - 1).Implements(errType) {
		return &ErrInvalidWorkflow{"workflow must return error as last return value"}
	}

	r.Lock()
	defer r.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	if _, ok := r.workflowMap[name]; ok {
		return &ErrWorkflowAlreadyRegistered{fmt.Sprintf("workflow with name %q already registered", name)}
	}
	r.workflowMap[name] = workflow

	return nil
}

// RegisterActivity registers an activity function of the form
//
//	func([ctx context.Context, ][input I]) ([R, ]error)
//
// or all exported methods of a struct pointer.
func (r *Registry) RegisterActivity(activity any, opts ...RegisterOption) error {
	cfg := registerOptions(opts).applyRegisterOptions(registerConfig{})

	t := reflect.TypeOf(activity)
	if t == nil {
		return &ErrInvalidActivity{"activity is nil"}
	}

	// Activities on struct
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return r.registerActivitiesFromStruct(activity)
	}

	if err := checkActivity(t); err != nil {
		return err
	}

	// Activity as function
	name := cfg.Name
	if name == "" {
		name = fn.Name(activity)
	}

	r.Lock()
	defer r.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	if _, ok := r.activityMap[name]; ok {
		return &ErrActivityAlreadyRegistered{fmt.Sprintf("activity with name %q already registered", name)}
	}
	r.activityMap[name] = activity

	return nil
}

func (r *Registry) registerActivitiesFromStruct(a any) error {
	// Enumerate functions defined on a
	v := reflect.ValueOf(a)
	t := v.Type()

	r.Lock()
	defer r.Unlock()

	if r.frozen {
		return ErrRegistryFrozen
	}

	for i := 0; i < v.NumMethod(); i++ {
		mv := v.Method(i)
		mt := t.Method(i)

		// Ignore private methods
		if mt.PkgPath != "" {
			continue
		}

		if err := checkActivity(mv.Type()); err != nil {
			return fmt.Errorf("method %s: %w", mt.Name, err)
		}

		name := mt.Name
		if _, ok := r.activityMap[name]; ok {
			return &ErrActivityAlreadyRegistered{fmt.Sprintf("activity with name %q already registered", name)}
		}
		r.activityMap[name] = mv.Interface()
	}

	return nil
}

func checkActivity(actType reflect.Type) error {
	if actType.Kind() != reflect.Func {
		return &ErrInvalidActivity{"activity not a func"}
	}

	inputs := actType.NumIn()
	if inputs > 0 && args.IsContext(actType.In(0)) {
		inputs--
	}

	if inputs > 1 {
		return &ErrInvalidActivity{"activity must accept at most one input"}
	}

	if actType.NumOut() == 0 {
		return &ErrInvalidActivity{"activity must return error"}
	}

	if actType.NumOut() > 2 {
		return &ErrInvalidActivity{"activity must return at most two values"}
	}

	if !actType.Out(actType.NumOut() - 1).Implements(errType) {
		return &ErrInvalidActivity{"activity must return error as last return value"}
	}

	return nil
}

// Freeze prevents any further registrations.
func (r *Registry) Freeze() {
	r.Lock()
	defer r.Unlock()

	r.frozen = true
}

func (r *Registry) Frozen() bool {
	r.Lock()
	defer r.Unlock()

	return r.frozen
}

func (r *Registry) GetWorkflow(name string) (any, error) {
	r.Lock()
	defer r.Unlock()

	if workflow, ok := r.workflowMap[name]; ok {
		return workflow, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownWorkflow, name)
}

func (r *Registry) GetActivity(name string) (any, error) {
	r.Lock()
	defer r.Unlock()

	if activity, ok := r.activityMap[name]; ok {
		return activity, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownActivity, name)
}

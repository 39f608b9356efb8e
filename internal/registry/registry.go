// Package registry holds the step modules compiled into the binary and
// validates workflow configuration against their input contracts before
// anything executes.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Module is the interface that all step modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// RegisteredStep holds the compiled Go parts of a step type.
type RegisteredStep struct {
	// Description is shown in logs and future introspection output.
	Description string
	// NewInput returns a pointer to a fresh input struct. Fields carry
	// `cty:"<arg>"` tags; append ",optional" for arguments a workflow
	// may omit.
	NewInput func() any
	// Fn is the step handler with signature
	// func(ctx context.Context, input *T) (cty.Value, error).
	Fn any

	inputs map[string]inputField
}

// inputField describes one declared argument of a step type.
type inputField struct {
	field    reflect.StructField
	optional bool
}

// Registry maps step type names to their registered implementations.
type Registry struct {
	steps map[string]*RegisteredStep
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{steps: make(map[string]*RegisteredStep)}
}

// Step looks up a registered step type.
func (r *Registry) Step(stepType string) (*RegisteredStep, bool) {
	s, ok := r.steps[stepType]
	return s, ok
}

// StepTypes returns all registered step type names.
func (r *Registry) StepTypes() []string {
	types := make([]string, 0, len(r.steps))
	for t := range r.steps {
		types = append(types, t)
	}
	return types
}

var (
	ctxType   = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType   = reflect.TypeOf((*error)(nil)).Elem()
	ctyValUne = reflect.TypeOf(cty.Value{})
)

// RegisterStep registers a step type. Registration mistakes are programmer
// errors, so contract violations panic at startup rather than surfacing as
// runtime failures mid-run.
func (r *Registry) RegisterStep(stepType string, step *RegisteredStep) {
	if _, exists := r.steps[stepType]; exists {
		panic(fmt.Sprintf("step type '%s' already registered", stepType))
	}
	if step.NewInput == nil || step.Fn == nil {
		panic(fmt.Sprintf("step type '%s' must provide NewInput and Fn", stepType))
	}

	inputPtr := reflect.TypeOf(step.NewInput())
	fn := reflect.TypeOf(step.Fn)
	if fn.Kind() != reflect.Func ||
		fn.NumIn() != 2 || fn.In(0) != ctxType || fn.In(1) != inputPtr ||
		fn.NumOut() != 2 || fn.Out(0) != ctyValUne || fn.Out(1) != errType {
		panic(fmt.Sprintf("step type '%s': handler must be func(context.Context, %s) (cty.Value, error)", stepType, inputPtr))
	}

	step.inputs = collectInputFields(stepType, inputPtr.Elem())
	slog.Debug("Registering step handler.", "type", stepType)
	r.steps[stepType] = step
}

// collectInputFields builds the argument contract from the input struct's
// cty tags.
func collectInputFields(stepType string, t reflect.Type) map[string]inputField {
	if t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("step type '%s': NewInput must return a pointer to a struct", stepType))
	}
	inputs := make(map[string]inputField, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("cty")
		if tag == "" {
			panic(fmt.Sprintf("step type '%s': exported input field %s lacks a cty tag", stepType, field.Name))
		}
		parts := strings.Split(tag, ",")
		name := parts[0]
		if name == "" || name == "-" {
			continue
		}
		optional := false
		for _, opt := range parts[1:] {
			if opt == "optional" {
				optional = true
			}
		}
		if _, dup := inputs[name]; dup {
			panic(fmt.Sprintf("step type '%s': duplicate input argument %q", stepType, name))
		}
		inputs[name] = inputField{field: field, optional: optional}
	}
	return inputs
}

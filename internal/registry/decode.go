package registry

import (
	"fmt"
	"reflect"

	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// DecodeInput populates a step's input struct from evaluated argument
// values. Missing optional arguments keep their zero value; missing required
// arguments were already rejected by ValidateModel.
func (s *RegisteredStep) DecodeInput(input any, args map[string]cty.Value) error {
	v := reflect.ValueOf(input)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("input must be a non-nil pointer")
	}
	structVal := v.Elem()

	for name, field := range s.inputs {
		raw, ok := args[name]
		if !ok || raw.IsNull() {
			continue
		}

		target := structVal.FieldByIndex(field.field.Index)
		wantType, err := gocty.ImpliedType(target.Interface())
		if err != nil {
			return fmt.Errorf("argument '%s': cannot determine target type: %w", name, err)
		}
		converted, err := convert.Convert(raw, wantType)
		if err != nil {
			return fmt.Errorf("argument '%s': %w", name, err)
		}
		if err := gocty.FromCtyValue(converted, target.Addr().Interface()); err != nil {
			return fmt.Errorf("argument '%s': %w", name, err)
		}
	}
	return nil
}

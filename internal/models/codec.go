package models

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"

	"github.com/harentsoaR/tabib-api/internal/store"
)

// Decode converts a store snapshot into out, which must be a pointer to one
// of the model structs. Stored values are loosely typed (prices saved as
// numbers, coordinates saved as strings) so weak conversion is enabled.
func Decode(value any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
		DecodeHook:       workingHoursHook,
	})
	if err != nil {
		return err
	}
	return dec.Decode(value)
}

// workingHoursHook drops working hours that were saved in a shape other than
// an object, which older clients did.
func workingHoursHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(WorkingHours{}) {
		return data, nil
	}
	if from.Kind() != reflect.Map {
		return WorkingHours{}, nil
	}
	return data, nil
}

// DecodeList projects collection entries into models, giving each its key as
// id. Entries that cannot be decoded are skipped and reported together in
// the returned error; the slice is never nil.
func DecodeList[T any, PT interface {
	*T
	SetID(string)
}](entries []store.Entry) ([]T, error) {
	out := make([]T, 0, len(entries))
	var errs []error
	for _, e := range entries {
		var v T
		if _, ok := e.Value.(map[string]any); !ok {
			errs = append(errs, fmt.Errorf("%s: not an object", e.Key))
			continue
		}
		if err := Decode(e.Value, &v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", e.Key, err))
			continue
		}
		PT(&v).SetID(e.Key)
		out = append(out, v)
	}
	return out, errors.Join(errs...)
}

// DecodeOne decodes the value stored at id. A nil value yields (nil, nil).
func DecodeOne[T any, PT interface {
	*T
	SetID(string)
}](id string, value any) (*T, error) {
	if value == nil {
		return nil, nil
	}
	var v T
	if err := Decode(value, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	PT(&v).SetID(id)
	return &v, nil
}

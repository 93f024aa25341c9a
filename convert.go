package facade

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

// ConvertMarker is the conventional marker for parameters bound by
// ConvertBinder.
const ConvertMarker Marker = "convert"

// ConvertBinder is a custom Binder that reads the argument by name and
// converts it to the parameter's declared type. It lets loosely typed
// arguments, such as numbers decoded from JSON as float64, reach handlers
// declaring int, time.Duration and similar types.
//
//	b := facade.NewBinding()
//	b.RegisterBinder(facade.ConvertMarker, facade.ConvertBinder{})
//	facade.Param[int]("limit").WithBinder(facade.ConvertMarker)
type ConvertBinder struct{}

var (
	durationType = reflect.TypeFor[time.Duration]()
	timeType     = reflect.TypeFor[time.Time]()
)

// Bind implements Binder.
func (ConvertBinder) Bind(_ context.Context, bc BindingContext) (any, error) {
	v, ok := bc.Args[bc.Name]
	if !ok {
		if bc.HasDefault {
			return bc.Default, nil
		}
		return nil, fmt.Errorf("%w: %s: missing argument", ErrParameterNotResolved, bc.Name)
	}

	if compatible(v, bc.Type) {
		return v, nil
	}

	out, err := convertTo(v, bc.Type)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrParameterNotResolved, bc.Name, err)
	}
	return out, nil
}

func convertTo(v any, t reflect.Type) (any, error) {
	switch t {
	case durationType:
		return cast.ToDurationE(v)
	case timeType:
		return cast.ToTimeE(v)
	}

	var (
		out any
		err error
	)
	switch t.Kind() {
	case reflect.String:
		out, err = cast.ToStringE(v)
	case reflect.Bool:
		out, err = cast.ToBoolE(v)
	case reflect.Int:
		out, err = cast.ToIntE(v)
	case reflect.Int8:
		out, err = cast.ToInt8E(v)
	case reflect.Int16:
		out, err = cast.ToInt16E(v)
	case reflect.Int32:
		out, err = cast.ToInt32E(v)
	case reflect.Int64:
		out, err = cast.ToInt64E(v)
	case reflect.Uint:
		out, err = cast.ToUintE(v)
	case reflect.Uint8:
		out, err = cast.ToUint8E(v)
	case reflect.Uint16:
		out, err = cast.ToUint16E(v)
	case reflect.Uint32:
		out, err = cast.ToUint32E(v)
	case reflect.Uint64:
		out, err = cast.ToUint64E(v)
	case reflect.Float32:
		out, err = cast.ToFloat32E(v)
	case reflect.Float64:
		out, err = cast.ToFloat64E(v)
	case reflect.Slice:
		if t.Elem().Kind() == reflect.String {
			out, err = cast.ToStringSliceE(v)
			break
		}
		return nil, fmt.Errorf("cannot convert %T to %s", v, t)
	default:
		return nil, fmt.Errorf("cannot convert %T to %s", v, t)
	}
	if err != nil {
		return nil, err
	}

	// Named types (type UserID string) need a final conversion.
	rv := reflect.ValueOf(out)
	if rv.Type() != t && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t).Interface(), nil
	}
	return out, nil
}

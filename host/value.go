// Package host models the live object graph served by the bridge: a
// tagged-variant value representation, opaque identity-bearing objects,
// container proxies, and the object space that owns them.
//
// This package contains:
//   - Value: the tagged-variant representation of every host datum
//   - Object and Func: opaque references with identity
//   - Container: the filter/index capability pair of collection proxies
//   - Space: named application roots and object construction
//   - the expression evaluator and the secondary-script evaluator
//   - the sqlite record store and CBOR space snapshots
package host

import (
	"fmt"
	"strconv"
	"time"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindDate
	KindList
	KindRecord
	KindObject
	KindFunc
)

// String returns the lowercase variant name.
func (k Kind) String() string {
	switch k {
	case KindNil:
		return "nil"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindList:
		return "list"
	case KindRecord:
		return "record"
	case KindObject:
		return "object"
	case KindFunc:
		return "func"
	default:
		return "invalid"
	}
}

// Value is the Go representation of a host value. Plain data variants
// (bool, int, float, string, date, list, record) are copied by value when
// marshalled; Object and Func carry identity and cross the wire as handles.
type Value struct {
	kind Kind

	boolVal   bool
	intVal    int64
	floatVal  float64
	stringVal string
	dateVal   time.Time
	listVal   []Value
	recordVal map[string]Value
	objectVal *Object
	funcVal   *Func
}

// Nil is the zero Value.
var Nil = Value{kind: KindNil}

// NilValue returns the nil value.
func NilValue() Value {
	return Nil
}

// BoolValue creates a boolean value.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, boolVal: b}
}

// IntValue creates an integer value.
func IntValue(n int64) Value {
	return Value{kind: KindInt, intVal: n}
}

// FloatValue creates a float value.
func FloatValue(f float64) Value {
	return Value{kind: KindFloat, floatVal: f}
}

// StringValue creates a string value.
func StringValue(s string) Value {
	return Value{kind: KindString, stringVal: s}
}

// DateValue creates a date value.
func DateValue(t time.Time) Value {
	return Value{kind: KindDate, dateVal: t}
}

// TimeToSeconds converts a time to fractional seconds since the epoch,
// the portable unit dates travel in.
func TimeToSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/1e9
}

// TimeFromSeconds converts fractional epoch seconds back to a UTC time.
func TimeFromSeconds(secs float64) time.Time {
	sec := int64(secs)
	nsec := int64((secs - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC()
}

// ListValue creates a plain list value. The slice is held, not copied.
func ListValue(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: KindList, listVal: elems}
}

// RecordValue creates a plain record value. The map is held, not copied.
func RecordValue(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindRecord, recordVal: fields}
}

// ObjectValue creates an opaque reference value.
func ObjectValue(obj *Object) Value {
	if obj == nil {
		return Nil
	}
	return Value{kind: KindObject, objectVal: obj}
}

// FuncValue creates a callable reference value.
func FuncValue(fn *Func) Value {
	if fn == nil {
		return Nil
	}
	return Value{kind: KindFunc, funcVal: fn}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNil returns true if v is the nil value.
func (v Value) IsNil() bool { return v.kind == KindNil }

// Bool returns the boolean payload. Valid only for KindBool.
func (v Value) Bool() bool { return v.boolVal }

// Int returns the integer payload. Valid only for KindInt.
func (v Value) Int() int64 { return v.intVal }

// Float returns the float payload. Valid only for KindFloat.
func (v Value) Float() float64 { return v.floatVal }

// Str returns the string payload. Valid only for KindString.
func (v Value) Str() string { return v.stringVal }

// Date returns the date payload. Valid only for KindDate.
func (v Value) Date() time.Time { return v.dateVal }

// List returns the element slice. Valid only for KindList.
func (v Value) List() []Value { return v.listVal }

// Record returns the field map. Valid only for KindRecord.
func (v Value) Record() map[string]Value { return v.recordVal }

// Object returns the opaque reference. Valid only for KindObject.
func (v Value) Object() *Object { return v.objectVal }

// Func returns the callable reference. Valid only for KindFunc.
func (v Value) Func() *Func { return v.funcVal }

// Ref returns the identity pointer of a reference-kinded value, or nil for
// plain data. Two values refer to the same host entity exactly when their
// Refs are equal and non-nil; the handle pool keys on this.
func (v Value) Ref() any {
	switch v.kind {
	case KindObject:
		return v.objectVal
	case KindFunc:
		return v.funcVal
	default:
		return nil
	}
}

// Number reports the numeric payload of an int or float value as a float64
// and whether v is numeric at all.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KindInt:
		return float64(v.intVal), true
	case KindFloat:
		return v.floatVal, true
	default:
		return 0, false
	}
}

// String renders v for display and logging. Reference kinds render their
// identity, not their contents.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		return strconv.FormatBool(v.boolVal)
	case KindInt:
		return strconv.FormatInt(v.intVal, 10)
	case KindFloat:
		return strconv.FormatFloat(v.floatVal, 'g', -1, 64)
	case KindString:
		return "'" + v.stringVal + "'"
	case KindDate:
		return v.dateVal.UTC().Format(time.RFC3339)
	case KindList:
		return fmt.Sprintf("list(%d)", len(v.listVal))
	case KindRecord:
		return fmt.Sprintf("record(%d)", len(v.recordVal))
	case KindObject:
		return "<" + v.objectVal.describe() + ">"
	case KindFunc:
		return "<function " + v.funcVal.Name + ">"
	default:
		return "<invalid>"
	}
}

// Equal compares two values. Plain data compares structurally, with ints
// and floats comparing numerically; reference kinds compare by identity.
func (v Value) Equal(o Value) bool {
	if vn, ok := v.Number(); ok {
		on, onOK := o.Number()
		return onOK && vn == on
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindBool:
		return v.boolVal == o.boolVal
	case KindString:
		return v.stringVal == o.stringVal
	case KindDate:
		return v.dateVal.Equal(o.dateVal)
	case KindList:
		if len(v.listVal) != len(o.listVal) {
			return false
		}
		for i := range v.listVal {
			if !v.listVal[i].Equal(o.listVal[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.recordVal) != len(o.recordVal) {
			return false
		}
		for k, el := range v.recordVal {
			other, ok := o.recordVal[k]
			if !ok || !el.Equal(other) {
				return false
			}
		}
		return true
	case KindObject:
		return v.objectVal == o.objectVal
	case KindFunc:
		return v.funcVal == o.funcVal
	default:
		return false
	}
}

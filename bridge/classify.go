package bridge

import (
	"errors"

	"github.com/chazu/tether/host"
)

// Path names the wire shape a host value crosses as.
type Path int

const (
	PathPlain Path = iota
	PathDate
	PathArray
	PathDict
	PathReference
)

func (p Path) String() string {
	switch p {
	case PathPlain:
		return "plain"
	case PathDate:
		return "date"
	case PathArray:
		return "array"
	case PathDict:
		return "dict"
	case PathReference:
		return "reference"
	default:
		return "invalid"
	}
}

// Classification is the routing decision for one value. ClassName is set
// for references only.
type Classification struct {
	Path      Path
	ClassName string
}

// Classify decides how a host value crosses the wire. Data copies; opaque
// objects and callables go by reference. The decision never calls or
// evaluates the value.
func Classify(v host.Value) (Classification, error) {
	switch v.Kind() {
	case host.KindNil, host.KindBool, host.KindInt, host.KindFloat, host.KindString:
		return Classification{Path: PathPlain}, nil
	case host.KindDate:
		return Classification{Path: PathDate}, nil
	case host.KindList:
		return Classification{Path: PathArray}, nil
	case host.KindRecord:
		return Classification{Path: PathDict}, nil
	case host.KindFunc:
		return Classification{Path: PathReference, ClassName: "function"}, nil
	case host.KindObject:
		return Classification{Path: PathReference, ClassName: referenceClass(v.Object())}, nil
	default:
		return Classification{}, classificationf("cannot classify %s value", v.Kind())
	}
}

// referenceClass resolves an object's wire class in priority order:
// application roots first, then collection proxies (anything answering
// both filter- and index-style access), then the object's own answer.
func referenceClass(obj *host.Object) string {
	if obj.IsApplication() {
		return "application"
	}
	if obj.SupportsFiltering() && obj.SupportsIndexing() {
		return "array::" + nominalClass(obj)
	}
	return nominalClass(obj)
}

// nominalClass asks the object for its class. A refusal falls back to the
// hint its collection recorded; with no hint the class is unknown. The
// object itself is never invoked to find out.
func nominalClass(obj *host.Object) string {
	class, err := obj.Class()
	if err == nil && class != "" {
		return class
	}
	if errors.Is(err, host.ErrNotIntrospectable) {
		if hint := obj.ClassHint(); hint != "" {
			return hint
		}
	}
	return "unknown"
}

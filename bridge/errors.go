package bridge

import (
	"errors"
	"fmt"
)

// FailureKind names the failure classes a caller can see in an error
// envelope.
type FailureKind string

const (
	FailMalformedWire    FailureKind = "malformedWire"
	FailStaleHandle      FailureKind = "staleHandle"
	FailClassification   FailureKind = "classification"
	FailHost             FailureKind = "hostFailure"
	FailBadRequest       FailureKind = "badRequest"
	FailUnknownOperation FailureKind = "unknownOperation"
)

// Failure is the typed error that crosses the operation boundary. Every
// failing request surfaces as exactly one Failure, serialized as an error
// envelope instead of a result node.
type Failure struct {
	Kind    FailureKind
	Message string
	ObjID   HandleID // the offending handle, for stale-handle failures
}

func (f *Failure) Error() string { return f.Message }

func malformedWiref(format string, args ...any) *Failure {
	return &Failure{Kind: FailMalformedWire, Message: fmt.Sprintf(format, args...)}
}

func badRequestf(format string, args ...any) *Failure {
	return &Failure{Kind: FailBadRequest, Message: fmt.Sprintf(format, args...)}
}

func classificationf(format string, args ...any) *Failure {
	return &Failure{Kind: FailClassification, Message: fmt.Sprintf(format, args...)}
}

func staleHandle(id HandleID) *Failure {
	return &Failure{
		Kind:    FailStaleHandle,
		Message: fmt.Sprintf("no live object for handle %d", id),
		ObjID:   id,
	}
}

func hostFailuref(format string, args ...any) *Failure {
	return &Failure{Kind: FailHost, Message: fmt.Sprintf(format, args...)}
}

func unknownOperation(name string) *Failure {
	return &Failure{
		Kind:    FailUnknownOperation,
		Message: fmt.Sprintf("unknown operation %q", name),
	}
}

// failureFor normalizes an error to a Failure. Errors the host raised
// while executing an operation come through as host failures.
func failureFor(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return &Failure{Kind: FailHost, Message: err.Error()}
}

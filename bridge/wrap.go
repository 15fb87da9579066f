package bridge

import (
	"encoding/json"

	"github.com/chazu/tether/host"
)

// Operation is one bridge operation over decoded values: it receives the
// decoded request body and returns the value to encode back.
type Operation func(args host.Value) (host.Value, error)

// Wrap lifts an operation to the uniform serialized form: parse the
// payload, decode it, run the operation, encode and serialize the result.
// Every failure on that path serializes as an error envelope; a request
// can fail, the boundary cannot.
func Wrap(name string, op Operation, pool *Pool) func(string) string {
	return func(payload string) string {
		node, err := ParseNode([]byte(payload))
		if err != nil {
			return failureResponse(name, err)
		}
		args, err := Decode(node, pool)
		if err != nil {
			return failureResponse(name, err)
		}
		result, err := op(args)
		if err != nil {
			return failureResponse(name, err)
		}
		out, err := Encode(result, pool)
		if err != nil {
			return failureResponse(name, err)
		}
		raw, err := json.Marshal(out)
		if err != nil {
			return failureResponse(name, err)
		}
		return string(raw)
	}
}

// MalformedRequest serializes a malformed-wire envelope, for transport
// front ends that fail before reaching an operation.
func MalformedRequest(op, message string) string {
	return failureResponse(op, malformedWiref("%s", message))
}

type errorEnvelope struct {
	Type string    `json:"type"`
	Err  errorBody `json:"error"`
}

type errorBody struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	ObjID   *HandleID   `json:"objId,omitempty"`
}

// failureResponse serializes any error as an error envelope. Stale-handle
// envelopes name the offending handle.
func failureResponse(op string, err error) string {
	f := failureFor(err)
	if f.Kind == FailHost {
		log.Errorf("%s: %s", op, f.Message)
	} else {
		log.Debugf("%s: %s: %s", op, f.Kind, f.Message)
	}
	env := errorEnvelope{Type: "error", Err: errorBody{Kind: f.Kind, Message: f.Message}}
	if f.Kind == FailStaleHandle {
		id := f.ObjID
		env.Err.ObjID = &id
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return `{"type":"error","error":{"kind":"hostFailure","message":"failed to serialize error"}}`
	}
	return string(raw)
}

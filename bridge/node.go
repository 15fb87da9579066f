package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// NodeType tags one node in the wire tree. The set is closed; parsing
// rejects anything else.
type NodeType string

const (
	NodePlain     NodeType = "plain"
	NodeDate      NodeType = "date"
	NodeArray     NodeType = "array"
	NodeDict      NodeType = "dict"
	NodeReference NodeType = "reference"
)

// Node is one tagged value in the wire tree:
//
//	{"type":"plain","data":42}
//	{"type":"date","data":1714089600}
//	{"type":"array","data":[...]}
//	{"type":"dict","data":{...}}
//	{"type":"reference","objId":3,"className":"record","app":"archive"}
//
// Exactly one payload field is meaningful per type. Plain data is nil,
// bool, int64, float64, or string; an empty App encodes as null.
type Node struct {
	Type      NodeType
	Data      any
	Seconds   float64
	Elems     []Node
	Fields    map[string]Node
	ObjID     HandleID
	ClassName string
	App       string
}

// Plain builds a plain node, normalizing Go integer types to int64.
func Plain(data any) Node {
	switch t := data.(type) {
	case int:
		data = int64(t)
	case int32:
		data = int64(t)
	case float32:
		data = float64(t)
	}
	return Node{Type: NodePlain, Data: data}
}

// Date builds a date node from seconds since the epoch.
func Date(seconds float64) Node {
	return Node{Type: NodeDate, Seconds: seconds}
}

// Array builds an array node.
func Array(elems ...Node) Node {
	return Node{Type: NodeArray, Elems: elems}
}

// Dict builds a dict node.
func Dict(fields map[string]Node) Node {
	return Node{Type: NodeDict, Fields: fields}
}

// Reference builds a reference node. An empty app means unknown.
func Reference(id HandleID, className, app string) Node {
	return Node{Type: NodeReference, ObjID: id, ClassName: className, App: app}
}

// ParseNode decodes one wire node, strictly. Anything that is not a
// well-formed member of the closed union is a malformed-wire failure.
func ParseNode(data []byte) (Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		var f *Failure
		if errors.As(err, &f) {
			return Node{}, f
		}
		return Node{}, malformedWiref("invalid wire payload: %v", err)
	}
	return n, nil
}

func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Type {
	case NodePlain:
		switch n.Data.(type) {
		case nil, bool, int64, float64, string:
		default:
			return nil, fmt.Errorf("plain node holds non-primitive %T", n.Data)
		}
		return json.Marshal(struct {
			Type NodeType `json:"type"`
			Data any      `json:"data"`
		}{n.Type, n.Data})
	case NodeDate:
		return json.Marshal(struct {
			Type NodeType `json:"type"`
			Data float64  `json:"data"`
		}{n.Type, n.Seconds})
	case NodeArray:
		elems := n.Elems
		if elems == nil {
			elems = []Node{}
		}
		return json.Marshal(struct {
			Type NodeType `json:"type"`
			Data []Node   `json:"data"`
		}{n.Type, elems})
	case NodeDict:
		fields := n.Fields
		if fields == nil {
			fields = map[string]Node{}
		}
		return json.Marshal(struct {
			Type NodeType        `json:"type"`
			Data map[string]Node `json:"data"`
		}{n.Type, fields})
	case NodeReference:
		var app *string
		if n.App != "" {
			app = &n.App
		}
		return json.Marshal(struct {
			Type      NodeType `json:"type"`
			ObjID     HandleID `json:"objId"`
			ClassName string   `json:"className"`
			App       *string  `json:"app"`
		}{n.Type, n.ObjID, n.ClassName, app})
	default:
		return nil, fmt.Errorf("cannot serialize node type %q", n.Type)
	}
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type      *string         `json:"type"`
		Data      json.RawMessage `json:"data"`
		ObjID     json.RawMessage `json:"objId"`
		ClassName *string         `json:"className"`
		App       *string         `json:"app"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return malformedWiref("node is not an object: %v", err)
	}
	if raw.Type == nil {
		return malformedWiref("node missing type tag")
	}
	switch NodeType(*raw.Type) {
	case NodePlain:
		value, err := decodePlainData(raw.Data)
		if err != nil {
			return err
		}
		*n = Node{Type: NodePlain, Data: value}
	case NodeDate:
		if kindOfJSON(raw.Data) != "number" {
			return malformedWiref("date payload must be a number of seconds")
		}
		var secs float64
		if err := json.Unmarshal(raw.Data, &secs); err != nil {
			return malformedWiref("bad date payload: %v", err)
		}
		*n = Node{Type: NodeDate, Seconds: secs}
	case NodeArray:
		if kindOfJSON(raw.Data) != "array" {
			return malformedWiref("array payload must be a JSON array")
		}
		var elems []Node
		if err := json.Unmarshal(raw.Data, &elems); err != nil {
			return nestedNodeError(err)
		}
		*n = Node{Type: NodeArray, Elems: elems}
	case NodeDict:
		if kindOfJSON(raw.Data) != "object" {
			return malformedWiref("dict payload must be a JSON object")
		}
		var fields map[string]Node
		if err := json.Unmarshal(raw.Data, &fields); err != nil {
			return nestedNodeError(err)
		}
		*n = Node{Type: NodeDict, Fields: fields}
	case NodeReference:
		if raw.ObjID == nil {
			return malformedWiref("reference node missing objId")
		}
		id, err := decodeHandleID(raw.ObjID)
		if err != nil {
			return err
		}
		if raw.ClassName == nil {
			return malformedWiref("reference node missing className")
		}
		app := ""
		if raw.App != nil {
			app = *raw.App
		}
		*n = Node{Type: NodeReference, ObjID: id, ClassName: *raw.ClassName, App: app}
	default:
		return malformedWiref("unknown node type %q", *raw.Type)
	}
	return nil
}

// decodePlainData admits only JSON primitives. Integral numbers come back
// as int64, everything else fractional as float64.
func decodePlainData(raw json.RawMessage) (any, error) {
	switch kindOfJSON(raw) {
	case "null":
		return nil, nil
	case "bool":
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, malformedWiref("bad plain payload: %v", err)
		}
		return b, nil
	case "string":
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, malformedWiref("bad plain payload: %v", err)
		}
		return s, nil
	case "number":
		num := json.Number(bytes.TrimSpace(raw))
		if i, err := num.Int64(); err == nil {
			return i, nil
		}
		f, err := num.Float64()
		if err != nil {
			return nil, malformedWiref("bad plain number %q", num)
		}
		return f, nil
	case "missing":
		return nil, malformedWiref("plain node missing data")
	default:
		return nil, malformedWiref("plain payload must be a JSON primitive")
	}
}

// decodeHandleID requires a JSON integer.
func decodeHandleID(raw json.RawMessage) (HandleID, error) {
	if kindOfJSON(raw) != "number" {
		return 0, malformedWiref("objId must be an integer")
	}
	i, err := strconv.ParseInt(string(bytes.TrimSpace(raw)), 10, 64)
	if err != nil {
		return 0, malformedWiref("objId must be an integer, got %s", bytes.TrimSpace(raw))
	}
	return HandleID(i), nil
}

// kindOfJSON classifies a raw JSON value by its first byte.
func kindOfJSON(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "missing"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '[':
		return "array"
	case '"':
		return "string"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}

// nestedNodeError keeps the inner Failure when a child node rejected, and
// normalizes anything else.
func nestedNodeError(err error) error {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	return malformedWiref("bad nested node: %v", err)
}

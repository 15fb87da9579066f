package bridge

import "github.com/chazu/tether/host"

// Decode raises a wire node back to a host value. References resolve
// through the pool by objId alone; the class metadata on the node is
// advisory and may be stale without affecting resolution. Numbers with no
// fractional part come back as ints.
func Decode(n Node, pool *Pool) (host.Value, error) {
	switch n.Type {
	case NodePlain:
		return decodePlain(n)
	case NodeDate:
		return host.DateValue(host.TimeFromSeconds(n.Seconds)), nil
	case NodeArray:
		items := make([]host.Value, len(n.Elems))
		for i, elem := range n.Elems {
			item, err := Decode(elem, pool)
			if err != nil {
				return host.Nil, err
			}
			items[i] = item
		}
		return host.ListValue(items...), nil
	case NodeDict:
		fields := make(map[string]host.Value, len(n.Fields))
		for name, fn := range n.Fields {
			field, err := Decode(fn, pool)
			if err != nil {
				return host.Nil, err
			}
			fields[name] = field
		}
		return host.RecordValue(fields), nil
	case NodeReference:
		return pool.ObjectFor(n.ObjID)
	default:
		return host.Nil, malformedWiref("cannot decode node type %q", n.Type)
	}
}

func decodePlain(n Node) (host.Value, error) {
	switch t := n.Data.(type) {
	case nil:
		return host.Nil, nil
	case bool:
		return host.BoolValue(t), nil
	case int64:
		return host.IntValue(t), nil
	case float64:
		if t == float64(int64(t)) {
			return host.IntValue(int64(t)), nil
		}
		return host.FloatValue(t), nil
	case string:
		return host.StringValue(t), nil
	default:
		return host.Nil, malformedWiref("plain node holds non-primitive %T", n.Data)
	}
}

package bridge

import "github.com/chazu/tether/host"

// Encode lowers a host value to its wire node. Plain data copies into the
// tree; identity-bearing values register in the pool and cross as
// references. Re-encoding the same object yields the same handle.
func Encode(v host.Value, pool *Pool) (Node, error) {
	c, err := Classify(v)
	if err != nil {
		return Node{}, err
	}
	switch c.Path {
	case PathPlain:
		return encodePlain(v), nil
	case PathDate:
		return Date(host.TimeToSeconds(v.Date())), nil
	case PathArray:
		items := v.List()
		elems := make([]Node, len(items))
		for i, item := range items {
			elem, err := Encode(item, pool)
			if err != nil {
				return Node{}, err
			}
			elems[i] = elem
		}
		return Array(elems...), nil
	case PathDict:
		fields := make(map[string]Node, len(v.Record()))
		for name, field := range v.Record() {
			fn, err := Encode(field, pool)
			if err != nil {
				return Node{}, err
			}
			fields[name] = fn
		}
		return Dict(fields), nil
	case PathReference:
		id, err := pool.IDFor(v)
		if err != nil {
			return Node{}, err
		}
		return Reference(id, c.ClassName, referenceApp(v)), nil
	default:
		return Node{}, classificationf("cannot encode %s value", v.Kind())
	}
}

func encodePlain(v host.Value) Node {
	switch v.Kind() {
	case host.KindBool:
		return Plain(v.Bool())
	case host.KindInt:
		return Plain(v.Int())
	case host.KindFloat:
		return Plain(v.Float())
	case host.KindString:
		return Plain(v.Str())
	default:
		return Plain(nil)
	}
}

// referenceApp names the owning application when known. Bound functions
// inherit their receiver's application.
func referenceApp(v host.Value) string {
	switch v.Kind() {
	case host.KindObject:
		return v.Object().App()
	case host.KindFunc:
		if self := v.Func().Self(); self != nil {
			return self.App()
		}
	}
	return ""
}

package bridge

import (
	"fmt"
	"sort"

	"github.com/chazu/tether/host"
)

// Dispatcher owns one bridge endpoint: the handle pool, the worker that
// serializes host access, and the operation table. It serves one caller
// at a time; requests are synchronous and ordered.
type Dispatcher struct {
	space   *host.Space
	pool    *Pool
	worker  *Worker
	eval    *host.Evaluator
	scripts *host.ScriptRunner
	ops     map[string]func(string) string
}

// DispatcherOption configures optional collaborators.
type DispatcherOption func(*Dispatcher)

// WithScriptRunner enables the evaluateScript operation.
func WithScriptRunner(r *host.ScriptRunner) DispatcherOption {
	return func(d *Dispatcher) { d.scripts = r }
}

// NewDispatcher creates a dispatcher over a space and starts its worker.
func NewDispatcher(space *host.Space, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		space:  space,
		pool:   NewPool(),
		worker: NewWorker(space),
		eval:   host.NewEvaluator(space),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.ops = map[string]func(string) string{
		"echo":           Wrap("echo", d.echo, d.pool),
		"releaseObject":  Wrap("releaseObject", d.releaseObject, d.pool),
		"getApplication": Wrap("getApplication", d.getApplication, d.pool),
		"evaluate":       Wrap("evaluate", d.evaluate, d.pool),
		"evaluateScript": Wrap("evaluateScript", d.evaluateScript, d.pool),
		"getProperty":    Wrap("getProperty", d.getProperty, d.pool),
		"getProperties":  Wrap("getProperties", d.getProperties, d.pool),
		"setProperties":  Wrap("setProperties", d.setProperties, d.pool),
		"callMethod":     Wrap("callMethod", d.callMethod, d.pool),
		"callSelf":       Wrap("callSelf", d.callSelf, d.pool),
	}
	return d
}

// Invoke runs one named operation against a serialized payload and
// returns the serialized response.
func (d *Dispatcher) Invoke(name, payload string) string {
	op, ok := d.ops[name]
	if !ok {
		return failureResponse(name, unknownOperation(name))
	}
	log.Debugf("invoke %s", name)
	return op(payload)
}

// Operations returns the served operation names, sorted.
func (d *Dispatcher) Operations() []string {
	names := make([]string, 0, len(d.ops))
	for name := range d.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Pool exposes the handle pool, for liveness checks.
func (d *Dispatcher) Pool() *Pool { return d.pool }

// Stop shuts the dispatcher's worker down.
func (d *Dispatcher) Stop() { d.worker.Stop() }

// echo returns its decoded argument unchanged. Round-tripping a value is
// the liveness probe for the whole marshalling path.
func (d *Dispatcher) echo(args host.Value) (host.Value, error) {
	return args, nil
}

// releaseObject drops a handle. The payload is the raw integer id as a
// plain node; sending a reference node would resolve the object instead
// of naming the handle.
func (d *Dispatcher) releaseObject(args host.Value) (host.Value, error) {
	if args.Kind() != host.KindInt {
		return host.Nil, badRequestf("releaseObject takes a plain integer handle, got %s", args.Kind())
	}
	d.pool.Release(HandleID(args.Int()))
	return host.Nil, nil
}

func (d *Dispatcher) getApplication(args host.Value) (host.Value, error) {
	name, err := stringField(args, "name")
	if err != nil {
		return host.Nil, err
	}
	return d.worker.Do(func(s *host.Space) (host.Value, error) {
		app, err := s.Application(name)
		if err != nil {
			return host.Nil, err
		}
		return host.ObjectValue(app), nil
	})
}

func (d *Dispatcher) evaluate(args host.Value) (host.Value, error) {
	source, err := stringField(args, "source")
	if err != nil {
		return host.Nil, err
	}
	bindings, err := optRecordField(args, "bindings")
	if err != nil {
		return host.Nil, err
	}
	return d.worker.Do(func(*host.Space) (host.Value, error) {
		return d.eval.Eval(source, bindings)
	})
}

func (d *Dispatcher) evaluateScript(args host.Value) (host.Value, error) {
	source, err := stringField(args, "source")
	if err != nil {
		return host.Nil, err
	}
	if d.scripts == nil {
		return host.Nil, hostFailuref("no secondary interpreter configured")
	}
	return d.worker.Do(func(*host.Space) (host.Value, error) {
		out, err := d.scripts.Eval(source)
		if err != nil {
			return host.Nil, err
		}
		return host.StringValue(out), nil
	})
}

func (d *Dispatcher) getProperty(args host.Value) (host.Value, error) {
	obj, err := objectField(args, "obj")
	if err != nil {
		return host.Nil, err
	}
	name, err := stringField(args, "name")
	if err != nil {
		return host.Nil, err
	}
	return d.worker.Do(func(*host.Space) (host.Value, error) {
		return obj.Property(name), nil
	})
}

func (d *Dispatcher) getProperties(args host.Value) (host.Value, error) {
	obj, err := objectField(args, "obj")
	if err != nil {
		return host.Nil, err
	}
	names, err := stringListField(args, "names")
	if err != nil {
		return host.Nil, err
	}
	return d.worker.Do(func(*host.Space) (host.Value, error) {
		fields := make(map[string]host.Value, len(names))
		for _, name := range names {
			fields[name] = obj.Property(name)
		}
		return host.RecordValue(fields), nil
	})
}

func (d *Dispatcher) setProperties(args host.Value) (host.Value, error) {
	obj, err := objectField(args, "obj")
	if err != nil {
		return host.Nil, err
	}
	values, err := recordField(args, "values")
	if err != nil {
		return host.Nil, err
	}
	return d.worker.Do(func(*host.Space) (host.Value, error) {
		for name, v := range values {
			obj.SetProperty(name, v)
		}
		return host.Nil, nil
	})
}

func (d *Dispatcher) callMethod(args host.Value) (host.Value, error) {
	obj, err := objectField(args, "obj")
	if err != nil {
		return host.Nil, err
	}
	name, err := stringField(args, "name")
	if err != nil {
		return host.Nil, err
	}
	callArgs, err := optListField(args, "args")
	if err != nil {
		return host.Nil, err
	}
	kwargs, err := optRecordField(args, "kwargs")
	if err != nil {
		return host.Nil, err
	}
	return d.worker.Do(func(*host.Space) (host.Value, error) {
		fn, ok := obj.Method(name)
		if !ok {
			return host.Nil, fmt.Errorf("unknown method %q on %s", name, obj)
		}
		return fn.Call(callArgs, kwargs)
	})
}

func (d *Dispatcher) callSelf(args host.Value) (host.Value, error) {
	params, err := paramRecord(args)
	if err != nil {
		return host.Nil, err
	}
	target, ok := params["obj"]
	if !ok {
		return host.Nil, badRequestf("obj is required")
	}
	var fn *host.Func
	switch target.Kind() {
	case host.KindFunc:
		fn = target.Func()
	case host.KindObject:
		return host.Nil, hostFailuref("%s is not callable", target.Object())
	default:
		return host.Nil, badRequestf("obj must be a reference, got %s", target.Kind())
	}
	callArgs, err := optListField(args, "args")
	if err != nil {
		return host.Nil, err
	}
	kwargs, err := optRecordField(args, "kwargs")
	if err != nil {
		return host.Nil, err
	}
	return d.worker.Do(func(*host.Space) (host.Value, error) {
		return fn.Call(callArgs, kwargs)
	})
}

// paramRecord requires the request body to be a dict of parameters.
func paramRecord(args host.Value) (map[string]host.Value, error) {
	if args.Kind() != host.KindRecord {
		return nil, badRequestf("request body must be a dict of parameters, got %s", args.Kind())
	}
	return args.Record(), nil
}

func stringField(args host.Value, name string) (string, error) {
	params, err := paramRecord(args)
	if err != nil {
		return "", err
	}
	v, ok := params[name]
	if !ok {
		return "", badRequestf("%s is required", name)
	}
	if v.Kind() != host.KindString {
		return "", badRequestf("%s must be a string, got %s", name, v.Kind())
	}
	return v.Str(), nil
}

func objectField(args host.Value, name string) (*host.Object, error) {
	params, err := paramRecord(args)
	if err != nil {
		return nil, err
	}
	v, ok := params[name]
	if !ok {
		return nil, badRequestf("%s is required", name)
	}
	if v.Kind() != host.KindObject {
		return nil, badRequestf("%s must reference a host object, got %s", name, v.Kind())
	}
	return v.Object(), nil
}

func recordField(args host.Value, name string) (map[string]host.Value, error) {
	params, err := paramRecord(args)
	if err != nil {
		return nil, err
	}
	v, ok := params[name]
	if !ok {
		return nil, badRequestf("%s is required", name)
	}
	if v.Kind() != host.KindRecord {
		return nil, badRequestf("%s must be a record, got %s", name, v.Kind())
	}
	return v.Record(), nil
}

func optRecordField(args host.Value, name string) (map[string]host.Value, error) {
	params, err := paramRecord(args)
	if err != nil {
		return nil, err
	}
	v, ok := params[name]
	if !ok || v.IsNil() {
		return nil, nil
	}
	if v.Kind() != host.KindRecord {
		return nil, badRequestf("%s must be a record, got %s", name, v.Kind())
	}
	return v.Record(), nil
}

func optListField(args host.Value, name string) ([]host.Value, error) {
	params, err := paramRecord(args)
	if err != nil {
		return nil, err
	}
	v, ok := params[name]
	if !ok || v.IsNil() {
		return nil, nil
	}
	if v.Kind() != host.KindList {
		return nil, badRequestf("%s must be an array, got %s", name, v.Kind())
	}
	return v.List(), nil
}

func stringListField(args host.Value, name string) ([]string, error) {
	params, err := paramRecord(args)
	if err != nil {
		return nil, err
	}
	v, ok := params[name]
	if !ok {
		return nil, badRequestf("%s is required", name)
	}
	if v.Kind() != host.KindList {
		return nil, badRequestf("%s must be an array of strings, got %s", name, v.Kind())
	}
	items := v.List()
	out := make([]string, len(items))
	for i, item := range items {
		if item.Kind() != host.KindString {
			return nil, badRequestf("%s[%d] must be a string, got %s", name, i, item.Kind())
		}
		out[i] = item.Str()
	}
	return out, nil
}

package bridge

import (
	"encoding/json"
	"testing"

	"github.com/chazu/tether/host"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for bridge package tests.
//
// Most tests run against a small "archive" application: three note records
// under a records collection. Dispatchers are cheap, so each test builds
// its own and stops it when done.
// ---------------------------------------------------------------------------

// testEnv bundles a space with a demo application and a dispatcher.
type testEnv struct {
	Space      *host.Space
	Dispatcher *Dispatcher
	App        *host.Object
	Coll       *host.Object
	Records    []*host.Object
}

func newTestEnv(opts ...DispatcherOption) *testEnv {
	space := host.NewSpace()
	app := space.DefineApplication("archive")

	rows := []struct {
		name string
		kind string
		size int64
	}{
		{"alpha", "note", 10},
		{"beta", "log", 20},
		{"gamma", "note", 30},
	}
	var records []*host.Object
	var items []host.Value
	for _, row := range rows {
		obj := space.NewObject("archive", "note")
		obj.SetProperty("name", host.StringValue(row.name))
		obj.SetProperty("kind", host.StringValue(row.kind))
		obj.SetProperty("size", host.IntValue(row.size))
		records = append(records, obj)
		items = append(items, host.ObjectValue(obj))
	}
	coll := space.NewCollection("archive", "note", items...)
	app.SetProperty("records", host.ObjectValue(coll))

	return &testEnv{
		Space:      space,
		Dispatcher: NewDispatcher(space, opts...),
		App:        app,
		Coll:       coll,
		Records:    records,
	}
}

func (e *testEnv) Stop() {
	e.Dispatcher.Stop()
}

// ---------------------------------------------------------------------------
// Wire helpers — reduce marshalling boilerplate in tests.
// ---------------------------------------------------------------------------

// wireFailure is a parsed error envelope.
type wireFailure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
	ObjID   *HandleID   `json:"objId"`
}

// parseFailure picks apart an error envelope response.
func parseFailure(resp string) (*wireFailure, bool) {
	var env struct {
		Type string      `json:"type"`
		Err  wireFailure `json:"error"`
	}
	if err := json.Unmarshal([]byte(resp), &env); err != nil || env.Type != "error" {
		return nil, false
	}
	return &env.Err, true
}

// marshalNode serializes a node or fails the test.
func marshalNode(t *testing.T, n Node) string {
	t.Helper()
	raw, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("marshal node: %v", err)
	}
	return string(raw)
}

// invokeOK runs an operation and parses a success response.
func invokeOK(t *testing.T, d *Dispatcher, op string, body Node) Node {
	t.Helper()
	resp := d.Invoke(op, marshalNode(t, body))
	if f, ok := parseFailure(resp); ok {
		t.Fatalf("%s failed: %s: %s", op, f.Kind, f.Message)
	}
	n, err := ParseNode([]byte(resp))
	if err != nil {
		t.Fatalf("%s returned unparsable response %q: %v", op, resp, err)
	}
	return n
}

// invokeFail runs an operation and parses an error envelope.
func invokeFail(t *testing.T, d *Dispatcher, op string, body Node) *wireFailure {
	t.Helper()
	resp := d.Invoke(op, marshalNode(t, body))
	f, ok := parseFailure(resp)
	if !ok {
		t.Fatalf("%s succeeded with %q, want error envelope", op, resp)
	}
	return f
}

// getAppRef fetches the archive application reference.
func getAppRef(t *testing.T, d *Dispatcher) Node {
	t.Helper()
	return invokeOK(t, d, "getApplication", Dict(map[string]Node{"name": Plain("archive")}))
}

// getRecordsRef fetches the archive records collection reference.
func getRecordsRef(t *testing.T, d *Dispatcher) Node {
	t.Helper()
	app := getAppRef(t, d)
	return invokeOK(t, d, "getProperty", Dict(map[string]Node{
		"obj":  app,
		"name": Plain("records"),
	}))
}

// Tether CLI - serves the object bridge over stdio
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/tether/bridge"
	"github.com/chazu/tether/config"
	"github.com/chazu/tether/host"
)

func main() {
	verbosity := flag.Int("v", 0, "Log verbosity (0=notice, 1=info, 2=debug)")
	configPath := flag.String("config", "", "Path to tether.toml (default: search upward from cwd)")
	dbPath := flag.String("db", "", "Record store path (overrides config)")
	serveMode := flag.Bool("serve", false, "Serve operations over stdio, one JSON request per line")
	evalExpr := flag.String("e", "", "Evaluate one expression and print the wire result")
	seedCount := flag.Int("seed", 0, "Create N sample records per configured application and exit")
	exportPath := flag.String("export", "", "Write a space snapshot to a file and exit")
	importPath := flag.String("import", "", "Restore the space from a snapshot instead of the store")
	noScript := flag.Bool("no-script", false, "Disable the secondary script interpreter")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tether [options]\n\n")
		fmt.Fprintf(os.Stderr, "Serves host objects to flat-JSON callers through integer handles.\n")
		fmt.Fprintf(os.Stderr, "Requests are lines of {\"op\": <name>, \"body\": <node>}; each gets one\n")
		fmt.Fprintf(os.Stderr, "response line back.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  tether -serve                  # Serve the stdio line protocol\n")
		fmt.Fprintf(os.Stderr, "  tether -e 'archive.records.length'  # One-shot evaluate\n")
		fmt.Fprintf(os.Stderr, "  tether -seed 10                # Seed sample records into the store\n")
		fmt.Fprintf(os.Stderr, "  tether -export space.cbor      # Snapshot the space\n")
		fmt.Fprintf(os.Stderr, "  tether -import space.cbor -serve  # Serve a restored snapshot\n")
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbosity == 0 {
		*verbosity = cfg.Log.Verbosity
	}
	commonlog.Configure(*verbosity, nil)

	storePath := cfg.StorePath()
	if *dbPath != "" {
		storePath = *dbPath
	}

	// Build the space: from a snapshot, or from the store.
	space := host.NewSpace()
	var store *host.Store
	if *importPath != "" {
		data, err := os.ReadFile(*importPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		space, err = host.RestoreSpace(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	} else if storePath != "" {
		store, err = host.OpenStore(storePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer store.Close()
		if _, err := store.Hydrate(space); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	for name, app := range cfg.Applications {
		defineApplication(space, store, name, app.RecordClass)
	}
	// Roots that came out of the store or snapshot still need their wiring.
	for _, root := range space.Applications() {
		if !root.HasProperty("records") {
			defineApplication(space, store, root.App(), "record")
		}
	}

	if *seedCount > 0 {
		if err := seedRecords(space, cfg, *seedCount); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *exportPath != "" {
		data, err := host.SnapshotSpace(space)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*exportPath, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote snapshot (%d bytes) to %s\n", len(data), *exportPath)
		return
	}

	var opts []bridge.DispatcherOption
	if !*noScript && len(cfg.Script.Command) > 0 {
		runner := host.NewScriptRunner(cfg.Script.Command...)
		defer runner.Close()
		opts = append(opts, bridge.WithScriptRunner(runner))
	}
	d := bridge.NewDispatcher(space, opts...)
	defer d.Stop()

	if *evalExpr != "" {
		payload, err := evaluatePayload(*evalExpr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(d.Invoke("evaluate", payload))
		return
	}

	if *serveMode {
		if err := serve(d, os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	flag.Usage()
	os.Exit(2)
}

// loadConfig loads an explicit config path, or searches upward from the
// working directory, or falls back to defaults.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	cfg, err := config.FindAndLoad(".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return cfg, nil
}

// defineApplication wires one automation root: a live collection of its
// records and a make method that creates (and persists) new ones.
func defineApplication(space *host.Space, store *host.Store, name, recordClass string) {
	app := space.DefineApplication(name)
	if !app.HasProperty("records") {
		coll := space.NewLiveCollection(name, recordClass, func() []host.Value {
			return space.RecordsOf(name)
		})
		app.SetProperty("records", host.ObjectValue(coll))
	}
	app.AddMethod("make", func(self *host.Object, args []host.Value, kwargs map[string]host.Value) (host.Value, error) {
		obj := space.NewObject(name, recordClass)
		obj.SetProperty("created", host.DateValue(time.Now()))
		for prop, v := range kwargs {
			obj.SetProperty(prop, v)
		}
		if store != nil {
			if err := store.Save(obj); err != nil {
				return host.Nil, err
			}
		}
		return host.ObjectValue(obj), nil
	})
}

// seedRecords creates sample records through each application's make
// method, so seeding walks the same path callers do.
func seedRecords(space *host.Space, cfg *config.Config, n int) error {
	for name, appCfg := range cfg.Applications {
		app, err := space.Application(name)
		if err != nil {
			return err
		}
		mk, ok := app.Method("make")
		if !ok {
			return fmt.Errorf("application %q has no make method", name)
		}
		for i := 1; i <= n; i++ {
			_, err := mk.Call(nil, map[string]host.Value{
				"name": host.StringValue(fmt.Sprintf("%s-%03d", appCfg.RecordClass, i)),
			})
			if err != nil {
				return err
			}
		}
		fmt.Printf("Seeded %d %s records into %q\n", n, appCfg.RecordClass, name)
	}
	return nil
}

// evaluatePayload builds the wire body for a one-shot evaluate.
func evaluatePayload(expr string) (string, error) {
	node := bridge.Dict(map[string]bridge.Node{"source": bridge.Plain(expr)})
	raw, err := json.Marshal(node)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

type request struct {
	Op   string          `json:"op"`
	Body json.RawMessage `json:"body"`
}

// serve reads one JSON request per line and writes one response line per
// request. Frame errors get an error envelope, like any other failure.
func serve(d *bridge.Dispatcher, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			fmt.Fprintln(out, bridge.MalformedRequest("request", fmt.Sprintf("bad request line: %v", err)))
			continue
		}
		if req.Op == "" {
			fmt.Fprintln(out, bridge.MalformedRequest("request", "request line missing op"))
			continue
		}
		body := "null"
		if req.Body != nil {
			body = string(req.Body)
		}
		fmt.Fprintln(out, d.Invoke(req.Op, body))
	}
	return scanner.Err()
}

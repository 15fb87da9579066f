package host

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrRecordNotFound is returned when a record ID is not in the store.
var ErrRecordNotFound = errors.New("record not found")

// dateKey marks a stored date map: {"__date": <seconds-since-epoch>}.
const dateKey = "__date"

// Store persists record objects in a sqlite database. Each row carries
// the object's ID, owning application, and a JSON bag with its class and
// properties. Application roots and collections are not persisted; they
// are rebuilt when the graph is hydrated.
type Store struct {
	path string
	db   *sql.DB
}

// OpenStore opens (or creates) a store at the given path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %q: %w", path, err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure store: %w", err)
	}
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id   TEXT PRIMARY KEY,
			app  TEXT NOT NULL,
			data TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS records_app ON records (app);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{path: path, db: db}, nil
}

// Close closes the underlying database.
func (st *Store) Close() error {
	return st.db.Close()
}

type recordData struct {
	Class string         `json:"class"`
	Hint  string         `json:"hint,omitempty"`
	Props map[string]any `json:"props"`
}

// Save writes one record object. Only data properties persist; live
// references and callables in the property bag are an error, as are
// application roots and collections.
func (st *Store) Save(obj *Object) error {
	if obj.IsApplication() {
		return fmt.Errorf("application root %q is not persistable", obj.App())
	}
	if obj.Container() != nil {
		return fmt.Errorf("collection %q is not persistable", obj.ID())
	}
	class, err := obj.Class()
	if err != nil && !errors.Is(err, ErrNotIntrospectable) {
		return err
	}
	data := recordData{
		Class: class,
		Hint:  obj.ClassHint(),
		Props: make(map[string]any),
	}
	for _, name := range obj.PropertyNames() {
		plain, err := valueToJSON(obj.Property(name))
		if err != nil {
			return fmt.Errorf("property %q of %s: %w", name, obj.ID(), err)
		}
		data.Props[name] = plain
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", obj.ID(), err)
	}
	_, err = st.db.Exec(
		"INSERT OR REPLACE INTO records (id, app, data) VALUES (?, ?, ?)",
		obj.ID(), obj.App(), string(raw),
	)
	if err != nil {
		return fmt.Errorf("save record %s: %w", obj.ID(), err)
	}
	return nil
}

// Delete removes a record by ID. Deleting an absent ID is not an error.
func (st *Store) Delete(id string) error {
	_, err := st.db.Exec("DELETE FROM records WHERE id = ?", id)
	return err
}

// Load restores one record into the space. If the space already holds the
// ID, that object is refreshed in place so identity is preserved.
func (st *Store) Load(id string, s *Space) (*Object, error) {
	var app, raw string
	row := st.db.QueryRow("SELECT app, data FROM records WHERE id = ?", id)
	if err := row.Scan(&app, &raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
		}
		return nil, err
	}
	return restoreRecord(s, id, app, raw)
}

// LoadApplication restores every record owned by an application, sorted
// by ID.
func (st *Store) LoadApplication(appName string, s *Space) ([]*Object, error) {
	rows, err := st.db.Query("SELECT id, data FROM records WHERE app = ? ORDER BY id", appName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Object
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}
		obj, err := restoreRecord(s, id, appName, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

// FindByClass returns the IDs of records whose stored class matches.
func (st *Store) FindByClass(class string) ([]string, error) {
	rows, err := st.db.Query(
		"SELECT id FROM records WHERE json_extract(data, '$.class') = ? ORDER BY id", class,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Apps returns the distinct application names present in the store.
func (st *Store) Apps() ([]string, error) {
	rows, err := st.db.Query("SELECT DISTINCT app FROM records ORDER BY app")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var apps []string
	for rows.Next() {
		var app string
		if err := rows.Scan(&app); err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

// Hydrate defines every stored application in the space and restores its
// records. It returns the number of records restored; collection wiring
// is left to the caller.
func (st *Store) Hydrate(s *Space) (int, error) {
	apps, err := st.Apps()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, name := range apps {
		s.DefineApplication(name)
		recs, err := st.LoadApplication(name, s)
		if err != nil {
			return total, err
		}
		total += len(recs)
	}
	log.Debugf("hydrated %d records across %d applications", total, len(apps))
	return total, nil
}

func restoreRecord(s *Space, id, app, raw string) (*Object, error) {
	var data recordData
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, fmt.Errorf("decode record %s: %w", id, err)
	}
	obj, ok := s.Lookup(id)
	if !ok {
		obj = s.RestoreObject(id, app, data.Class)
	}
	if data.Hint != "" {
		obj.SetClassHint(data.Hint)
	}
	for name, plain := range data.Props {
		obj.SetProperty(name, valueFromJSON(plain))
	}
	return obj, nil
}

// valueToJSON lowers a data value to JSON-marshalable form. Dates become
// a {"__date": seconds} map; live references and callables do not lower.
func valueToJSON(v Value) (any, error) {
	switch v.Kind() {
	case KindNil:
		return nil, nil
	case KindBool:
		return v.Bool(), nil
	case KindInt:
		return v.Int(), nil
	case KindFloat:
		return v.Float(), nil
	case KindString:
		return v.Str(), nil
	case KindDate:
		return map[string]any{dateKey: TimeToSeconds(v.Date())}, nil
	case KindList:
		items := v.List()
		out := make([]any, len(items))
		for i, item := range items {
			plain, err := valueToJSON(item)
			if err != nil {
				return nil, err
			}
			out[i] = plain
		}
		return out, nil
	case KindRecord:
		out := make(map[string]any)
		for name, field := range v.Record() {
			plain, err := valueToJSON(field)
			if err != nil {
				return nil, err
			}
			out[name] = plain
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s values are not persistable", v.Kind())
	}
}

// valueFromJSON restores a value from unmarshaled JSON. Numbers with no
// fractional part come back as ints; a {"__date": n} map comes back as a
// date.
func valueFromJSON(x any) Value {
	switch t := x.(type) {
	case nil:
		return Nil
	case bool:
		return BoolValue(t)
	case int64:
		return IntValue(t)
	case uint64:
		return IntValue(int64(t))
	case float64:
		if t == float64(int64(t)) {
			return IntValue(int64(t))
		}
		return FloatValue(t)
	case string:
		return StringValue(t)
	case []any:
		items := make([]Value, len(t))
		for i, e := range t {
			items[i] = valueFromJSON(e)
		}
		return ListValue(items...)
	case map[string]any:
		if secs, ok := dateSeconds(t); ok {
			return DateValue(TimeFromSeconds(secs))
		}
		fields := make(map[string]Value)
		for name, e := range t {
			fields[name] = valueFromJSON(e)
		}
		return RecordValue(fields)
	default:
		return Nil
	}
}

func dateSeconds(m map[string]any) (float64, bool) {
	if len(m) != 1 {
		return 0, false
	}
	switch secs := m[dateKey].(type) {
	case float64:
		return secs, true
	case int64:
		return float64(secs), true
	default:
		return 0, false
	}
}

package host

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// Snapshots capture a space's applications and records as canonical CBOR
// so the same graph encodes to the same bytes. Collections and other live
// reference properties on application roots are wiring, not data; they
// are skipped at capture and rebuilt by the caller after restore.

const snapshotVersion = 1

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error
	cborEnc, err = cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
		IntDec:         cbor.IntDecConvertSigned,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

type spaceSnapshot struct {
	Version int           `cbor:"version"`
	Apps    []appSnapshot `cbor:"apps"`
}

type appSnapshot struct {
	Name    string           `cbor:"name"`
	Props   map[string]any   `cbor:"props"`
	Records []recordSnapshot `cbor:"records"`
}

type recordSnapshot struct {
	ID    string         `cbor:"id"`
	Class string         `cbor:"class"`
	Hint  string         `cbor:"hint,omitempty"`
	Props map[string]any `cbor:"props"`
}

// SnapshotSpace encodes the space's applications and their records.
func SnapshotSpace(s *Space) ([]byte, error) {
	snap := spaceSnapshot{Version: snapshotVersion}
	for _, app := range s.Applications() {
		as := appSnapshot{Name: app.App(), Props: make(map[string]any)}
		for _, name := range app.PropertyNames() {
			plain, err := valueToJSON(app.Property(name))
			if err != nil {
				log.Debugf("snapshot: skipping live property %q on application %q", name, as.Name)
				continue
			}
			as.Props[name] = plain
		}
		for _, item := range s.RecordsOf(as.Name) {
			obj := item.Object()
			class, cerr := obj.Class()
			if cerr != nil {
				class = ""
			}
			rs := recordSnapshot{
				ID:    obj.ID(),
				Class: class,
				Hint:  obj.ClassHint(),
				Props: make(map[string]any),
			}
			for _, name := range obj.PropertyNames() {
				plain, err := valueToJSON(obj.Property(name))
				if err != nil {
					return nil, fmt.Errorf("record %s: property %q: %w", obj.ID(), name, err)
				}
				rs.Props[name] = plain
			}
			as.Records = append(as.Records, rs)
		}
		snap.Apps = append(snap.Apps, as)
	}
	return cborEnc.Marshal(snap)
}

// RestoreSpace rebuilds a space from snapshot bytes.
func RestoreSpace(data []byte) (*Space, error) {
	var snap spaceSnapshot
	if err := cborDec.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}
	s := NewSpace()
	for _, as := range snap.Apps {
		app := s.DefineApplication(as.Name)
		for name, plain := range as.Props {
			app.SetProperty(name, valueFromJSON(plain))
		}
		for _, rs := range as.Records {
			obj := s.RestoreObject(rs.ID, as.Name, rs.Class)
			if rs.Hint != "" {
				obj.SetClassHint(rs.Hint)
			}
			for name, plain := range rs.Props {
				obj.SetProperty(name, valueFromJSON(plain))
			}
		}
	}
	return s, nil
}

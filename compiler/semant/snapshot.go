package semant

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
)

// ---------------------------------------------------------------------------
// Snapshot: deterministic, name-keyed view of the class table
// ---------------------------------------------------------------------------

// Feature kinds as recorded in a snapshot.
const (
	FeatureMember = "member"
	FeatureMethod = "method"
)

// Snapshot is a serializable copy of the class table. Classes and features
// are sorted by name so equal tables produce identical encodings.
type Snapshot struct {
	Classes []ClassSnapshot `cbor:"classes"`
}

// ClassSnapshot describes one declared class.
type ClassSnapshot struct {
	Name     string            `cbor:"name"`
	Parent   string            `cbor:"parent"`
	Features []FeatureSnapshot `cbor:"features"`
}

// FeatureSnapshot describes a member (Type is its declared type) or a
// method (Type is its return type).
type FeatureSnapshot struct {
	Kind   string          `cbor:"kind"`
	Name   string          `cbor:"name"`
	Type   string          `cbor:"type"`
	Label  string          `cbor:"label,omitempty"`
	Params []ParamSnapshot `cbor:"params,omitempty"`
}

// ParamSnapshot describes one formal parameter.
type ParamSnapshot struct {
	Name string `cbor:"name"`
	Type string `cbor:"type"`
}

// Class returns the snapshot of the class called name.
func (s *Snapshot) Class(name string) (ClassSnapshot, bool) {
	i := sort.Search(len(s.Classes), func(i int) bool { return s.Classes[i].Name >= name })
	if i < len(s.Classes) && s.Classes[i].Name == name {
		return s.Classes[i], true
	}
	return ClassSnapshot{}, false
}

// Snapshot captures the current class table.
func (e *Env) Snapshot() *Snapshot {
	snap := &Snapshot{Classes: make([]ClassSnapshot, 0, len(e.classes))}
	for _, c := range e.classes {
		cs := ClassSnapshot{
			Name:   c.Name,
			Parent: e.TypeName(c.Parent),
		}
		for _, f := range c.Features() {
			cs.Features = append(cs.Features, e.featureSnapshot(f))
		}
		sort.Slice(cs.Features, func(i, j int) bool { return cs.Features[i].Name < cs.Features[j].Name })
		snap.Classes = append(snap.Classes, cs)
	}
	sort.Slice(snap.Classes, func(i, j int) bool { return snap.Classes[i].Name < snap.Classes[j].Name })
	return snap
}

func (e *Env) featureSnapshot(f Feature) FeatureSnapshot {
	switch f := f.(type) {
	case *Member:
		return FeatureSnapshot{Kind: FeatureMember, Name: f.Name, Type: e.TypeName(f.Type)}
	case *Method:
		fs := FeatureSnapshot{
			Kind:  FeatureMethod,
			Name:  f.Name,
			Type:  e.TypeName(f.Return),
			Label: f.Label(),
		}
		for _, p := range f.Params {
			fs.Params = append(fs.Params, ParamSnapshot{Name: p.Name, Type: e.TypeName(p.Type)})
		}
		return fs
	}
	return FeatureSnapshot{Name: f.FeatureName()}
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("semant: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// EncodeSnapshot serializes a snapshot to canonical CBOR.
func EncodeSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// DecodeSnapshot deserializes a snapshot from CBOR bytes.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("semant: unmarshal snapshot: %w", err)
	}
	return &s, nil
}

// Fingerprint is the SHA-256 of the canonical encoding of the class table.
// Two environments with the same classes and signatures share a
// fingerprint regardless of declaration order.
func (e *Env) Fingerprint() ([32]byte, error) {
	data, err := EncodeSnapshot(e.Snapshot())
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}

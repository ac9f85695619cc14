package index

import (
	stderrors "errors"
	"io"

	"github.com/codescope/codescope/internal/graph"
)

// ErrSourceFailed marks a source that can no longer advance, as opposed
// to a single unparseable record. Run aborts on it with a partial report.
var ErrSourceFailed = stderrors.New("record source failed")

// Relation declares an edge from the record's entity to another entity,
// addressed by qualified name. The target may be defined by a later record;
// the indexer resolves relations in a second pass.
type Relation struct {
	Kind       graph.RelationKind `json:"kind"`
	TargetKind graph.EntityKind   `json:"target_kind"`
	Target     string             `json:"target"`
	Props      map[string]any     `json:"props,omitempty"`
}

// Owner names the entity that contains this record's entity. A module
// owns its top-level classes and functions; a class owns its methods.
type Owner struct {
	Kind      graph.EntityKind `json:"kind"`
	Qualified string           `json:"qualified"`
}

// Record is one parsed code entity plus its outgoing relations.
// Parent, when set, produces the single CONTAINS edge into this entity.
type Record struct {
	Kind      graph.EntityKind `json:"kind"`
	Qualified string           `json:"qualified"`
	Parent    *Owner           `json:"parent,omitempty"`
	Props     map[string]any   `json:"props,omitempty"`
	Relations []Relation       `json:"relations,omitempty"`
}

// Source yields parsed records one at a time. Next returns io.EOF when the
// source is exhausted. An error wrapping ErrSourceFailed means the source
// is broken and will never yield another record. Any other error means the
// current record could not be parsed; the source has advanced past it and
// Next may be called again.
type Source interface {
	Next() (*Record, error)
}

// SliceSource serves records from memory. Used by tests and by callers
// that already hold parsed entities.
type SliceSource struct {
	records []Record
	pos     int
}

// NewSliceSource wraps a record slice as a Source
func NewSliceSource(records []Record) *SliceSource {
	return &SliceSource{records: records}
}

func (s *SliceSource) Next() (*Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return &r, nil
}

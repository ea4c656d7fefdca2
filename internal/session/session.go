// Package session owns the per-session dashboard state: the ingested dataset,
// the current filter configuration, and the derived outputs recomputed on
// every mutation.
package session

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/insightdeck/insightdeck/internal/aggregate"
	"github.com/insightdeck/insightdeck/internal/dataset"
	"github.com/insightdeck/insightdeck/internal/filter"
)

// ErrStaleUpload indicates an upload completion that was superseded by a
// newer upload before it finished parsing. Its dataset is discarded.
var ErrStaleUpload = errors.New("session: upload superseded by a newer one")

// View is a read-only snapshot of a session's state and derived outputs.
// Slices in a View are never mutated after publication; recomputation
// replaces them wholesale.
type View struct {
	HasDataset   bool
	Fields       []dataset.Field
	Records      []dataset.Record // filtered subset, ingestion order
	Version      int64
	Filter       filter.Config
	Summary      aggregate.Summary
	Categories   []aggregate.CategoryCount
	Timeline     []aggregate.TimePoint
	EmbedVisible bool
}

// Session is the single writer for one user's dataset and filter state. All
// mutation entry points serialize on the session mutex, and the derived
// outputs are recomputed inside the same critical section as the mutation so
// a snapshot can never pair a dataset with a previous cycle's aggregates.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	expiresAt time.Time

	ds  *dataset.Dataset
	cfg filter.Config

	filtered   []dataset.Record
	summary    aggregate.Summary
	categories []aggregate.CategoryCount
	timeline   []aggregate.TimePoint

	embedVisible bool

	uploadSeq  uint64 // last issued upload ticket
	appliedSeq uint64 // last ticket whose dataset was applied
	version    int64  // bumped on every dataset replacement
}

// Ingest parses the uploaded file and replaces the dataset. The filter
// configuration deliberately survives re-upload. Parse errors leave all
// state untouched.
//
// Overlapping uploads are resolved by ticket: each call claims a sequence
// number before reading the file, and a completion whose ticket is older
// than the last applied one is discarded instead of clobbering newer data.
func (s *Session) Ingest(name string, r io.Reader) error {
	s.mu.Lock()
	s.uploadSeq++
	seq := s.uploadSeq
	s.mu.Unlock()

	ds, err := dataset.Parse(name, r)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq <= s.appliedSeq {
		return ErrStaleUpload
	}
	s.appliedSeq = seq
	s.version++
	ds.Version = s.version
	s.ds = ds
	s.recomputeLocked()
	return nil
}

// SetFilter replaces the filter configuration and recomputes derived state.
func (s *Session) SetFilter(cfg filter.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.recomputeLocked()
}

// SetEmbedVisible toggles the embedded-report visibility flag.
func (s *Session) SetEmbedVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embedVisible = visible
}

// Reset returns dataset, filters, derived outputs, and the embed flag to
// their defaults in one atomic action.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ds = nil
	s.cfg = filter.Config{}
	s.embedVisible = false
	s.version++
	s.recomputeLocked()
}

// Snapshot returns the current state and derived outputs.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		HasDataset:   s.ds != nil,
		Records:      s.filtered,
		Filter:       s.cfg,
		Summary:      s.summary,
		Categories:   s.categories,
		Timeline:     s.timeline,
		EmbedVisible: s.embedVisible,
	}
	if s.ds != nil {
		v.Fields = s.ds.Fields
		v.Version = s.ds.Version
	}
	return v
}

// recomputeLocked re-runs the filter and aggregation engines, in that order,
// against the current inputs. Callers must hold s.mu.
func (s *Session) recomputeLocked() {
	if s.ds == nil {
		s.filtered = nil
		s.summary = aggregate.Summary{}
		s.categories = nil
		s.timeline = nil
		return
	}
	s.filtered = filter.Apply(s.ds, s.cfg)
	s.summary = aggregate.Summarize(s.filtered, s.ds.Fields)
	s.categories = aggregate.ByCategory(s.filtered, s.ds.Fields)
	s.timeline = aggregate.OverTime(s.filtered, s.ds.Fields)
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

func (s *Session) touch(until time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expiresAt = until
}

// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package entity implements the Entity Manager: a resumable, multi-stage
// import where each record carries one reliable primary identifier and
// several secondary identifiers resolved by querying internal systems.
package entity

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/scottrbailey/dbtk/internal/cursor"
	"github.com/scottrbailey/dbtk/internal/record"
)

// Status is a secondary identifier's resolution state.
type Status int

const (
	// Unresolved has not yet been attempted.
	Unresolved Status = iota
	// Resolved carries a usable Value; ProcessRow never re-queries it.
	Resolved
	// Failed carries an Err from the last resolution attempt; ProcessRow
	// retries it on the entity's next encounter.
	Failed
)

func (s Status) String() string {
	switch s {
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unresolved"
	}
}

// SecondaryID tracks one resolver's progress against one entity.
type SecondaryID struct {
	Status Status `json:"status"`
	Value  any    `json:"value,omitempty"`
	Err    string `json:"error,omitempty"`
}

// EntityStatus is the aggregate resolution state of an Entity, derived
// from its secondary identifiers.
type EntityStatus int

const (
	// Pending means at least one secondary id is Unresolved and none have
	// Failed.
	Pending EntityStatus = iota
	// Complete means every secondary id is Resolved.
	Complete
	// Errored means at least one secondary id is Failed.
	Errored
	// Skipped means the entity was explicitly excluded from resolution via
	// Manager.Skip; it is sticky and survives further ProcessRow calls.
	Skipped
)

func (s EntityStatus) String() string {
	switch s {
	case Complete:
		return "resolved"
	case Errored:
		return "error"
	case Skipped:
		return "skipped"
	default:
		return "pending"
	}
}

// Entity is the accumulated state for one primary identifier: the latest
// source fields seen for it, plus every secondary identifier's resolution
// state.
type Entity struct {
	PrimaryID string                  `json:"primary_id"`
	Fields    map[string]any          `json:"fields"`
	Secondary map[string]*SecondaryID `json:"secondary"`
	Status    EntityStatus            `json:"status"`
	Notes     string                  `json:"notes,omitempty"`
}

// recomputeStatus derives Status from the current Secondary states. A
// Skipped entity is sticky: it is never overwritten by resolution
// outcomes, only by another call to Manager.Skip.
func (e *Entity) recomputeStatus() {
	if e.Status == Skipped {
		return
	}
	var anyFailed, anyUnresolved bool
	for _, sec := range e.Secondary {
		switch sec.Status {
		case Failed:
			anyFailed = true
		case Unresolved:
			anyUnresolved = true
		}
	}
	switch {
	case anyFailed:
		e.Status = Errored
	case anyUnresolved:
		e.Status = Pending
	default:
		e.Status = Complete
	}
}

// Resolver resolves one secondary identifier by running a user-provided
// Prepared Statement against the primary id and the entity's current
// fields. Params builds the statement's bind payload; Column names which
// column of the returned Record supplies the resolved value (the first
// column, if empty).
type Resolver struct {
	Name   string
	Stmt   *cursor.PreparedStatement
	Params func(primaryID string, fields map[string]any) map[string]any
	Column string
}

func (r *Resolver) resolve(ctx context.Context, primaryID string, fields map[string]any) (any, error) {
	params := r.Params(primaryID, fields)
	rec, ok, err := r.Stmt.FetchOne(ctx, params)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("entity: resolver %q: no match for primary id %q", r.Name, primaryID)
	}
	col := r.Column
	if col == "" {
		names := rec.Keys(false)
		if len(names) == 0 {
			return nil, fmt.Errorf("entity: resolver %q: returned record has no columns", r.Name)
		}
		col = names[0]
	}
	return rec.Value(col)
}

// Manager tracks one Entity per primary id and drives each row through
// every configured Resolver. It is single-threaded and idempotent: calling
// ProcessRow twice with the same primary id and source fields leaves
// already-Resolved secondary ids untouched and only retries ones that
// previously failed.
type Manager struct {
	RunID     string
	resolvers []*Resolver
	entities  map[string]*Entity
}

// New builds a Manager over the given resolvers, stamped with a fresh
// run id for namespacing persisted state across process restarts.
func New(resolvers ...*Resolver) *Manager {
	return &Manager{
		RunID:     uuid.NewString(),
		resolvers: resolvers,
		entities:  make(map[string]*Entity),
	}
}

func primaryKey(primaryID any) string {
	return fmt.Sprintf("%v", primaryID)
}

// ProcessRow fetches or creates the Entity for primaryID, merges sourceRow
// into its fields, and runs every resolver whose secondary id is not yet
// Resolved. It returns the Entity with all resolvers attempted; a
// resolver failure is recorded on that secondary id and does not abort
// the others. Status is recomputed from the resulting secondary ids
// afterward, unless the entity was previously Skipped, in which case
// fields are merged but no resolver runs.
func (m *Manager) ProcessRow(ctx context.Context, primaryID any, sourceRow record.Record) (*Entity, error) {
	key := primaryKey(primaryID)
	e, ok := m.entities[key]
	if !ok {
		e = &Entity{
			PrimaryID: key,
			Fields:    make(map[string]any, sourceRow.Len()),
			Secondary: make(map[string]*SecondaryID, len(m.resolvers)),
		}
		for _, r := range m.resolvers {
			e.Secondary[r.Name] = &SecondaryID{Status: Unresolved}
		}
		m.entities[key] = e
	}
	for k, v := range sourceRow.Map() {
		e.Fields[k] = v
	}
	if e.Status == Skipped {
		return e, nil
	}

	for _, r := range m.resolvers {
		sec := e.Secondary[r.Name]
		if sec == nil {
			sec = &SecondaryID{Status: Unresolved}
			e.Secondary[r.Name] = sec
		}
		if sec.Status == Resolved {
			continue
		}
		val, err := r.resolve(ctx, key, e.Fields)
		if err != nil {
			sec.Status = Failed
			sec.Err = err.Error()
			continue
		}
		sec.Status = Resolved
		sec.Value = val
		sec.Err = ""
	}
	e.recomputeStatus()
	return e, nil
}

// Skip marks the entity for primaryID Skipped with an explanatory note,
// creating it first (with no resolvers attempted) if it hasn't been seen
// yet. A skipped entity is excluded from further resolution bookkeeping:
// subsequent ProcessRow calls still merge source fields into it but leave
// Status alone.
func (m *Manager) Skip(primaryID any, note string) *Entity {
	key := primaryKey(primaryID)
	e, ok := m.entities[key]
	if !ok {
		e = &Entity{
			PrimaryID: key,
			Fields:    make(map[string]any),
			Secondary: make(map[string]*SecondaryID, len(m.resolvers)),
		}
		m.entities[key] = e
	}
	e.Status = Skipped
	e.Notes = note
	return e
}

// Get returns the Entity for primaryID, or nil if it has not been
// processed yet.
func (m *Manager) Get(primaryID any) *Entity {
	return m.entities[primaryKey(primaryID)]
}

// Len returns the number of distinct entities tracked so far.
func (m *Manager) Len() int {
	return len(m.entities)
}

// All returns every tracked Entity in no particular order, for callers
// that need to sweep the full set (e.g. a final flush after the source is
// exhausted).
func (m *Manager) All() []*Entity {
	out := make([]*Entity, 0, len(m.entities))
	for _, e := range m.entities {
		out = append(out, e)
	}
	return out
}

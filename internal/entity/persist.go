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

package entity

import (
	"encoding/json"
	"os"

	"github.com/scottrbailey/dbtk/internal/dbtkerr"
)

// snapshot is the on-disk shape: the run id plus the full entity map,
// keyed by primary id.
type snapshot struct {
	RunID    string             `json:"run_id"`
	Entities map[string]*Entity `json:"entities"`
}

// Save serializes the full entity map to path, so a long-running import
// can resume after interruption. The format is this package's own
// contract, not a public one — callers should only ever read it back via
// Load.
func (m *Manager) Save(path string) error {
	snap := snapshot{RunID: m.RunID, Entities: m.entities}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return dbtkerr.Resource("entity: marshal snapshot", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return dbtkerr.Resource("entity: write snapshot "+path, err)
	}
	return nil
}

// Load restores a Manager's entity map from a file written by Save,
// replacing whatever state it currently holds. The Resolvers already
// configured on m are kept; only RunID and the entity map are restored.
func (m *Manager) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return dbtkerr.Resource("entity: read snapshot "+path, err)
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return dbtkerr.Resource("entity: unmarshal snapshot "+path, err)
	}
	if snap.Entities == nil {
		snap.Entities = make(map[string]*Entity)
	}
	m.RunID = snap.RunID
	m.entities = snap.Entities
	return nil
}

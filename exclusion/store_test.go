/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package exclusion

import (
	"context"
	"errors"
	"sync"
)

var (
	errInjected = errors.New("injected failure")
	errConflict = errors.New("UNIQUE constraint failed: exclusions.subject_type, exclusions.subject_id, exclusions.kind")
)

// memoryStore is an in-memory Store. failCreateAt makes the n-th Create call
// (1-based, counted across transactions) fail. conflicts makes that many
// Create calls fail with a duplicate key error.
type memoryStore struct {
	mu           sync.Mutex
	records      []*Record
	nextID       int64
	creates      int
	failCreateAt int
	conflicts    int
	failExists   bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) FindOrCreate(ctx context.Context, rec *Record) (*Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if matches(r, Filter{SubjectType: rec.SubjectType, SubjectID: rec.SubjectID, Kind: rec.Kind}) {
			return r, false, nil
		}
	}
	m.insert(rec)
	return rec, true, nil
}

func (m *memoryStore) DeleteWhere(ctx context.Context, filter Filter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.records[:0]
	for _, r := range m.records {
		if !matches(r, filter) {
			kept = append(kept, r)
		}
	}
	m.records = kept
	return nil
}

func (m *memoryStore) ExistsWhere(ctx context.Context, filter Filter) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failExists {
		return false, errInjected
	}
	for _, r := range m.records {
		if matches(r, filter) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) Create(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.failCreateAt > 0 && m.creates == m.failCreateAt {
		return errInjected
	}
	if m.conflicts > 0 {
		m.conflicts--
		return errConflict
	}
	m.insert(rec)
	return nil
}

func (m *memoryStore) List(ctx context.Context, filter Filter) ([]*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Record
	for _, r := range m.records {
		if matches(r, filter) {
			out = append(out, r)
		}
	}
	return out, nil
}

// RunInTx snapshots the records and restores them when fn fails.
func (m *memoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error {
	m.mu.Lock()
	snapshot := append([]*Record(nil), m.records...)
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(ctx, m); err != nil {
		m.mu.Lock()
		m.records, m.nextID = snapshot, nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryStore) insert(rec *Record) {
	m.nextID++
	rec.ID = m.nextID
	m.records = append(m.records, rec)
}

func (m *memoryStore) all() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	for i, r := range m.records {
		out[i] = *r
	}
	return out
}

func matches(r *Record, f Filter) bool {
	return (f.SubjectType == "" || r.SubjectType == f.SubjectType) &&
		(f.SubjectID == "" || r.SubjectID == f.SubjectID) &&
		(f.Kind == "" || r.Kind == f.Kind)
}

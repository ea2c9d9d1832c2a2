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
	"time"

	"github.com/tomoncle/excludable/database"
	"github.com/uptrace/bun"
)

const (
	// TableName is the table holding exclusion records.
	TableName = "exclusions"

	// Wildcard is stored as the subject id of the record that excludes every
	// subject of a type. It shares the identifier column with real ids, so a
	// subject whose id is literally "*" cannot be told apart from the wildcard
	// and is rejected as invalid.
	Wildcard = "*"
)

// Record is a persisted exclusion fact keyed by (SubjectType, SubjectID, Kind).
type Record struct {
	bun.BaseModel `bun:"table:exclusions,alias:ex"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	Kind        Kind      `bun:"kind,type:varchar(16),notnull" json:"kind"`
	SubjectType string    `bun:"subject_type,type:varchar(191),notnull" json:"subject_type"`
	SubjectID   string    `bun:"subject_id,type:varchar(191),notnull" json:"subject_id"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

var (
	_ bun.BeforeAppendModelHook = (*Record)(nil)
	_ database.IndexedModel     = (*Record)(nil)
)

func init() {
	database.RegisteredModel(database.NewModelAdapter((*Record)(nil), 0))
}

// BeforeAppendModel stamps lifecycle timestamps.
func (r *Record) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now()
	switch query.(type) {
	case *bun.InsertQuery:
		if r.CreatedAt.IsZero() {
			r.CreatedAt = now
		}
		r.UpdatedAt = now
	case *bun.UpdateQuery:
		r.UpdatedAt = now
	}
	return nil
}

// Indexes declares the lookup index used by every resolver query.
func (r *Record) Indexes() []database.IndexDefinition {
	return []database.IndexDefinition{
		{
			Name:    "exclusions_subject_kind_unique",
			Columns: []string{"subject_type", "subject_id", "kind"},
			Unique:  true,
		},
	}
}

// IsWildcard reports whether the record applies to every subject of its type.
func (r *Record) IsWildcard() bool {
	return r.SubjectID == Wildcard
}

// Filter selects records. Empty fields match anything.
type Filter struct {
	SubjectType string
	SubjectID   string
	Kind        Kind
}

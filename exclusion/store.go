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

import "context"

// Store is the storage collaborator of the Resolver.
type Store interface {
	// FindOrCreate returns the record matching the key fields of rec, inserting
	// rec when none exists. The boolean reports whether rec was inserted.
	FindOrCreate(ctx context.Context, rec *Record) (*Record, bool, error)

	// DeleteWhere removes every record matching the filter.
	DeleteWhere(ctx context.Context, filter Filter) error

	// ExistsWhere reports whether any record matches the filter.
	ExistsWhere(ctx context.Context, filter Filter) (bool, error)

	// Create inserts rec unconditionally.
	Create(ctx context.Context, rec *Record) error

	// List returns the records matching the filter ordered by id.
	List(ctx context.Context, filter Filter) ([]*Record, error)

	// RunInTx runs fn against a Store bound to a single transaction. The
	// transaction is committed when fn returns nil and rolled back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Store) error) error
}

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

package repository

import (
	"context"

	"github.com/tomoncle/excludable/types"
	"github.com/uptrace/bun"
)

// QueryModifier rewrites a select query before it runs. Modifiers are how
// callers add scopes, such as exclusion filters, to repository reads.
type QueryModifier func(q *bun.SelectQuery) *bun.SelectQuery

// CrudRepository defines basic CRUD operations for a generic entity type.
type CrudRepository[T any] interface {
	GetOne(ctx context.Context, id any, mods ...QueryModifier) (*T, error)

	GetAll(ctx context.Context, mods ...QueryModifier) ([]*T, error)

	List(ctx context.Context, filter *types.QueryFilter, mods ...QueryModifier) ([]*T, error)

	Count(ctx context.Context, filter *types.QueryFilter, mods ...QueryModifier) (int, error)

	Create(ctx context.Context, entity ...*T) error

	Update(ctx context.Context, entity *T) error

	Delete(ctx context.Context, id any) error
}

// PageQueryRepository defines pagination for listing entities.
type PageQueryRepository[T any] interface {
	Page(ctx context.Context, page *types.PageRequest, mods ...QueryModifier) (*types.Pagination[T], error)
}

// Repository combines CRUD and pagination and exposes the select builder of
// the entity for advanced use.
type Repository[T any] interface {
	CrudRepository[T]
	PageQueryRepository[T]
	DB() bun.IDB
	KeyColumn() string
	NewSelect(mods ...QueryModifier) *bun.SelectQuery
}

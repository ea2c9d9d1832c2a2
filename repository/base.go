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
	"reflect"

	"github.com/tomoncle/excludable/types"
	"github.com/uptrace/bun"
)

type baseRepositoryImpl[T any] struct {
	db        bun.IDB
	keyColumn string
}

// NewRepository returns a generic repository over db, which may be a *bun.DB
// or a bun.Tx.
func NewRepository[T any](db bun.IDB) Repository[T] {
	keyColumn := "id"
	table := db.Dialect().Tables().Get(reflect.TypeFor[T]())
	if table != nil && len(table.PKs) == 1 {
		keyColumn = table.PKs[0].Name
	}
	return &baseRepositoryImpl[T]{db: db, keyColumn: keyColumn}
}

func (r *baseRepositoryImpl[T]) DB() bun.IDB { return r.db }

func (r *baseRepositoryImpl[T]) KeyColumn() string { return r.keyColumn }

// NewSelect returns a select query over T with mods applied in order.
func (r *baseRepositoryImpl[T]) NewSelect(mods ...QueryModifier) *bun.SelectQuery {
	return applyModifiers(r.db.NewSelect().Model((*T)(nil)), mods)
}

func (r *baseRepositoryImpl[T]) GetOne(ctx context.Context, id any, mods ...QueryModifier) (*T, error) {
	entity := new(T)
	q := r.db.NewSelect().Model(entity).Where("?TableAlias.? = ?", bun.Ident(r.keyColumn), id)
	if err := applyModifiers(q, mods).Scan(ctx); err != nil {
		return nil, err
	}
	return entity, nil
}

func (r *baseRepositoryImpl[T]) GetAll(ctx context.Context, mods ...QueryModifier) ([]*T, error) {
	return r.List(ctx, nil, mods...)
}

func (r *baseRepositoryImpl[T]) List(ctx context.Context, filter *types.QueryFilter, mods ...QueryModifier) ([]*T, error) {
	var entities []*T
	q := withFilter(r.db.NewSelect().Model(&entities), filter)
	if err := applyModifiers(q, mods).Order(r.keyColumn).Scan(ctx); err != nil {
		return nil, err
	}
	return entities, nil
}

func (r *baseRepositoryImpl[T]) Count(ctx context.Context, filter *types.QueryFilter, mods ...QueryModifier) (int, error) {
	q := withFilter(r.db.NewSelect().Model((*T)(nil)), filter)
	return applyModifiers(q, mods).Count(ctx)
}

func (r *baseRepositoryImpl[T]) Page(ctx context.Context, pageRequest *types.PageRequest, mods ...QueryModifier) (*types.Pagination[T], error) {
	if pageRequest == nil {
		pageRequest = types.NewPageRequest(types.DefaultPage, types.DefaultPageSize, nil)
	}
	pagination := types.NewPagination[T](pageRequest)

	var entities []*T
	q := withFilter(r.db.NewSelect().Model(&entities), pageRequest.GetFilter())
	q = applyModifiers(q, mods)
	total, err := q.Count(ctx)
	if err != nil || total == 0 {
		return pagination, err
	}

	orders := pageRequest.GetOrders()
	if len(orders) == 0 {
		orders = []string{r.keyColumn}
	}
	err = q.
		Offset(pageRequest.GetOffset()).
		Limit(pageRequest.GetPageSize()).
		Order(orders...).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	pagination.Total = total
	pagination.Items = entities
	return pagination, nil
}

func (r *baseRepositoryImpl[T]) Create(ctx context.Context, entity ...*T) error {
	if len(entity) == 0 {
		return nil
	}
	entities := append([]*T(nil), entity...)
	_, err := r.db.NewInsert().Model(&entities).Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) Update(ctx context.Context, entity *T) error {
	_, err := r.db.NewUpdate().Model(entity).WherePK().Exec(ctx)
	return err
}

func (r *baseRepositoryImpl[T]) Delete(ctx context.Context, id any) error {
	_, err := r.db.NewDelete().Model((*T)(nil)).Where("? = ?", bun.Ident(r.keyColumn), id).Exec(ctx)
	return err
}

func withFilter(q *bun.SelectQuery, filter *types.QueryFilter) *bun.SelectQuery {
	if filter == nil || filter.Schema == "" {
		return q
	}
	return q.Where(filter.Schema, filter.Args...)
}

func applyModifiers(q *bun.SelectQuery, mods []QueryModifier) *bun.SelectQuery {
	for _, mod := range mods {
		if mod != nil {
			q = mod(q)
		}
	}
	return q
}

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
	"database/sql"
	"errors"
	"fmt"

	"github.com/tomoncle/excludable/database"
	"github.com/tomoncle/excludable/exclusion"
	"github.com/uptrace/bun"
)

// ErrUnscopedFilter guards against deleting or listing across subject types.
var ErrUnscopedFilter = errors.New("repository: exclusion filter requires a subject type")

type exclusionRepository struct {
	db bun.IDB
}

var _ exclusion.Store = (*exclusionRepository)(nil)

// NewExclusionRepository returns the Bun implementation of exclusion.Store.
func NewExclusionRepository(db bun.IDB) exclusion.Store {
	return &exclusionRepository{db: db}
}

func (r *exclusionRepository) FindOrCreate(ctx context.Context, rec *exclusion.Record) (*exclusion.Record, bool, error) {
	key := exclusion.Filter{SubjectType: rec.SubjectType, SubjectID: rec.SubjectID, Kind: rec.Kind}
	found, err := r.first(ctx, key)
	if err == nil {
		return found, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, err
	}

	if _, err := r.db.NewInsert().Model(rec).Exec(ctx); err != nil {
		// A concurrent caller inserted the same key first.
		if database.IsDuplicateKey(err) {
			found, err := r.first(ctx, key)
			if err != nil {
				return nil, false, err
			}
			return found, false, nil
		}
		return nil, false, err
	}
	return rec, true, nil
}

func (r *exclusionRepository) DeleteWhere(ctx context.Context, filter exclusion.Filter) error {
	if filter.SubjectType == "" {
		return ErrUnscopedFilter
	}
	q := r.db.NewDelete().Model((*exclusion.Record)(nil))
	_, err := applyFilter(q.QueryBuilder(), filter).Unwrap().(*bun.DeleteQuery).Exec(ctx)
	return err
}

func (r *exclusionRepository) ExistsWhere(ctx context.Context, filter exclusion.Filter) (bool, error) {
	q := r.db.NewSelect().Model((*exclusion.Record)(nil))
	return applyFilter(q.QueryBuilder(), filter).Unwrap().(*bun.SelectQuery).Exists(ctx)
}

func (r *exclusionRepository) Create(ctx context.Context, rec *exclusion.Record) error {
	_, err := r.db.NewInsert().Model(rec).Exec(ctx)
	return err
}

func (r *exclusionRepository) List(ctx context.Context, filter exclusion.Filter) ([]*exclusion.Record, error) {
	if filter.SubjectType == "" {
		return nil, ErrUnscopedFilter
	}
	var records []*exclusion.Record
	q := r.db.NewSelect().Model(&records)
	err := applyFilter(q.QueryBuilder(), filter).Unwrap().(*bun.SelectQuery).
		Order("id").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *exclusionRepository) RunInTx(ctx context.Context, fn func(ctx context.Context, tx exclusion.Store) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return fn(ctx, &exclusionRepository{db: tx})
	})
	if err != nil {
		return fmt.Errorf("exclusion transaction: %w", err)
	}
	return nil
}

func (r *exclusionRepository) first(ctx context.Context, filter exclusion.Filter) (*exclusion.Record, error) {
	rec := new(exclusion.Record)
	q := r.db.NewSelect().Model(rec)
	err := applyFilter(q.QueryBuilder(), filter).Unwrap().(*bun.SelectQuery).
		Order("id").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func applyFilter(qb bun.QueryBuilder, filter exclusion.Filter) bun.QueryBuilder {
	if filter.SubjectType != "" {
		qb = qb.Where("subject_type = ?", filter.SubjectType)
	}
	if filter.SubjectID != "" {
		qb = qb.Where("subject_id = ?", filter.SubjectID)
	}
	if filter.Kind != "" {
		qb = qb.Where("kind = ?", string(filter.Kind))
	}
	return qb
}

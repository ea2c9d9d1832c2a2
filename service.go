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

package excludable

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tomoncle/excludable/database"
	"github.com/tomoncle/excludable/exclusion"
	"github.com/tomoncle/excludable/repository"
	"github.com/tomoncle/excludable/types"
	"github.com/uptrace/bun"
)

// ErrNoDatabase is returned by a Service whose database is not initialized.
var ErrNoDatabase = errors.New("excludable: database not initialized")

// Model is the constraint of excludable models: T is the struct type and PT
// its pointer, which implements exclusion.Subject.
type Model[T any] interface {
	*T
	exclusion.Subject
}

// Service exposes reads of T that hide excluded records unless a scope says
// otherwise, together with the exclusion operations for T. Read methods take
// optional scopes; the last one wins and none means exclusion.WithoutExcluded.
type Service[T any] interface {
	// Get returns a single entity by its identifier.
	Get(ctx context.Context, id any, scopes ...exclusion.Scope) (*T, error)

	// All returns all entities.
	All(ctx context.Context, scopes ...exclusion.Scope) ([]*T, error)

	// List returns entities that match the provided filter.
	List(ctx context.Context, filter *types.QueryFilter, scopes ...exclusion.Scope) ([]*T, error)

	// Count returns the number of entities that match the provided filter.
	Count(ctx context.Context, filter *types.QueryFilter, scopes ...exclusion.Scope) (int, error)

	// Page returns a paginated list of entities.
	Page(ctx context.Context, page *types.PageRequest, scopes ...exclusion.Scope) (*types.Pagination[T], error)

	// Save inserts one or more new entities.
	Save(ctx context.Context, model ...*T) error

	// Update modifies an existing entity.
	Update(ctx context.Context, model *T) error

	// Delete removes an entity by its identifier. Its exclusion records are
	// left in place.
	Delete(ctx context.Context, id any) error

	// Exclude marks model as excluded; false means a hook vetoed it.
	Exclude(ctx context.Context, model *T) (bool, error)

	// Include removes the explicit exclusion of model.
	Include(ctx context.Context, model *T) (bool, error)

	// IsExcluded resolves the effective exclusion state of model.
	IsExcluded(ctx context.Context, model *T) (bool, error)

	// HasExclusion reports whether model has an exclusion record of any kind.
	HasExclusion(ctx context.Context, model *T) (bool, error)

	// ExcludeAll excludes every entity except the given models or identifiers.
	ExcludeAll(ctx context.Context, exceptions ...any) error

	// IncludeAll clears every exclusion of the entity type.
	IncludeAll(ctx context.Context) error

	// SelectBuilder returns a Bun select query over T with the scope applied.
	SelectBuilder(scopes ...exclusion.Scope) (*bun.SelectQuery, error)

	// SubjectType returns the subject type tag of T.
	SubjectType() string

	// Resolver returns the exclusion resolver bound to the current database.
	Resolver() (*exclusion.Resolver, error)
}

type binding[T any] struct {
	db       *bun.DB
	repo     repository.Repository[T]
	resolver *exclusion.Resolver
	target   exclusion.Target
}

type baseServiceImpl[T any, PT Model[T]] struct {
	db    func() *bun.DB
	opts  []exclusion.Option
	mu    sync.Mutex
	bound *binding[T]
}

// NewService returns a Service backed by the global database connection. The
// connection is looked up on every call, so the service follows InitDB and
// CloseDB.
func NewService[T any, PT Model[T]](opts ...exclusion.Option) Service[T] {
	return &baseServiceImpl[T, PT]{db: database.GetDB, opts: opts}
}

// NewServiceWithDB returns a Service backed by db.
func NewServiceWithDB[T any, PT Model[T]](db *bun.DB, opts ...exclusion.Option) Service[T] {
	return &baseServiceImpl[T, PT]{db: func() *bun.DB { return db }, opts: opts}
}

// bind returns the repository and resolver of the current database, building
// them again when the handle changed.
func (s *baseServiceImpl[T, PT]) bind() (*binding[T], error) {
	db := s.db()
	if db == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoDatabase, s.SubjectType())
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound != nil && s.bound.db == db {
		return s.bound, nil
	}
	repo := repository.NewRepository[T](db)
	s.bound = &binding[T]{
		db:       db,
		repo:     repo,
		resolver: exclusion.NewResolver(repository.NewExclusionRepository(db), s.opts...),
		target:   exclusion.Target{SubjectType: s.SubjectType(), KeyColumn: repo.KeyColumn()},
	}
	return s.bound, nil
}

func (s *baseServiceImpl[T, PT]) SubjectType() string {
	return PT(new(T)).SubjectType()
}

func (s *baseServiceImpl[T, PT]) Resolver() (*exclusion.Resolver, error) {
	b, err := s.bind()
	if err != nil {
		return nil, err
	}
	return b.resolver, nil
}

func (s *baseServiceImpl[T, PT]) Get(ctx context.Context, id any, scopes ...exclusion.Scope) (*T, error) {
	b, err := s.bind()
	if err != nil {
		return nil, err
	}
	return b.repo.GetOne(ctx, id, b.target.Modifier(scopes...))
}

func (s *baseServiceImpl[T, PT]) All(ctx context.Context, scopes ...exclusion.Scope) ([]*T, error) {
	b, err := s.bind()
	if err != nil {
		return nil, err
	}
	return b.repo.GetAll(ctx, b.target.Modifier(scopes...))
}

func (s *baseServiceImpl[T, PT]) List(ctx context.Context, filter *types.QueryFilter, scopes ...exclusion.Scope) ([]*T, error) {
	b, err := s.bind()
	if err != nil {
		return nil, err
	}
	return b.repo.List(ctx, filter, b.target.Modifier(scopes...))
}

func (s *baseServiceImpl[T, PT]) Count(ctx context.Context, filter *types.QueryFilter, scopes ...exclusion.Scope) (int, error) {
	b, err := s.bind()
	if err != nil {
		return 0, err
	}
	return b.repo.Count(ctx, filter, b.target.Modifier(scopes...))
}

func (s *baseServiceImpl[T, PT]) Page(ctx context.Context, page *types.PageRequest, scopes ...exclusion.Scope) (*types.Pagination[T], error) {
	b, err := s.bind()
	if err != nil {
		return nil, err
	}
	return b.repo.Page(ctx, page, b.target.Modifier(scopes...))
}

func (s *baseServiceImpl[T, PT]) Save(ctx context.Context, model ...*T) error {
	b, err := s.bind()
	if err != nil {
		return err
	}
	return b.repo.Create(ctx, model...)
}

func (s *baseServiceImpl[T, PT]) Update(ctx context.Context, model *T) error {
	b, err := s.bind()
	if err != nil {
		return err
	}
	return b.repo.Update(ctx, model)
}

func (s *baseServiceImpl[T, PT]) Delete(ctx context.Context, id any) error {
	b, err := s.bind()
	if err != nil {
		return err
	}
	return b.repo.Delete(ctx, id)
}

func (s *baseServiceImpl[T, PT]) Exclude(ctx context.Context, model *T) (bool, error) {
	r, err := s.Resolver()
	if err != nil {
		return false, err
	}
	return r.Exclude(ctx, PT(model))
}

func (s *baseServiceImpl[T, PT]) Include(ctx context.Context, model *T) (bool, error) {
	r, err := s.Resolver()
	if err != nil {
		return false, err
	}
	return r.Include(ctx, PT(model))
}

func (s *baseServiceImpl[T, PT]) IsExcluded(ctx context.Context, model *T) (bool, error) {
	r, err := s.Resolver()
	if err != nil {
		return false, err
	}
	return r.IsExcluded(ctx, PT(model))
}

func (s *baseServiceImpl[T, PT]) HasExclusion(ctx context.Context, model *T) (bool, error) {
	r, err := s.Resolver()
	if err != nil {
		return false, err
	}
	return r.HasExclusion(ctx, PT(model))
}

func (s *baseServiceImpl[T, PT]) ExcludeAll(ctx context.Context, exceptions ...any) error {
	r, err := s.Resolver()
	if err != nil {
		return err
	}
	return r.ExcludeAll(ctx, s.SubjectType(), exceptions...)
}

func (s *baseServiceImpl[T, PT]) IncludeAll(ctx context.Context) error {
	r, err := s.Resolver()
	if err != nil {
		return err
	}
	return r.IncludeAll(ctx, s.SubjectType())
}

func (s *baseServiceImpl[T, PT]) SelectBuilder(scopes ...exclusion.Scope) (*bun.SelectQuery, error) {
	b, err := s.bind()
	if err != nil {
		return nil, err
	}
	return b.repo.NewSelect(b.target.Modifier(scopes...)), nil
}

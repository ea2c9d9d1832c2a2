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
	"fmt"

	"github.com/tomoncle/excludable/database"
)

// Hooks are resolver-wide callbacks. BeforeExclude returning false vetoes the
// exclusion. AfterExcluded runs only when a new exclusion record was created.
type Hooks struct {
	BeforeExclude func(ctx context.Context, s Subject) bool
	AfterExcluded func(ctx context.Context, s Subject)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithHooks installs resolver-wide hooks.
func WithHooks(h Hooks) Option {
	return func(r *Resolver) { r.hooks = h }
}

// WithLogger replaces the database package logger.
func WithLogger(l database.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// Resolver owns exclusion records and resolves the effective exclusion state
// of subjects.
type Resolver struct {
	store  Store
	hooks  Hooks
	logger database.Logger
}

// NewResolver returns a Resolver persisting through store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:  store,
		logger: database.GetLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Exclude marks s as excluded. It returns false without touching storage when
// a before-exclude hook vetoes, and true otherwise, whether or not a record
// already existed.
func (r *Resolver) Exclude(ctx context.Context, s Subject) (bool, error) {
	ref, err := resolveSubject(s)
	if err != nil {
		return false, err
	}
	if !r.allowExclude(ctx, s) {
		r.logger.Debug("Exclusion vetoed", "subject", ref)
		return false, nil
	}

	_, created, err := r.store.FindOrCreate(ctx, &Record{
		Kind:        KindExclude,
		SubjectType: ref.Type,
		SubjectID:   ref.ID,
	})
	if err != nil {
		return false, fmt.Errorf("exclude %s: %w", ref, err)
	}
	if created {
		r.logger.Debug("Subject excluded", "subject", ref)
		r.notifyExcluded(ctx, s)
	}
	return true, nil
}

// Include removes the explicit exclusion record of s. Wildcard state and
// exceptions are left alone.
func (r *Resolver) Include(ctx context.Context, s Subject) (bool, error) {
	ref, err := resolveSubject(s)
	if err != nil {
		return false, err
	}
	if err := r.store.DeleteWhere(ctx, Filter{SubjectType: ref.Type, SubjectID: ref.ID, Kind: KindExclude}); err != nil {
		return false, fmt.Errorf("include %s: %w", ref, err)
	}
	r.logger.Debug("Subject exclusion removed", "subject", ref)
	return true, nil
}

// IsExcluded resolves the effective state of s: an explicit exclude record, or
// a wildcard exclude with no include exception for s.
func (r *Resolver) IsExcluded(ctx context.Context, s Subject) (bool, error) {
	ref, err := resolveSubject(s)
	if err != nil {
		return false, err
	}
	explicit, err := r.store.ExistsWhere(ctx, Filter{SubjectType: ref.Type, SubjectID: ref.ID, Kind: KindExclude})
	if err != nil || explicit {
		return explicit, err
	}
	wildcard, err := r.store.ExistsWhere(ctx, Filter{SubjectType: ref.Type, SubjectID: Wildcard, Kind: KindExclude})
	if err != nil || !wildcard {
		return false, err
	}
	exception, err := r.store.ExistsWhere(ctx, Filter{SubjectType: ref.Type, SubjectID: ref.ID, Kind: KindInclude})
	if err != nil {
		return false, err
	}
	return !exception, nil
}

// HasExclusion reports whether any record of either kind exists for the exact
// id of s, ignoring wildcard resolution.
func (r *Resolver) HasExclusion(ctx context.Context, s Subject) (bool, error) {
	ref, err := resolveSubject(s)
	if err != nil {
		return false, err
	}
	return r.store.ExistsWhere(ctx, Filter{SubjectType: ref.Type, SubjectID: ref.ID})
}

// excludeAllAttempts bounds how often ExcludeAll replays its transaction
// after losing a unique-key race to a concurrent ExcludeAll of the same type.
const excludeAllAttempts = 3

// ExcludeAll replaces every record of subjectType with a wildcard exclusion
// and one include exception per identifier. Exceptions may be subjects,
// models passed by value or raw identifiers. The replacement is a single
// transaction; concurrent calls for one type resolve as last writer wins.
func (r *Resolver) ExcludeAll(ctx context.Context, subjectType string, exceptions ...any) error {
	if err := validateType(subjectType); err != nil {
		return err
	}
	ids, err := resolveExceptions(subjectType, exceptions)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		err = r.store.RunInTx(ctx, func(ctx context.Context, tx Store) error {
			return replaceAll(ctx, tx, subjectType, ids)
		})
		// A duplicate key means another replacement committed rows our DELETE
		// could not see; a fresh transaction deletes them and wins.
		if err == nil || attempt == excludeAllAttempts || ctx.Err() != nil || !database.IsDuplicateKey(err) {
			break
		}
		r.logger.Warn("Concurrent exclude all, retrying", "subject_type", subjectType, "attempt", attempt)
	}
	if err != nil {
		return fmt.Errorf("exclude all %s: %w", subjectType, err)
	}
	r.logger.Info("Excluded all subjects", "subject_type", subjectType, "exceptions", len(ids))
	return nil
}

func replaceAll(ctx context.Context, tx Store, subjectType string, ids []string) error {
	if err := tx.DeleteWhere(ctx, Filter{SubjectType: subjectType}); err != nil {
		return err
	}
	if err := tx.Create(ctx, &Record{Kind: KindExclude, SubjectType: subjectType, SubjectID: Wildcard}); err != nil {
		return err
	}
	for _, id := range ids {
		if err := tx.Create(ctx, &Record{Kind: KindInclude, SubjectType: subjectType, SubjectID: id}); err != nil {
			return err
		}
	}
	return nil
}

// IncludeAll deletes every record of subjectType, wildcard and exceptions
// included.
func (r *Resolver) IncludeAll(ctx context.Context, subjectType string) error {
	if err := validateType(subjectType); err != nil {
		return err
	}
	if err := r.store.DeleteWhere(ctx, Filter{SubjectType: subjectType}); err != nil {
		return fmt.Errorf("include all %s: %w", subjectType, err)
	}
	r.logger.Info("Included all subjects", "subject_type", subjectType)
	return nil
}

// Exclusions lists the raw records of subjectType.
func (r *Resolver) Exclusions(ctx context.Context, subjectType string) ([]*Record, error) {
	if err := validateType(subjectType); err != nil {
		return nil, err
	}
	return r.store.List(ctx, Filter{SubjectType: subjectType})
}

func (r *Resolver) allowExclude(ctx context.Context, s Subject) bool {
	if h, ok := s.(BeforeExcludeHook); ok && !h.BeforeExclude(ctx) {
		return false
	}
	if r.hooks.BeforeExclude != nil && !r.hooks.BeforeExclude(ctx, s) {
		return false
	}
	return true
}

func (r *Resolver) notifyExcluded(ctx context.Context, s Subject) {
	if h, ok := s.(AfterExcludedHook); ok {
		h.AfterExcluded(ctx)
	}
	if r.hooks.AfterExcluded != nil {
		r.hooks.AfterExcluded(ctx, s)
	}
}

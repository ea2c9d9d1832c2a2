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
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

type scopeMode int

const (
	modeWithoutExcluded scopeMode = iota
	modeWithExcluded
	modeOnlyExcluded
	modeHasExclusion
	modeDoesntHaveExclusion
)

// Scope selects how exclusion state filters a query. The zero value is the
// default filter that hides excluded subjects.
type Scope struct {
	mode scopeMode
}

// WithExcluded drops the default filter when flag is true and keeps it
// otherwise.
func WithExcluded(flag bool) Scope {
	if flag {
		return Scope{mode: modeWithExcluded}
	}
	return WithoutExcluded()
}

// WithoutExcluded hides excluded subjects. It is the default.
func WithoutExcluded() Scope { return Scope{mode: modeWithoutExcluded} }

// OnlyExcluded keeps excluded subjects only.
func OnlyExcluded() Scope { return Scope{mode: modeOnlyExcluded} }

// WhereHasExclusion keeps subjects having a record of any kind for their exact
// id, or none of them when negate is set. Wildcards are not considered.
func WhereHasExclusion(negate bool) Scope {
	if negate {
		return Scope{mode: modeDoesntHaveExclusion}
	}
	return Scope{mode: modeHasExclusion}
}

// WhereDoesntHaveExclusion is WhereHasExclusion(true).
func WhereDoesntHaveExclusion() Scope { return Scope{mode: modeDoesntHaveExclusion} }

func (s Scope) String() string {
	switch s.mode {
	case modeWithExcluded:
		return "with_excluded"
	case modeOnlyExcluded:
		return "only_excluded"
	case modeHasExclusion:
		return "has_exclusion"
	case modeDoesntHaveExclusion:
		return "doesnt_have_exclusion"
	default:
		return "without_excluded"
	}
}

// Target binds scopes to the model selected by a query: its subject type and
// the key column matched against exclusion subject ids.
type Target struct {
	SubjectType string
	KeyColumn   string
}

// NewTarget returns a Target keyed on the "id" column.
func NewTarget(subjectType string) Target {
	return Target{SubjectType: subjectType, KeyColumn: "id"}
}

// Resolve returns the scope in effect: the last one given, or the default.
func Resolve(scopes ...Scope) Scope {
	if len(scopes) == 0 {
		return WithoutExcluded()
	}
	return scopes[len(scopes)-1]
}

// Apply adds the effective scope to q. Without scopes the default filter is
// applied. q must select the target model so that ?TableAlias resolves.
func (t Target) Apply(q *bun.SelectQuery, scopes ...Scope) *bun.SelectQuery {
	switch Resolve(scopes...).mode {
	case modeWithExcluded:
		return q
	case modeOnlyExcluded:
		return t.whereExcluded(q, false)
	case modeHasExclusion:
		return q.Where("EXISTS ("+t.rowSQL(q)+")", t.SubjectType, t.keyIdent())
	case modeDoesntHaveExclusion:
		return q.Where("NOT EXISTS ("+t.rowSQL(q)+")", t.SubjectType, t.keyIdent())
	default:
		return t.whereExcluded(q, true)
	}
}

// Modifier adapts Apply to a query callback.
func (t Target) Modifier(scopes ...Scope) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return t.Apply(q, scopes...)
	}
}

// whereExcluded expresses: explicit exclude OR (wildcard AND NOT include).
func (t Target) whereExcluded(q *bun.SelectQuery, negate bool) *bun.SelectQuery {
	key := t.keySQL(q)
	expr := "(EXISTS (" + t.kindSQL(KindExclude, key) + ")" +
		" OR (EXISTS (" + t.kindSQL(KindExclude, "?") + ")" +
		" AND NOT EXISTS (" + t.kindSQL(KindInclude, key) + ")))"
	if negate {
		expr = "NOT " + expr
	}
	ident := t.keyIdent()
	return q.Where(expr, t.SubjectType, ident, t.SubjectType, Wildcard, t.SubjectType, ident)
}

func (t Target) kindSQL(kind Kind, subjectID string) string {
	return "SELECT 1 FROM " + TableName + " AS exs" +
		" WHERE exs.subject_type = ? AND exs.kind = '" + string(kind) + "'" +
		" AND exs.subject_id = " + subjectID
}

func (t Target) rowSQL(q *bun.SelectQuery) string {
	return "SELECT 1 FROM " + TableName + " AS exs" +
		" WHERE exs.subject_type = ? AND exs.subject_id = " + t.keySQL(q)
}

// keySQL casts the key column to the subject id type. The column itself is
// bound by keyIdent so that reserved words are quoted.
func (t Target) keySQL(q *bun.SelectQuery) string {
	target := "CHAR"
	if q.DB().Dialect().Name() != dialect.MySQL {
		target = "TEXT"
	}
	return "CAST(?TableAlias.? AS " + target + ")"
}

func (t Target) keyIdent() bun.Ident {
	if t.KeyColumn == "" {
		return bun.Ident("id")
	}
	return bun.Ident(t.KeyColumn)
}

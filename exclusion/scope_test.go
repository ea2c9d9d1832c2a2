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
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

type post struct {
	bun.BaseModel `bun:"table:posts,alias:p"`

	ID    int64 `bun:"id,pk,autoincrement"`
	Title string
}

type slot struct {
	bun.BaseModel `bun:"table:slots,alias:s"`

	Order int64 `bun:"order,pk"`
}

func newScopeDB(t *testing.T, d schema.Dialect) *bun.DB {
	t.Helper()
	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	db := bun.NewDB(sqlDB, d)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestResolveLastScopeWins(t *testing.T) {
	assert.Equal(t, WithoutExcluded(), Resolve())
	assert.Equal(t, OnlyExcluded(), Resolve(WithExcluded(true), OnlyExcluded()))
	assert.Equal(t, WithoutExcluded(), Resolve(OnlyExcluded(), WithExcluded(false)))
	assert.Equal(t, WhereDoesntHaveExclusion(), WhereHasExclusion(true))
	assert.Equal(t, "has_exclusion", WhereHasExclusion(false).String())
}

func TestApplySQLite(t *testing.T) {
	db := newScopeDB(t, sqlitedialect.New())
	target := NewTarget("post")
	base := func() *bun.SelectQuery { return db.NewSelect().Model((*post)(nil)) }

	explicit := `EXISTS (SELECT 1 FROM exclusions AS exs WHERE exs.subject_type = 'post' AND exs.kind = 'exclude' AND exs.subject_id = CAST("p"."id" AS TEXT))`
	wildcard := `EXISTS (SELECT 1 FROM exclusions AS exs WHERE exs.subject_type = 'post' AND exs.kind = 'exclude' AND exs.subject_id = '*')`
	exception := `NOT EXISTS (SELECT 1 FROM exclusions AS exs WHERE exs.subject_type = 'post' AND exs.kind = 'include' AND exs.subject_id = CAST("p"."id" AS TEXT))`

	def := target.Apply(base()).String()
	assert.Contains(t, def, "NOT ("+explicit+" OR ("+wildcard+" AND "+exception+"))")

	only := target.Apply(base(), OnlyExcluded()).String()
	assert.Contains(t, only, "("+explicit+" OR ("+wildcard+" AND "+exception+"))")
	assert.NotContains(t, only, "NOT ("+explicit)

	with := target.Apply(base(), WithExcluded(true)).String()
	assert.NotContains(t, with, "exclusions")

	has := target.Apply(base(), WhereHasExclusion(false)).String()
	assert.Contains(t, has, `EXISTS (SELECT 1 FROM exclusions AS exs WHERE exs.subject_type = 'post' AND exs.subject_id = CAST("p"."id" AS TEXT))`)
	assert.NotContains(t, has, "NOT EXISTS")

	hasnt := target.Apply(base(), WhereDoesntHaveExclusion()).String()
	assert.Contains(t, hasnt, `NOT EXISTS (SELECT 1 FROM exclusions AS exs WHERE exs.subject_type = 'post' AND exs.subject_id = CAST("p"."id" AS TEXT))`)
}

func TestApplyMySQLCastsToChar(t *testing.T) {
	db := newScopeDB(t, mysqldialect.New())
	target := Target{SubjectType: "post", KeyColumn: "id"}

	sql := db.NewSelect().Model((*post)(nil)).Apply(target.Modifier()).String()
	assert.Contains(t, sql, "CAST(`p`.`id` AS CHAR)")
	assert.NotContains(t, sql, "AS TEXT")
}

func TestApplyComposesWithOtherConditions(t *testing.T) {
	db := newScopeDB(t, sqlitedialect.New())
	target := NewTarget("post")

	sql := db.NewSelect().
		Model((*post)(nil)).
		Where("title = ?", "hello").
		Apply(target.Modifier(OnlyExcluded())).
		String()
	assert.Contains(t, sql, `(title = 'hello') AND ((EXISTS`)
}

func TestApplyQuotesKeyColumn(t *testing.T) {
	target := Target{SubjectType: "slot", KeyColumn: "order"}

	sql := newScopeDB(t, sqlitedialect.New()).NewSelect().Model((*slot)(nil)).Apply(target.Modifier()).String()
	assert.Contains(t, sql, `exs.subject_id = CAST("s"."order" AS TEXT)`)
	assert.NotContains(t, sql, `"s".order`)

	sql = newScopeDB(t, mysqldialect.New()).NewSelect().Model((*slot)(nil)).Apply(target.Modifier(WhereHasExclusion(false))).String()
	assert.Contains(t, sql, "exs.subject_id = CAST(`s`.`order` AS CHAR)")

	assert.Equal(t, bun.Ident("id"), Target{SubjectType: "slot"}.keyIdent())
}

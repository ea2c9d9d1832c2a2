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
	"database/sql"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tomoncle/excludable/database"
	"github.com/tomoncle/excludable/exclusion"
	"github.com/tomoncle/excludable/types"
	"github.com/uptrace/bun"
)

type Article struct {
	bun.BaseModel `bun:"table:articles,alias:a"`

	ID    int64  `bun:"id,pk,autoincrement"`
	Title string `bun:"title,notnull"`
}

func (a *Article) SubjectType() string { return "article" }

func (a *Article) SubjectID() string { return strconv.FormatInt(a.ID, 10) }

type Tag struct {
	bun.BaseModel `bun:"table:tags,alias:t"`

	Key  uuid.UUID `bun:"uid,pk,type:varchar(36)"`
	Name string    `bun:"name,notnull"`
}

func (t *Tag) SubjectType() string { return "tag" }

func (t *Tag) SubjectID() string { return t.Key.String() }

// Slot is keyed on a reserved word.
type Slot struct {
	bun.BaseModel `bun:"table:slots,alias:s"`

	Order int64  `bun:"order,pk"`
	Label string `bun:"label,notnull"`
}

func (s *Slot) SubjectType() string { return "slot" }

func (s *Slot) SubjectID() string { return strconv.FormatInt(s.Order, 10) }

func openTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	manager := database.NewDatabaseManager(&database.ConnectionConfig{Type: "sqlite", DBName: "memory:" + name})
	require.NoError(t, manager.Connect(ctx))
	t.Cleanup(func() { _ = manager.Disconnect() })
	require.NoError(t, manager.RunMigrations(ctx))

	db := manager.GetDB()
	for _, model := range []interface{}{(*Article)(nil), (*Tag)(nil), (*Slot)(nil)} {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

// seedArticles saves articles titled a, b, c... with ids 1, 2, 3...
func seedArticles(t *testing.T, svc Service[Article], titles ...string) []*Article {
	t.Helper()
	articles := make([]*Article, len(titles))
	for i, title := range titles {
		articles[i] = &Article{Title: title}
		require.NoError(t, svc.Save(context.Background(), articles[i]))
	}
	return articles
}

func titles(items []*Article) []string {
	out := make([]string, len(items))
	for i, a := range items {
		out[i] = a.Title
	}
	return out
}

func isExcluded(t *testing.T, svc Service[Article], a *Article) bool {
	t.Helper()
	excluded, err := svc.IsExcluded(context.Background(), a)
	require.NoError(t, err)
	return excluded
}

func exclusionRows(t *testing.T, db *bun.DB, subjectType string) int {
	t.Helper()
	n, err := db.NewSelect().Model((*exclusion.Record)(nil)).Where("subject_type = ?", subjectType).Count(context.Background())
	require.NoError(t, err)
	return n
}

func TestExcludeAndInclude(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	arts := seedArticles(t, svc, "a", "b")
	a := arts[0]

	assert.Equal(t, "article", svc.SubjectType())
	assert.False(t, isExcluded(t, svc, a))

	ok, err := svc.Exclude(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, isExcluded(t, svc, a))

	ok, err = svc.Exclude(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, exclusionRows(t, db, "article"))

	ok, err = svc.Include(ctx, a)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, isExcluded(t, svc, a))
	assert.Zero(t, exclusionRows(t, db, "article"))
}

func TestExcludeAllWithException(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	arts := seedArticles(t, svc, "a", "b", "c")
	a, b, c := arts[0], arts[1], arts[2]

	require.NoError(t, svc.ExcludeAll(ctx, b))
	assert.True(t, isExcluded(t, svc, a))
	assert.False(t, isExcluded(t, svc, b))
	assert.True(t, isExcluded(t, svc, c))

	visible, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(visible))

	// An explicit exclusion overrides the exception.
	_, err = svc.Exclude(ctx, b)
	require.NoError(t, err)
	assert.True(t, isExcluded(t, svc, b))

	// Re-running replaces every row of the type.
	require.NoError(t, svc.ExcludeAll(ctx, c.ID))
	assert.True(t, isExcluded(t, svc, b))
	assert.False(t, isExcluded(t, svc, c))
	assert.Equal(t, 2, exclusionRows(t, db, "article"))
}

func TestIncludeAllClearsEverything(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	arts := seedArticles(t, svc, "a", "b", "c")

	require.NoError(t, svc.ExcludeAll(ctx, arts[1]))
	_, err := svc.Exclude(ctx, arts[1])
	require.NoError(t, err)

	require.NoError(t, svc.IncludeAll(ctx))
	for _, a := range arts {
		assert.False(t, isExcluded(t, svc, a))
	}
	assert.Zero(t, exclusionRows(t, db, "article"))

	all, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDefaultFilterAndScopes(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	arts := seedArticles(t, svc, "a", "b")
	a, b := arts[0], arts[1]

	_, err := svc.Exclude(ctx, a)
	require.NoError(t, err)

	def, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(def))

	with, err := svc.All(ctx, exclusion.WithExcluded(true))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles(with))

	reapplied, err := svc.All(ctx, exclusion.WithExcluded(true), exclusion.WithExcluded(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(reapplied))

	only, err := svc.All(ctx, exclusion.OnlyExcluded())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, titles(only))

	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	got, err := svc.Get(ctx, a.ID, exclusion.WithExcluded(true))
	require.NoError(t, err)
	assert.Equal(t, "a", got.Title)
	got, err = svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "b", got.Title)

	count, err := svc.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	count, err = svc.Count(ctx, types.NewQueryFilter("title = ?", "a"), exclusion.WithExcluded(true))
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	listed, err := svc.List(ctx, types.NewQueryFilter("title IN (?)", bun.In([]string{"a", "b"})))
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, titles(listed))
}

func TestWhereHasExclusionIgnoresWildcard(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	arts := seedArticles(t, svc, "a", "b", "c")
	a, b := arts[0], arts[1]

	_, err := svc.Exclude(ctx, a)
	require.NoError(t, err)

	has, err := svc.All(ctx, exclusion.WhereHasExclusion(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, titles(has))

	// ExcludeAll drops the row of a; b gains an exception row.
	require.NoError(t, svc.ExcludeAll(ctx, b))
	_, err = svc.Exclude(ctx, a)
	require.NoError(t, err)

	has, err = svc.All(ctx, exclusion.WhereHasExclusion(false))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, titles(has))

	hasnt, err := svc.All(ctx, exclusion.WhereDoesntHaveExclusion())
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, titles(hasnt))

	ok, err := svc.HasExclusion(ctx, arts[2])
	require.NoError(t, err)
	assert.False(t, ok, "wildcard rows do not count")
}

func TestScopesAreTypeScoped(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	articles := NewServiceWithDB[Article](db)
	tags := NewServiceWithDB[Tag](db)
	seedArticles(t, articles, "a")

	tag := &Tag{Key: uuid.New(), Name: "go"}
	require.NoError(t, tags.Save(ctx, tag))
	require.NoError(t, tags.ExcludeAll(ctx))

	visibleTags, err := tags.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, visibleTags)

	visibleArticles, err := articles.All(ctx)
	require.NoError(t, err)
	assert.Len(t, visibleArticles, 1)

	require.NoError(t, tags.ExcludeAll(ctx, tag.Key))
	visibleTags, err = tags.All(ctx)
	require.NoError(t, err)
	require.Len(t, visibleTags, 1)
	assert.Equal(t, tag.Key, visibleTags[0].Key)
}

func TestPageAndSelectBuilder(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	arts := seedArticles(t, svc, "a", "b", "c", "d", "e")
	_, err := svc.Exclude(ctx, arts[1])
	require.NoError(t, err)

	page, err := svc.Page(ctx, types.NewPageRequest(1, 3, nil))
	require.NoError(t, err)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, []string{"a", "c", "d"}, titles(page.Items))

	page, err = svc.Page(ctx, types.NewPageRequest(2, 3, nil, "id DESC"), exclusion.WithExcluded(true))
	require.NoError(t, err)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, []string{"b", "a"}, titles(page.Items))

	var onlyExcluded []*Article
	q, err := svc.SelectBuilder(exclusion.OnlyExcluded())
	require.NoError(t, err)
	require.NoError(t, q.Model(&onlyExcluded).Scan(ctx))
	assert.Equal(t, []string{"b"}, titles(onlyExcluded))
}

func TestUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	a := seedArticles(t, svc, "a")[0]

	a.Title = "renamed"
	require.NoError(t, svc.Update(ctx, a))
	got, err := svc.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)

	_, err = svc.Exclude(ctx, a)
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID, exclusion.WithExcluded(true))
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.Equal(t, 1, exclusionRows(t, db, "article"), "exclusions outlive their subject")
}

func TestHooksThroughService(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	var notified []string
	svc := NewServiceWithDB[Article](db, exclusion.WithHooks(exclusion.Hooks{
		BeforeExclude: func(ctx context.Context, s exclusion.Subject) bool { return s.SubjectID() != "2" },
		AfterExcluded: func(ctx context.Context, s exclusion.Subject) { notified = append(notified, s.SubjectID()) },
	}))
	arts := seedArticles(t, svc, "a", "b")

	ok, err := svc.Exclude(ctx, arts[1])
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, isExcluded(t, svc, arts[1]))

	ok, err = svc.Exclude(ctx, arts[0])
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = svc.Exclude(ctx, arts[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, notified)
}

func TestZeroIDIsAnIdentifier(t *testing.T) {
	ctx := context.Background()
	svc := NewServiceWithDB[Article](openTestDB(t))

	ok, err := svc.Exclude(ctx, &Article{Title: "draft"})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, isExcluded(t, svc, &Article{}))
}

func TestNewServiceUsesGlobalDB(t *testing.T) {
	ctx := context.Background()
	cfg := database.DefaultConfig()
	cfg.ConnectionConfig.Type = "sqlite"
	cfg.ConnectionConfig.DBName = "memory:global"
	t.Setenv("DB_TYPE", "")
	t.Setenv("DB_NAME", "")

	db, err := database.InitDatabaseWithOptions(ctx, cfg, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.CloseDB() })
	_, err = db.NewCreateTable().Model((*Article)(nil)).IfNotExists().Exec(ctx)
	require.NoError(t, err)

	svc := NewService[Article]()
	arts := seedArticles(t, svc, "a", "b")
	require.NoError(t, svc.ExcludeAll(ctx, arts[0]))

	visible, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, titles(visible))
	assert.True(t, database.GetHealthStatus(ctx).Healthy)
}

func TestExcludeAllWithModelValue(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)
	arts := seedArticles(t, svc, "a", "b")

	require.NoError(t, svc.ExcludeAll(ctx, *arts[1]))
	assert.True(t, isExcluded(t, svc, arts[0]))
	assert.False(t, isExcluded(t, svc, arts[1]))

	records, err := exclusionsOf(t, svc)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2", records[1].SubjectID)

	err = svc.ExcludeAll(ctx, struct{ ID int64 }{ID: 1})
	assert.ErrorIs(t, err, exclusion.ErrInvalidSubject)
	assert.Equal(t, 2, exclusionRows(t, db, "article"), "a rejected call leaves prior state")
}

func exclusionsOf(t *testing.T, svc Service[Article]) ([]*exclusion.Record, error) {
	t.Helper()
	r, err := svc.Resolver()
	require.NoError(t, err)
	return r.Exclusions(context.Background(), svc.SubjectType())
}

func TestNilModelIsInvalid(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	svc := NewServiceWithDB[Article](db)

	_, err := svc.Exclude(ctx, nil)
	assert.ErrorIs(t, err, exclusion.ErrInvalidSubject)
	_, err = svc.Include(ctx, nil)
	assert.ErrorIs(t, err, exclusion.ErrInvalidSubject)
	_, err = svc.IsExcluded(ctx, nil)
	assert.ErrorIs(t, err, exclusion.ErrInvalidSubject)
	_, err = svc.HasExclusion(ctx, nil)
	assert.ErrorIs(t, err, exclusion.ErrInvalidSubject)
	assert.ErrorIs(t, svc.ExcludeAll(ctx, (*Article)(nil)), exclusion.ErrInvalidSubject)
	assert.Zero(t, exclusionRows(t, db, "article"))
}

func TestReservedWordKeyColumn(t *testing.T) {
	ctx := context.Background()
	svc := NewServiceWithDB[Slot](openTestDB(t))
	for i, label := range []string{"a", "b", "c"} {
		require.NoError(t, svc.Save(ctx, &Slot{Order: int64(i + 1), Label: label}))
	}

	_, err := svc.Exclude(ctx, &Slot{Order: 1})
	require.NoError(t, err)
	require.NoError(t, svc.ExcludeAll(ctx, 3))

	visible, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "c", visible[0].Label)

	has, err := svc.List(ctx, nil, exclusion.WhereHasExclusion(false))
	require.NoError(t, err)
	require.Len(t, has, 1)
	assert.Equal(t, int64(3), has[0].Order)

	n, err := svc.Count(ctx, nil, exclusion.OnlyExcluded())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestNewServiceWithoutDatabase(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, database.CloseDB())
	svc := NewService[Article]()

	_, err := svc.All(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.Exclude(ctx, &Article{ID: 1})
	assert.ErrorIs(t, err, ErrNoDatabase)
	assert.ErrorIs(t, svc.ExcludeAll(ctx), ErrNoDatabase)
	_, err = svc.SelectBuilder()
	assert.ErrorIs(t, err, ErrNoDatabase)
	_, err = svc.Resolver()
	assert.ErrorIs(t, err, ErrNoDatabase)
}

func TestNewServiceFollowsReinitializedDB(t *testing.T) {
	ctx := context.Background()
	t.Setenv("DB_TYPE", "")
	t.Setenv("DB_NAME", "")
	t.Cleanup(func() { _ = database.CloseDB() })
	initGlobal := func(name string) *bun.DB {
		cfg := database.DefaultConfig()
		cfg.ConnectionConfig.Type = "sqlite"
		cfg.ConnectionConfig.DBName = "memory:" + name
		db, err := database.InitDatabaseWithOptions(ctx, cfg, true)
		require.NoError(t, err)
		_, err = db.NewCreateTable().Model((*Article)(nil)).IfNotExists().Exec(ctx)
		require.NoError(t, err)
		return db
	}

	first := initGlobal("reinit_first")
	svc := NewService[Article]()
	seedArticles(t, svc, "a")
	_, err := svc.Exclude(ctx, &Article{ID: 1})
	require.NoError(t, err)

	second := initGlobal("reinit_second")
	require.NotSame(t, first, second)
	seedArticles(t, svc, "x", "y")

	visible, err := svc.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, titles(visible), "the exclusion of id 1 lived in the first database")

	excluded, err := svc.IsExcluded(ctx, &Article{ID: 1})
	require.NoError(t, err)
	assert.False(t, excluded)
	assert.Equal(t, 0, exclusionRows(t, second, "article"))

	require.NoError(t, database.CloseDB())
	_, err = svc.All(ctx)
	assert.ErrorIs(t, err, ErrNoDatabase)
}

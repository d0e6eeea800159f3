//go:build integration
// +build integration

package repository

import (
	"context"
	"database/sql"
	"os"
	"strconv"
	"testing"

	"whois/internal/config"
	"whois/internal/database"
	"whois/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

// 获取测试数据库连接，不可用时跳过
func getTestDB(t *testing.T) *sql.DB {
	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "whois_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	db, err := database.NewPostgresDB(cfg)
	if err != nil {
		t.Skipf("Skipping integration test: cannot connect to database: %v", err)
		return nil
	}
	if err := database.EnsureSchema(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to ensure schema: %v", err)
	}
	return db
}

func testLogin(prefix string) string {
	return prefix + "-" + uuid.NewString()[:8]
}

func TestPostgresDirectory_PersonLifecycle(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresDirectoryRepository(db)
	ctx := context.Background()
	login := testLogin("life")

	_, err := repo.FindPersonID(ctx, login)
	assert.ErrorIs(t, err, ErrNotFound)

	id, err := repo.EnsurePerson(ctx, login)
	require.NoError(t, err)
	again, err := repo.EnsurePerson(ctx, login)
	require.NoError(t, err)
	assert.Equal(t, id, again)

	surname := "Smith"
	require.NoError(t, repo.WriteScalar(ctx, id, domain.ScalarSurname, &surname))
	require.NoError(t, repo.ReplaceForenames(ctx, id, []string{"Ann", "Marie"}))
	require.NoError(t, repo.ReplaceSet(ctx, id, domain.RelationPhone, []string{"123"}))
	require.NoError(t, repo.ReplaceSet(ctx, id, domain.RelationPhone, []string{"123"}))
	require.NoError(t, repo.ReplaceSet(ctx, id, domain.RelationEmail, []string{login + "@example.com"}))

	got, err := repo.ReadScalar(ctx, id, domain.ScalarSurname)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Smith", *got)

	title, err := repo.ReadScalar(ctx, id, domain.ScalarTitle)
	require.NoError(t, err)
	assert.Nil(t, title)

	names, err := repo.ReadForenames(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ann", "Marie"}, names)

	phones, err := repo.ReadSet(ctx, id, domain.RelationPhone)
	require.NoError(t, err)
	assert.Equal(t, []string{"123"}, phones)

	deleted, err := repo.DeleteLogin(ctx, login)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, err = repo.FindPersonID(ctx, login)
	assert.ErrorIs(t, err, ErrNotFound)

	var links int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM user_forename WHERE user_id = $1)
		      + (SELECT COUNT(*) FROM user_phone WHERE user_id = $1)
		      + (SELECT COUNT(*) FROM user_email WHERE user_id = $1)`, id).Scan(&links))
	assert.Zero(t, links)

	var accounts int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM login_account WHERE login_id = $1`, login).Scan(&accounts))
	assert.Zero(t, accounts)
}

func TestPostgresDirectory_EnsureAndDeleteConcurrent(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresDirectoryRepository(db)
	ctx := context.Background()
	login := testLogin("race")

	// 并发的创建与删除都必须成功，结束后登记与绑定保持一致
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		g.Go(func() error {
			_, err := repo.EnsurePerson(gctx, login)
			return err
		})
		g.Go(func() error {
			_, err := repo.DeleteLogin(gctx, login)
			return err
		})
	}
	require.NoError(t, g.Wait())

	var accounts, bindings int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT (SELECT COUNT(*) FROM login_account WHERE login_id = $1),
		        (SELECT COUNT(*) FROM user_login WHERE login_id = $1)`, login).Scan(&accounts, &bindings))
	assert.Equal(t, accounts, bindings)

	_, err := repo.DeleteLogin(ctx, login)
	require.NoError(t, err)
}

func TestPostgresDirectory_SharedLocation(t *testing.T) {
	db := getTestDB(t)
	if db == nil {
		return
	}
	defer db.Close()

	repo := NewPostgresDirectoryRepository(db)
	ctx := context.Background()
	place := testLogin("place")

	// 并发 get-or-create 同一个新名称只产生一行
	ids := make([]int64, 8)
	g, gctx := errgroup.WithContext(ctx)
	for i := range ids {
		i := i
		g.Go(func() error {
			id, err := repo.GetOrCreateReference(gctx, domain.ReferenceLocation, place)
			ids[i] = id
			return err
		})
	}
	require.NoError(t, g.Wait())
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}

	a, err := repo.EnsurePerson(ctx, testLogin("a"))
	require.NoError(t, err)
	b, err := repo.EnsurePerson(ctx, testLogin("b"))
	require.NoError(t, err)
	require.NoError(t, repo.AssignLocation(ctx, a, ids[0]))
	require.NoError(t, repo.AssignLocation(ctx, b, ids[0]))

	locA, err := repo.ReadLocation(ctx, a)
	require.NoError(t, err)
	require.NotNil(t, locA)
	assert.Equal(t, place, *locA)

	var count int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM location WHERE location_description = $1`, place).Scan(&count))
	assert.Equal(t, 1, count)
}

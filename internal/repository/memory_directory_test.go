package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"whois/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDirectory_EnsurePersonIdempotent(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()

	_, err := repo.FindPersonID(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	id1, err := repo.EnsurePerson(ctx, "alice")
	require.NoError(t, err)
	id2, err := repo.EnsurePerson(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	stats := repo.Stats()
	assert.Equal(t, 1, stats.Persons)
	assert.Equal(t, 1, stats.Bindings)
	assert.Equal(t, 1, stats.Accounts)
}

func TestMemoryDirectory_EnsurePersonConcurrent(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.EnsurePerson(ctx, "alice")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.Stats().Persons)
}

func TestMemoryDirectory_ScalarsAndForenames(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()
	id, _ := repo.EnsurePerson(ctx, "alice")

	title := "Dr"
	require.NoError(t, repo.WriteScalar(ctx, id, domain.ScalarTitle, &title))
	title = "mutated"

	got, err := repo.ReadScalar(ctx, id, domain.ScalarTitle)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Dr", *got)

	surname, err := repo.ReadScalar(ctx, id, domain.ScalarSurname)
	require.NoError(t, err)
	assert.Nil(t, surname)

	require.NoError(t, repo.ReplaceForenames(ctx, id, []string{"Ann", "Marie"}))
	require.NoError(t, repo.ReplaceForenames(ctx, id, []string{"Jo"}))
	names, err := repo.ReadForenames(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"Jo"}, names)
}

func TestMemoryDirectory_PooledSets(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()
	a, _ := repo.EnsurePerson(ctx, "a")
	b, _ := repo.EnsurePerson(ctx, "b")

	require.NoError(t, repo.ReplaceSet(ctx, a, domain.RelationPhone, []string{"123"}))
	require.NoError(t, repo.ReplaceSet(ctx, a, domain.RelationPhone, []string{"123"}))
	require.NoError(t, repo.ReplaceSet(ctx, b, domain.RelationPhone, []string{"123"}))

	phones, err := repo.ReadSet(ctx, a, domain.RelationPhone)
	require.NoError(t, err)
	assert.Equal(t, []string{"123"}, phones)
	assert.Equal(t, 1, repo.Stats().Phones)

	require.NoError(t, repo.ReplaceSet(ctx, a, domain.RelationPhone, nil))
	phones, err = repo.ReadSet(ctx, a, domain.RelationPhone)
	require.NoError(t, err)
	assert.Empty(t, phones)

	assert.Error(t, repo.ReplaceSet(ctx, a, domain.RelationPosition, []string{"x"}))
}

func TestMemoryDirectory_ReferencesShared(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()
	a, _ := repo.EnsurePerson(ctx, "a")
	b, _ := repo.EnsurePerson(ctx, "b")

	l1, err := repo.GetOrCreateReference(ctx, domain.ReferenceLocation, "Paris")
	require.NoError(t, err)
	l2, err := repo.GetOrCreateReference(ctx, domain.ReferenceLocation, "Paris")
	require.NoError(t, err)
	assert.Equal(t, l1, l2)

	require.NoError(t, repo.AssignLocation(ctx, a, l1))
	require.NoError(t, repo.AssignLocation(ctx, b, l2))
	la, _ := repo.LocationIDOf(a)
	lb, _ := repo.LocationIDOf(b)
	assert.Equal(t, la, lb)
	assert.Equal(t, 1, repo.Stats().Locations)

	// 地点区分大小写
	l3, _ := repo.GetOrCreateReference(ctx, domain.ReferenceLocation, "paris")
	assert.NotEqual(t, l1, l3)

	assert.Error(t, repo.AssignLocation(ctx, a, 999))
}

func TestMemoryDirectory_Positions(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()
	a, _ := repo.EnsurePerson(ctx, "a")

	p1, _ := repo.GetOrCreateReference(ctx, domain.ReferencePosition, "Lecturer")
	p2, _ := repo.GetOrCreateReference(ctx, domain.ReferencePosition, "Dean")

	require.NoError(t, repo.ReplacePositions(ctx, a, []int64{p1}))
	require.NoError(t, repo.ReplacePositions(ctx, a, []int64{p2}))

	positions, err := repo.ReadSet(ctx, a, domain.RelationPosition)
	require.NoError(t, err)
	assert.Equal(t, []string{"Dean"}, positions)
	// 旧职位保留
	assert.Equal(t, 2, repo.Stats().Positions)
}

func TestMemoryDirectory_Delete(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()
	id, _ := repo.EnsurePerson(ctx, "alice")
	loc, _ := repo.GetOrCreateReference(ctx, domain.ReferenceLocation, "London")
	require.NoError(t, repo.AssignLocation(ctx, id, loc))

	deleted, err := repo.DeleteLogin(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, deleted)
	assert.False(t, repo.HasAccount("alice"))

	_, err = repo.FindPersonID(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.ReadLocation(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	stats := repo.Stats()
	assert.Equal(t, 0, stats.Persons)
	assert.Equal(t, 0, stats.Bindings)
	assert.Equal(t, 0, stats.Accounts)
	assert.Equal(t, 1, stats.Locations)
	assert.False(t, repo.HasAccount("alice"))
}

func TestMemoryDirectory_NewIDsAreDistinct(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		id, err := repo.EnsurePerson(ctx, fmt.Sprintf("user%d", i))
		require.NoError(t, err)
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestMemoryDirectory_DeleteLoginAccountOnly(t *testing.T) {
	repo := NewMemoryDirectoryRepository()
	ctx := context.Background()
	repo.RegisterAccount("ghost")

	deleted, err := repo.DeleteLogin(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.False(t, repo.HasAccount("ghost"))

	deleted, err = repo.DeleteLogin(ctx, "ghost")
	require.NoError(t, err)
	assert.False(t, deleted)
}

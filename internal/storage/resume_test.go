package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockHashClient struct {
	mock.Mock
}

func (m *MockHashClient) HGet(ctx context.Context, key, field string) *redis.StringCmd {
	args := m.Called(ctx, key, field)
	cmd := redis.NewStringCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockHashClient) HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	args := m.Called(ctx, key, values)
	cmd := redis.NewIntCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func (m *MockHashClient) HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd {
	args := m.Called(ctx, key, fields)
	cmd := redis.NewIntCmd(ctx)
	cmd.SetErr(args.Error(0))
	return cmd
}

func TestRedisResumeStore(t *testing.T) {
	ctx := context.Background()
	client := new(MockHashClient)
	store := NewRedisResumeStore(client, "harvester:resume")

	client.On("HGet", ctx, "harvester:resume", "gamis").Return("4", nil)
	client.On("HGet", ctx, "harvester:resume", "mukena").Return("", redis.Nil)
	client.On("HGet", ctx, "harvester:resume", "broken").Return("x", nil)
	client.On("HSet", ctx, "harvester:resume", []interface{}{"gamis", 5}).Return(nil)
	client.On("HDel", ctx, "harvester:resume", []string{"gamis"}).Return(nil)

	page, ok, err := store.Get(ctx, "gamis")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 4, page)

	_, ok, err = store.Get(ctx, "mukena")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = store.Get(ctx, "broken")
	assert.Error(t, err)

	require.NoError(t, store.Set(ctx, "gamis", 5))
	require.NoError(t, store.Clear(ctx, "gamis"))

	client.AssertExpectations(t)
}

func TestRedisResumeStoreErrors(t *testing.T) {
	ctx := context.Background()
	client := new(MockHashClient)
	store := NewRedisResumeStore(client, "k")

	client.On("HGet", ctx, "k", "t").Return("", errors.New("connection refused"))
	client.On("HSet", ctx, "k", []interface{}{"t", 1}).Return(errors.New("connection refused"))

	_, _, err := store.Get(ctx, "t")
	assert.ErrorContains(t, err, "connection refused")
	assert.Error(t, store.Set(ctx, "t", 1))
}

func TestMemoryResumeStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryResumeStore()

	_, ok, err := store.Get(ctx, "gamis")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "gamis", 3))
	page, ok, _ := store.Get(ctx, "gamis")
	assert.True(t, ok)
	assert.Equal(t, 3, page)

	require.NoError(t, store.Clear(ctx, "gamis"))
	_, ok, _ = store.Get(ctx, "gamis")
	assert.False(t, ok)
}

func TestFileResumeStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "resume.json")

	store, err := NewFileResumeStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "gamis", 5))
	require.NoError(t, store.Set(ctx, "mukena", 2))
	require.NoError(t, store.Clear(ctx, "mukena"))

	reopened, err := NewFileResumeStore(path)
	require.NoError(t, err)

	page, ok, err := reopened.Get(ctx, "gamis")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, page)

	_, ok, err = reopened.Get(ctx, "mukena")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, reopened.Clear(ctx, "unknown"))
}

func TestFileResumeStoreErrors(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	corrupt := filepath.Join(dir, "corrupt.json")
	require.NoError(t, os.WriteFile(corrupt, []byte("[1, 2]"), 0o644))
	_, err := NewFileResumeStore(corrupt)
	assert.Error(t, err)

	blocker := filepath.Join(dir, "blocker")
	store, err := NewFileResumeStore(filepath.Join(blocker, "resume.json"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	assert.Error(t, store.Set(ctx, "gamis", 3))
	_, ok, _ := store.Get(ctx, "gamis")
	assert.False(t, ok, "failed write is not visible")
}

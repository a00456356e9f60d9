package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ResumeStore remembers the page a target should restart from.
type ResumeStore interface {
	Get(ctx context.Context, target string) (page int, ok bool, err error)
	Set(ctx context.Context, target string, page int) error
	Clear(ctx context.Context, target string) error
}

// HashClient is the subset of the Redis client the resume store uses.
type HashClient interface {
	HGet(ctx context.Context, key, field string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HDel(ctx context.Context, key string, fields ...string) *redis.IntCmd
}

type RedisResumeStore struct {
	client HashClient
	key    string
}

func NewRedisResumeStore(client HashClient, key string) *RedisResumeStore {
	return &RedisResumeStore{client: client, key: key}
}

func (s *RedisResumeStore) Get(ctx context.Context, target string) (int, bool, error) {
	val, err := s.client.HGet(ctx, s.key, target).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read resume cursor: %w", err)
	}

	page, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt resume cursor %q for %s: %w", val, target, err)
	}
	return page, true, nil
}

func (s *RedisResumeStore) Set(ctx context.Context, target string, page int) error {
	if err := s.client.HSet(ctx, s.key, target, page).Err(); err != nil {
		return fmt.Errorf("failed to store resume cursor: %w", err)
	}
	return nil
}

func (s *RedisResumeStore) Clear(ctx context.Context, target string) error {
	if err := s.client.HDel(ctx, s.key, target).Err(); err != nil {
		return fmt.Errorf("failed to clear resume cursor: %w", err)
	}
	return nil
}

type MemoryResumeStore struct {
	mu    sync.Mutex
	pages map[string]int
}

func NewMemoryResumeStore() *MemoryResumeStore {
	return &MemoryResumeStore{pages: make(map[string]int)}
}

func (s *MemoryResumeStore) Get(_ context.Context, target string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[target]
	return page, ok, nil
}

func (s *MemoryResumeStore) Set(_ context.Context, target string, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[target] = page
	return nil
}

func (s *MemoryResumeStore) Clear(_ context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, target)
	return nil
}

// FileResumeStore keeps cursors in a JSON object on disk, rewritten on
// every change.
type FileResumeStore struct {
	mu       sync.Mutex
	pages    map[string]int
	filename string
}

func NewFileResumeStore(filename string) (*FileResumeStore, error) {
	s := &FileResumeStore{pages: make(map[string]int), filename: filename}

	data, err := os.ReadFile(filename)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resume file: %w", err)
	}
	if err := json.Unmarshal(data, &s.pages); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	if s.pages == nil {
		s.pages = make(map[string]int)
	}
	return s, nil
}

func (s *FileResumeStore) Get(_ context.Context, target string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[target]
	return page, ok, nil
}

func (s *FileResumeStore) Set(_ context.Context, target string, page int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.pages[target]
	s.pages[target] = page
	if err := s.save(); err != nil {
		s.restore(target, prev, had)
		return fmt.Errorf("failed to store resume cursor: %w", err)
	}
	return nil
}

func (s *FileResumeStore) Clear(_ context.Context, target string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.pages[target]
	if !had {
		return nil
	}
	delete(s.pages, target)
	if err := s.save(); err != nil {
		s.restore(target, prev, had)
		return fmt.Errorf("failed to clear resume cursor: %w", err)
	}
	return nil
}

func (s *FileResumeStore) restore(target string, page int, had bool) {
	if had {
		s.pages[target] = page
		return
	}
	delete(s.pages, target)
}

func (s *FileResumeStore) save() error {
	data, err := json.MarshalIndent(s.pages, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.filename), 0o755); err != nil {
		return err
	}

	tmpFile := s.filename + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpFile, s.filename)
}

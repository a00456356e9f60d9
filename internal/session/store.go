package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var ErrNoSession = errors.New("no stored session")

// WIB is the marketplace's local zone; cookie expiry times are stored in it.
var WIB = time.FixedZone("WIB", 7*60*60)

// Session is the persisted browser state of one identity. The JSON layout
// is the one net/http.Cookie marshals to.
type Session struct {
	Cookies   []*http.Cookie `json:"Cookies"`
	UserAgent string         `json:"Ua"`
}

// Store keeps one session file per identity in a directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path(identity string) string {
	return filepath.Join(s.dir, fileName(identity)+".json")
}

func (s *Store) Load(identity string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(identity))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session for %s: %w", identity, err)
	}
	return &sess, nil
}

func (s *Store) Save(identity string, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range sess.Cookies {
		if !c.Expires.IsZero() {
			c.Expires = c.Expires.In(WIB)
		}
	}

	data, err := json.MarshalIndent(sess, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	path := s.Path(identity)
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	return os.Rename(tmpFile, path)
}

// fileName keeps identities such as e-mail addresses usable as file names.
func fileName(identity string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	return r.Replace(strings.TrimSpace(identity))
}

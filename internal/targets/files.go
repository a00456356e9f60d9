package targets

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/maltedev/marketplace-harvester/internal/models"
)

const (
	SampleCredentials = "username|password"
	SampleTargets     = "https://shopee.co.id/Tas-Laptop-cat.11042642.11042645?facet=100336\ngamis"
)

// List is the target list file: one URL or free-text query per line.
type List struct {
	mu   sync.Mutex
	path string
}

func NewList(path string) *List {
	return &List{path: path}
}

// Load returns the targets in file order, skipping blank lines.
func (l *List) Load() ([]models.Target, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := readLines(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read target list: %w", err)
	}

	targets := make([]models.Target, 0, len(lines))
	for _, line := range lines {
		targets = append(targets, models.NewTarget(line))
	}
	return targets, nil
}

// Remove drops every line equal to raw from the file.
func (l *List) Remove(raw string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	lines, err := readLines(l.path)
	if err != nil {
		return fmt.Errorf("failed to read target list: %w", err)
	}

	raw = strings.TrimSpace(raw)
	kept := lines[:0]
	for _, line := range lines {
		if line != raw {
			kept = append(kept, line)
		}
	}

	return writeLines(l.path, kept)
}

// LoadCredentials reads "identity|secret" lines. Fields after the secret are
// ignored.
func LoadCredentials(path string) ([]models.Credential, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	creds := make([]models.Credential, 0, len(lines))
	for i, line := range lines {
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			return nil, fmt.Errorf("credentials line %d: expected identity|secret", i+1)
		}
		identity := strings.TrimSpace(parts[0])
		secret := strings.TrimSpace(parts[1])
		if identity == "" || secret == "" {
			return nil, fmt.Errorf("credentials line %d: expected identity|secret", i+1)
		}
		creds = append(creds, models.Credential{Identity: identity, Secret: secret})
	}
	return creds, nil
}

// EnsureFiles writes sample credential and target files when missing and
// reports whether both already existed.
func EnsureFiles(credentialsPath, targetsPath string) (bool, error) {
	existed := true
	for path, sample := range map[string]string{
		credentialsPath: SampleCredentials,
		targetsPath:     SampleTargets,
	} {
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		existed = false
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return false, fmt.Errorf("failed to create %s: %w", dir, err)
			}
		}
		if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
			return false, fmt.Errorf("failed to write sample %s: %w", path, err)
		}
	}
	return existed, nil
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, sc.Err()
}

func writeLines(path string, lines []string) error {
	data := strings.Join(lines, "\n")

	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, []byte(data), 0o644); err != nil {
		return err
	}

	return os.Rename(tmpFile, path)
}

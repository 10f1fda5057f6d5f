package migrate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const versionLayout = "20060102150405"

var unsafeNameRe = regexp.MustCompile(`[^a-z0-9]+`)

const migrationStub = `-- +goose Up
-- %[1]s: statements must run on both sqlite and postgres

-- +goose Down
-- %[1]s: undo the statements above
`

// CreateSQLMigration writes an empty goose migration named after name into
// dir and returns its path. The version is the current UTC time, bumped past
// the newest version already in dir so two files never share one.
func CreateSQLMigration(dir string, name string) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("migrations dir is required")
	}
	slug := strings.Trim(unsafeNameRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create migrations dir %s: %w", dir, err)
	}

	version, err := nextVersion(dir, time.Now().UTC())
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, version+"_"+slug+".sql")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration %s: %w", path, err)
	}
	if _, err := fmt.Fprintf(f, migrationStub, slug); err != nil {
		f.Close()
		return "", fmt.Errorf("write migration %s: %w", path, err)
	}
	return path, f.Close()
}

func nextVersion(dir string, now time.Time) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	candidate := now
	for _, e := range entries {
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		existing, err := time.Parse(versionLayout, m[1])
		if err != nil {
			continue
		}
		if !existing.Before(candidate) {
			candidate = existing.Add(time.Second)
		}
	}
	return candidate.Format(versionLayout), nil
}

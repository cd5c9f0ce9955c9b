package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/alucardeht/fstspell/internal/errors"
	"github.com/alucardeht/fstspell/internal/locale"
)

type SQLite struct {
	db   *sql.DB
	path string
}

var _ Store = (*SQLite)(nil)

func OpenSQLite(dbPath string) (*SQLite, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite store: empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &SQLite{db: db, path: dbPath}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("sqlite store opened", "path", dbPath)
	return s, nil
}

func (s *SQLite) initSchema() error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if _, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(`SELECT MAX(version) FROM schema_version`).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version > SchemaVersion {
		return errors.E(errors.UnsupportedVersion, "open_store", s.path,
			fmt.Sprintf("database schema %d is newer than supported %d", version, SchemaVersion))
	}
	return nil
}

func (s *SQLite) Path() string {
	return s.path
}

func (s *SQLite) Learn(ctx context.Context, tag locale.Tag, word string) error {
	if err := validate("learn", tag, word); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO learned_words (locale, word) VALUES (?, ?)`, string(tag), word)
	return err
}

func (s *SQLite) Unlearn(ctx context.Context, tag locale.Tag, word string) error {
	if err := validate("unlearn", tag, word); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM learned_words WHERE locale = ? AND word = ?`, string(tag), word)
	return err
}

func (s *SQLite) IsLearned(ctx context.Context, tag locale.Tag, word string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM learned_words WHERE locale = ? AND word = ?)`, string(tag), word).Scan(&exists)
	return exists, err
}

func (s *SQLite) Learned(ctx context.Context, tag locale.Tag) ([]string, error) {
	return s.strings(ctx, `SELECT word FROM learned_words WHERE locale = ? ORDER BY word`, string(tag))
}

func (s *SQLite) IgnoreRule(ctx context.Context, tag locale.Tag, ruleID string) error {
	if err := validate("ignore_rule", tag, ruleID); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO ignored_rules (locale, rule_id) VALUES (?, ?)`, string(tag), ruleID)
	return err
}

func (s *SQLite) ResetIgnoredRules(ctx context.Context, tag locale.Tag) error {
	if tag == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM ignored_rules`)
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM ignored_rules WHERE locale = ?`, string(tag))
	return err
}

func (s *SQLite) IgnoredRules(ctx context.Context, tag locale.Tag) ([]string, error) {
	return s.strings(ctx, `SELECT rule_id FROM ignored_rules WHERE locale = ? ORDER BY rule_id`, string(tag))
}

func (s *SQLite) strings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

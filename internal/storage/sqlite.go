package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"floatai/pkg/logger"

	_ "modernc.org/sqlite"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	data TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (collection, id)
);
`

// sqliteBackend 所有集合保存在同一张 records 表中
type sqliteBackend struct {
	path string
	mu   sync.RWMutex
	db   *sql.DB
}

// NewSQLiteStorage 在 Init 时打开 path 处的数据库文件，测试可使用 ":memory:"
func NewSQLiteStorage(path string) *Store {
	return newStore(&sqliteBackend{path: path})
}

func (s *sqliteBackend) init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	// 单连接：":memory:" 只对应一个数据库，写入串行
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(recordsSchema); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	s.db = db

	logger.Infof("SQLite storage initialized at %s", s.path)
	return nil
}

func (s *sqliteBackend) conn() (*sql.DB, error) {
	if s.db == nil {
		return nil, fmt.Errorf("%w: database not open", ErrStorageInit)
	}
	return s.db, nil
}

func (s *sqliteBackend) insert(collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.Exec(
		`INSERT INTO records (collection, id, data) VALUES (?, ?, ?) ON CONFLICT (collection, id) DO NOTHING`,
		collection, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return expectOne(res, ErrAlreadyExists)
}

func (s *sqliteBackend) replace(collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.Exec(
		`UPDATE records SET data = ?, updated_at = CURRENT_TIMESTAMP WHERE collection = ? AND id = ?`,
		string(data), collection, id,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return expectOne(res, ErrNotFound)
}

func (s *sqliteBackend) upsert(collection, id string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}
	_, err = db.Exec(
		`INSERT INTO records (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		collection, id, string(data),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (s *sqliteBackend) fetch(collection, id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	var data string
	err = db.QueryRow(`SELECT data FROM records WHERE collection = ? AND id = ?`, collection, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return []byte(data), nil
}

func (s *sqliteBackend) fetchAll(collection string) ([][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.Query(`SELECT data FROM records WHERE collection = ?`, collection)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	defer rows.Close()

	var out [][]byte
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		out = append(out, []byte(data))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return out, nil
}

func (s *sqliteBackend) remove(collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}
	res, err := db.Exec(`DELETE FROM records WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return expectOne(res, ErrNotFound)
}

func (s *sqliteBackend) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// backup 在数据库文件旁写入一致性副本
func (s *sqliteBackend) backup() error {
	if s.path == ":memory:" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.conn()
	if err != nil {
		return err
	}
	dir := filepath.Join(filepath.Dir(s.path), "backup")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	target := filepath.Join(dir, fmt.Sprintf("%s_%d.db", base, time.Now().UnixNano()))
	if _, err := db.Exec(`VACUUM INTO ?`, target); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", target)
	return nil
}

func expectOne(res sql.Result, none error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if n == 0 {
		return none
	}
	return nil
}

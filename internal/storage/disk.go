package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"floatai/pkg/logger"
)

var diskCollections = []string{
	collectionSettings,
	collectionModels,
	collectionPrompts,
	collectionChats,
}

// diskBackend 每条记录一个JSON文件，位于 dataDir/<collection>/ 下，
// Init 时全部加载进缓存。
type diskBackend struct {
	dataDir string
	mu      sync.RWMutex
	cache   map[string]map[string][]byte
}

func NewDiskStorage(dataDir string) *Store {
	return newStore(&diskBackend{
		dataDir: dataDir,
		cache:   make(map[string]map[string][]byte),
	})
}

func (d *diskBackend) init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	for _, c := range diskCollections {
		if err := d.loadCollection(c); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	logger.Infof("Disk storage initialized at %s", d.dataDir)
	return nil
}

func (d *diskBackend) createDirectories() error {
	dirs := []string{d.dataDir, filepath.Join(d.dataDir, "backup")}
	for _, c := range diskCollections {
		dirs = append(dirs, filepath.Join(d.dataDir, c))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (d *diskBackend) loadCollection(collection string) error {
	dir := filepath.Join(d.dataDir, collection)
	files, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	b := make(map[string][]byte, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		b[strings.TrimSuffix(name, ".json")] = data
	}
	d.cache[collection] = b
	return nil
}

func (d *diskBackend) path(collection, id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("%w: invalid id %q", ErrInvalidData, id)
	}
	return filepath.Join(d.dataDir, collection, id+".json"), nil
}

// writeFile 原子替换记录文件
func (d *diskBackend) writeFile(collection, id string, data []byte) error {
	path, err := d.path(collection, id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *diskBackend) bucket(collection string) map[string][]byte {
	b, ok := d.cache[collection]
	if !ok {
		b = make(map[string][]byte)
		d.cache[collection] = b
	}
	return b
}

func (d *diskBackend) insert(collection, id string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.bucket(collection)
	if _, exists := b[id]; exists {
		return ErrAlreadyExists
	}
	if err := d.writeFile(collection, id, data); err != nil {
		return err
	}
	b[id] = clone(data)
	return nil
}

func (d *diskBackend) replace(collection, id string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	b := d.bucket(collection)
	if _, exists := b[id]; !exists {
		return ErrNotFound
	}
	if err := d.writeFile(collection, id, data); err != nil {
		return err
	}
	b[id] = clone(data)
	return nil
}

func (d *diskBackend) upsert(collection, id string, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.writeFile(collection, id, data); err != nil {
		return err
	}
	d.bucket(collection)[id] = clone(data)
	return nil
}

func (d *diskBackend) fetch(collection, id string) ([]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	data, exists := d.cache[collection][id]
	if !exists {
		return nil, ErrNotFound
	}
	return clone(data), nil
}

func (d *diskBackend) fetchAll(collection string) ([][]byte, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([][]byte, 0, len(d.cache[collection]))
	for _, data := range d.cache[collection] {
		out = append(out, clone(data))
	}
	return out, nil
}

func (d *diskBackend) remove(collection, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.cache[collection][id]; !exists {
		return ErrNotFound
	}
	path, err := d.path(collection, id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	delete(d.cache[collection], id)
	return nil
}

func (d *diskBackend) close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]map[string][]byte)
	return nil
}

// backup 把所有集合复制到 dataDir/backup/backup_<unix>
func (d *diskBackend) backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", time.Now().UnixNano()))
	for _, c := range diskCollections {
		srcDir := filepath.Join(d.dataDir, c)
		dstDir := filepath.Join(backupDir, c)
		if err := os.MkdirAll(dstDir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
		if err := copyDir(srcDir, dstDir); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(src, file.Name()))
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dst, file.Name()), data, 0644); err != nil {
			return err
		}
	}
	return nil
}

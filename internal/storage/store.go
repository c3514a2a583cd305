package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"floatai/internal/model"
)

const (
	collectionSettings = "settings"
	collectionModels   = "models"
	collectionPrompts  = "prompts"
	collectionChats    = "chats"
)

// Store 基于同一后端的各类记录集合
type Store struct {
	b        backend
	settings *settingsKV
	models   *docCollection[model.ModelConfig]
	prompts  *docCollection[model.Prompt]
	chats    *docCollection[model.ChatSession]
}

func newStore(b backend) *Store {
	return &Store{
		b:        b,
		settings: &settingsKV{b: b},
		models:   &docCollection[model.ModelConfig]{b: b, name: collectionModels},
		prompts:  &docCollection[model.Prompt]{b: b, name: collectionPrompts},
		chats:    &docCollection[model.ChatSession]{b: b, name: collectionChats},
	}
}

func (s *Store) Settings() KV                          { return s.settings }
func (s *Store) Models() Collection[model.ModelConfig] { return s.models }
func (s *Store) Prompts() Collection[model.Prompt]     { return s.prompts }
func (s *Store) Chats() Collection[model.ChatSession]  { return s.chats }

func (s *Store) Init() error   { return s.b.init() }
func (s *Store) Close() error  { return s.b.close() }
func (s *Store) Backup() error { return s.b.backup() }

// New 按 typ 创建存储："memory"、"disk" 或 "sqlite"。
// location 对 disk 是数据目录，对 sqlite 是数据库文件。
func New(typ, location string) (*Store, error) {
	switch typ {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "disk":
		return NewDiskStorage(location), nil
	case "sqlite":
		return NewSQLiteStorage(location), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage type %q", ErrStorageInit, typ)
	}
}

type docCollection[T Record] struct {
	b    backend
	name string
}

func (c *docCollection[T]) encode(rec T) (string, []byte, error) {
	id := rec.RecordID()
	if id == "" {
		return "", nil, fmt.Errorf("%w: %s record without id", ErrInvalidData, c.name)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return id, data, nil
}

func (c *docCollection[T]) decode(data []byte) (T, error) {
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return rec, nil
}

func (c *docCollection[T]) Create(rec T) error {
	id, data, err := c.encode(rec)
	if err != nil {
		return err
	}
	return c.b.insert(c.name, id, data)
}

func (c *docCollection[T]) Get(id string) (T, error) {
	data, err := c.b.fetch(c.name, id)
	if err != nil {
		var zero T
		return zero, err
	}
	return c.decode(data)
}

// List 按创建时间升序返回，时间相同按ID排序
func (c *docCollection[T]) List() ([]T, error) {
	docs, err := c.b.fetchAll(c.name)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, data := range docs {
		rec, err := c.decode(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].RecordTime(), out[j].RecordTime()
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i].RecordID() < out[j].RecordID()
	})
	return out, nil
}

func (c *docCollection[T]) Update(rec T) error {
	id, data, err := c.encode(rec)
	if err != nil {
		return err
	}
	return c.b.replace(c.name, id, data)
}

func (c *docCollection[T]) Delete(id string) error {
	return c.b.remove(c.name, id)
}

type setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type settingsKV struct {
	b backend
}

func (s *settingsKV) Get(key string) (string, error) {
	data, err := s.b.fetch(collectionSettings, key)
	if err != nil {
		return "", err
	}
	var st setting
	if err := json.Unmarshal(data, &st); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return st.Value, nil
}

func (s *settingsKV) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("%w: empty setting key", ErrInvalidData)
	}
	data, err := json.Marshal(setting{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return s.b.upsert(collectionSettings, key, data)
}

func (s *settingsKV) All() (map[string]string, error) {
	docs, err := s.b.fetchAll(collectionSettings)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(docs))
	for _, data := range docs {
		var st setting
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		out[st.Key] = st.Value
	}
	return out, nil
}

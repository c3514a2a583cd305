package storage

import (
	"time"

	"floatai/internal/model"
)

// Record 可存入 Collection 的记录
type Record interface {
	RecordID() string
	RecordTime() time.Time
}

// Collection 按ID增删改查的记录集合
type Collection[T Record] interface {
	Create(rec T) error
	Get(id string) (T, error)
	List() ([]T, error)
	Update(rec T) error
	Delete(id string) error
}

// KV 设置项存储
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	All() (map[string]string, error)
}

type Storage interface {
	// 配置与记录
	Settings() KV
	Models() Collection[model.ModelConfig]
	Prompts() Collection[model.Prompt]
	Chats() Collection[model.ChatSession]

	// 存储管理
	Init() error
	Close() error
	Backup() error
}

// backend 按集合保存原始JSON文档
type backend interface {
	insert(collection, id string, data []byte) error
	replace(collection, id string, data []byte) error
	upsert(collection, id string, data []byte) error
	fetch(collection, id string) ([]byte, error)
	fetchAll(collection string) ([][]byte, error)
	remove(collection, id string) error

	init() error
	close() error
	backup() error
}

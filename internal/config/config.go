package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"floatai/pkg/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Provider ProviderConfig `mapstructure:"provider"`
	Chat     ChatConfig     `mapstructure:"chat"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Log      LogConfig      `mapstructure:"log"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxHeaderBytes  int           `mapstructure:"max_header_bytes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Heartbeat       time.Duration `mapstructure:"heartbeat"`
}

// ProviderConfig 默认的OpenAI兼容接入点，模型配置缺省时使用
type ProviderConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	DefaultModel string        `mapstructure:"default_model"`
	SystemPrompt string        `mapstructure:"system_prompt"`
	Timeout      time.Duration `mapstructure:"timeout"`
	DebugRequest bool          `mapstructure:"debug_request"`
}

type ChatConfig struct {
	MaxHistoryMessages int           `mapstructure:"max_history_messages"`
	StreamDefault      bool          `mapstructure:"stream_default"`
	TurnTimeout        time.Duration `mapstructure:"turn_timeout"`
}

type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type StorageConfig struct {
	Type           string        `mapstructure:"type"`
	DataDir        string        `mapstructure:"data_dir"`
	DSN            string        `mapstructure:"dsn"`
	BackupInterval time.Duration `mapstructure:"backup_interval"`
}

// Location 交给存储后端的路径
func (s StorageConfig) Location() string {
	if s.Type == "sqlite" {
		return s.DSN
	}
	return s.DataDir
}

const envPrefix = "FLOATAI"

// v 最近一次成功加载的 viper 实例，Watch 监听它的配置文件
var v = viper.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 0)
	v.SetDefault("server.max_header_bytes", 1<<20)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.heartbeat", 15*time.Second)

	v.SetDefault("provider.base_url", "https://api.deepseek.com")
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.default_model", "deepseek-chat")
	v.SetDefault("provider.system_prompt", "You are a helpful assistant.")
	v.SetDefault("provider.timeout", 5*time.Minute)
	v.SetDefault("provider.debug_request", false)

	v.SetDefault("chat.max_history_messages", 0)
	v.SetDefault("chat.stream_default", true)
	v.SetDefault("chat.turn_timeout", 5*time.Minute)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Accept", "Authorization"})
	v.SetDefault("cors.exposed_headers", []string{"Content-Length"})
	v.SetDefault("cors.allow_credentials", false)
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("storage.type", "disk")
	v.SetDefault("storage.data_dir", "./data")
	v.SetDefault("storage.dsn", "./data/floatai.db")
	v.SetDefault("storage.backup_interval", 0)
}

// Load 读取配置文件和 FLOATAI_* 环境变量，文件不存在时使用默认值和环境变量
func Load(configPath string) (*Config, error) {
	nv := viper.New()
	setDefaults(nv)

	nv.SetConfigType("yaml")
	if configPath != "" {
		nv.SetConfigFile(configPath)
	} else {
		nv.SetConfigName("config")
		nv.AddConfigPath("./configs")
		nv.AddConfigPath(".")
	}

	nv.SetEnvPrefix(envPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	nv.AutomaticEnv()

	if err := nv.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	c, err := decode(nv)
	if err != nil {
		return nil, err
	}
	v = nv
	return c, nil
}

func decode(v *viper.Viper) (*Config, error) {
	c := &Config{}
	if err := v.Unmarshal(c); err != nil {
		return nil, err
	}

	// 配置文件优先，如果配置文件中没有设置，则使用环境变量
	if c.Provider.APIKey == "" {
		if apiKey := os.Getenv("DEEPSEEK_API_KEY"); apiKey != "" {
			c.Provider.APIKey = apiKey
		}
		if apiKey := os.Getenv(envPrefix + "_API_KEY"); apiKey != "" {
			c.Provider.APIKey = apiKey
		}
	}
	return c, nil
}

// Watch 监听配置文件变化，重新加载后回调 fn；读取或解析失败时记录日志，不回调
func Watch(fn func(*Config)) {
	w := v
	w.OnConfigChange(func(fsnotify.Event) {
		reload(w, fn)
	})
	w.WatchConfig()
}

// reload 重新读取配置文件，失败时保留旧配置
func reload(w *viper.Viper, fn func(*Config)) bool {
	if err := w.ReadInConfig(); err != nil {
		logger.Errorf("配置重新加载失败 %s: %v", w.ConfigFileUsed(), err)
		return false
	}
	c, err := decode(w)
	if err != nil {
		logger.Errorf("配置解析失败 %s: %v", w.ConfigFileUsed(), err)
		return false
	}
	if fn != nil {
		fn(c)
	}
	return true
}

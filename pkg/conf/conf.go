package conf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ruslano69/pgtools/pkg/dbtypes"
)

// EnvironmentVariable - переменная окружения с путем к файлу конфигурации
const EnvironmentVariable = "DATABASE_CONFIG_JSON"

// Значения по умолчанию для подключения
const (
	DefaultEngine = "postgres"
	DefaultHost   = "127.0.0.1"
	DefaultPort   = 5432
	DefaultUser   = "postgres"
)

// Значения пулинга по умолчанию
const (
	DefaultMaxOverflow = 10
	DefaultPoolSize    = 5
	DefaultPoolTimeout = 30
)

// PoolingArgs - настройки пула соединений, передаются движку как есть.
// Политика пулинга не принадлежит этому пакету: значения только
// транслируются в настройки драйвера.
type PoolingArgs struct {
	MaxOverflow int `json:"max_overflow" yaml:"max_overflow"`
	PoolRecycle int `json:"pool_recycle" yaml:"pool_recycle"` // секунды; 0 - без ограничения
	PoolSize    int `json:"pool_size" yaml:"pool_size"`
	PoolTimeout int `json:"pool_timeout" yaml:"pool_timeout"` // секунды
}

// DatabaseEntry - запись именованной базы данных для режима db-key.
// Аналог сконфигурированной базы хост-приложения: при выборе через
// db-key значения записи имеют приоритет над явными ключами database-*.
type DatabaseEntry struct {
	Engine   string            `json:"engine" yaml:"engine"`
	Host     string            `json:"host" yaml:"host"`
	Port     int               `json:"port" yaml:"port"`
	Name     string            `json:"name" yaml:"name"`
	User     string            `json:"user" yaml:"user"`
	Password string            `json:"password" yaml:"password"`
	Options  map[string]string `json:"options" yaml:"options"`
}

// Settings - консолидированная конфигурация подключения и форматов
type Settings struct {
	DatabaseName     string            `json:"database-name" yaml:"database-name"`
	DatabaseEngine   string            `json:"database-engine" yaml:"database-engine"`
	DatabaseHost     string            `json:"database-host" yaml:"database-host"`
	DatabasePort     int               `json:"database-port" yaml:"database-port"`
	DatabaseUser     string            `json:"database-user" yaml:"database-user"`
	DatabasePassword string            `json:"database-password" yaml:"database-password"`
	ConnectArgs      map[string]string `json:"connect-args" yaml:"connect-args"`
	DateFormat       string            `json:"date-format" yaml:"date-format"`
	TimestampFormat  string            `json:"timestamp-format" yaml:"timestamp-format"`
	PoolingArgs      *PoolingArgs      `json:"pooling-args" yaml:"pooling-args"`

	// Альтернативный режим: именованные базы + выбор через db-key
	DBKey     string                   `json:"db-key" yaml:"db-key"`
	Databases map[string]DatabaseEntry `json:"databases" yaml:"databases"`
}

// Load читает конфигурацию из файла (.json или .yaml/.yml),
// применяет режим db-key, значения по умолчанию и валидацию.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	settings := &Settings{}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("config file %s does not contain valid JSON: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("config file %s does not contain valid YAML: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("invalid database configuration file: %s", path)
	}

	if err := settings.applyDBKey(); err != nil {
		return nil, err
	}
	settings.applyDefaults()

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// LoadFromEnv читает конфигурацию из файла, указанного в DATABASE_CONFIG_JSON
func LoadFromEnv() (*Settings, error) {
	path, ok := os.LookupEnv(EnvironmentVariable)
	if !ok || path == "" {
		return nil, fmt.Errorf(
			"no database configuration available: have you set the %q environment variable?",
			EnvironmentVariable,
		)
	}
	return Load(path)
}

// applyDBKey применяет запись именованной базы при заданном db-key.
// Значения записи имеют приоритет над явными ключами database-*.
func (s *Settings) applyDBKey() error {
	if s.DBKey == "" {
		return nil
	}

	entry, ok := s.Databases[s.DBKey]
	if !ok {
		return fmt.Errorf("no database configured for db-key %q", s.DBKey)
	}

	if entry.Engine != "" {
		s.DatabaseEngine = entry.Engine
	}
	if entry.Host != "" {
		s.DatabaseHost = entry.Host
	}
	if entry.Port != 0 {
		s.DatabasePort = entry.Port
	}
	if entry.Name != "" {
		s.DatabaseName = entry.Name
	}
	if entry.User != "" {
		s.DatabaseUser = entry.User
	}
	if entry.Password != "" {
		s.DatabasePassword = entry.Password
	}
	if entry.Options != nil {
		s.ConnectArgs = entry.Options
	}
	return nil
}

// applyDefaults заполняет незаданные ключи значениями по умолчанию
func (s *Settings) applyDefaults() {
	if s.DatabaseEngine == "" {
		s.DatabaseEngine = DefaultEngine
	}
	if s.DatabaseHost == "" {
		s.DatabaseHost = DefaultHost
	}
	if s.DatabasePort == 0 {
		s.DatabasePort = DefaultPort
	}
	if s.DatabaseUser == "" {
		s.DatabaseUser = DefaultUser
	}
	if s.DateFormat == "" {
		s.DateFormat = dbtypes.DefaultDateFormat
	}
	if s.TimestampFormat == "" {
		s.TimestampFormat = dbtypes.DefaultTimestampFormat
	}
	if s.PoolingArgs == nil {
		s.PoolingArgs = &PoolingArgs{}
	}
	if s.PoolingArgs.MaxOverflow == 0 {
		s.PoolingArgs.MaxOverflow = DefaultMaxOverflow
	}
	if s.PoolingArgs.PoolSize == 0 {
		s.PoolingArgs.PoolSize = DefaultPoolSize
	}
	if s.PoolingArgs.PoolTimeout == 0 {
		s.PoolingArgs.PoolTimeout = DefaultPoolTimeout
	}
}

// Validate проверяет обязательные ключи конфигурации
func (s *Settings) Validate() error {
	if s.DatabaseName == "" {
		return fmt.Errorf("database configuration missing required key: %q", "database-name")
	}
	if s.DatabaseUser == "" {
		return fmt.Errorf("database configuration missing required key: %q", "database-user")
	}
	return nil
}

// Formats возвращает настроенные форматы даты и времени
func (s *Settings) Formats() dbtypes.Formats {
	return dbtypes.Formats{
		Date:      s.DateFormat,
		Timestamp: s.TimestampFormat,
	}
}

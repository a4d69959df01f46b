package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ruslano69/pgtools/pkg/conf"
)

// Config - конфигурация подключения, передаваемая движку при создании.
// Явная структура вместо скрытой глобальной инициализации: движок
// не обращается к конфигурации самостоятельно.
type Config struct {
	Engine      string
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	ConnectArgs map[string]string
	Pooling     Pooling
}

// Pooling - настройки пула, транслируемые в настройки драйвера как есть
type Pooling struct {
	MaxOverflow int
	PoolRecycle time.Duration // 0 - без ограничения времени жизни соединения
	PoolSize    int
	PoolTimeout time.Duration
}

// ConfigFromSettings строит конфигурацию движка из загруженных настроек
func ConfigFromSettings(s *conf.Settings) Config {
	cfg := Config{
		Engine:      s.DatabaseEngine,
		Host:        s.DatabaseHost,
		Port:        s.DatabasePort,
		Database:    s.DatabaseName,
		User:        s.DatabaseUser,
		Password:    s.DatabasePassword,
		ConnectArgs: s.ConnectArgs,
	}
	if p := s.PoolingArgs; p != nil {
		cfg.Pooling = Pooling{
			MaxOverflow: p.MaxOverflow,
			PoolRecycle: time.Duration(p.PoolRecycle) * time.Second,
			PoolSize:    p.PoolSize,
			PoolTimeout: time.Duration(p.PoolTimeout) * time.Second,
		}
	}
	return cfg
}

// Column описывает колонку таблицы из живой схемы
type Column struct {
	Name       string
	DataType   string // нативный тип PostgreSQL (information_schema)
	Nullable   bool
	PrimaryKey bool
}

// Table описывает таблицу из живой схемы
type Table struct {
	Name    string
	Columns []Column
}

// ColumnNames возвращает имена колонок в порядке их объявления
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey возвращает имена колонок первичного ключа
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.Columns {
		if c.PrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// Tx - транзакция с областью жизни одного вызова.
// Гарантированное освобождение на всех путях выхода обеспечивает
// вызывающий через defer Rollback (повторный Rollback после Commit безопасен).
type Tx interface {
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Engine - узкий интерфейс движка базы данных.
// Ядро потребляет только этот интерфейс: владение пулом и политика
// переподключения остаются за реализацией.
type Engine interface {
	// Lifecycle
	Connect(ctx context.Context, cfg Config) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
	EngineType() string

	// Выполнение
	Exec(ctx context.Context, sql string, args ...any) (int64, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context) (Tx, error)

	// Живая схема
	TableExists(ctx context.Context, tableName string) (bool, error)
	TableColumns(ctx context.Context, tableName string) ([]Column, error)
	TableNames(ctx context.Context) ([]string, error)
	RowCount(ctx context.Context, tableName string) (int64, error)
}

// ConnectionError возвращается когда движок не смог предоставить соединение.
// Повторные попытки не выполняются: политика ретраев принадлежит вызывающему.
type ConnectionError struct {
	Engine string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Engine, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/validation"
)

// Compile-time check: Engine должен реализовывать интерфейс db.Engine
var _ db.Engine = (*Engine)(nil)

// Регистрация движка в глобальной фабрике
func init() {
	db.Register("postgres", func() db.Engine {
		return &Engine{}
	})
}

// Engine - движок PostgreSQL поверх pgxpool.
// Реализует интерфейс db.Engine.
type Engine struct {
	pool   *pgxpool.Pool
	schema string // public, custom, etc.
}

// Connect устанавливает подключение к PostgreSQL.
// Настройки пула транслируются из конфигурации без собственной политики.
func (e *Engine) Connect(ctx context.Context, cfg db.Config) error {
	config, err := pgxpool.ParseConfig(buildDSN(cfg))
	if err != nil {
		return fmt.Errorf("failed to parse connection string: %w", err)
	}

	// pool_size + max_overflow ограничивают общее число соединений
	maxConns := cfg.Pooling.PoolSize + cfg.Pooling.MaxOverflow
	if maxConns <= 0 {
		maxConns = 10
	}
	config.MaxConns = int32(maxConns)
	if cfg.Pooling.PoolSize > 0 {
		config.MinConns = int32(min(2, cfg.Pooling.PoolSize))
	}
	if cfg.Pooling.PoolRecycle > 0 {
		config.MaxConnLifetime = cfg.Pooling.PoolRecycle
	}
	if cfg.Pooling.PoolTimeout > 0 {
		config.ConnConfig.ConnectTimeout = cfg.Pooling.PoolTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	e.pool = pool
	e.schema = "public"
	return nil
}

// buildDSN собирает keyword-строку подключения из конфигурации.
// connect-args (sslmode и прочие опции драйвера) добавляются как есть.
func buildDSN(cfg db.Config) string {
	parts := []string{
		fmt.Sprintf("host=%s", cfg.Host),
		fmt.Sprintf("port=%d", cfg.Port),
		fmt.Sprintf("user=%s", cfg.User),
		fmt.Sprintf("dbname=%s", cfg.Database),
	}
	if cfg.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", cfg.Password))
	}

	// Детеминированный порядок для воспроизводимости DSN
	keys := make([]string, 0, len(cfg.ConnectArgs))
	for k := range cfg.ConnectArgs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, cfg.ConnectArgs[k]))
	}

	return strings.Join(parts, " ")
}

// Close закрывает connection pool
func (e *Engine) Close(ctx context.Context) error {
	if e.pool != nil {
		e.pool.Close()
	}
	return nil
}

// Ping проверяет доступность БД
func (e *Engine) Ping(ctx context.Context) error {
	if e.pool == nil {
		return fmt.Errorf("engine not connected")
	}
	return e.pool.Ping(ctx)
}

// EngineType возвращает тип СУБД
func (e *Engine) EngineType() string {
	return "postgres"
}

// Pool возвращает *pgxpool.Pool для прямого доступа
func (e *Engine) Pool() *pgxpool.Pool {
	return e.pool
}

// Schema возвращает текущую схему
func (e *Engine) Schema() string {
	return e.schema
}

// SetSchema устанавливает схему для операций
func (e *Engine) SetSchema(schema string) {
	e.schema = schema
}

// Exec выполняет SQL команду и возвращает число затронутых строк
func (e *Engine) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := e.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to execute SQL: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Query выполняет SQL запрос
func (e *Engine) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := e.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	return rows, nil
}

// QueryRow выполняет SQL запрос возвращающий одну строку
func (e *Engine) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return e.pool.QueryRow(ctx, sql, args...)
}

// BeginTx начинает транзакцию на отдельном соединении пула
func (e *Engine) BeginTx(ctx context.Context) (db.Tx, error) {
	if e.pool == nil {
		return nil, &db.ConnectionError{Engine: "postgres", Err: fmt.Errorf("engine not connected")}
	}
	tx, err := e.pool.Begin(ctx)
	if err != nil {
		return nil, &db.ConnectionError{Engine: "postgres", Err: err}
	}
	return &pgxTx{tx: tx}, nil
}

// pgxTx - обертка pgx.Tx для реализации db.Tx
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return t.tx.Query(ctx, sql, args...)
}

func (t *pgxTx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

// TableExists проверяет существование таблицы в текущей схеме
func (e *Engine) TableExists(ctx context.Context, tableName string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM information_schema.tables
			WHERE table_schema = $1
			  AND table_name = $2
		)
	`

	var exists bool
	err := e.pool.QueryRow(ctx, query, e.schema, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table existence: %w", err)
	}
	return exists, nil
}

// TableColumns читает колонки таблицы из information_schema
// в порядке их объявления, с пометкой колонок первичного ключа.
// Для пользовательских типов (geometry, enum) information_schema
// сообщает data_type = 'USER-DEFINED'; настоящее имя типа берется
// из udt_name.
func (e *Engine) TableColumns(ctx context.Context, tableName string) ([]db.Column, error) {
	query := `
		SELECT column_name, data_type, udt_name, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := e.pool.Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to get table columns: %w", err)
	}
	defer rows.Close()

	var columns []db.Column
	for rows.Next() {
		var (
			name     string
			dataType string
			udtName  string
			nullable string
		)
		if err := rows.Scan(&name, &dataType, &udtName, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		columns = append(columns, db.Column{
			Name:     name,
			DataType: dataTypeName(dataType, udtName),
			Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}

	if len(columns) == 0 {
		return nil, fmt.Errorf("no table named %q in schema %q", tableName, e.schema)
	}

	// Первичный ключ читается после успешного чтения колонок:
	// несуществующая таблица уже отсечена внятной ошибкой выше
	isPK := make(map[string]bool)
	for _, pk := range e.primaryKeyColumns(ctx, tableName) {
		isPK[pk] = true
	}
	for i := range columns {
		columns[i].PrimaryKey = isPK[columns[i].Name]
	}
	return columns, nil
}

// dataTypeName возвращает пригодное для кастов имя типа колонки
func dataTypeName(dataType, udtName string) string {
	if dataType == "USER-DEFINED" && udtName != "" {
		return udtName
	}
	return dataType
}

// primaryKeyColumns возвращает список колонок первичного ключа.
// Любой сбой запроса (в том числе неразрешившийся ::regclass)
// трактуется как отсутствие первичного ключа.
func (e *Engine) primaryKeyColumns(ctx context.Context, tableName string) []string {
	query := `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = ($1 || '.' || $2)::regclass
		  AND i.indisprimary
		ORDER BY array_position(i.indkey, a.attnum)
	`

	rows, err := e.pool.Query(ctx, query, e.schema, tableName)
	if err != nil {
		return nil
	}
	defer rows.Close()

	var pkColumns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil
		}
		pkColumns = append(pkColumns, name)
	}
	if rows.Err() != nil {
		return nil
	}
	return pkColumns
}

// TableNames возвращает список всех таблиц в текущей схеме
func (e *Engine) TableNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := e.pool.Query(ctx, query, e.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to get table names: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// RowCount возвращает количество строк в таблице
func (e *Engine) RowCount(ctx context.Context, tableName string) (int64, error) {
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s", validation.QuoteIdentifier(tableName))

	var count int64
	if err := e.pool.QueryRow(ctx, countSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to get row count: %w", err)
	}
	return count, nil
}

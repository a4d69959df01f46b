package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/validation"
)

// IndexOption определяет вариант индекса
type IndexOption string

// Поддерживаемые варианты индексов
const (
	// IndexBasic - обычный btree индекс
	IndexBasic IndexOption = ""
	// IndexUnique - уникальный btree индекс
	IndexUnique IndexOption = "unique"
	// IndexCoalesce - btree по coalesce(col, '') для текстовых колонок с NULL
	IndexCoalesce IndexOption = "coalesce"
	// IndexSpatial - GIST индекс для геометрии
	IndexSpatial IndexOption = "spatial"
	// IndexJSONFull - GIN индекс по всему JSONB документу
	IndexJSONFull IndexOption = "json_full"
	// IndexJSONPath - GIN индекс jsonb_path_ops (только оператор @>)
	IndexJSONPath IndexOption = "json_path"
	// IndexTsvector - GIN индекс по to_tsvector для полнотекстового поиска
	IndexTsvector IndexOption = "to_tsvector"
)

// maxIdentifierLength - предел длины идентификатора PostgreSQL в байтах
const maxIdentifierLength = 63

// IndexName строит детерминированное имя индекса:
// {таблица}_{колонки}_{вариант}_idx. Имя длиннее 63 байт PostgreSQL
// молча усекает, поэтому длинные имена заранее сжимаются через хеш.
func IndexName(table string, columns []string, option IndexOption) string {
	parts := []string{table}
	parts = append(parts, columns...)
	if option != IndexBasic {
		parts = append(parts, string(option))
	}
	parts = append(parts, "idx")

	name := strings.Join(parts, "_")
	if len(name) <= maxIdentifierLength {
		return name
	}

	digest := fmt.Sprintf("%016x", xxh3.HashString(name))
	keep := maxIdentifierLength - len(digest) - len("_idx") - 1
	return name[:keep] + "_" + digest + "_idx"
}

// CreateIndexSQL строит команду создания индекса выбранного варианта
func CreateIndexSQL(table string, columns []string, option IndexOption) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifiers("column", columns); err != nil {
		return "", err
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = validation.QuoteIdentifier(c)
	}

	var (
		unique     string
		using      string
		expression string
	)
	switch option {
	case IndexBasic:
		expression = strings.Join(quoted, ", ")
	case IndexUnique:
		unique = "UNIQUE "
		expression = strings.Join(quoted, ", ")
	case IndexCoalesce:
		parts := make([]string, len(quoted))
		for i, q := range quoted {
			parts[i] = fmt.Sprintf("coalesce(%s, '')", q)
		}
		expression = strings.Join(parts, ", ")
	case IndexSpatial:
		using = " USING GIST"
		expression = strings.Join(quoted, ", ")
	case IndexJSONFull:
		using = " USING GIN"
		expression = strings.Join(quoted, ", ")
	case IndexJSONPath:
		using = " USING GIN"
		parts := make([]string, len(quoted))
		for i, q := range quoted {
			parts[i] = q + " jsonb_path_ops"
		}
		expression = strings.Join(parts, ", ")
	case IndexTsvector:
		using = " USING GIN"
		parts := make([]string, len(quoted))
		for i, q := range quoted {
			parts[i] = fmt.Sprintf("coalesce(%s, '')", q)
		}
		expression = fmt.Sprintf("to_tsvector('simple', %s)", strings.Join(parts, " || ' ' || "))
	default:
		return "", fmt.Errorf("unsupported index option: %q", option)
	}

	return fmt.Sprintf("CREATE %sINDEX %s ON %s%s (%s)",
		unique,
		validation.QuoteIdentifier(IndexName(table, columns, option)),
		validation.QuoteIdentifier(table),
		using,
		expression,
	), nil
}

// CreateIndex создает индекс выбранного варианта
func CreateIndex(ctx context.Context, eng db.Engine, table string, columns []string, option IndexOption) error {
	sql, err := CreateIndexSQL(table, columns, option)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create index on %s: %w", table, err)
	}
	return nil
}

// DropIndexSQL строит команду удаления индекса
func DropIndexSQL(table string, columns []string, option IndexOption) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifiers("column", columns); err != nil {
		return "", err
	}
	return fmt.Sprintf("DROP INDEX IF EXISTS %s",
		validation.QuoteIdentifier(IndexName(table, columns, option))), nil
}

// DropIndex удаляет индекс
func DropIndex(ctx context.Context, eng db.Engine, table string, columns []string, option IndexOption) error {
	sql, err := DropIndexSQL(table, columns, option)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop index on %s: %w", table, err)
	}
	return nil
}

// HasIndex проверяет наличие индекса в каталоге pg_indexes
func HasIndex(ctx context.Context, eng db.Engine, table string, columns []string, option IndexOption) (bool, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return false, err
	}
	if err := validation.ValidateIdentifiers("column", columns); err != nil {
		return false, err
	}

	query := `
		SELECT EXISTS (
			SELECT 1
			FROM pg_indexes
			WHERE tablename = $1
			  AND indexname = $2
		)
	`

	var exists bool
	err := eng.QueryRow(ctx, query, table, IndexName(table, columns, option)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check index on %s: %w", table, err)
	}
	return exists, nil
}

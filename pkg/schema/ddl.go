package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/validation"
)

// ColumnDef - определение колонки для DDL операций.
// Type - выражение типа SQL (text, numeric(18,2), geometry(Point,4326)).
type ColumnDef struct {
	Name    string
	Type    string
	NotNull bool
	Default string
}

// renderSQL возвращает фрагмент определения колонки для DDL
func (c ColumnDef) renderSQL() (string, error) {
	if err := validation.ValidateIdentifier("column", c.Name); err != nil {
		return "", err
	}
	if err := validation.ValidateSQLType(c.Type); err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(validation.QuoteIdentifier(c.Name))
	b.WriteString(" ")
	b.WriteString(c.Type)
	if c.NotNull {
		b.WriteString(" NOT NULL")
	}
	if c.Default != "" {
		b.WriteString(" DEFAULT ")
		b.WriteString(c.Default)
	}
	return b.String(), nil
}

// CreateTableSQL строит команду создания таблицы.
// primaryKey может быть пустым - таблица без первичного ключа.
func CreateTableSQL(table string, columns []ColumnDef, primaryKey []string) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("table %q requires at least one column", table)
	}

	parts := make([]string, 0, len(columns)+1)
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		rendered, err := c.renderSQL()
		if err != nil {
			return "", err
		}
		parts = append(parts, rendered)
		names = append(names, c.Name)
	}

	if len(primaryKey) > 0 {
		if err := validation.ValidateColumnsIn(table, names, primaryKey, "primary key column"); err != nil {
			return "", err
		}
		quoted := make([]string, len(primaryKey))
		for i, c := range primaryKey {
			quoted[i] = validation.QuoteIdentifier(c)
		}
		parts = append(parts, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (%s)",
		validation.QuoteIdentifier(table), strings.Join(parts, ", ")), nil
}

// CreateTable создает таблицу
func CreateTable(ctx context.Context, eng db.Engine, table string, columns []ColumnDef, primaryKey []string) error {
	sql, err := CreateTableSQL(table, columns, primaryKey)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// DropTableSQL строит команду удаления таблицы.
// CASCADE снимает зависимые представления и внешние ключи.
func DropTableSQL(table string) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	return fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", validation.QuoteIdentifier(table)), nil
}

// DropTable удаляет таблицу, если она существует
func DropTable(ctx context.Context, eng db.Engine, table string) error {
	sql, err := DropTableSQL(table)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", table, err)
	}
	return nil
}

// AddColumnSQL строит команду добавления колонки
func AddColumnSQL(table string, column ColumnDef) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	rendered, err := column.renderSQL()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s",
		validation.QuoteIdentifier(table), rendered), nil
}

// AddColumn добавляет колонку в таблицу
func AddColumn(ctx context.Context, eng db.Engine, table string, column ColumnDef) error {
	sql, err := AddColumnSQL(table, column)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column.Name, err)
	}
	return nil
}

// DropColumnSQL строит команду удаления колонки
func DropColumnSQL(table, column string) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifier("column", column); err != nil {
		return "", err
	}
	return fmt.Sprintf("ALTER TABLE %s DROP COLUMN IF EXISTS %s",
		validation.QuoteIdentifier(table), validation.QuoteIdentifier(column)), nil
}

// DropColumn удаляет колонку из таблицы
func DropColumn(ctx context.Context, eng db.Engine, table, column string) error {
	sql, err := DropColumnSQL(table, column)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop column %s.%s: %w", table, column, err)
	}
	return nil
}

// AlterColumnTypeSQL строит команду смены типа колонки.
// Приведение к boolean идет через CASE: прямого каста из integer
// и произвольного текста PostgreSQL не дает.
func AlterColumnTypeSQL(table, column, newType string) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifier("column", column); err != nil {
		return "", err
	}
	if err := validation.ValidateSQLType(newType); err != nil {
		return "", err
	}

	q := validation.QuoteIdentifier(column)
	using := fmt.Sprintf("%s::%s", q, newType)
	if strings.EqualFold(newType, "boolean") || strings.EqualFold(newType, "bool") {
		using = fmt.Sprintf(
			"CASE WHEN %s::text IN ('t', 'true', '1') THEN true WHEN %s::text IN ('f', 'false', '0') THEN false ELSE NULL END",
			q, q)
	}

	return fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING %s",
		validation.QuoteIdentifier(table), q, newType, using), nil
}

// AlterColumnType меняет тип колонки
func AlterColumnType(ctx context.Context, eng db.Engine, table, column, newType string) error {
	sql, err := AlterColumnTypeSQL(table, column, newType)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to alter column %s.%s: %w", table, column, err)
	}
	return nil
}

// CreateTsvectorColumnSQL строит команду добавления генерируемой
// tsvector колонки поверх текстовых колонок таблицы
func CreateTsvectorColumnSQL(table, column string, sourceColumns []string) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifier("column", column); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifiers("column", sourceColumns); err != nil {
		return "", err
	}

	sources := make([]string, len(sourceColumns))
	for i, c := range sourceColumns {
		sources[i] = fmt.Sprintf("coalesce(%s, '')", validation.QuoteIdentifier(c))
	}

	return fmt.Sprintf(
		"ALTER TABLE %s ADD COLUMN %s tsvector GENERATED ALWAYS AS (to_tsvector('simple', %s)) STORED",
		validation.QuoteIdentifier(table),
		validation.QuoteIdentifier(column),
		strings.Join(sources, " || ' ' || "),
	), nil
}

// CreateTsvectorColumn добавляет генерируемую tsvector колонку
func CreateTsvectorColumn(ctx context.Context, eng db.Engine, table, column string, sourceColumns []string) error {
	sql, err := CreateTsvectorColumnSQL(table, column, sourceColumns)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create tsvector column %s.%s: %w", table, column, err)
	}
	return nil
}

// CreateForeignKeySQL строит команду добавления внешнего ключа.
// Имя ограничения детерминировано: fk_{таблица}_{колонка}.
func CreateForeignKeySQL(table, column, refTable, refColumn string) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifier("column", column); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifier("table", refTable); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifier("column", refColumn); err != nil {
		return "", err
	}

	constraint := fmt.Sprintf("fk_%s_%s", table, column)
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		validation.QuoteIdentifier(table),
		validation.QuoteIdentifier(constraint),
		validation.QuoteIdentifier(column),
		validation.QuoteIdentifier(refTable),
		validation.QuoteIdentifier(refColumn),
	), nil
}

// CreateForeignKey добавляет внешний ключ
func CreateForeignKey(ctx context.Context, eng db.Engine, table, column, refTable, refColumn string) error {
	sql, err := CreateForeignKeySQL(table, column, refTable, refColumn)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to create foreign key on %s.%s: %w", table, column, err)
	}
	return nil
}

// DropForeignKeySQL строит команду удаления внешнего ключа
func DropForeignKeySQL(table, column string) (string, error) {
	if err := validation.ValidateIdentifier("table", table); err != nil {
		return "", err
	}
	if err := validation.ValidateIdentifier("column", column); err != nil {
		return "", err
	}
	constraint := fmt.Sprintf("fk_%s_%s", table, column)
	return fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
		validation.QuoteIdentifier(table),
		validation.QuoteIdentifier(constraint)), nil
}

// DropForeignKey удаляет внешний ключ
func DropForeignKey(ctx context.Context, eng db.Engine, table, column string) error {
	sql, err := DropForeignKeySQL(table, column)
	if err != nil {
		return err
	}
	if _, err := eng.Exec(ctx, sql); err != nil {
		return fmt.Errorf("failed to drop foreign key on %s.%s: %w", table, column, err)
	}
	return nil
}

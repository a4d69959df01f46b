package sqlgen

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/validation"
)

// Source - типизированный источник строк для компилятора.
// Ссылка на таблицу и VALUES-набор реализуют его одинаково,
// поэтому логика компиляции не различает их.
type Source interface {
	// FromSQL возвращает источник в форме, пригодной для FROM
	FromSQL() string
	// Columns возвращает имена выходных колонок в порядке объявления
	Columns() []string
}

// TableRef - ссылка на существующую таблицу как источник строк
type TableRef struct {
	Name    string
	columns []string
}

// NewTableRef создает ссылку на таблицу с явным списком колонок
func NewTableRef(name string, columns []string) (*TableRef, error) {
	if err := validation.ValidateIdentifier("table", name); err != nil {
		return nil, err
	}
	if err := validation.ValidateIdentifiers("column", columns); err != nil {
		return nil, err
	}
	return &TableRef{Name: name, columns: columns}, nil
}

func (t *TableRef) FromSQL() string {
	return validation.QuoteIdentifier(t.Name)
}

func (t *TableRef) Columns() []string {
	return t.columns
}

// ColumnMismatchError возвращается когда запрошенные колонки
// не являются подмножеством колонок целевой таблицы
type ColumnMismatchError struct {
	Table   string
	Missing []string
}

func (e *ColumnMismatchError) Error() string {
	return fmt.Sprintf("columns %v do not exist in table %q", e.Missing, e.Table)
}

// StatementKind - вариант скомпилированного выражения
type StatementKind string

const (
	// StatementCreate - материализация результата в новую таблицу
	StatementCreate StatementKind = "create"
	// StatementInsert - вставка в существующую таблицу
	StatementInsert StatementKind = "insert"
)

// Statement - скомпилированное выражение select-into.
// Выполняется как одна атомарная серверная команда.
type Statement struct {
	Kind  StatementKind
	Table string
	SQL   string
}

// SchemaProber - минимальный срез живой схемы, нужный компилятору.
// db.Engine реализует его; тесты подставляют фальшивку.
type SchemaProber interface {
	TableExists(ctx context.Context, tableName string) (bool, error)
	TableColumns(ctx context.Context, tableName string) ([]db.Column, error)
}

// CompileSelectInto компилирует источник и имя целевой таблицы в одну
// из двух форм, выбираемую по состоянию живой схемы на момент вызова:
//
//   - таблицы нет: SELECT ... INTO - материализация результата
//     с выводом имен и типов колонок из источника;
//   - таблица есть: INSERT ... SELECT, ограниченный списком колонок;
//     колонки вне целевой таблицы - ошибка column mismatch.
//
// Повторная компиляция после изменения схемы отражает новое состояние.
func CompileSelectInto(ctx context.Context, prober SchemaProber, target string, columns []string, source Source) (*Statement, error) {
	if err := validation.ValidateIdentifier("table", target); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		columns = source.Columns()
	}
	if err := validation.ValidateIdentifiers("column", columns); err != nil {
		return nil, err
	}

	exists, err := prober.TableExists(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to probe target table %q: %w", target, err)
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = validation.QuoteIdentifier(c)
	}
	columnList := strings.Join(quoted, ", ")

	if !exists {
		return &Statement{
			Kind:  StatementCreate,
			Table: target,
			SQL: fmt.Sprintf("SELECT %s INTO %s FROM %s",
				columnList, validation.QuoteIdentifier(target), source.FromSQL()),
		}, nil
	}

	targetColumns, err := prober.TableColumns(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %q: %w", target, err)
	}
	known := make(map[string]bool, len(targetColumns))
	for _, c := range targetColumns {
		known[c.Name] = true
	}

	var missing []string
	for _, c := range columns {
		if !known[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &ColumnMismatchError{Table: target, Missing: missing}
	}

	return &Statement{
		Kind:  StatementInsert,
		Table: target,
		SQL: fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			validation.QuoteIdentifier(target), columnList, columnList, source.FromSQL()),
	}, nil
}

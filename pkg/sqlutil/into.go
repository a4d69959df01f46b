package sqlutil

import (
	"context"
	"fmt"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/sqlgen"
)

// SelectInto компилирует и выполняет select-into для целевой таблицы.
// Состояние схемы проверяется на момент вызова: отсутствующая таблица
// материализуется из источника, существующая получает INSERT ... SELECT.
// Возвращает выбранный вариант (create или insert).
func SelectInto(ctx context.Context, eng db.Engine, target string, columns []string, source sqlgen.Source) (sqlgen.StatementKind, error) {
	stmt, err := sqlgen.CompileSelectInto(ctx, eng, target, columns, source)
	if err != nil {
		return "", err
	}
	if _, err := eng.Exec(ctx, stmt.SQL); err != nil {
		return "", fmt.Errorf("failed to execute %s into %s: %w", stmt.Kind, target, err)
	}
	return stmt.Kind, nil
}

// InsertInto вставляет строковый набор в таблицу, создавая ее при
// отсутствии. Все колонки набора должны существовать в таблице.
func InsertInto(ctx context.Context, eng db.Engine, table string, values *sqlgen.ValuesExpression) (sqlgen.StatementKind, error) {
	return SelectInto(ctx, eng, table, values.Columns(), values)
}

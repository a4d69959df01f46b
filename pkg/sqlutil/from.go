package sqlutil

import (
	"context"
	"fmt"
	"strings"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/dbtypes"
	"github.com/ruslano69/pgtools/pkg/sqlgen"
	"github.com/ruslano69/pgtools/pkg/validation"
)

// SelectFrom читает строки таблицы и декодирует значения в каноническое
// Go представление. columns == nil означает все колонки; limit <= 0 -
// без ограничения. mapper может быть nil (форматы по умолчанию).
func SelectFrom(ctx context.Context, eng db.Engine, mapper *dbtypes.Mapper, table any, columns []string, limit int) ([][]any, error) {
	if mapper == nil {
		mapper = dbtypes.NewDefaultMapper()
	}

	resolved, err := db.ResolveTable(ctx, eng, table)
	if err != nil {
		return nil, err
	}

	selected, err := selectColumns(resolved, columns)
	if err != nil {
		return nil, err
	}

	types := make([]dbtypes.ColumnType, len(selected))
	quoted := make([]string, len(selected))
	for i, c := range selected {
		ct, err := dbtypes.PortableTypeForNative(c.DataType)
		if err != nil {
			return nil, err
		}
		types[i] = ct
		quoted[i] = validation.QuoteIdentifier(c.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s",
		strings.Join(quoted, ", "), validation.QuoteIdentifier(resolved.Name))

	rows, err := eng.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to select from %s: %w", resolved.Name, err)
	}
	defer rows.Close()

	var out [][]any
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			break
		}
		raw, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		decoded := make([]any, len(raw))
		for i, v := range raw {
			d, err := mapper.FromNative(v, types[i])
			if err != nil {
				return nil, fmt.Errorf("failed to decode column %q: %w", selected[i].Name, err)
			}
			decoded[i] = d
		}
		out = append(out, decoded)
	}
	return out, rows.Err()
}

// selectColumns разрешает запрошенные имена колонок против живой схемы
func selectColumns(table *db.Table, columns []string) ([]db.Column, error) {
	if len(columns) == 0 {
		return table.Columns, nil
	}

	byName := make(map[string]db.Column, len(table.Columns))
	for _, c := range table.Columns {
		byName[c.Name] = c
	}

	var (
		selected []db.Column
		missing  []string
	)
	for _, name := range columns {
		c, ok := byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		selected = append(selected, c)
	}
	if len(missing) > 0 {
		return nil, &sqlgen.ColumnMismatchError{Table: table.Name, Missing: missing}
	}
	return selected, nil
}

// InsertFrom вставляет в целевую таблицу строки источника, отсутствующие
// в ней: LEFT OUTER JOIN по соединительным колонкам с исключением
// совпадений. Вставляются общие колонки обеих таблиц. Возвращает число
// вставленных строк.
func InsertFrom(ctx context.Context, eng db.Engine, target, source string, joinColumns []string) (int64, error) {
	if len(joinColumns) == 0 {
		return 0, &ConfigurationError{Message: "at least one join column is required"}
	}

	targetTable, err := db.ResolveTable(ctx, eng, target)
	if err != nil {
		return 0, err
	}
	sourceTable, err := db.ResolveTable(ctx, eng, source)
	if err != nil {
		return 0, err
	}

	shared := sharedColumns(targetTable, sourceTable)
	if len(shared) == 0 {
		return 0, &sqlgen.ColumnMismatchError{Table: target, Missing: sourceTable.ColumnNames()}
	}
	if err := validation.ValidateColumnsIn(target, columnNames(shared), joinColumns, "join column"); err != nil {
		return 0, err
	}

	quoted := make([]string, len(shared))
	sourceList := make([]string, len(shared))
	for i, c := range shared {
		quoted[i] = validation.QuoteIdentifier(c.Name)
		sourceList[i] = "s." + quoted[i]
	}

	conditions := make([]string, len(joinColumns))
	for i, c := range joinColumns {
		q := validation.QuoteIdentifier(c)
		conditions[i] = fmt.Sprintf("s.%s = t.%s", q, q)
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s AS s LEFT OUTER JOIN %s AS t ON %s WHERE t.%s IS NULL",
		validation.QuoteIdentifier(target),
		strings.Join(quoted, ", "),
		strings.Join(sourceList, ", "),
		validation.QuoteIdentifier(source),
		validation.QuoteIdentifier(target),
		strings.Join(conditions, " AND "),
		validation.QuoteIdentifier(joinColumns[0]),
	)

	inserted, err := eng.Exec(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to insert from %s into %s: %w", source, target, err)
	}
	return inserted, nil
}

// UpdateFrom обновляет в целевой таблице значения payload-колонок из
// источника по совпадению ключевых колонок. Обновляются только реально
// отличающиеся строки: IS DISTINCT FROM для обычных типов, ST_Equals
// для геометрии. Возвращает число обновленных строк.
func UpdateFrom(ctx context.Context, eng db.Engine, target, source string, keyColumns, payloadColumns []string) (int64, error) {
	if len(keyColumns) == 0 {
		return 0, &ConfigurationError{Message: "at least one key column is required"}
	}
	if len(payloadColumns) == 0 {
		return 0, &ConfigurationError{Message: "at least one payload column is required"}
	}

	targetTable, err := db.ResolveTable(ctx, eng, target)
	if err != nil {
		return 0, err
	}
	sourceTable, err := db.ResolveTable(ctx, eng, source)
	if err != nil {
		return 0, err
	}

	shared := sharedColumns(targetTable, sourceTable)
	sharedNames := columnNames(shared)
	if err := validation.ValidateColumnsIn(target, sharedNames, keyColumns, "key column"); err != nil {
		return 0, err
	}
	if err := validation.ValidateColumnsIn(target, sharedNames, payloadColumns, "payload column"); err != nil {
		return 0, err
	}

	byName := make(map[string]db.Column, len(shared))
	for _, c := range shared {
		byName[c.Name] = c
	}

	setList := make([]string, len(payloadColumns))
	changed := make([]string, len(payloadColumns))
	for i, name := range payloadColumns {
		q := validation.QuoteIdentifier(name)
		setList[i] = fmt.Sprintf("%s = s.%s", q, q)
		// Сравнение через переносимый тип: живая схема может сообщить
		// геометрию как 'USER-DEFINED' вместо имени типа
		if ct, err := dbtypes.PortableTypeForNative(byName[name].DataType); err == nil && ct == dbtypes.TypeGeometry {
			changed[i] = fmt.Sprintf("NOT ST_Equals(t.%s, s.%s)", q, q)
		} else {
			changed[i] = fmt.Sprintf("t.%s IS DISTINCT FROM s.%s", q, q)
		}
	}

	conditions := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		q := validation.QuoteIdentifier(c)
		conditions[i] = fmt.Sprintf("t.%s = s.%s", q, q)
	}

	updateSQL := fmt.Sprintf(
		"UPDATE %s AS t SET %s FROM %s AS s WHERE %s AND (%s)",
		validation.QuoteIdentifier(target),
		strings.Join(setList, ", "),
		validation.QuoteIdentifier(source),
		strings.Join(conditions, " AND "),
		strings.Join(changed, " OR "),
	)

	updated, err := eng.Exec(ctx, updateSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s from %s: %w", target, source, err)
	}
	return updated, nil
}

// sharedColumns возвращает колонки целевой таблицы, существующие
// и в источнике, в порядке объявления в целевой таблице
func sharedColumns(target, source *db.Table) []db.Column {
	inSource := make(map[string]bool, len(source.Columns))
	for _, c := range source.Columns {
		inSource[c.Name] = true
	}

	var shared []db.Column
	for _, c := range target.Columns {
		if inSource[c.Name] {
			shared = append(shared, c)
		}
	}
	return shared
}

func columnNames(columns []db.Column) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}

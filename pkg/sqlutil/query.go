package sqlutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/dbtypes"
	"github.com/ruslano69/pgtools/pkg/validation"
)

// QueryJSONKeys возвращает строки, у которых JSONB колонка содержит
// указанные ключи/значения (оператор @>). Значения строк декодируются
// как в SelectFrom; limit <= 0 - без ограничения.
func QueryJSONKeys(ctx context.Context, eng db.Engine, mapper *dbtypes.Mapper, table any, jsonColumn string, contains map[string]any, limit int) ([][]any, error) {
	if mapper == nil {
		mapper = dbtypes.NewDefaultMapper()
	}
	if err := validation.ValidateIdentifier("column", jsonColumn); err != nil {
		return nil, err
	}
	if len(contains) == 0 {
		return nil, &ConfigurationError{Message: "at least one JSON key is required"}
	}

	resolved, err := db.ResolveTable(ctx, eng, table)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateColumnsIn(resolved.Name, resolved.ColumnNames(), []string{jsonColumn}, "json column"); err != nil {
		return nil, err
	}

	types := make([]dbtypes.ColumnType, len(resolved.Columns))
	quoted := make([]string, len(resolved.Columns))
	for i, c := range resolved.Columns {
		ct, err := dbtypes.PortableTypeForNative(c.DataType)
		if err != nil {
			return nil, err
		}
		types[i] = ct
		quoted[i] = validation.QuoteIdentifier(c.Name)
	}

	criteria, err := json.Marshal(contains)
	if err != nil {
		return nil, fmt.Errorf("failed to encode JSON criteria: %w", err)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s @> $1",
		strings.Join(quoted, ", "),
		validation.QuoteIdentifier(resolved.Name),
		validation.QuoteIdentifier(jsonColumn),
	)

	return collectRows(ctx, eng, mapper, resolved, types, limit, query, string(criteria))
}

// QueryTsvectorColumns выполняет полнотекстовый поиск по указанным
// текстовым колонкам: to_tsvector(coalesce(col) || ...) сопоставляется
// с plainto_tsquery. Возвращает различающиеся строки (DISTINCT).
func QueryTsvectorColumns(ctx context.Context, eng db.Engine, mapper *dbtypes.Mapper, table any, searchColumns []string, search string, limit int) ([][]any, error) {
	if mapper == nil {
		mapper = dbtypes.NewDefaultMapper()
	}
	if search == "" {
		return nil, &ConfigurationError{Message: "search text is required"}
	}

	resolved, err := db.ResolveTable(ctx, eng, table)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateColumnsIn(resolved.Name, resolved.ColumnNames(), searchColumns, "search column"); err != nil {
		return nil, err
	}

	types := make([]dbtypes.ColumnType, len(resolved.Columns))
	quoted := make([]string, len(resolved.Columns))
	for i, c := range resolved.Columns {
		ct, err := dbtypes.PortableTypeForNative(c.DataType)
		if err != nil {
			return nil, err
		}
		types[i] = ct
		quoted[i] = validation.QuoteIdentifier(c.Name)
	}

	vector := make([]string, len(searchColumns))
	for i, c := range searchColumns {
		vector[i] = fmt.Sprintf("coalesce(%s, '')", validation.QuoteIdentifier(c))
	}

	query := fmt.Sprintf(
		"SELECT DISTINCT %s FROM %s WHERE to_tsvector(%s) @@ plainto_tsquery($1)",
		strings.Join(quoted, ", "),
		validation.QuoteIdentifier(resolved.Name),
		strings.Join(vector, " || ' ' || "),
	)

	return collectRows(ctx, eng, mapper, resolved, types, limit, query, search)
}

// collectRows выполняет запрос и декодирует строки с клиентским лимитом
func collectRows(ctx context.Context, eng db.Engine, mapper *dbtypes.Mapper, table *db.Table, types []dbtypes.ColumnType, limit int, query string, args ...any) ([][]any, error) {
	rows, err := eng.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table.Name, err)
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
				return nil, fmt.Errorf("failed to decode column %q: %w", table.Columns[i].Name, err)
			}
			decoded[i] = d
		}
		out = append(out, decoded)
	}
	return out, rows.Err()
}

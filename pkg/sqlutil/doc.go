/*
Package sqlutil реализует высокоуровневые операции над таблицами PostgreSQL:
пакетную мутацию, select-into, перенос строк между таблицами и поисковые
запросы по JSONB и tsvector.

# Архитектура

Пакет собирает нижележащие компоненты в законченные операции:

	┌─────────────────────────────────────────┐
	│              sqlutil                    │
	│  UpdateRows / SelectInto / InsertInto   │
	│  SelectFrom / InsertFrom / UpdateFrom   │
	│  QueryJSONKeys / QueryTsvectorColumns   │
	└───────┬──────────────┬──────────────────┘
	        │              │
	┌───────▼────────┐ ┌───▼──────────────────┐
	│    sqlgen      │ │       dbtypes        │
	│ VALUES-наборы  │ │ переносимые типы,    │
	│ select-into    │ │ литералы, форматы    │
	└───────┬────────┘ └───┬──────────────────┘
	        │              │
	┌───────▼──────────────▼──────────────────┐
	│              db.Engine                  │
	│  pgxpool, живая схема, транзакции       │
	└─────────────────────────────────────────┘

# Пакетная мутация

UpdateRows обходит таблицу пачками по ключу сортировки и применяет
пользовательский callback к каждой строке:

	updated, err := sqlutil.UpdateRows(ctx, eng, nil, "accounts", "id",
		[]string{"balance"},
		func(row *sqlutil.Row) ([]any, error) {
			balance := row.Values[0].(float64)
			if balance >= 0 {
				return nil, nil // без изменений
			}
			return []any{0.0}, nil
		},
		1000)

Каждая пачка коммитится в собственной транзакции: сбой на пачке k
не откатывает пачки до k. Ключ сортировки обязан быть стабильным на
время вызова - это предусловие вызывающего, конкурентные изменения
ключа не отслеживаются.

# Select-into

SelectInto проверяет существование целевой таблицы на момент вызова:
отсутствующая таблица материализуется из источника (SELECT ... INTO),
существующая получает INSERT ... SELECT по своему списку колонок.

	kind, err := sqlutil.SelectInto(ctx, eng, "report", nil, values)
	// kind == sqlgen.StatementCreate при первом вызове,
	// kind == sqlgen.StatementInsert при повторном
*/
package sqlutil

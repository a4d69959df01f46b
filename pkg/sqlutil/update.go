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

// Row - строка, передаваемая в пользовательский callback.
// Values выровнены позиционно с Columns и декодированы в каноническое
// Go представление (int64, string, time.Time, map и т.д.).
type Row struct {
	Key     any
	Columns []string
	Values  []any
}

// Value возвращает значение колонки по имени
func (r *Row) Value(column string) (any, bool) {
	for i, c := range r.Columns {
		if c == column {
			return r.Values[i], true
		}
	}
	return nil, false
}

// TransformFunc - пользовательское преобразование строки.
// Контракт возврата:
//   - (values, nil) - заменить значения payload-колонок строки;
//   - (nil, nil) - строку не менять, UPDATE не выполняется;
//   - (_, err) - прервать обработку; ошибка оборачивается
//     в TransformError с ключом строки.
type TransformFunc func(row *Row) ([]any, error)

// replacement - подготовленная замена одной строки внутри пачки
type replacement struct {
	key    any
	values []any
}

// UpdateRows обходит таблицу пачками по ключу сортировки и применяет
// transform к каждой строке. Замены каждой пачки собираются в один
// массовый UPDATE, выполняемый в собственной транзакции пачки:
// сбой на пачке k не откатывает пачки до k.
//
// Ключ сортировки обязан быть стабильным на время вызова - конкурентные
// изменения ключа внешними писателями не отслеживаются (предусловие
// вызывающего). Возвращает число строк, получивших замену.
//
// mapper может быть nil - тогда используются форматы по умолчанию.
func UpdateRows(ctx context.Context, eng db.Engine, mapper *dbtypes.Mapper, table any, orderKey string, payloadColumns []string, transform TransformFunc, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, &ConfigurationError{Message: fmt.Sprintf("batch size must be positive, got %d", batchSize)}
	}
	if transform == nil {
		return 0, &ConfigurationError{Message: "transform callback is required"}
	}
	if mapper == nil {
		mapper = dbtypes.NewDefaultMapper()
	}

	resolved, err := db.ResolveTable(ctx, eng, table)
	if err != nil {
		return 0, err
	}

	plan, err := newBatchPlan(resolved, orderKey, payloadColumns, batchSize)
	if err != nil {
		return 0, err
	}

	var (
		total   int64
		lastKey any
		first   = true
	)
	for {
		chunk, err := plan.readChunk(ctx, eng, first, lastKey)
		if err != nil {
			return total, err
		}
		if len(chunk) == 0 {
			return total, nil
		}

		replacements, err := plan.transformChunk(mapper, chunk, transform)
		if err != nil {
			return total, err
		}

		if len(replacements) > 0 {
			if err := plan.applyChunk(ctx, eng, replacements); err != nil {
				return total, err
			}
			total += int64(len(replacements))
		}

		lastKey = chunk[len(chunk)-1][0]
		first = false

		// Неполная пачка означает конец таблицы
		if len(chunk) < plan.batchSize {
			return total, nil
		}
	}
}

// batchPlan - план одного вызова UpdateRows: проверенные колонки,
// подготовленный SQL чтения и типы для кодирования замен
type batchPlan struct {
	table     *db.Table
	orderKey  db.Column
	payload   []db.Column
	batchSize int

	keyType      dbtypes.ColumnType
	payloadTypes []dbtypes.ColumnType
	casts        []string

	readFirstSQL string
	readNextSQL  string
	updateSQL    string
}

// newBatchPlan выполняет предварительные проверки вызова: ключ и
// payload-колонки должны существовать, payload не должен включать ключ.
// Все ошибки конфигурации возникают здесь, до первого запроса.
func newBatchPlan(table *db.Table, orderKey string, payloadColumns []string, batchSize int) (*batchPlan, error) {
	byName := make(map[string]db.Column, len(table.Columns))
	for _, c := range table.Columns {
		byName[c.Name] = c
	}

	keyColumn, ok := byName[orderKey]
	if !ok {
		return nil, &sqlgen.ColumnMismatchError{Table: table.Name, Missing: []string{orderKey}}
	}

	if len(payloadColumns) == 0 {
		return nil, &ConfigurationError{Message: "at least one payload column is required"}
	}

	var (
		payload []db.Column
		missing []string
	)
	for _, name := range payloadColumns {
		if name == orderKey {
			return nil, &ConfigurationError{
				Message: fmt.Sprintf("payload column %q duplicates the ordering key", name),
			}
		}
		c, ok := byName[name]
		if !ok {
			missing = append(missing, name)
			continue
		}
		payload = append(payload, c)
	}
	if len(missing) > 0 {
		return nil, &sqlgen.ColumnMismatchError{Table: table.Name, Missing: missing}
	}

	plan := &batchPlan{
		table:     table,
		orderKey:  keyColumn,
		payload:   payload,
		batchSize: batchSize,
	}
	if err := plan.resolveTypes(); err != nil {
		return nil, err
	}
	plan.prepareSQL()
	return plan, nil
}

// resolveTypes разрешает переносимые типы колонок и касты для
// VALUES-подзапроса. Касты строятся из канонического имени типа, а не
// из сырого data_type схемы: information_schema для пользовательских
// типов сообщает 'USER-DEFINED', который в SQL касте невалиден.
func (p *batchPlan) resolveTypes() error {
	keyType, err := dbtypes.PortableTypeForNative(p.orderKey.DataType)
	if err != nil {
		return err
	}
	p.keyType = keyType

	p.payloadTypes = make([]dbtypes.ColumnType, len(p.payload))
	p.casts = make([]string, len(p.payload)+1)
	p.casts[0] = castFor(keyType, p.orderKey.DataType)
	for i, c := range p.payload {
		ct, err := dbtypes.PortableTypeForNative(c.DataType)
		if err != nil {
			return err
		}
		p.payloadTypes[i] = ct
		p.casts[i+1] = castFor(ct, c.DataType)
	}
	return nil
}

// castFor возвращает имя типа для каста плейсхолдера
func castFor(ct dbtypes.ColumnType, dataType string) string {
	if native, err := dbtypes.NativeType(ct); err == nil {
		return native
	}
	return dataType
}

// prepareSQL собирает SQL чтения пачек и массового обновления.
// Обновление идет через VALUES-подзапрос с плейсхолдерами: одна
// set-ориентированная команда на пачку вместо N одиночных UPDATE.
func (p *batchPlan) prepareSQL() {
	qTable := validation.QuoteIdentifier(p.table.Name)
	qKey := validation.QuoteIdentifier(p.orderKey.Name)

	selectList := make([]string, 0, len(p.payload)+1)
	selectList = append(selectList, qKey)
	for _, c := range p.payload {
		selectList = append(selectList, validation.QuoteIdentifier(c.Name))
	}

	p.readFirstSQL = fmt.Sprintf("SELECT %s FROM %s ORDER BY %s LIMIT %d",
		strings.Join(selectList, ", "), qTable, qKey, p.batchSize)
	p.readNextSQL = fmt.Sprintf("SELECT %s FROM %s WHERE %s > $1 ORDER BY %s LIMIT %d",
		strings.Join(selectList, ", "), qTable, qKey, qKey, p.batchSize)

	setList := make([]string, len(p.payload))
	for i, c := range p.payload {
		q := validation.QuoteIdentifier(c.Name)
		setList[i] = fmt.Sprintf("%s = v.%s", q, q)
	}
	p.updateSQL = fmt.Sprintf("UPDATE %s AS t SET %s FROM (VALUES %%s) AS v (%s) WHERE t.%s = v.%s",
		qTable, strings.Join(setList, ", "), strings.Join(selectList, ", "), qKey, qKey)
}

// readChunk читает очередную пачку строк. Первая пачка идет без
// нижней границы, последующие - строго после последнего ключа.
func (p *batchPlan) readChunk(ctx context.Context, eng db.Engine, first bool, lastKey any) ([][]any, error) {
	var (
		sql  string
		args []any
	)
	if first {
		sql = p.readFirstSQL
	} else {
		sql = p.readNextSQL
		args = append(args, lastKey)
	}

	rows, err := eng.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk from %s: %w", p.table.Name, err)
	}
	defer rows.Close()

	var chunk [][]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("failed to scan chunk row: %w", err)
		}
		chunk = append(chunk, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk: %w", err)
	}
	return chunk, nil
}

// transformChunk прогоняет пачку через пользовательский callback.
// Ошибка callback останавливает обработку: замены этой пачки
// не применяются, предыдущие пачки уже закоммичены.
func (p *batchPlan) transformChunk(mapper *dbtypes.Mapper, chunk [][]any, transform TransformFunc) ([]replacement, error) {
	columns := make([]string, len(p.payload))
	for i, c := range p.payload {
		columns[i] = c.Name
	}

	var replacements []replacement
	for _, raw := range chunk {
		key, err := mapper.FromNative(raw[0], p.keyType)
		if err != nil {
			return nil, fmt.Errorf("failed to decode key %v: %w", raw[0], err)
		}

		values := make([]any, len(p.payload))
		for i := range p.payload {
			v, err := mapper.FromNative(raw[i+1], p.payloadTypes[i])
			if err != nil {
				return nil, fmt.Errorf("failed to decode column %q of row %v: %w", columns[i], key, err)
			}
			values[i] = v
		}

		replaced, err := transform(&Row{Key: key, Columns: columns, Values: values})
		if err != nil {
			return nil, &TransformError{Key: key, Err: err}
		}
		if replaced == nil {
			continue
		}
		if len(replaced) != len(p.payload) {
			return nil, &TransformError{
				Key: key,
				Err: fmt.Errorf("transform returned %d values, expected %d", len(replaced), len(p.payload)),
			}
		}
		replacements = append(replacements, replacement{key: raw[0], values: replaced})
	}
	return replacements, nil
}

// applyChunk выполняет массовый UPDATE пачки в собственной транзакции
func (p *batchPlan) applyChunk(ctx context.Context, eng db.Engine, replacements []replacement) error {
	width := len(p.payload) + 1
	tuples := make([]string, len(replacements))
	args := make([]any, 0, len(replacements)*width)

	n := 1
	for i, r := range replacements {
		cells := make([]string, width)
		for j := 0; j < width; j++ {
			cells[j] = fmt.Sprintf("$%d::%s", n, p.casts[j])
			n++
		}
		tuples[i] = "(" + strings.Join(cells, ", ") + ")"
		args = append(args, r.key)
		args = append(args, r.values...)
	}

	updateSQL := fmt.Sprintf(p.updateSQL, strings.Join(tuples, ", "))

	tx, err := eng.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, updateSQL, args...); err != nil {
		return fmt.Errorf("failed to apply chunk update on %s: %w", p.table.Name, err)
	}
	return tx.Commit(ctx)
}

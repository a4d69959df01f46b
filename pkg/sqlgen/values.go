package sqlgen

import (
	"fmt"
	"strings"

	"github.com/ruslano69/pgtools/pkg/dbtypes"
	"github.com/ruslano69/pgtools/pkg/validation"
)

// valuesAlias - алиас подзапроса VALUES в сгенерированном SQL
const valuesAlias = "values"

// ColumnSpec - описание колонки строкового набора: имя и переносимый тип
type ColumnSpec struct {
	Name string
	Type dbtypes.ColumnType
}

// NewColumnSpec создает описание колонки.
// Имя проверяется на безопасность, тип разрешается сразу:
// неизвестное имя типа - ошибка здесь, а не при рендеринге.
func NewColumnSpec(name, typeName string) (ColumnSpec, error) {
	if err := validation.ValidateIdentifier("column", name); err != nil {
		return ColumnSpec{}, err
	}
	ct, err := dbtypes.ColumnTypeFor(typeName)
	if err != nil {
		return ColumnSpec{}, err
	}
	return ColumnSpec{Name: name, Type: ct}, nil
}

// NewColumnSpecs создает список описаний из пар имя/тип
func NewColumnSpecs(pairs [][2]string) ([]ColumnSpec, error) {
	specs := make([]ColumnSpec, 0, len(pairs))
	for _, p := range pairs {
		spec, err := NewColumnSpec(p[0], p[1])
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// ArityError возвращается когда ширина кортежа не совпадает
// с числом описаний колонок
type ArityError struct {
	Row      int // индекс кортежа в наборе
	Expected int
	Actual   int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("row %d has %d values, expected %d", e.Row, e.Actual, e.Expected)
}

// ValuesExpression - неизменяемый типизированный строковый набор.
// Не держит соединения и не имеет побочных эффектов: это чистый SQL
// фрагмент, пригодный как источник FROM, правая часть INSERT ... SELECT
// или самостоятельный SELECT.
type ValuesExpression struct {
	columns []ColumnSpec
	rows    []string // отрендеренные кортежи: (v1, v2, ...)
}

// BuildValues кодирует кортежи в типизированный VALUES-набор.
// Каждое значение проходит через Mapper - сырые значения никогда
// не встраиваются в SQL без экранирования. Первый кортеж получает
// явные приведения к нативным типам, чтобы зафиксировать типы колонок.
func BuildValues(mapper *dbtypes.Mapper, columns []ColumnSpec, rows [][]any) (*ValuesExpression, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("values expression requires at least one column")
	}

	rendered := make([]string, 0, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, &ArityError{Row: i, Expected: len(columns), Actual: len(row)}
		}

		cells := make([]string, len(row))
		for j, value := range row {
			literal, err := mapper.ToLiteral(value, columns[j].Type)
			if err != nil {
				return nil, fmt.Errorf("column %q, row %d: %w", columns[j].Name, i, err)
			}
			if i == 0 {
				literal = withCast(literal, columns[j].Type)
			}
			cells[j] = literal
		}
		rendered = append(rendered, "("+strings.Join(cells, ", ")+")")
	}

	return &ValuesExpression{columns: columns, rows: rendered}, nil
}

// withCast добавляет приведение к нативному типу, если литерал
// еще не несет его
func withCast(literal string, ct dbtypes.ColumnType) string {
	native := nativeOf(ct)
	if strings.HasSuffix(literal, "::"+string(ct)) || strings.HasSuffix(literal, "::"+native) {
		return literal
	}
	return literal + "::" + native
}

// nativeOf возвращает нативный тип для уже проверенного переносимого типа
func nativeOf(ct dbtypes.ColumnType) string {
	native, err := dbtypes.NativeType(ct)
	if err != nil {
		return string(ct)
	}
	return native
}

// Len возвращает число кортежей в наборе
func (v *ValuesExpression) Len() int {
	return len(v.rows)
}

// Columns возвращает имена колонок в порядке объявления
func (v *ValuesExpression) Columns() []string {
	names := make([]string, len(v.columns))
	for i, c := range v.columns {
		names[i] = c.Name
	}
	return names
}

// quotedColumns возвращает экранированный список колонок через запятую
func (v *ValuesExpression) quotedColumns() string {
	quoted := make([]string, len(v.columns))
	for i, c := range v.columns {
		quoted[i] = validation.QuoteIdentifier(c.Name)
	}
	return strings.Join(quoted, ", ")
}

// FromSQL возвращает набор в форме источника FROM:
//
//	(VALUES (...), (...)) AS "values" ("col1", "col2")
//
// Пустой набор рендерится как подзапрос с нулем строк, сохраняющий
// имена и типы колонок (WHERE false).
func (v *ValuesExpression) FromSQL() string {
	if len(v.rows) == 0 {
		return "(" + v.emptySelect() + ") AS " + validation.QuoteIdentifier(valuesAlias)
	}
	return fmt.Sprintf("(VALUES %s) AS %s (%s)",
		strings.Join(v.rows, ", "),
		validation.QuoteIdentifier(valuesAlias),
		v.quotedColumns(),
	)
}

// SelectSQL возвращает набор в форме самостоятельного SELECT
func (v *ValuesExpression) SelectSQL() string {
	if len(v.rows) == 0 {
		return v.emptySelect()
	}
	return fmt.Sprintf("SELECT %s FROM %s", v.quotedColumns(), v.FromSQL())
}

// emptySelect строит SELECT с нулем строк, несущий имена и типы колонок
func (v *ValuesExpression) emptySelect() string {
	cells := make([]string, len(v.columns))
	for i, c := range v.columns {
		cells[i] = fmt.Sprintf("CAST(NULL AS %s) AS %s",
			nativeOf(c.Type), validation.QuoteIdentifier(c.Name))
	}
	return "SELECT " + strings.Join(cells, ", ") + " WHERE false"
}

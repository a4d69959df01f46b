package dbtypes

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Mapper конвертирует значения между Go представлением и SQL литералами.
// Двусторонний контракт: FromNative(значение закодированное ToLiteral)
// восстанавливает исходное значение для всех представимых значений.
type Mapper struct {
	formats Formats
}

// NewMapper создает новый Mapper с указанными форматами даты и времени
func NewMapper(formats Formats) *Mapper {
	return &Mapper{formats: formats}
}

// NewDefaultMapper создает Mapper с форматами по умолчанию
func NewDefaultMapper() *Mapper {
	return NewMapper(DefaultFormats())
}

// Formats возвращает настроенные форматы
func (m *Mapper) Formats() Formats {
	return m.formats
}

// ToLiteral кодирует значение в SQL литерал согласно переносимому типу.
// Сырые значения никогда не встраиваются без экранирования:
// строки проходят через quoteLiteral, бинарные данные через hex.
func (m *Mapper) ToLiteral(value any, ct ColumnType) (string, error) {
	if value == nil {
		return "NULL", nil
	}

	switch ct {
	case TypeInt, TypeBigint:
		i, err := toInt64(value)
		if err != nil {
			return "", fmt.Errorf("cannot encode %s value: %w", ct, err)
		}
		return strconv.FormatInt(i, 10), nil

	case TypeFloat, TypeDecimal:
		f, err := toFloat64(value)
		if err != nil {
			return "", fmt.Errorf("cannot encode %s value: %w", ct, err)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil

	case TypeBool:
		b, err := toBool(value)
		if err != nil {
			return "", fmt.Errorf("cannot encode %s value: %w", ct, err)
		}
		if b {
			return "TRUE", nil
		}
		return "FALSE", nil

	case TypeText:
		return quoteLiteral(toString(value)), nil

	case TypeDate, TypeTimestamp:
		formatted, err := m.encodeTime(value, ct)
		if err != nil {
			return "", err
		}
		return quoteLiteral(formatted) + "::" + string(ct), nil

	case TypeJSON, TypeJSONB:
		text, err := toJSONString(value)
		if err != nil {
			return "", fmt.Errorf("cannot encode %s value: %w", ct, err)
		}
		return quoteLiteral(text) + "::" + string(ct), nil

	case TypeBinary:
		raw, err := toBytes(value)
		if err != nil {
			return "", fmt.Errorf("cannot encode %s value: %w", ct, err)
		}
		return `'\x` + hex.EncodeToString(raw) + `'::bytea`, nil

	case TypeGeometry:
		// Геометрия принимается в текстовой форме (WKT/EWKT)
		return quoteLiteral(toString(value)) + "::geometry", nil

	default:
		return "", &UnsupportedTypeError{Name: string(ct)}
	}
}

// FromNative декодирует значение, полученное от драйвера, в каноническое
// Go представление переносимого типа: int64, float64, bool, string,
// time.Time, []byte или результат json.Unmarshal для JSON-типов.
func (m *Mapper) FromNative(raw any, ct ColumnType) (any, error) {
	if raw == nil {
		return nil, nil
	}

	switch ct {
	case TypeInt, TypeBigint:
		return toInt64(raw)

	case TypeFloat, TypeDecimal:
		// pgx возвращает NUMERIC как pgtype.Numeric
		if n, ok := raw.(pgtype.Numeric); ok {
			if !n.Valid {
				return nil, nil
			}
			f64, err := n.Float64Value()
			if err != nil {
				return nil, fmt.Errorf("cannot decode numeric value: %w", err)
			}
			return f64.Float64, nil
		}
		return toFloat64(raw)

	case TypeBool:
		return toBool(raw)

	case TypeText:
		return toString(raw), nil

	case TypeDate, TypeTimestamp:
		switch v := raw.(type) {
		case time.Time:
			if ct == TypeDate {
				return truncateToDate(v), nil
			}
			return v, nil
		case string:
			return m.formats.ParseTime(v, ct)
		case []byte:
			return m.formats.ParseTime(string(v), ct)
		default:
			return nil, fmt.Errorf("cannot decode %s value of type %T", ct, raw)
		}

	case TypeJSON, TypeJSONB:
		switch v := raw.(type) {
		case map[string]any, []any:
			return v, nil
		case string:
			return decodeJSON([]byte(v))
		case []byte:
			return decodeJSON(v)
		default:
			return nil, fmt.Errorf("cannot decode %s value of type %T", ct, raw)
		}

	case TypeBinary:
		return toBytes(raw)

	case TypeGeometry:
		return toString(raw), nil

	default:
		return nil, &UnsupportedTypeError{Name: string(ct)}
	}
}

// encodeTime приводит значение временного типа к строке по настроенному формату.
// Строковые значения сперва разбираются (валидация формата), затем
// форматируются заново: это выравнивает представление date и timestamp.
func (m *Mapper) encodeTime(value any, ct ColumnType) (string, error) {
	switch v := value.(type) {
	case time.Time:
		if ct == TypeDate {
			v = truncateToDate(v)
		}
		return m.formats.FormatTime(v, ct), nil
	case string:
		t, err := m.formats.ParseTime(v, ct)
		if err != nil {
			return "", err
		}
		return m.formats.FormatTime(t, ct), nil
	case []byte:
		return m.encodeTime(string(v), ct)
	default:
		return "", fmt.Errorf("cannot encode %s value of type %T", ct, value)
	}
}

// quoteLiteral экранирует строку для встраивания в SQL: одинарные
// кавычки удваиваются. Обратные слеши экранирования не требуют
// при standard_conforming_strings.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func decodeJSON(data []byte) (any, error) {
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON value: %w", err)
	}
	return out, nil
}

// toJSONString сериализует значение JSON-типа в текст.
// Структуры в памяти (map, slice) маршалятся; строки и байты
// принимаются как готовый JSON текст.
func toJSONString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case json.RawMessage:
		return string(v), nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		return int64(v), nil
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("non-integral float value %v", v)
		}
		return int64(v), nil
	case float32:
		f := float64(v)
		if f != math.Trunc(f) {
			return 0, fmt.Errorf("non-integral float value %v", v)
		}
		return int64(f), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(v), 10, 64)
	case []byte:
		return strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
	default:
		return 0, fmt.Errorf("invalid integer value of type %T", value)
	}
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	default:
		return 0, fmt.Errorf("invalid float value of type %T", value)
	}
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "t", "true", "1":
			return true, nil
		case "f", "false", "0":
			return false, nil
		}
		return false, fmt.Errorf("invalid boolean value: %q", v)
	default:
		return false, fmt.Errorf("invalid boolean value of type %T", value)
	}
}

func toString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		// Hex представление bytea: \x0102...
		if strings.HasPrefix(v, `\x`) {
			return hex.DecodeString(v[2:])
		}
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("invalid binary value of type %T", value)
	}
}

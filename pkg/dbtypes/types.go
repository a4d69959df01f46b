package dbtypes

import (
	"fmt"
	"strings"
)

// ColumnType представляет переносимый тип колонки.
// Переносимые имена отображаются на конкретные типы PostgreSQL
// через NativeType и обратно через PortableTypeForNative.
type ColumnType string

// Поддерживаемые переносимые типы
const (
	TypeInt       ColumnType = "int"
	TypeBigint    ColumnType = "bigint"
	TypeFloat     ColumnType = "float"
	TypeDecimal   ColumnType = "decimal"
	TypeBool      ColumnType = "bool"
	TypeText      ColumnType = "text"
	TypeDate      ColumnType = "date"
	TypeTimestamp ColumnType = "timestamp"
	TypeJSON      ColumnType = "json"
	TypeJSONB     ColumnType = "jsonb"
	TypeBinary    ColumnType = "binary"
	TypeGeometry  ColumnType = "geometry"
)

// columnTypeMap отображает входящие имена типов на переносимые.
// Расширяемое перечисление: синонимы нормализуются к каноническому типу.
var columnTypeMap = map[string]ColumnType{
	"bool":      TypeBool,
	"boolean":   TypeBool,
	"bigint":    TypeBigint,
	"binary":    TypeBinary,
	"bytea":     TypeBinary,
	"blob":      TypeBinary,
	"int":       TypeInt,
	"integer":   TypeInt,
	"float":     TypeFloat,
	"real":      TypeFloat,
	"double":    TypeDecimal,
	"decimal":   TypeDecimal,
	"numeric":   TypeDecimal,
	"number":    TypeDecimal,
	"date":      TypeDate,
	"datetime":  TypeTimestamp,
	"timestamp": TypeTimestamp,
	"json":      TypeJSON,
	"jsonb":     TypeJSONB,
	"text":      TypeText,
	"varchar":   TypeText,
	"unicode":   TypeText,
	"string":    TypeText,
	"geometry":  TypeGeometry,
}

// nativeTypeMap отображает переносимый тип на каноническое имя типа PostgreSQL
var nativeTypeMap = map[ColumnType]string{
	TypeInt:       "integer",
	TypeBigint:    "bigint",
	TypeFloat:     "double precision",
	TypeDecimal:   "numeric",
	TypeBool:      "boolean",
	TypeText:      "text",
	TypeDate:      "date",
	TypeTimestamp: "timestamp",
	TypeJSON:      "json",
	TypeJSONB:     "jsonb",
	TypeBinary:    "bytea",
	TypeGeometry:  "geometry",
}

// UnsupportedTypeError возвращается для нераспознанного имени типа.
// Ошибка возникает при построении ColumnSpec, а не при выполнении запроса.
type UnsupportedTypeError struct {
	Name string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported column type: %q", e.Name)
}

// ColumnTypeFor отображает входящее имя типа на переносимый тип.
// Нераспознанное имя - ошибка сразу, без отложенной проверки.
func ColumnTypeFor(name string) (ColumnType, error) {
	ct, ok := columnTypeMap[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return "", &UnsupportedTypeError{Name: name}
	}
	return ct, nil
}

// NativeType возвращает каноническое имя типа PostgreSQL
func NativeType(ct ColumnType) (string, error) {
	native, ok := nativeTypeMap[ct]
	if !ok {
		return "", &UnsupportedTypeError{Name: string(ct)}
	}
	return native, nil
}

// PortableTypeForNative отображает тип PostgreSQL (из information_schema)
// на переносимый тип. Модификаторы вида varchar(100) отбрасываются.
func PortableTypeForNative(nativeType string) (ColumnType, error) {
	base := strings.ToLower(strings.TrimSpace(nativeType))
	if idx := strings.Index(base, "("); idx != -1 {
		base = strings.TrimSpace(base[:idx])
	}

	switch base {
	case "smallint", "int2", "integer", "int", "int4", "serial":
		return TypeInt, nil
	case "bigint", "int8", "bigserial":
		return TypeBigint, nil
	case "real", "float4", "double precision", "float8":
		return TypeFloat, nil
	case "numeric", "decimal":
		return TypeDecimal, nil
	case "boolean", "bool":
		return TypeBool, nil
	case "character varying", "varchar", "character", "char", "text", "uuid", "name":
		return TypeText, nil
	case "date":
		return TypeDate, nil
	case "timestamp", "timestamp without time zone", "timestamp with time zone", "timestamptz":
		return TypeTimestamp, nil
	case "json":
		return TypeJSON, nil
	case "jsonb":
		return TypeJSONB, nil
	case "bytea":
		return TypeBinary, nil
	case "geometry", "user-defined":
		return TypeGeometry, nil
	default:
		return "", &UnsupportedTypeError{Name: nativeType}
	}
}

// IsDateTimeType проверяет является ли тип временным
func IsDateTimeType(ct ColumnType) bool {
	return ct == TypeDate || ct == TypeTimestamp
}

// IsJSONType проверяет относится ли тип к семейству JSON
func IsJSONType(ct ColumnType) bool {
	return ct == TypeJSON || ct == TypeJSONB
}

// IsNumericType проверяет является ли тип числовым
func IsNumericType(ct ColumnType) bool {
	switch ct {
	case TypeInt, TypeBigint, TypeFloat, TypeDecimal:
		return true
	default:
		return false
	}
}

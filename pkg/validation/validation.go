package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// safeSQLRegex задает допустимую форму SQL идентификатора.
// PostgreSQL усекает идентификаторы до 63 байт, поэтому длина
// ограничивается заранее, а не при выполнении запроса.
var safeSQLRegex = regexp.MustCompile(`^[0-9A-Za-z_]{1,63}$`)

// sqlTypeRegex задает допустимую форму SQL типа для DDL выражений,
// включая параметры вида varchar(100), numeric(18,2), geometry(Polygon,4326).
var sqlTypeRegex = regexp.MustCompile(`^[0-9A-Za-z_ ]+(\([0-9A-Za-z_, ]+\))?(\[\])?$`)

// reservedWords - зарезервированные слова PostgreSQL, требующие кавычек
var reservedWords = map[string]bool{
	"user": true, "order": true, "table": true, "select": true,
	"insert": true, "update": true, "delete": true, "where": true,
	"from": true, "join": true, "group": true, "having": true,
	"values": true, "into": true, "limit": true, "offset": true,
}

// ValidateIdentifier проверяет что name является безопасным SQL идентификатором.
// kind используется в тексте ошибки ("table", "column", "index").
func ValidateIdentifier(kind, name string) error {
	if name == "" {
		return fmt.Errorf("no %s name specified", kind)
	}
	if !safeSQLRegex.MatchString(name) {
		return fmt.Errorf("invalid %s name: %q", kind, name)
	}
	return nil
}

// ValidateIdentifiers проверяет список идентификаторов одного вида
func ValidateIdentifiers(kind string, names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("no %s names specified", kind)
	}
	for _, name := range names {
		if err := ValidateIdentifier(kind, name); err != nil {
			return err
		}
	}
	return nil
}

// ValidateSQLType проверяет что выражение типа пригодно для встраивания в DDL
func ValidateSQLType(sqlType string) error {
	if sqlType == "" || !sqlTypeRegex.MatchString(sqlType) {
		return fmt.Errorf("invalid column type: %q", sqlType)
	}
	return nil
}

// ValidateColumnsIn проверяет что все запрошенные колонки существуют в таблице.
// tableColumns - фактические колонки таблицы, columnNames - запрошенные.
// message - необязательный префикс текста ошибки.
func ValidateColumnsIn(tableName string, tableColumns, columnNames []string, message string) error {
	if message == "" {
		message = fmt.Sprintf("invalid column names for %q", tableName)
	}
	if len(columnNames) == 0 {
		return fmt.Errorf("%s: empty", message)
	}

	existing := make(map[string]bool, len(tableColumns))
	for _, c := range tableColumns {
		existing[c] = true
	}

	var invalid []string
	for _, c := range columnNames {
		if !existing[c] {
			invalid = append(invalid, c)
		}
	}
	if len(invalid) > 0 {
		return fmt.Errorf("%s: %s", message, strings.Join(invalid, ", "))
	}
	return nil
}

// IsReservedWord проверяет является ли слово зарезервированным в PostgreSQL
func IsReservedWord(word string) bool {
	return reservedWords[strings.ToLower(word)]
}

// QuoteIdentifier заключает идентификатор в двойные кавычки.
// Кавычки ставятся всегда: это сохраняет регистр и защищает от
// зарезервированных слов без отдельной проверки на каждом вызове.
func QuoteIdentifier(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

// SplitList разбирает "col1,col2,col3" в список имен.
// Списки колонок принимаются и строкой и срезом, как в конфигурации.
func SplitList(list string) []string {
	parts := strings.Split(list, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}

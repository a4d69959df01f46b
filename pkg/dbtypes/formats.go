package dbtypes

import (
	"fmt"
	"time"

	"github.com/ncruces/go-strftime"
)

// Форматы даты и времени по умолчанию (strftime-нотация)
const (
	DefaultDateFormat      = "%Y-%m-%d"
	DefaultTimestampFormat = "%Y-%m-%d %H:%M:%S"
)

// Formats хранит настраиваемые форматы даты и времени в strftime-нотации.
// Значения обычно приходят из конфигурации (date-format, timestamp-format).
type Formats struct {
	Date      string
	Timestamp string
}

// DefaultFormats возвращает форматы по умолчанию
func DefaultFormats() Formats {
	return Formats{
		Date:      DefaultDateFormat,
		Timestamp: DefaultTimestampFormat,
	}
}

// formatFor возвращает strftime-формат для временного типа
func (f Formats) formatFor(ct ColumnType) string {
	if ct == TypeDate {
		return f.Date
	}
	return f.Timestamp
}

// FormatError возвращается когда значение не разбирается
// по настроенному формату даты или времени.
type FormatError struct {
	Value  string
	Format string
	Type   ColumnType
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("value %q does not match %s format %q", e.Value, e.Type, e.Format)
}

// ParseTime разбирает строковое значение временного типа по настроенному формату
func (f Formats) ParseTime(value string, ct ColumnType) (time.Time, error) {
	format := f.formatFor(ct)
	t, err := strftime.Parse(format, value)
	if err != nil {
		return time.Time{}, &FormatError{Value: value, Format: format, Type: ct}
	}
	return t, nil
}

// FormatTime форматирует время по настроенному формату временного типа
func (f Formats) FormatTime(t time.Time, ct ColumnType) string {
	return strftime.Format(f.formatFor(ct), t)
}

package sqlutil

import "fmt"

// ConfigurationError возвращается при неверной конфигурации вызова
// (например, неположительный размер пачки) до выполнения запросов
type ConfigurationError struct {
	Message string
}

func (e *ConfigurationError) Error() string {
	return e.Message
}

// TransformError возвращается когда пользовательский callback вернул
// ошибку. Несет ключ строки, на которой произошел сбой: закоммиченные
// до этого пачки остаются применёнными.
type TransformError struct {
	Key any
	Err error
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed on row with key %v: %v", e.Key, e.Err)
}

func (e *TransformError) Unwrap() error {
	return e.Err
}

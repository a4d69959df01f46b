// Package dbtypes определяет переносимые типы колонок и двустороннее
// преобразование значений: Go представление <-> SQL литерал <-> нативное
// значение драйвера. Форматы даты и времени настраиваются strftime-строками.
package dbtypes

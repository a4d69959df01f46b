package db

import (
	"context"
	"fmt"
)

// ResolveTable приводит аргумент-таблицу к описанию живой схемы.
// Принимает имя таблицы (string) или уже загруженное описание
// (Table / *Table); имя разрешается через движок.
func ResolveTable(ctx context.Context, eng Engine, table any) (*Table, error) {
	switch v := table.(type) {
	case *Table:
		return v, nil
	case Table:
		return &v, nil
	case string:
		columns, err := eng.TableColumns(ctx, v)
		if err != nil {
			return nil, err
		}
		return &Table{Name: v, Columns: columns}, nil
	default:
		return nil, fmt.Errorf("invalid table argument of type %T", table)
	}
}

// Snapshot - срез живой схемы: все таблицы с их колонками на момент чтения
type Snapshot struct {
	Tables map[string]*Table
}

// LoadSnapshot читает все таблицы текущей схемы.
// Срез не отслеживает изменения: он отражает состояние на момент вызова.
func LoadSnapshot(ctx context.Context, eng Engine) (*Snapshot, error) {
	names, err := eng.TableNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema snapshot: %w", err)
	}

	snapshot := &Snapshot{Tables: make(map[string]*Table, len(names))}
	for _, name := range names {
		columns, err := eng.TableColumns(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to load columns of %s: %w", name, err)
		}
		snapshot.Tables[name] = &Table{Name: name, Columns: columns}
	}
	return snapshot, nil
}

// Table возвращает таблицу из среза по имени
func (s *Snapshot) Table(name string) (*Table, bool) {
	t, ok := s.Tables[name]
	return t, ok
}

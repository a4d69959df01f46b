package sqlutil

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/sqlgen"
)

// fakeRows реализует pgx.Rows поверх заранее подготовленных строк
type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.rows[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	return fmt.Errorf("not implemented")
}

// fakeEngine - таблица в памяти с ключом int64, обслуживающая
// чтение пачек и массовые UPDATE плана
type fakeEngine struct {
	table *db.Table
	data  map[int64][]any // ключ → значения не-ключевых колонок
	limit int             // LIMIT пачки, известный тесту

	queries  []string
	begun    int
	commits  int
	rollback int
	execErr  error // инъекция сбоя в Tx.Exec
}

func (f *fakeEngine) Connect(context.Context, db.Config) error { return nil }
func (f *fakeEngine) Close(context.Context) error              { return nil }
func (f *fakeEngine) Ping(context.Context) error               { return nil }
func (f *fakeEngine) EngineType() string                       { return "fake" }

func (f *fakeEngine) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	f.queries = append(f.queries, sql)
	return 0, nil
}

func (f *fakeEngine) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (f *fakeEngine) TableExists(_ context.Context, name string) (bool, error) {
	return name == f.table.Name, nil
}

func (f *fakeEngine) TableColumns(_ context.Context, name string) ([]db.Column, error) {
	if name != f.table.Name {
		return nil, fmt.Errorf("no table named %q", name)
	}
	return f.table.Columns, nil
}

func (f *fakeEngine) TableNames(context.Context) ([]string, error) {
	return []string{f.table.Name}, nil
}

func (f *fakeEngine) RowCount(context.Context, string) (int64, error) {
	return int64(len(f.data)), nil
}

func (f *fakeEngine) sortedKeys() []int64 {
	keys := make([]int64, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Query обслуживает чтение пачки: первая идет без нижней границы,
// последующие несут последний ключ в args[0]
func (f *fakeEngine) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.queries = append(f.queries, sql)

	var after int64 = -1 << 62
	if strings.Contains(sql, "WHERE") {
		after = args[0].(int64)
	}

	var rows [][]any
	for _, k := range f.sortedKeys() {
		if k <= after {
			continue
		}
		row := append([]any{k}, f.data[k]...)
		rows = append(rows, row)
		if len(rows) >= f.limit {
			break
		}
	}
	return &fakeRows{rows: rows}, nil
}

func (f *fakeEngine) BeginTx(context.Context) (db.Tx, error) {
	f.begun++
	return &fakeTx{engine: f}, nil
}

// fakeTx накапливает изменения и применяет их только на Commit
type fakeTx struct {
	engine  *fakeEngine
	staged  map[int64][]any
	done    bool
}

func (t *fakeTx) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	t.engine.queries = append(t.engine.queries, sql)
	if t.engine.execErr != nil {
		return 0, t.engine.execErr
	}

	// Ширина кортежа восстанавливается из списка колонок VALUES-алиаса
	alias := sql[strings.Index(sql, "AS v (")+len("AS v ("):]
	alias = alias[:strings.Index(alias, ")")]
	width := strings.Count(alias, ",") + 1
	if width < 2 || len(args)%width != 0 {
		return 0, fmt.Errorf("unexpected argument count %d for width %d", len(args), width)
	}

	t.staged = make(map[int64][]any)
	for i := 0; i < len(args); i += width {
		key := args[i].(int64)
		values := make([]any, width-1)
		copy(values, args[i+1:i+width])
		t.staged[key] = values
	}
	return int64(len(t.staged)), nil
}

func (t *fakeTx) Query(_ context.Context, sql string, args ...any) (pgx.Rows, error) {
	return &fakeRows{}, nil
}

func (t *fakeTx) Commit(context.Context) error {
	for k, v := range t.staged {
		t.engine.data[k] = v
	}
	t.engine.commits++
	t.done = true
	return nil
}

func (t *fakeTx) Rollback(context.Context) error {
	if !t.done {
		t.engine.rollback++
		t.done = true
	}
	return nil
}

func date(day int) time.Time {
	return time.Date(2026, 1, day, 0, 0, 0, 0, time.UTC)
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		table: &db.Table{
			Name: "demo_table",
			Columns: []db.Column{
				{Name: "id", DataType: "integer", PrimaryKey: true},
				{Name: "val", DataType: "text"},
				{Name: "created", DataType: "date"},
			},
		},
		data: map[int64][]any{
			1: {"one", date(1)},
			2: {"two", date(1)},
			3: {"three", date(1)},
		},
	}
}

// Пачки по 2 над таблицей из 3 строк: две пачки (2+1), каждая строка
// посещается ровно один раз, значения обновлены во всех строках
func TestUpdateRowsTwoChunks(t *testing.T) {
	eng := newFakeEngine()
	eng.limit = 2

	var visited []int64
	updated, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
		[]string{"val", "created"},
		func(row *Row) ([]any, error) {
			visited = append(visited, row.Key.(int64))
			val, _ := row.Value("val")
			created, _ := row.Value("created")
			return []any{
				fmt.Sprintf("%v %v first batch", row.Key, val),
				created.(time.Time).AddDate(0, 0, 1),
			}, nil
		},
		2)
	if err != nil {
		t.Fatalf("UpdateRows returned error: %v", err)
	}

	if updated != 3 {
		t.Errorf("updated = %d, expected 3", updated)
	}
	if len(visited) != 3 || visited[0] != 1 || visited[1] != 2 || visited[2] != 3 {
		t.Errorf("visited = %v, expected each row exactly once in key order", visited)
	}
	if eng.commits != 2 {
		t.Errorf("commits = %d, expected one per chunk", eng.commits)
	}

	expected := map[int64]string{
		1: "1 one first batch",
		2: "2 two first batch",
		3: "3 three first batch",
	}
	for k, want := range expected {
		if got := eng.data[k][0]; got != want {
			t.Errorf("row %d val = %q, expected %q", k, got, want)
		}
		if got := eng.data[k][1].(time.Time); !got.Equal(date(2)) {
			t.Errorf("row %d created = %v, expected %v", k, got, date(2))
		}
	}
}

// Каждый размер пачки в [1, R] посещает все R строк ровно по разу
func TestUpdateRowsEveryBatchSize(t *testing.T) {
	for batchSize := 1; batchSize <= 3; batchSize++ {
		eng := newFakeEngine()
		eng.limit = batchSize

		visited := make(map[int64]int)
		updated, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
			[]string{"val"},
			func(row *Row) ([]any, error) {
				visited[row.Key.(int64)]++
				return []any{"x"}, nil
			},
			batchSize)
		if err != nil {
			t.Fatalf("batch size %d: %v", batchSize, err)
		}
		if updated != 3 {
			t.Errorf("batch size %d: updated = %d", batchSize, updated)
		}
		for k := int64(1); k <= 3; k++ {
			if visited[k] != 1 {
				t.Errorf("batch size %d: row %d visited %d times", batchSize, k, visited[k])
			}
		}
	}
}

// nil от transform пропускает строку без UPDATE
func TestUpdateRowsSkip(t *testing.T) {
	eng := newFakeEngine()
	eng.limit = 10

	updated, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
		[]string{"val"},
		func(row *Row) ([]any, error) {
			if row.Key.(int64) == 2 {
				return []any{"changed"}, nil
			}
			return nil, nil
		},
		10)
	if err != nil {
		t.Fatalf("UpdateRows returned error: %v", err)
	}

	if updated != 1 {
		t.Errorf("updated = %d, expected 1", updated)
	}
	if eng.data[1][0] != "one" || eng.data[3][0] != "three" {
		t.Error("skipped rows must remain unchanged")
	}
	if eng.data[2][0] != "changed" {
		t.Errorf("row 2 val = %q", eng.data[2][0])
	}
}

// Сбой transform на второй пачке: первая пачка остается закоммиченной,
// вторая не применяется, ошибка несет ключ строки
func TestUpdateRowsTransformError(t *testing.T) {
	eng := newFakeEngine()
	eng.limit = 2

	boom := errors.New("boom")
	updated, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
		[]string{"val"},
		func(row *Row) ([]any, error) {
			if row.Key.(int64) == 3 {
				return nil, boom
			}
			return []any{fmt.Sprintf("updated %v", row.Key)}, nil
		},
		2)
	if err == nil {
		t.Fatal("expected transform error")
	}

	var transformErr *TransformError
	if !errors.As(err, &transformErr) {
		t.Fatalf("expected TransformError, got %T: %v", err, err)
	}
	if transformErr.Key != int64(3) {
		t.Errorf("error key = %v, expected 3", transformErr.Key)
	}
	if !errors.Is(err, boom) {
		t.Error("TransformError must wrap the callback error")
	}

	if updated != 2 {
		t.Errorf("updated = %d, expected 2 from the committed chunk", updated)
	}
	if eng.commits != 1 {
		t.Errorf("commits = %d, expected 1", eng.commits)
	}
	if eng.data[1][0] != "updated 1" || eng.data[2][0] != "updated 2" {
		t.Error("first chunk must remain committed")
	}
	if eng.data[3][0] != "three" {
		t.Errorf("row 3 val = %q, failed chunk must not be applied", eng.data[3][0])
	}
}

// Сбой массового UPDATE: транзакция пачки откатывается
func TestUpdateRowsExecError(t *testing.T) {
	eng := newFakeEngine()
	eng.limit = 10
	eng.execErr = errors.New("deadlock detected")

	_, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
		[]string{"val"},
		func(row *Row) ([]any, error) {
			return []any{"x"}, nil
		},
		10)
	if err == nil {
		t.Fatal("expected error")
	}
	if eng.commits != 0 {
		t.Errorf("commits = %d, expected 0", eng.commits)
	}
	if eng.rollback != 1 {
		t.Errorf("rollbacks = %d, expected 1", eng.rollback)
	}
	if eng.data[1][0] != "one" {
		t.Error("failed chunk must not be applied")
	}
}

func TestUpdateRowsInvalidBatchSize(t *testing.T) {
	eng := newFakeEngine()

	for _, batchSize := range []int{0, -1} {
		_, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
			[]string{"val"},
			func(row *Row) ([]any, error) { return nil, nil },
			batchSize)
		if err == nil {
			t.Fatalf("batch size %d: expected configuration error", batchSize)
		}

		var confErr *ConfigurationError
		if !errors.As(err, &confErr) {
			t.Fatalf("batch size %d: expected ConfigurationError, got %T", batchSize, err)
		}
	}
	if len(eng.queries) != 0 {
		t.Error("no query may run before configuration validation")
	}
}

func TestUpdateRowsEmptyTable(t *testing.T) {
	eng := newFakeEngine()
	eng.limit = 5
	eng.data = map[int64][]any{}

	calls := 0
	updated, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
		[]string{"val"},
		func(row *Row) ([]any, error) {
			calls++
			return nil, nil
		},
		5)
	if err != nil {
		t.Fatalf("UpdateRows returned error: %v", err)
	}
	if updated != 0 || calls != 0 {
		t.Errorf("updated = %d, calls = %d, expected 0/0", updated, calls)
	}
	if eng.begun != 0 {
		t.Errorf("transactions begun = %d, expected 0", eng.begun)
	}
}

// Живая схема сообщает геометрию как 'USER-DEFINED': касты в
// VALUES-подзапросе обязаны использовать каноническое имя типа
func TestUpdateRowsUserDefinedGeometry(t *testing.T) {
	eng := &fakeEngine{
		table: &db.Table{
			Name: "places",
			Columns: []db.Column{
				{Name: "id", DataType: "integer", PrimaryKey: true},
				{Name: "geom", DataType: "USER-DEFINED"},
			},
		},
		data: map[int64][]any{
			1: {"POINT(1 2)"},
		},
		limit: 10,
	}

	updated, err := UpdateRows(context.Background(), eng, nil, "places", "id",
		[]string{"geom"},
		func(row *Row) ([]any, error) {
			return []any{"POINT(3 4)"}, nil
		},
		10)
	if err != nil {
		t.Fatalf("UpdateRows returned error: %v", err)
	}
	if updated != 1 {
		t.Errorf("updated = %d, expected 1", updated)
	}
	if eng.data[1][0] != "POINT(3 4)" {
		t.Errorf("geom = %q, expected replacement applied", eng.data[1][0])
	}

	updateSQL := eng.queries[len(eng.queries)-1]
	if !strings.Contains(updateSQL, "::geometry") {
		t.Errorf("update SQL must cast via the canonical type name: %s", updateSQL)
	}
	if strings.Contains(updateSQL, "USER-DEFINED") {
		t.Errorf("raw schema data_type must not leak into SQL: %s", updateSQL)
	}
}

func TestUpdateRowsUnknownColumns(t *testing.T) {
	eng := newFakeEngine()
	eng.limit = 5

	// Неизвестная payload-колонка
	_, err := UpdateRows(context.Background(), eng, nil, "demo_table", "id",
		[]string{"missing"},
		func(row *Row) ([]any, error) { return nil, nil },
		5)
	var mismatch *sqlgen.ColumnMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ColumnMismatchError, got %T: %v", err, err)
	}

	// Неизвестный ключ сортировки
	_, err = UpdateRows(context.Background(), eng, nil, "demo_table", "missing",
		[]string{"val"},
		func(row *Row) ([]any, error) { return nil, nil },
		5)
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ColumnMismatchError for order key, got %T: %v", err, err)
	}

	// Ключ в payload
	_, err = UpdateRows(context.Background(), eng, nil, "demo_table", "id",
		[]string{"id"},
		func(row *Row) ([]any, error) { return nil, nil },
		5)
	var confErr *ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("expected ConfigurationError for key in payload, got %T: %v", err, err)
	}

	if len(eng.queries) != 0 {
		t.Error("preflight errors must be raised before any query")
	}
}

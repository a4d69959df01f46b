package sqlgen

import (
	"context"
	"errors"
	"testing"

	"github.com/ruslano69/pgtools/pkg/db"
	"github.com/ruslano69/pgtools/pkg/dbtypes"
)

// fakeProber - срез живой схемы в памяти для тестов компилятора
type fakeProber struct {
	tables map[string][]db.Column
}

func (f *fakeProber) TableExists(_ context.Context, tableName string) (bool, error) {
	_, ok := f.tables[tableName]
	return ok, nil
}

func (f *fakeProber) TableColumns(_ context.Context, tableName string) ([]db.Column, error) {
	return f.tables[tableName], nil
}

func buildTestValues(t *testing.T) *ValuesExpression {
	t.Helper()
	columns := specs(t, [][2]string{{"id", "int"}, {"val", "text"}})
	values, err := BuildValues(dbtypes.NewDefaultMapper(), columns, [][]any{
		{1, "one"},
		{2, "two"},
	})
	if err != nil {
		t.Fatalf("BuildValues returned error: %v", err)
	}
	return values
}

func TestCompileSelectIntoCreate(t *testing.T) {
	prober := &fakeProber{tables: map[string][]db.Column{}}
	values := buildTestValues(t)

	stmt, err := CompileSelectInto(context.Background(), prober, "new_table", nil, values)
	if err != nil {
		t.Fatalf("CompileSelectInto returned error: %v", err)
	}

	if stmt.Kind != StatementCreate {
		t.Errorf("Kind = %s, expected %s", stmt.Kind, StatementCreate)
	}
	expected := `SELECT "id", "val" INTO "new_table" FROM ` + values.FromSQL()
	if stmt.SQL != expected {
		t.Errorf("SQL =\n%s\nexpected\n%s", stmt.SQL, expected)
	}
}

func TestCompileSelectIntoInsert(t *testing.T) {
	prober := &fakeProber{tables: map[string][]db.Column{
		"new_table": {{Name: "id"}, {Name: "val"}, {Name: "extra"}},
	}}
	values := buildTestValues(t)

	stmt, err := CompileSelectInto(context.Background(), prober, "new_table", nil, values)
	if err != nil {
		t.Fatalf("CompileSelectInto returned error: %v", err)
	}

	if stmt.Kind != StatementInsert {
		t.Errorf("Kind = %s, expected %s", stmt.Kind, StatementInsert)
	}
	expected := `INSERT INTO "new_table" ("id", "val") SELECT "id", "val" FROM ` + values.FromSQL()
	if stmt.SQL != expected {
		t.Errorf("SQL =\n%s\nexpected\n%s", stmt.SQL, expected)
	}
}

// Повторная компиляция после появления таблицы меняет вариант:
// сначала create, затем insert
func TestCompileSelectIntoTwice(t *testing.T) {
	prober := &fakeProber{tables: map[string][]db.Column{}}
	values := buildTestValues(t)
	ctx := context.Background()

	first, err := CompileSelectInto(ctx, prober, "report", nil, values)
	if err != nil {
		t.Fatalf("first compile: %v", err)
	}
	if first.Kind != StatementCreate {
		t.Errorf("first Kind = %s, expected create", first.Kind)
	}

	prober.tables["report"] = []db.Column{{Name: "id"}, {Name: "val"}}

	second, err := CompileSelectInto(ctx, prober, "report", nil, values)
	if err != nil {
		t.Fatalf("second compile: %v", err)
	}
	if second.Kind != StatementInsert {
		t.Errorf("second Kind = %s, expected insert", second.Kind)
	}
}

func TestCompileSelectIntoColumnMismatch(t *testing.T) {
	prober := &fakeProber{tables: map[string][]db.Column{
		"target": {{Name: "id"}},
	}}
	values := buildTestValues(t)

	_, err := CompileSelectInto(context.Background(), prober, "target", nil, values)
	if err == nil {
		t.Fatal("expected column mismatch error")
	}

	var mismatch *ColumnMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected ColumnMismatchError, got %T: %v", err, err)
	}
	if mismatch.Table != "target" {
		t.Errorf("mismatch.Table = %q", mismatch.Table)
	}
	if len(mismatch.Missing) != 1 || mismatch.Missing[0] != "val" {
		t.Errorf("mismatch.Missing = %v", mismatch.Missing)
	}
}

func TestCompileSelectIntoTableRef(t *testing.T) {
	prober := &fakeProber{tables: map[string][]db.Column{
		"src": {{Name: "id"}, {Name: "val"}},
	}}

	source, err := NewTableRef("src", []string{"id", "val"})
	if err != nil {
		t.Fatalf("NewTableRef returned error: %v", err)
	}

	stmt, err := CompileSelectInto(context.Background(), prober, "copy_of_src", nil, source)
	if err != nil {
		t.Fatalf("CompileSelectInto returned error: %v", err)
	}
	expected := `SELECT "id", "val" INTO "copy_of_src" FROM "src"`
	if stmt.SQL != expected {
		t.Errorf("SQL = %s", stmt.SQL)
	}
}

func TestCompileSelectIntoInvalidTarget(t *testing.T) {
	prober := &fakeProber{tables: map[string][]db.Column{}}
	values := buildTestValues(t)

	if _, err := CompileSelectInto(context.Background(), prober, "x; DROP TABLE y", nil, values); err == nil {
		t.Error("expected error for unsafe target name")
	}
}

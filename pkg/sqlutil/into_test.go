package sqlutil

import (
	"context"
	"strings"
	"testing"

	"github.com/ruslano69/pgtools/pkg/dbtypes"
	"github.com/ruslano69/pgtools/pkg/sqlgen"
)

func buildValues(t *testing.T, pairs [][2]string, rows [][]any) *sqlgen.ValuesExpression {
	t.Helper()
	columns, err := sqlgen.NewColumnSpecs(pairs)
	if err != nil {
		t.Fatalf("NewColumnSpecs returned error: %v", err)
	}
	values, err := sqlgen.BuildValues(dbtypes.NewDefaultMapper(), columns, rows)
	if err != nil {
		t.Fatalf("BuildValues returned error: %v", err)
	}
	return values
}

func TestSelectIntoCreatesMissingTable(t *testing.T) {
	eng := newFakeEngine()
	values := buildValues(t, [][2]string{{"id", "int"}, {"val", "text"}}, [][]any{{1, "one"}})

	kind, err := SelectInto(context.Background(), eng, "new_table", nil, values)
	if err != nil {
		t.Fatalf("SelectInto returned error: %v", err)
	}
	if kind != sqlgen.StatementCreate {
		t.Errorf("kind = %s, expected create", kind)
	}
	if len(eng.queries) != 1 || !strings.HasPrefix(eng.queries[0], `SELECT "id", "val" INTO "new_table"`) {
		t.Errorf("executed = %v", eng.queries)
	}
}

func TestSelectIntoInsertsIntoExisting(t *testing.T) {
	eng := newFakeEngine()
	values := buildValues(t, [][2]string{{"id", "int"}, {"val", "text"}}, [][]any{{1, "one"}})

	kind, err := SelectInto(context.Background(), eng, "demo_table", nil, values)
	if err != nil {
		t.Fatalf("SelectInto returned error: %v", err)
	}
	if kind != sqlgen.StatementInsert {
		t.Errorf("kind = %s, expected insert", kind)
	}
	if len(eng.queries) != 1 || !strings.HasPrefix(eng.queries[0], `INSERT INTO "demo_table" ("id", "val")`) {
		t.Errorf("executed = %v", eng.queries)
	}
}

func TestInsertIntoColumnMismatch(t *testing.T) {
	eng := newFakeEngine()
	values := buildValues(t, [][2]string{{"id", "int"}, {"missing", "text"}}, [][]any{{1, "one"}})

	_, err := InsertInto(context.Background(), eng, "demo_table", values)
	if err == nil {
		t.Fatal("expected column mismatch error")
	}
	if len(eng.queries) != 0 {
		t.Error("mismatch must be detected before execution")
	}
}

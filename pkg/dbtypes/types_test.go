package dbtypes

import (
	"errors"
	"testing"
)

func TestColumnTypeFor(t *testing.T) {
	tests := []struct {
		name     string
		expected ColumnType
	}{
		{"int", TypeInt},
		{"integer", TypeInt},
		{"INTEGER", TypeInt},
		{"  bigint  ", TypeBigint},
		{"float", TypeFloat},
		{"real", TypeFloat},
		{"decimal", TypeDecimal},
		{"numeric", TypeDecimal},
		{"bool", TypeBool},
		{"boolean", TypeBool},
		{"text", TypeText},
		{"varchar", TypeText},
		{"string", TypeText},
		{"date", TypeDate},
		{"datetime", TypeTimestamp},
		{"timestamp", TypeTimestamp},
		{"json", TypeJSON},
		{"jsonb", TypeJSONB},
		{"bytea", TypeBinary},
		{"geometry", TypeGeometry},
	}

	for _, tt := range tests {
		ct, err := ColumnTypeFor(tt.name)
		if err != nil {
			t.Errorf("ColumnTypeFor(%q) returned error: %v", tt.name, err)
			continue
		}
		if ct != tt.expected {
			t.Errorf("ColumnTypeFor(%q) = %q, expected %q", tt.name, ct, tt.expected)
		}
	}
}

func TestColumnTypeForUnsupported(t *testing.T) {
	_, err := ColumnTypeFor("hstore")
	if err == nil {
		t.Fatal("expected error for unsupported type")
	}

	var unsupported *UnsupportedTypeError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedTypeError, got %T", err)
	}
	if unsupported.Name != "hstore" {
		t.Errorf("error carries name %q, expected %q", unsupported.Name, "hstore")
	}
}

func TestNativeType(t *testing.T) {
	tests := []struct {
		ct       ColumnType
		expected string
	}{
		{TypeInt, "integer"},
		{TypeBigint, "bigint"},
		{TypeFloat, "double precision"},
		{TypeDecimal, "numeric"},
		{TypeBool, "boolean"},
		{TypeText, "text"},
		{TypeDate, "date"},
		{TypeTimestamp, "timestamp"},
		{TypeJSON, "json"},
		{TypeJSONB, "jsonb"},
		{TypeBinary, "bytea"},
		{TypeGeometry, "geometry"},
	}

	for _, tt := range tests {
		native, err := NativeType(tt.ct)
		if err != nil {
			t.Errorf("NativeType(%q) returned error: %v", tt.ct, err)
			continue
		}
		if native != tt.expected {
			t.Errorf("NativeType(%q) = %q, expected %q", tt.ct, native, tt.expected)
		}
	}
}

func TestPortableTypeForNative(t *testing.T) {
	tests := []struct {
		native   string
		expected ColumnType
	}{
		{"integer", TypeInt},
		{"smallint", TypeInt},
		{"bigint", TypeBigint},
		{"double precision", TypeFloat},
		{"numeric", TypeDecimal},
		{"character varying", TypeText},
		{"varchar(100)", TypeText},
		{"uuid", TypeText},
		{"timestamp without time zone", TypeTimestamp},
		{"timestamp with time zone", TypeTimestamp},
		{"jsonb", TypeJSONB},
		{"bytea", TypeBinary},
		{"USER-DEFINED", TypeGeometry},
	}

	for _, tt := range tests {
		ct, err := PortableTypeForNative(tt.native)
		if err != nil {
			t.Errorf("PortableTypeForNative(%q) returned error: %v", tt.native, err)
			continue
		}
		if ct != tt.expected {
			t.Errorf("PortableTypeForNative(%q) = %q, expected %q", tt.native, ct, tt.expected)
		}
	}

	if _, err := PortableTypeForNative("tsrange"); err == nil {
		t.Error("expected error for unknown native type")
	}
}

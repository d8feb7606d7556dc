package model

import (
	"errors"
	"strings"
	"testing"
)

func TestBuilderName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason FieldErrorReason // "" means valid
	}{
		{"empty rejected", "", FieldRequired},
		{"over limit rejected", strings.Repeat("a", MaxNameLen+1), FieldTooLong},
		{"at limit ok", strings.Repeat("a", MaxNameLen), ""},
		{"simple ok", "ok", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := NewBuilder().Name(tt.input).Value("v").Build()
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("Build: %v", err)
				}
				if key.Name != tt.input {
					t.Errorf("Name did not round-trip: got %q", key.Name)
				}
				return
			}
			if !errors.Is(err, &FieldError{Field: "name", Reason: tt.reason}) {
				t.Errorf("expected name %s, got %v", tt.reason, err)
			}
		})
	}
}

func TestBuilderNameRuneCount(t *testing.T) {
	// 200 multi-byte characters are within the limit; the check counts
	// characters, not bytes.
	name := strings.Repeat("ü", MaxNameLen)
	key, err := NewBuilder().Name(name).Value("v").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if key.Name != name {
		t.Error("multi-byte name did not round-trip")
	}
}

func TestBuilderValue(t *testing.T) {
	if _, err := NewBuilder().Name("n").Value("").Build(); !errors.Is(err, &FieldError{Field: "value", Reason: FieldRequired}) {
		t.Errorf("empty value: got %v", err)
	}
	long := strings.Repeat("f", MaxValueLen+1)
	if _, err := NewBuilder().Name("n").Value(long).Build(); !errors.Is(err, &FieldError{Field: "value", Reason: FieldTooLong}) {
		t.Errorf("long value: got %v", err)
	}
}

func TestBuilderAllowedIPsOptional(t *testing.T) {
	key, err := NewBuilder().Name("n").Value("v").AllowedIPs("").Build()
	if err != nil {
		t.Fatalf("empty allowed_ips must be accepted: %v", err)
	}
	if key.AllowedIPs != "" {
		t.Errorf("got %q", key.AllowedIPs)
	}

	long := strings.Repeat("1", MaxAllowedIPsLen+1)
	if _, err := NewBuilder().Name("n").Value("v").AllowedIPs(long).Build(); !errors.Is(err, &FieldError{Field: "allowed_ips", Reason: FieldTooLong}) {
		t.Errorf("long allowed_ips: got %v", err)
	}
}

func TestBuilderAccumulatesErrors(t *testing.T) {
	_, err := NewBuilder().
		Name("").
		Value(strings.Repeat("x", MaxValueLen+1)).
		Build()
	if err == nil {
		t.Fatal("expected error")
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Fatalf("expected 2 field errors, got %d: %v", len(verrs), verrs)
	}
	if !errors.Is(err, &FieldError{Field: "name", Reason: FieldRequired}) {
		t.Error("missing name error")
	}
	if !errors.Is(err, &FieldError{Field: "value", Reason: FieldTooLong}) {
		t.Error("missing value error")
	}
}

func TestBuilderNegativeID(t *testing.T) {
	_, err := NewBuilder().ID(-1).Name("n").Value("v").Build()
	if !errors.Is(err, &FieldError{Field: "api_key_id", Reason: OutOfBounds}) {
		t.Errorf("got %v", err)
	}
}

func TestBuilderNoPermissionsIsValid(t *testing.T) {
	key, err := NewBuilder().Name("useless").Value("v").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if key.PermRegister || key.PermLogin || key.PermManage {
		t.Error("expected all permissions false by default")
	}
}

func fullRow() map[string]any {
	return map[string]any{
		"id":            int64(3),
		"name":          "ci key",
		"value":         "deadbeef",
		"allowed_ips":   "10.0.0.0/24",
		"perm_register": int64(1),
		"perm_login":    int64(0),
		"perm_manage":   false,
	}
}

func TestImport(t *testing.T) {
	key, err := Import(fullRow())
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if key.ID != 3 || key.Name != "ci key" || key.Value != "deadbeef" {
		t.Errorf("unexpected key: %+v", key)
	}
	if !key.PermRegister {
		t.Error("perm_register should coerce from int64(1)")
	}
	if key.PermLogin || key.PermManage {
		t.Error("perm_login/perm_manage should be false")
	}
}

func TestImportMissingField(t *testing.T) {
	for _, field := range []string{"id", "name", "value", "allowed_ips", "perm_register", "perm_login", "perm_manage"} {
		row := fullRow()
		delete(row, field)
		_, err := Import(row)
		if !errors.Is(err, &FieldError{Field: field, Reason: FieldMissing}) {
			t.Errorf("missing %s: got %v", field, err)
		}
	}
}

func TestImportNegativeID(t *testing.T) {
	row := fullRow()
	row["id"] = int64(-5)
	_, err := Import(row)
	if !errors.Is(err, &FieldError{Field: "api_key_id", Reason: OutOfBounds}) {
		t.Errorf("got %v", err)
	}
}

func TestImportByteSliceColumns(t *testing.T) {
	// MySQL's driver returns []byte for text columns.
	row := fullRow()
	row["name"] = []byte("bytes name")
	row["value"] = []byte("bytes value")
	row["allowed_ips"] = []byte("")
	key, err := Import(row)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if key.Name != "bytes name" || key.Value != "bytes value" || key.AllowedIPs != "" {
		t.Errorf("byte columns did not coerce: %+v", key)
	}
}

func TestPermissionsHas(t *testing.T) {
	p := Permissions{Register: true, Manage: true}
	if !p.Has(PermRegister) || !p.Has(PermManage) {
		t.Error("granted permissions not reported")
	}
	if p.Has(PermLogin) {
		t.Error("login not granted")
	}
	if p.Has("delete") || p.Has("") {
		t.Error("unrecognized names must be false")
	}

	var zero Permissions
	for _, name := range []string{PermRegister, PermLogin, PermManage} {
		if zero.Has(name) {
			t.Errorf("zero Permissions granted %s", name)
		}
	}
}

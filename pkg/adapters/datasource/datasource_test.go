package datasource

import (
	"errors"
	"testing"

	"github.com/querysmith/querysmith-engine/pkg/apperrors"
)

func TestSplitQualifiedName(t *testing.T) {
	tests := []struct {
		input      string
		wantSchema string
		wantTable  string
	}{
		{"public.orders", "public", "orders"},
		{"orders", "dflt", "orders"},
		{"a.b.c", "a", "b.c"},
	}
	for _, tt := range tests {
		schema, table := SplitQualifiedName(tt.input, "dflt")
		if schema != tt.wantSchema || table != tt.wantTable {
			t.Errorf("SplitQualifiedName(%q) = (%q, %q), want (%q, %q)",
				tt.input, schema, table, tt.wantSchema, tt.wantTable)
		}
	}
}

func TestRegistry(t *testing.T) {
	Register(AdapterRegistration{
		Info: AdapterInfo{Type: "fake", DisplayName: "Fake", Dialect: "fake"},
		EngineFactory: func(config map[string]any) (Engine, error) {
			return nil, nil
		},
		ValidateConfig: func(config map[string]any) []apperrors.FieldError {
			return nil
		},
	})

	if !IsRegistered("fake") {
		t.Error("fake adapter not registered")
	}
	if IsRegistered("nope") {
		t.Error("unknown adapter reported registered")
	}

	found := false
	for _, info := range RegisteredAdapters() {
		if info.Type == "fake" {
			found = true
		}
	}
	if !found {
		t.Error("fake adapter missing from listing")
	}
}

func TestEngineFactory_UnknownType(t *testing.T) {
	factory := NewEngineFactory()

	_, err := factory.CreateEngine("no-such-backend", nil)
	if !errors.Is(err, apperrors.ErrUnsupportedBackend) {
		t.Errorf("err = %v, want ErrUnsupportedBackend", err)
	}

	fieldErrs := factory.ValidateConfig("no-such-backend", nil)
	if len(fieldErrs) != 1 {
		t.Errorf("fieldErrs = %v, want one entry", fieldErrs)
	}
}

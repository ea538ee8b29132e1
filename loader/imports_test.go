package loader

import (
	"errors"
	"reflect"
	"testing"

	"github.com/caffeineduck/fnhost/internal/wasmtest"
)

func TestImportNamespaces(t *testing.T) {
	mixed := wasmtest.NewBuilder()
	mixed.Import("env", "f", nil, nil)
	mixed.ImportGlobal("globals", "base", wasmtest.I32)
	mixed.Import("env", "g", nil, nil)
	mixed.ImportGlobal("wide", "base", wasmtest.I64)

	tests := []struct {
		name string
		bin  []byte
		want []string
	}{
		{"no imports", wasmtest.Hello(), nil},
		{"function", wasmtest.MissingImport(), []string{"missing.module"}},
		{"global only", wasmtest.MissingGlobalImport(), []string{"missing.module"}},
		{"mixed kinds in order", mixed.Bytes(), []string{"env", "globals", "wide"}},
		{"wasi", wasmtest.ImportsWASI(), []string{"wasi_snapshot_preview1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := importNamespaces(tt.bin)
			if err != nil {
				t.Fatalf("importNamespaces failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestImportNamespacesMalformed(t *testing.T) {
	header := []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}

	tests := map[string][]byte{
		"short":              header[:4],
		"section overruns":   append(append([]byte{}, header...), 0x02, 0x10, 0x01),
		"unknown kind":       append(append([]byte{}, header...), 0x02, 0x06, 0x01, 0x01, 'm', 0x01, 'n', 0x09),
		"truncated function": append(append([]byte{}, header...), 0x02, 0x05, 0x01, 0x01, 'm', 0x01, 'n'),
	}
	for name, bin := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := importNamespaces(bin); !errors.Is(err, errMalformedImports) {
				t.Errorf("expected errMalformedImports, got %v", err)
			}
		})
	}
}

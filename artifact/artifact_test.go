package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/caffeineduck/fnhost/internal/wasmtest"
	"github.com/opencontainers/go-digest"
)

func TestModuleName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"io/fission/HelloWorld.wasm", "io.fission.HelloWorld"},
		{"/io/fission/HelloWorld.wasm", "io.fission.HelloWorld"},
		{"./lib.wasm", "lib"},
		{"io.fission.HelloWorld", "io.fission.HelloWorld"},
		{"hello.wasm", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ModuleName(tt.path); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestInspectArchive(t *testing.T) {
	p := wasmtest.WriteZip(t, "fn.jar",
		wasmtest.E("io/fission/Lib.wasm", wasmtest.Library()),
		wasmtest.E("io/fission/HelloWorld.wasm", wasmtest.Hello()),
		wasmtest.E("README.txt", []byte("not a module")),
	)

	set, err := Inspect(p)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if set.Kind != KindArchive {
		t.Errorf("expected archive, got %s", set.Kind)
	}
	want := []string{"io.fission.Lib", "io.fission.HelloWorld"}
	if !reflect.DeepEqual(set.Names(), want) {
		t.Errorf("expected %v, got %v", want, set.Names())
	}
	if !strings.HasPrefix(set.Digest.String(), "sha256:") {
		t.Errorf("unexpected digest %q", set.Digest)
	}
	if err := set.Digest.Validate(); err != nil {
		t.Errorf("invalid digest: %v", err)
	}

	m, ok := set.Lookup("io.fission.HelloWorld")
	if !ok {
		t.Fatal("Lookup failed")
	}
	if m.Path != "io/fission/HelloWorld.wasm" {
		t.Errorf("unexpected path %q", m.Path)
	}
	if !reflect.DeepEqual(m.Binary, wasmtest.Hello()) {
		t.Error("binary mismatch")
	}
}

func TestInspectSingleModule(t *testing.T) {
	p := wasmtest.WriteFile(t, "hello.wasm", wasmtest.Hello())

	set, err := Inspect(p)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if set.Kind != KindModule {
		t.Errorf("expected module, got %s", set.Kind)
	}
	if !reflect.DeepEqual(set.Names(), []string{"hello"}) {
		t.Errorf("unexpected names %v", set.Names())
	}
	if want := digest.FromBytes(wasmtest.Hello()); set.Digest != want {
		t.Errorf("expected digest %s, got %s", want, set.Digest)
	}
}

func TestInspectModuleByMagic(t *testing.T) {
	p := wasmtest.WriteFile(t, "user", wasmtest.Hello())

	set, err := Inspect(p)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if set.Kind != KindModule || set.Modules[0].Name != "user" {
		t.Errorf("unexpected set %+v", set)
	}
}

func TestInspectDirectory(t *testing.T) {
	root := wasmtest.WriteDir(t,
		wasmtest.E("io/fission/HelloWorld.wasm", wasmtest.Hello()),
		wasmtest.E("a/lib.wasm", wasmtest.Library()),
		wasmtest.E("notes.md", []byte("#")),
	)

	set, err := Inspect(root)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if set.Kind != KindDirectory {
		t.Errorf("expected directory, got %s", set.Kind)
	}
	want := []string{"a.lib", "io.fission.HelloWorld"}
	if !reflect.DeepEqual(set.Names(), want) {
		t.Errorf("expected %v, got %v", want, set.Names())
	}
	if set.Digest == "" {
		t.Error("expected digest")
	}
}

func TestInspectErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.jar")
	if err := os.WriteFile(garbage, []byte("this is not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		location string
		kind     fnerr.Kind
	}{
		{"missing", filepath.Join(dir, "nope.jar"), fnerr.KindArtifactNotFound},
		{"not a zip", garbage, fnerr.KindArtifactUnreadable},
		{"no modules", wasmtest.WriteZip(t, "empty.jar", wasmtest.E("a.txt", []byte("x"))), fnerr.KindArtifactUnreadable},
		{"empty dir", t.TempDir(), fnerr.KindArtifactUnreadable},
		{"duplicate", wasmtest.WriteZip(t, "dup.jar",
			wasmtest.E("a/b.wasm", wasmtest.Library()),
			wasmtest.E("a.b.wasm", wasmtest.Library()),
		), fnerr.KindArtifactUnreadable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Inspect(tt.location)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := fnerr.KindOf(err); got != tt.kind {
				t.Errorf("expected %s, got %s (%v)", tt.kind, got, err)
			}
		})
	}
}

func TestExists(t *testing.T) {
	if err := Exists(wasmtest.HelloJar(t)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	err := Exists(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, fnerr.ErrArtifactNotFound) {
		t.Errorf("expected ArtifactNotFound, got %v", err)
	}
}

package wasmtest

import (
	"archive/zip"
	"os"
	"path"
	"path/filepath"
	"testing"
)

// Entry is one file of a test artifact.
type Entry struct {
	Path string
	Data []byte
}

// E is shorthand for an Entry.
func E(p string, data []byte) Entry {
	return Entry{Path: p, Data: data}
}

// WriteZip writes a JAR-like archive under a temp dir and returns its path.
// Parent directory entries and a manifest are added the way jar tools do.
func WriteZip(tb testing.TB, name string, entries ...Entry) string {
	tb.Helper()

	p := filepath.Join(tb.TempDir(), name)
	f, err := os.Create(p)
	if err != nil {
		tb.Fatalf("create %s: %v", p, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := addZip(zw, "META-INF/MANIFEST.MF", []byte("Manifest-Version: 1.0\n")); err != nil {
		tb.Fatalf("write manifest: %v", err)
	}
	seen := map[string]bool{"META-INF/": true}
	for _, e := range entries {
		for dir := path.Dir(e.Path); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if seen[dir+"/"] {
				break
			}
			seen[dir+"/"] = true
			if _, err := zw.Create(dir + "/"); err != nil {
				tb.Fatalf("write dir entry: %v", err)
			}
		}
		if err := addZip(zw, e.Path, e.Data); err != nil {
			tb.Fatalf("write %s: %v", e.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return p
}

func addZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteDir lays entries out as a directory tree and returns its root.
func WriteDir(tb testing.TB, entries ...Entry) string {
	tb.Helper()

	root := tb.TempDir()
	for _, e := range entries {
		p := filepath.Join(root, filepath.FromSlash(e.Path))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			tb.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(p, e.Data, 0o644); err != nil {
			tb.Fatalf("write %s: %v", p, err)
		}
	}
	return root
}

// WriteFile writes a single file under a temp dir and returns its path.
func WriteFile(tb testing.TB, name string, data []byte) string {
	tb.Helper()

	p := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", p, err)
	}
	return p
}

// HelloJar is the canonical one-class artifact: io/fission/HelloWorld.wasm.
func HelloJar(tb testing.TB) string {
	tb.Helper()
	return WriteZip(tb, "hello.jar", E("io/fission/HelloWorld.wasm", Hello()))
}

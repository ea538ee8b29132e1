package artifact

import (
	"archive/zip"
	"bytes"
	_ "crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/caffeineduck/fnhost/fnerr"
	"github.com/opencontainers/go-digest"
)

// Kind is the layout of an artifact.
type Kind string

const (
	KindArchive   Kind = "archive"
	KindModule    Kind = "module"
	KindDirectory Kind = "directory"
)

const wasmSuffix = ".wasm"

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6D}

// Module is one loadable unit of an artifact.
type Module struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Binary []byte `json:"-"`
}

// ModuleSet is the ordered list of modules found in an artifact. Archive
// entry order is kept for zips; directories are walked in lexical order.
type ModuleSet struct {
	Location string        `json:"location"`
	Kind     Kind          `json:"kind"`
	Digest   digest.Digest `json:"digest"`
	Modules  []Module      `json:"modules"`
}

// Names returns the module names in set order.
func (s *ModuleSet) Names() []string {
	names := make([]string, len(s.Modules))
	for i, m := range s.Modules {
		names[i] = m.Name
	}
	return names
}

// Lookup returns the module called name.
func (s *ModuleSet) Lookup(name string) (*Module, bool) {
	for i := range s.Modules {
		if s.Modules[i].Name == name {
			return &s.Modules[i], true
		}
	}
	return nil, false
}

// ModuleName converts an artifact path to a module name.
func ModuleName(path string) string {
	name := filepath.ToSlash(path)
	name = strings.TrimPrefix(name, "./")
	name = strings.TrimLeft(name, "/")
	name = strings.TrimSuffix(name, wasmSuffix)
	return strings.ReplaceAll(name, "/", ".")
}

// Exists reports whether location can be stat'ed. It does not open it.
func Exists(location string) error {
	if _, err := os.Stat(location); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fnerr.ArtifactNotFound(location, err)
		}
		return fnerr.ArtifactUnreadable(location, "stat failed", err)
	}
	return nil
}

// Inspect opens the artifact at location and lists its modules.
func Inspect(location string) (*ModuleSet, error) {
	info, err := os.Stat(location)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fnerr.ArtifactNotFound(location, err)
		}
		return nil, fnerr.ArtifactUnreadable(location, "stat failed", err)
	}

	var set *ModuleSet
	if info.IsDir() {
		set, err = inspectDir(location)
	} else {
		set, err = inspectFile(location, info.Size())
	}
	if err != nil {
		return nil, err
	}

	if len(set.Modules) == 0 {
		return nil, fnerr.ArtifactUnreadable(location, "no loadable modules", nil)
	}
	return set, nil
}

func inspectFile(location string, size int64) (*ModuleSet, error) {
	f, err := os.Open(location)
	if err != nil {
		return nil, fnerr.ArtifactUnreadable(location, "open failed", err)
	}
	defer f.Close()

	if isModule(f, location) {
		bin, err := io.ReadAll(f)
		if err != nil {
			return nil, fnerr.ArtifactUnreadable(location, "read failed", err)
		}
		base := filepath.Base(location)
		return &ModuleSet{
			Location: location,
			Kind:     KindModule,
			Digest:   digest.FromBytes(bin),
			Modules:  []Module{{Name: ModuleName(base), Path: base, Binary: bin}},
		}, nil
	}

	dgst, err := digest.FromReader(io.NewSectionReader(f, 0, size))
	if err != nil {
		return nil, fnerr.ArtifactUnreadable(location, "read failed", err)
	}

	zr, err := zip.NewReader(f, size)
	if err != nil {
		return nil, fnerr.ArtifactUnreadable(location, "not a valid archive", err)
	}

	set := &ModuleSet{Location: location, Kind: KindArchive, Digest: dgst}
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() || !strings.HasSuffix(zf.Name, wasmSuffix) {
			continue
		}
		bin, err := readMember(zf)
		if err != nil {
			return nil, fnerr.ArtifactUnreadable(location, fmt.Sprintf("read %s", zf.Name), err)
		}
		if err := set.add(zf.Name, bin); err != nil {
			return nil, err
		}
	}
	return set, nil
}

func isModule(f *os.File, location string) bool {
	if strings.HasSuffix(location, wasmSuffix) {
		return true
	}
	magic := make([]byte, len(wasmMagic))
	n, _ := f.ReadAt(magic, 0)
	return n == len(magic) && bytes.Equal(magic, wasmMagic)
}

func readMember(zf *zip.File) ([]byte, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func inspectDir(root string) (*ModuleSet, error) {
	set := &ModuleSet{Location: root, Kind: KindDirectory}
	digester := digest.Canonical.Digester()

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), wasmSuffix) {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		bin, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		fmt.Fprintf(digester.Hash(), "%s\x00%d\x00", rel, len(bin))
		digester.Hash().Write(bin)
		return set.add(rel, bin)
	})
	if err != nil {
		if fnerr.KindOf(err) != "" {
			return nil, err
		}
		return nil, fnerr.ArtifactUnreadable(root, "walk failed", err)
	}

	set.Digest = digester.Digest()
	return set, nil
}

func (s *ModuleSet) add(path string, bin []byte) error {
	name := ModuleName(path)
	if _, dup := s.Lookup(name); dup {
		return fnerr.ArtifactUnreadable(s.Location, fmt.Sprintf("duplicate module %s", name), nil)
	}
	s.Modules = append(s.Modules, Module{Name: name, Path: path, Binary: bin})
	return nil
}

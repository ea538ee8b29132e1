package loader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
)

const (
	wasmHeaderSize   = 8
	importSectionID  = 2
	importKindFunc   = 0x00
	importKindTable  = 0x01
	importKindMemory = 0x02
	importKindGlobal = 0x03
	importKindTag    = 0x04
	limitsHasMaximum = 0x01
)

var errMalformedImports = errors.New("malformed import section")

// importNamespaces returns the distinct module names bin imports from, in
// declaration order. Every import kind counts, not just functions and
// memories, so a module importing only a global or table from a missing
// dependency is caught before instantiation.
func importNamespaces(bin []byte) ([]string, error) {
	if len(bin) < wasmHeaderSize {
		return nil, errMalformedImports
	}
	r := bytes.NewReader(bin[wasmHeaderSize:])
	for r.Len() > 0 {
		id, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		size, err := binary.ReadUvarint(r)
		if err != nil || size > uint64(r.Len()) {
			return nil, errMalformedImports
		}
		if id != importSectionID {
			r.Seek(int64(size), io.SeekCurrent)
			continue
		}
		section := make([]byte, size)
		r.Read(section)
		return parseImportSection(bytes.NewReader(section))
	}
	return nil, nil
}

func parseImportSection(r *bytes.Reader) ([]string, error) {
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errMalformedImports
	}
	var names []string
	for i := uint64(0); i < count; i++ {
		module, err := readName(r)
		if err != nil {
			return nil, err
		}
		if _, err := readName(r); err != nil {
			return nil, err
		}
		if err := skipImportDesc(r); err != nil {
			return nil, fmt.Errorf("import %d from %s: %w", i, module, err)
		}
		if !slices.Contains(names, module) {
			names = append(names, module)
		}
	}
	return names, nil
}

func readName(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil || n > uint64(r.Len()) {
		return "", errMalformedImports
	}
	b := make([]byte, n)
	r.Read(b)
	return string(b), nil
}

func skipImportDesc(r *bytes.Reader) error {
	kind, err := r.ReadByte()
	if err != nil {
		return errMalformedImports
	}
	switch kind {
	case importKindFunc:
		_, err = binary.ReadUvarint(r)
	case importKindTable:
		if _, err = r.ReadByte(); err == nil {
			err = skipLimits(r)
		}
	case importKindMemory:
		err = skipLimits(r)
	case importKindGlobal:
		// value type, then mutability
		if _, err = r.ReadByte(); err == nil {
			_, err = r.ReadByte()
		}
	case importKindTag:
		if _, err = r.ReadByte(); err == nil {
			_, err = binary.ReadUvarint(r)
		}
	default:
		return fmt.Errorf("%w: unknown import kind %#x", errMalformedImports, kind)
	}
	if err != nil {
		return errMalformedImports
	}
	return nil
}

func skipLimits(r *bytes.Reader) error {
	flags, err := r.ReadByte()
	if err != nil {
		return err
	}
	if _, err := binary.ReadUvarint(r); err != nil {
		return err
	}
	if flags&limitsHasMaximum != 0 {
		_, err = binary.ReadUvarint(r)
	}
	return err
}

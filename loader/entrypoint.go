package loader

import (
	"strings"

	"github.com/caffeineduck/fnhost/artifact"
)

// DefaultExport is the handler export used when an entry point names only a
// module.
const DefaultExport = "handle"

// EntryPoint identifies the handler inside an artifact.
type EntryPoint struct {
	Module string
	Export string
}

func (e EntryPoint) String() string {
	if e.Export == DefaultExport {
		return e.Module
	}
	return e.Module + "#" + e.Export
}

// ParseEntryPoint parses "module[#export]". Module paths such as
// io/fission/HelloWorld.wasm are normalized to io.fission.HelloWorld.
func ParseEntryPoint(s string) EntryPoint {
	s = strings.TrimSpace(s)
	module, export, _ := strings.Cut(s, "#")
	if export == "" {
		export = DefaultExport
	}
	return EntryPoint{Module: artifact.ModuleName(module), Export: export}
}

package ldproxy

import (
	"bytes"
	"debug/elf"
	"debug/macho"
	"strings"

	"github.com/tangramdotdev/tgproxy/internal/hostsys"
	"github.com/tangramdotdev/tgproxy/internal/manifest"
)

// InterpreterKind mirrors the original's InterpreterRequirement sum type.
type InterpreterKind int

const (
	// InterpreterNone: the file is statically linked; no wrapping needed.
	InterpreterNone InterpreterKind = iota
	// InterpreterDefault: use the platform's standard dynamic linker.
	InterpreterDefault
	// InterpreterPath: PT_INTERP names a non-standard interpreter to preserve.
	InterpreterPath
)

type InterpreterRequirement struct {
	Kind   InterpreterKind
	Flavor manifest.InterpreterKind // only meaningful when Kind == InterpreterDefault
	Path   string                   // only meaningful when Kind == InterpreterPath
}

// AnalyzeResult is the Go analogue of AnalyzeOutputFileOutput.
type AnalyzeResult struct {
	IsExecutable   bool
	Interpreter    InterpreterRequirement
	Name           string // soname on Linux, install name on Darwin
	NeededLibraries []string
}

// AnalyzeFile inspects an ELF or Mach-O binary's container metadata. The
// original implementation hand-parses these formats directly (zerocopy
// struct overlays over the raw bytes, shared with the manifest embedding
// code). The standard library's debug/elf and debug/macho packages are the
// idiomatic Go equivalent of that same parsing — symbol/program-header
// walking is exactly the use case they exist for, and nothing in the
// retrieval pack offers an alternative structural ELF/Mach-O parser; see
// DESIGN.md.
func AnalyzeFile(path string, triple hostsys.Triple) (AnalyzeResult, error) {
	if triple.IsDarwin() {
		return analyzeMachO(path)
	}
	return analyzeELF(path)
}

func analyzeELF(path string) (AnalyzeResult, error) {
	f, err := elf.Open(path)
	if err != nil {
		return AnalyzeResult{}, err
	}
	defer f.Close()

	var result AnalyzeResult
	result.NeededLibraries, _ = f.ImportedLibraries()

	var interpData []byte
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_INTERP {
			data := make([]byte, prog.Filesz)
			if r := prog.Open(); r != nil {
				_, _ = r.Read(data)
			}
			interpData = bytes.TrimRight(data, "\x00")
		}
	}

	switch {
	case len(interpData) > 0:
		interp := string(interpData)
		result.IsExecutable = true
		if strings.Contains(interp, "ld-linux") {
			result.Interpreter = InterpreterRequirement{Kind: InterpreterDefault, Flavor: manifest.LdLinux}
		} else if strings.Contains(interp, "ld-musl") {
			result.Interpreter = InterpreterRequirement{Kind: InterpreterDefault, Flavor: manifest.LdMusl}
		} else {
			result.Interpreter = InterpreterRequirement{Kind: InterpreterPath, Path: interp}
		}
	case f.Type == elf.ET_EXEC || (f.Type == elf.ET_DYN && f.Entry != 0 && len(result.NeededLibraries) == 0):
		result.IsExecutable = true
		result.Interpreter = InterpreterRequirement{Kind: InterpreterNone}
	default:
		// A shared object with no interpreter segment: it's a library, not
		// the final linked executable.
		result.IsExecutable = false
		if sonames := f.DynString(elf.DT_SONAME); len(sonames) > 0 {
			result.Name = sonames[0]
		}
	}
	return result, nil
}

func analyzeMachO(path string) (AnalyzeResult, error) {
	f, err := macho.Open(path)
	if err != nil {
		return AnalyzeResult{}, err
	}
	defer f.Close()

	var result AnalyzeResult
	result.NeededLibraries, _ = f.ImportedLibraries()

	switch f.Type {
	case macho.TypeExec:
		result.IsExecutable = true
		result.Interpreter = InterpreterRequirement{Kind: InterpreterDefault, Flavor: manifest.DyLd}
	case macho.TypeDylib, macho.TypeBundle:
		result.IsExecutable = false
		result.Name = dylibInstallName(f)
	default:
		result.IsExecutable = true
		result.Interpreter = InterpreterRequirement{Kind: InterpreterDefault, Flavor: manifest.DyLd}
	}
	return result, nil
}

func dylibInstallName(f *macho.File) string {
	for _, l := range f.Loads {
		if dl, ok := l.(*macho.Dylib); ok {
			return dl.Name
		}
	}
	return ""
}

// IsLibraryCandidate reports whether a bare command-line argument names a
// dynamic library file directly (as opposed to via -L/-l), per platform
// convention; ld-linux/ld-musl paths are excluded since those name the
// interpreter, not a NEEDED dependency.
func IsLibraryCandidate(arg string, triple hostsys.Triple) bool {
	if triple.IsDarwin() {
		return strings.Contains(arg, ".dylib")
	}
	if strings.Contains(arg, "ld-linux") || strings.Contains(arg, "ld-musl") {
		return false
	}
	return strings.Contains(arg, ".so")
}

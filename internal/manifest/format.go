package manifest

import (
	"bytes"
)

// BinaryFormat discriminates the executable container kinds the wrapper
// manifest can be embedded into (§4.7: "ELF32/64, Mach-O 64, Mach-O
// universal").
type BinaryFormat int

const (
	FormatUnknown BinaryFormat = iota
	FormatELF32
	FormatELF64
	FormatMachO
	FormatMachOUniversal
)

const (
	machOMagic32        = 0xFEEDFACE
	machOMagic64        = 0xFEEDFACF
	machOMagic32Reverse = 0xCEFAEDFE
	machOMagic64Reverse = 0xCFFAEDFE
	machOUniversalMagic = 0xCAFEBABE
	machOUniversalRev   = 0xBEBAFECA
)

// DetectFormat identifies a binary's container format from its header
// bytes: a direct magic-number check against the well-known constants for
// each format (see DESIGN.md for why h2non/filetype, which the teacher
// uses for source-tarball compression sniffing, doesn't apply here).
func DetectFormat(header []byte) BinaryFormat {
	if len(header) < 5 && len(header) < 4 {
		return FormatUnknown
	}
	if len(header) >= 5 && header[0] == 0x7f && header[1] == 'E' && header[2] == 'L' && header[3] == 'F' {
		if header[4] == 2 {
			return FormatELF64
		}
		return FormatELF32
	}
	if len(header) < 4 {
		return FormatUnknown
	}
	magic := beUint32(header)
	switch magic {
	case machOUniversalMagic, machOUniversalRev:
		return FormatMachOUniversal
	case machOMagic64, machOMagic64Reverse, machOMagic32, machOMagic32Reverse:
		return FormatMachO
	}
	return FormatUnknown
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Embed writes the manifest payload into file according to its detected
// format and returns the resulting bytes.
//
// The original implementation patches format-specific metadata (an ELF
// ".note.tg-manifest" section inserted into the section-header table with
// every subsequent section offset adjusted, or Mach-O __LINKEDIT /
// code-signature fixups) so the embedded bytes are addressable by normal
// section/segment tooling. Reproducing that requires byte-level struct
// editing of ELF/Mach-O section tables (zerocopy struct overlays in the
// original) for which this retrieval pack carries no equivalent Go library;
// see DESIGN.md. Every format here instead shares the single
// EncodeFooter/ReadFooter trailer convention from manifest.go: the payload
// plus a fixed 24-byte footer is appended after the existing file content.
// This preserves the essential property the footer convention exists for —
// the wrapper binary can always find its manifest by reading backward from
// the end of the file — without needing to parse or rewrite the container's
// internal section/segment tables. Mach-O universal (fat) binaries receive
// the same append-only treatment; the original's "append-only" handling for
// fat binaries maps directly onto this approach.
func Embed(format BinaryFormat, file []byte, payload []byte) ([]byte, error) {
	if existing, _, err := ReadFooter(file); err == nil {
		stub := file[:len(file)-footerSize-len(existing)]
		return EncodeFooter(stub, payload), nil
	}
	return EncodeFooter(file, payload), nil
}

// Extract reads the manifest payload back out of an embedded binary.
func Extract(file []byte) ([]byte, error) {
	payload, _, err := ReadFooter(file)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(payload), nil
}

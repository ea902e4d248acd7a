package crypt

import "encoding/binary"

// Permissions mirrors the PDF P entry: access-level flags from Table 22 of
// ISO 32000-2.
type Permissions int32

const (
	PermissionPrint          Permissions = 1 << (3 - 1)
	PermissionModify         Permissions = 1 << (4 - 1)
	PermissionExtract        Permissions = 1 << (5 - 1)
	PermissionAnnotate       Permissions = 1 << (6 - 1)
	PermissionFillForms      Permissions = 1 << (9 - 1)
	PermissionAccessibility  Permissions = 1 << (10 - 1)
	PermissionAssemble       Permissions = 1 << (11 - 1)
	PermissionPrintHighRes   Permissions = 1 << (12 - 1)

	// reservedBits are the reserved bits 7, 8, and 13-32, which must be 1
	// (0xFFFFF0C0, written here as its signed 32-bit value). The reserved
	// bits 1 and 2 must be 0 and are not included.
	reservedBits Permissions = -0xF40
)

// Has reports whether every flag in want is set.
func (p Permissions) Has(want Permissions) bool {
	return p&want == want
}

// bytesLE writes p as 4 little-endian bytes, used in key derivation step 2
// ("P-entry as little-endian 4-byte signed").
func (p Permissions) bytesLE() []byte {
	var out [4]byte
	binary.LittleEndian.PutUint32(out[:], uint32(int32(p)))
	return out[:]
}

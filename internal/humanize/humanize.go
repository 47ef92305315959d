// Package humanize formats byte counts and POSIX file modes for
// human-readable CLI output (the byte count in create's summary line).
package humanize

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// POSIX S_IFMT file-type bits (mode_t layout), independent of os.FileMode's
// own bit assignment, since manifest MODE values are raw stat(2) mode_t.
const (
	sIFMT   = 0o170000
	sIFSOCK = 0o140000
	sIFLNK  = 0o120000
	sIFREG  = 0o100000
	sIFBLK  = 0o060000
	sIFDIR  = 0o040000
	sIFCHR  = 0o020000
	sIFIFO  = 0o010000
)

// Bytes renders a byte count using binary (IEC) units, e.g. "4.2 MiB".
func Bytes(n uint64) string {
	return humanize.IBytes(n)
}

// Mode renders a full ls-style mode string for the given metadata mode bits,
// including the leading file-type character and setuid/setgid/sticky bits.
// os.FileMode.String() can't be used here since it has its own bit layout
// distinct from POSIX mode_t; this reconstructs the ten-character ls(1)
// rendering directly from the raw stat(2) bits instead.
func Mode(mode uint32) string {
	var b [10]byte
	b[0] = typeChar(mode)

	perm := mode & 0o777
	triplet := func(shift uint, specialBit uint32, specialCharSet, specialCharUnset byte) [3]byte {
		r := byte('-')
		w := byte('-')
		x := byte('-')
		if perm&(0o4<<shift) != 0 {
			r = 'r'
		}
		if perm&(0o2<<shift) != 0 {
			w = 'w'
		}
		if perm&(0o1<<shift) != 0 {
			x = specialCharUnset
		}
		if mode&specialBit != 0 {
			x = specialCharSet
			if perm&(0o1<<shift) == 0 {
				// ls(1) shows S/T when the special bit is set without execute.
				x = specialCharSet - 'a' + 'A'
			}
		}
		return [3]byte{r, w, x}
	}

	owner := triplet(6, 0o4000, 's', 'x')
	group := triplet(3, 0o2000, 's', 'x')
	other := triplet(0, 0o1000, 't', 'x')

	copy(b[1:4], owner[:])
	copy(b[4:7], group[:])
	copy(b[7:10], other[:])

	return string(b[:])
}

func typeChar(mode uint32) byte {
	switch mode & sIFMT {
	case sIFDIR:
		return 'd'
	case sIFLNK:
		return 'l'
	case sIFIFO:
		return 'p'
	case sIFSOCK:
		return 's'
	case sIFCHR:
		return 'c'
	case sIFBLK:
		return 'b'
	case sIFREG:
		return '-'
	default:
		return '?'
	}
}

// Summary renders a one-line "N file(s), SIZE" summary.
func Summary(files int, size uint64) string {
	return fmt.Sprintf("%d file(s), %s", files, Bytes(size))
}

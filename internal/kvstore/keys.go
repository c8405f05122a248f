package kvstore

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/quadmatch/internal/ir"
)

// Index identifies one key ordering.
type Index byte

// Key prefixes for the four index orders.
const (
	IndexSPOG Index = 0x01
	IndexPOSG Index = 0x02
	IndexOSPG Index = 0x03
	IndexGSPO Index = 0x04
)

// indexes lists every index in preference order for tie-breaking.
var indexes = []Index{IndexSPOG, IndexPOSG, IndexOSPG, IndexGSPO}

// order maps key segment i to a pattern position (ir.PosG..ir.PosO).
func (ix Index) order() [4]int {
	switch ix {
	case IndexSPOG:
		return [4]int{ir.PosS, ir.PosP, ir.PosO, ir.PosG}
	case IndexPOSG:
		return [4]int{ir.PosP, ir.PosO, ir.PosS, ir.PosG}
	case IndexOSPG:
		return [4]int{ir.PosO, ir.PosS, ir.PosP, ir.PosG}
	default:
		return [4]int{ir.PosG, ir.PosS, ir.PosP, ir.PosO}
	}
}

// String returns the index name, e.g. "POSG".
func (ix Index) String() string {
	switch ix {
	case IndexSPOG:
		return "SPOG"
	case IndexPOSG:
		return "POSG"
	case IndexOSPG:
		return "OSPG"
	case IndexGSPO:
		return "GSPO"
	default:
		return fmt.Sprintf("index(%d)", byte(ix))
	}
}

// quadKey encodes the term keys of a canonical quad, indexed by pattern
// position, under ix.
func quadKey(ix Index, keys [4]string) []byte {
	size := 1
	for _, k := range keys {
		size += binary.MaxVarintLen64 + len(k)
	}
	buf := make([]byte, 1, size)
	buf[0] = byte(ix)
	for _, pos := range ix.order() {
		buf = appendSegment(buf, keys[pos])
	}
	return buf
}

// prefixKey encodes the leading bound segments of a scan.
func prefixKey(ix Index, segments []string) []byte {
	buf := []byte{byte(ix)}
	for _, s := range segments {
		buf = appendSegment(buf, s)
	}
	return buf
}

func appendSegment(buf []byte, s string) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(s)))
	return append(buf, s...)
}

var errCorruptKey = errors.New("corrupt index key")

// decodeKey splits a key back into term keys indexed by pattern position.
func decodeKey(key []byte) (Index, [4]string, error) {
	var out [4]string
	if len(key) == 0 {
		return 0, out, errCorruptKey
	}
	ix := Index(key[0])
	rest := key[1:]
	for _, pos := range ix.order() {
		n, w := binary.Uvarint(rest)
		if w <= 0 || uint64(len(rest)-w) < n {
			return 0, out, fmt.Errorf("%w: %x", errCorruptKey, key)
		}
		out[pos] = string(rest[w : w+int(n)])
		rest = rest[w+int(n):]
	}
	if len(rest) != 0 {
		return 0, out, fmt.Errorf("%w: trailing bytes in %x", errCorruptKey, key)
	}
	return ix, out, nil
}

// chooseIndex returns the index whose order begins with the longest run of
// bound positions, and the number of leading bound positions.
func chooseIndex(bound [4]bool) (Index, int) {
	best, bestLen := IndexSPOG, -1
	for _, ix := range indexes {
		n := 0
		for _, pos := range ix.order() {
			if !bound[pos] {
				break
			}
			n++
		}
		if n > bestLen {
			best, bestLen = ix, n
		}
	}
	return best, bestLen
}

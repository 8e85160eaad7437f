package component

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

// maxNameLength bounds allocations to prevent OOM from malformed binaries
const maxNameLength = 100000

var readerPool = sync.Pool{
	New: func() any {
		return &bytes.Reader{}
	},
}

func getReader(data []byte) *bytes.Reader {
	r := readerPool.Get().(*bytes.Reader)
	r.Reset(data)
	return r
}

func putReader(r *bytes.Reader) {
	r.Reset(nil)
	readerPool.Put(r)
}

func readLEB128(r io.ByteReader) (uint32, error) {
	var result uint32
	var shift uint
	for range 5 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}
	return 0, fmt.Errorf("LEB128 encoding exceeded maximum length")
}

// readSLEB128 reads a var_s33; negative values encode primitive value types.
func readSLEB128(r io.ByteReader) (int64, error) {
	var result int64
	var shift uint
	for range 5 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			if shift < 64 && b&0x40 != 0 {
				result |= -1 << shift
			}
			return result, nil
		}
	}
	return 0, fmt.Errorf("SLEB128 encoding exceeded maximum length")
}

func readName(r *bytes.Reader) (string, error) {
	length, err := readLEB128(r)
	if err != nil {
		return "", err
	}
	if length > maxNameLength || int(length) > r.Len() {
		return "", fmt.Errorf("name length %d exceeds remaining %d bytes", length, r.Len())
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// readExternName reads an importname' or exportname': a 0x00 or 0x01
// prefix followed by the name. 0x01 marks a name with a version suffix.
func readExternName(r *bytes.Reader) (string, bool, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return "", false, err
	}
	if kind > 0x01 {
		return "", false, fmt.Errorf("unsupported name encoding 0x%02x", kind)
	}
	name, err := readName(r)
	return name, kind == 0x01, err
}

func readExternDesc(r *bytes.Reader) (kind byte, index uint32, err error) {
	if kind, err = r.ReadByte(); err != nil {
		return 0, 0, err
	}
	switch kind {
	case ExternCoreModule:
		b, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		if b != 0x11 {
			return 0, 0, fmt.Errorf("expected 0x11 after core module kind, got 0x%02x", b)
		}
		index, err = readLEB128(r)
		return kind, index, err
	case ExternFunc, ExternComponent, ExternInstance:
		index, err = readLEB128(r)
	case ExternValue:
		bound, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		switch bound {
		case 0x00:
			index, err = readLEB128(r)
		case 0x01:
			var t int64
			t, err = readSLEB128(r)
			if t > 0 {
				index = uint32(t)
			}
		default:
			return 0, 0, fmt.Errorf("unknown value bound 0x%02x", bound)
		}
		return kind, index, err
	case ExternType:
		bound, err := r.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		switch bound {
		case 0x00:
			index, err = readLEB128(r)
		case 0x01:
		default:
			return 0, 0, fmt.Errorf("unknown type bound 0x%02x", bound)
		}
		return kind, index, err
	default:
		return 0, 0, fmt.Errorf("unknown extern kind 0x%02x", kind)
	}
	return kind, index, err
}

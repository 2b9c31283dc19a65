package loader

import (
	"bytes"
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	sectionExport = 7

	externFunc   = 0x00
	externTable  = 0x01
	externMemory = 0x02
	externGlobal = 0x03
)

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

type wasmExport struct {
	name string
	kind byte
}

// exportSection lists the exports of a binary module in declaration order.
// wazero only enumerates exported functions and memories, so tables and
// globals are read from the binary itself.
func exportSection(bin []byte) ([]wasmExport, error) {
	if !bytes.HasPrefix(bin, wasmHeader) {
		return nil, errors.New("not a wasm binary module")
	}
	r := &wasmReader{buf: bin[len(wasmHeader):]}
	for len(r.buf) > 0 {
		id, err := r.next()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		body, err := r.slice(size)
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", id)
		}
		if id == sectionExport {
			return readExports(&wasmReader{buf: body})
		}
	}
	return nil, nil
}

func readExports(r *wasmReader) ([]wasmExport, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	exports := make([]wasmExport, 0, count)
	for i := uint32(0); i < count; i++ {
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		name, err := r.slice(n)
		if err != nil {
			return nil, errors.Wrapf(err, "export %d name", i)
		}
		kind, err := r.next()
		if err != nil {
			return nil, err
		}
		// index into the kind's index space, unused
		if _, err := r.u32(); err != nil {
			return nil, err
		}
		exports = append(exports, wasmExport{name: string(name), kind: kind})
	}
	return exports, nil
}

type wasmReader struct {
	buf []byte
}

func (r *wasmReader) next() (byte, error) {
	if len(r.buf) == 0 {
		return 0, errors.New("unexpected end of wasm binary")
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b, nil
}

// u32 reads an unsigned LEB128, the same encoding as a Go uvarint
func (r *wasmReader) u32() (uint32, error) {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 || v > 0xffffffff {
		return 0, errors.New("malformed LEB128 in wasm binary")
	}
	r.buf = r.buf[n:]
	return uint32(v), nil
}

func (r *wasmReader) slice(n uint32) ([]byte, error) {
	if uint64(n) > uint64(len(r.buf)) {
		return nil, errors.New("unexpected end of wasm binary")
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b, nil
}

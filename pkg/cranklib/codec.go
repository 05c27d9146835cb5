package cranklib

import (
	"encoding/binary"
	"fmt"
)

// Account and message bytes use a little-endian, length-prefixed layout.
// binWriter and binReader keep the per-type codecs flat; the reader carries a
// sticky error so decode paths check once at the end.

type binWriter struct {
	buf []byte
}

func (w *binWriter) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *binWriter) u64(v uint64) {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
}

func (w *binWriter) i64(v int64) {
	w.u64(uint64(v))
}

func (w *binWriter) flag(v bool) {
	if v {
		w.u8(1)
	} else {
		w.u8(0)
	}
}

func (w *binWriter) addr(a Address) {
	w.buf = append(w.buf, a[:]...)
}

func (w *binWriter) sig(s Signature) {
	w.buf = append(w.buf, s[:]...)
}

func (w *binWriter) blob(b []byte) {
	w.u64(uint64(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *binWriter) str(s string) {
	w.blob([]byte(s))
}

type binReader struct {
	buf []byte
	off int
	err error
}

func (r *binReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d of %d", ErrShortAccountData, n, r.off, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *binReader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *binReader) u64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (r *binReader) i64() int64 {
	return int64(r.u64())
}

func (r *binReader) flag() bool {
	return r.u8() == 1
}

func (r *binReader) addr() Address {
	var a Address
	copy(a[:], r.take(len(a)))
	return a
}

func (r *binReader) sig() Signature {
	var s Signature
	copy(s[:], r.take(len(s)))
	return s
}

func (r *binReader) blob() []byte {
	n := r.u64()
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.buf)-r.off) {
		r.err = fmt.Errorf("%w: blob length %d exceeds remaining %d", ErrShortAccountData, n, len(r.buf)-r.off)
		return nil
	}
	return append([]byte(nil), r.take(int(n))...)
}

func (r *binReader) str() string {
	return string(r.blob())
}

package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/mesh-intelligence/hookvault/pkg/types"
)

// DiscriminatorSize is the length of the type tag that leads every record.
const DiscriminatorSize = 8

// Discriminator is the leading type tag of a persisted record.
type Discriminator [DiscriminatorSize]byte

// NewDiscriminator derives the tag for a record type name. Tags are the
// first eight bytes of BLAKE3("account:" + name).
func NewDiscriminator(name string) Discriminator {
	sum := blake3.Sum256([]byte("account:" + name))
	var d Discriminator
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

// Writer appends fixed-width little-endian fields.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with room for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

func (w *Writer) Discriminator(d Discriminator) *Writer {
	w.buf = append(w.buf, d[:]...)
	return w
}

func (w *Writer) Identity(id types.Identity) *Writer {
	w.buf = append(w.buf, id[:]...)
	return w
}

func (w *Writer) Uint64(v uint64) *Writer {
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v)
	return w
}

func (w *Writer) Uint32(v uint32) *Writer {
	w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	return w
}

func (w *Writer) Uint8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) Bool(v bool) *Writer {
	if v {
		return w.Uint8(1)
	}
	return w.Uint8(0)
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

// Bytes returns the encoded record.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Reader consumes fixed-width little-endian fields. The first short read
// sticks: later calls return zero values and Err reports the failure.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader returns a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.err = fmt.Errorf("%w: need %d bytes at offset %d, have %d",
			types.ErrInvalidAccountData, n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

// Expect consumes the discriminator and fails unless it equals d.
func (r *Reader) Expect(d Discriminator) *Reader {
	b := r.take(DiscriminatorSize)
	if b == nil {
		return r
	}
	if Discriminator(b) != d {
		r.err = fmt.Errorf("%w: unexpected discriminator", types.ErrInvalidAccountData)
	}
	return r
}

func (r *Reader) Identity() types.Identity {
	var id types.Identity
	if b := r.take(types.IdentitySize); b != nil {
		copy(id[:], b)
	}
	return id
}

func (r *Reader) Uint64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *Reader) Uint32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *Reader) Uint8() uint8 {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *Reader) Bool() bool {
	return r.Uint8() != 0
}

// Raw returns a copy of the next n bytes.
func (r *Reader) Raw(n int) []byte {
	b := r.take(n)
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// Remaining returns how many unread bytes are left.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Err returns the first decoding failure.
func (r *Reader) Err() error {
	return r.err
}

// Done returns Err, or an error if unread bytes remain.
func (r *Reader) Done() error {
	if r.err != nil {
		return r.err
	}
	if r.off != len(r.data) {
		return fmt.Errorf("%w: %d trailing bytes", types.ErrInvalidAccountData, len(r.data)-r.off)
	}
	return nil
}

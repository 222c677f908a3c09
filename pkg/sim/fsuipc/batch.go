package fsuipc

import (
	"encoding/binary"
	"fmt"

	"trafficviewer/pkg/sim"
)

// IPC record identifiers.
const (
	recordEnd   uint32 = 0
	recordRead  uint32 = 1
	recordWrite uint32 = 2
)

// maxBatchSize is the data area the server accepts per exchange.
const maxBatchSize = 0x7F00

const ptrSize = 4 << (^uintptr(0) >> 63)

// A read record carries a client pointer the server echoes back untouched.
const (
	readHeaderSize  = 12 + (ptrSize - 4) + ptrSize
	writeHeaderSize = 12
)

type pendingRead struct {
	header int
	data   int
	dst    []byte
}

// batch accumulates read and write records for one exchange.
type batch struct {
	buf   []byte
	reads []pendingRead
}

func (b *batch) fits(n int) error {
	// Keep room for the end marker.
	if len(b.buf)+n+4 > maxBatchSize {
		return &sim.LinkError{Code: sim.CodeSize}
	}
	return nil
}

func (b *batch) read(offset uint32, dst []byte) error {
	if err := b.fits(readHeaderSize + len(dst)); err != nil {
		return err
	}
	header := len(b.buf)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, recordRead)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, offset)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(dst)))
	b.buf = append(b.buf, make([]byte, readHeaderSize-12+len(dst))...)
	b.reads = append(b.reads, pendingRead{
		header: header,
		data:   header + readHeaderSize,
		dst:    dst,
	})
	return nil
}

func (b *batch) write(offset uint32, src []byte) error {
	if err := b.fits(writeHeaderSize + len(src)); err != nil {
		return err
	}
	b.buf = binary.LittleEndian.AppendUint32(b.buf, recordWrite)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, offset)
	b.buf = binary.LittleEndian.AppendUint32(b.buf, uint32(len(src)))
	b.buf = append(b.buf, src...)
	return nil
}

func (b *batch) empty() bool {
	return len(b.buf) == 0
}

// bytes returns the request terminated by the end marker.
func (b *batch) bytes() []byte {
	out := make([]byte, len(b.buf), len(b.buf)+4)
	copy(out, b.buf)
	return binary.LittleEndian.AppendUint32(out, recordEnd)
}

// complete copies the answered reads into their destinations.
func (b *batch) complete(resp []byte) error {
	for _, r := range b.reads {
		end := r.data + len(r.dst)
		if end > len(resp) {
			return fmt.Errorf("short response (%d < %d): %w", len(resp), end, &sim.LinkError{Code: sim.CodeBadData})
		}
		if id := binary.LittleEndian.Uint32(resp[r.header:]); id != recordRead {
			return fmt.Errorf("record at %d has id %d: %w", r.header, id, &sim.LinkError{Code: sim.CodeBadData})
		}
		copy(r.dst, resp[r.data:end])
	}
	return nil
}

func (b *batch) reset() {
	b.buf = b.buf[:0]
	b.reads = b.reads[:0]
}

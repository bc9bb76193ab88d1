// Package wire implements the frame codec (C1): the outermost layer of
// the protocol, responsible only for splitting a byte stream into
// tag-prefixed, length-delimited frames. It knows nothing about CBOR or
// message semantics — those live in pkg/protocol.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// DefaultMaxFrameLength is the cap on a single frame's payload length
// applied when a Reader is constructed without an explicit override
// (spec.md §6).
const DefaultMaxFrameLength = 16 * 1024 * 1024

// headerLength is the fixed tag(1) + length(4) prefix every frame carries.
const headerLength = 1 + 4

// Frame is a single tag-prefixed unit off (or onto) the wire. Payload is
// the raw CBOR bytes; pkg/protocol decodes it.
type Frame struct {
	Tag     byte
	Payload []byte
}

// Reader decodes frames from an underlying stream.
type Reader struct {
	r           *bufio.Reader
	maxFrameLen uint32
}

// NewReader wraps r with the default frame-length cap.
func NewReader(r io.Reader) *Reader {
	return NewReaderSize(r, DefaultMaxFrameLength)
}

// NewReaderSize wraps r with an explicit frame-length cap.
func NewReaderSize(r io.Reader, maxFrameLen int) *Reader {
	return &Reader{r: bufio.NewReader(r), maxFrameLen: uint32(maxFrameLen)}
}

// ReadFrame reads exactly one frame: a tag byte, a big-endian uint32
// length, then that many payload bytes (spec.md §4.1). It returns
// io.EOF unmodified when the stream ends cleanly between frames.
func (fr *Reader) ReadFrame() (Frame, error) {
	header := make([]byte, headerLength)
	if _, err := io.ReadFull(fr.r, header[:1]); err != nil {
		return Frame{}, err
	}
	if _, err := io.ReadFull(fr.r, header[1:]); err != nil {
		return Frame{}, fmt.Errorf("wire: reading frame length: %w", err)
	}

	tag := header[0]
	length := binary.BigEndian.Uint32(header[1:])
	if length > fr.maxFrameLen {
		return Frame{}, fmt.Errorf("wire: frame length %d exceeds cap %d", length, fr.maxFrameLen)
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(fr.r, payload); err != nil {
			return Frame{}, fmt.Errorf("wire: reading frame payload: %w", err)
		}
	}

	return Frame{Tag: tag, Payload: payload}, nil
}

// Writer encodes frames onto an underlying stream.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteFrame writes tag || be_u32(len(payload)) || payload, then flushes.
// Flushing per frame trades a little throughput for the simpler
// invariant that a written frame is always fully on the wire before
// WriteFrame returns (spec.md §4.1, property P8).
func (fw *Writer) WriteFrame(tag byte, payload []byte) error {
	header := make([]byte, headerLength)
	header[0] = tag
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))

	if _, err := fw.w.Write(header); err != nil {
		return fmt.Errorf("wire: writing frame header: %w", err)
	}
	if len(payload) > 0 {
		if _, err := fw.w.Write(payload); err != nil {
			return fmt.Errorf("wire: writing frame payload: %w", err)
		}
	}
	return fw.w.Flush()
}

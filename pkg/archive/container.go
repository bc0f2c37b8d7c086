package archive

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/DataDog/zstd"
	"github.com/pkg/errors"
)

// ContainerMagic starts a ZSTD container ("ZSTD").
var ContainerMagic = [4]byte{'Z', 'S', 'T', 'D'}

// ContainerHeaderSize is the encoded size of a ContainerHeader.
const ContainerHeaderSize = 24

// DefaultCompressionLevel is used when no level option is given.
const DefaultCompressionLevel = zstd.DefaultCompression

// ContainerHeader precedes the zstd frame of a compressed export.
type ContainerHeader struct {
	Magic            [4]byte
	HeaderLength     uint32 // bytes after this field, always 16
	Length           uint64 // payload size
	CompressedLength uint64 // frame size
}

// Validate checks the header fields.
func (h *ContainerHeader) Validate() error {
	if h.Magic != ContainerMagic {
		return errors.Errorf("invalid container magic: %x", h.Magic)
	}
	if h.HeaderLength != 16 {
		return errors.Errorf("invalid container header length: %d", h.HeaderLength)
	}
	if h.Length == 0 || h.CompressedLength == 0 {
		return errors.New("empty container")
	}
	return nil
}

// MarshalBinary encodes the header.
func (h *ContainerHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, ContainerHeaderSize)
	copy(buf[0:4], h.Magic[:])
	binary.LittleEndian.PutUint32(buf[4:8], h.HeaderLength)
	binary.LittleEndian.PutUint64(buf[8:16], h.Length)
	binary.LittleEndian.PutUint64(buf[16:24], h.CompressedLength)
	return buf, nil
}

// UnmarshalBinary decodes and validates the header.
func (h *ContainerHeader) UnmarshalBinary(data []byte) error {
	if len(data) < ContainerHeaderSize {
		return errors.Errorf("container header too short: %d bytes", len(data))
	}
	copy(h.Magic[:], data[0:4])
	h.HeaderLength = binary.LittleEndian.Uint32(data[4:8])
	h.Length = binary.LittleEndian.Uint64(data[8:16])
	h.CompressedLength = binary.LittleEndian.Uint64(data[16:24])
	return h.Validate()
}

// IsContainer reports whether data starts with a container header.
func IsContainer(data []byte) bool {
	return len(data) >= ContainerHeaderSize && bytes.Equal(data[:4], ContainerMagic[:])
}

type compressOptions struct {
	level int
}

// CompressOption configures Compress.
type CompressOption func(*compressOptions)

// WithCompressionLevel sets the zstd level.
func WithCompressionLevel(level int) CompressOption {
	return func(o *compressOptions) {
		o.level = level
	}
}

// Compress wraps data in a container.
func Compress(data []byte, opts ...CompressOption) ([]byte, error) {
	o := compressOptions{level: DefaultCompressionLevel}
	for _, opt := range opts {
		opt(&o)
	}

	var frame bytes.Buffer
	zw := zstd.NewWriterLevel(&frame, o.level)
	if _, err := zw.Write(data); err != nil {
		return nil, errors.Wrap(err, "compress payload")
	}
	if err := zw.Close(); err != nil {
		return nil, errors.Wrap(err, "close compressor")
	}

	h := &ContainerHeader{
		Magic:            ContainerMagic,
		HeaderLength:     16,
		Length:           uint64(len(data)),
		CompressedLength: uint64(frame.Len()),
	}
	head, err := h.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append(head, frame.Bytes()...), nil
}

// Decompress returns the payload of a container.
func Decompress(data []byte) ([]byte, error) {
	var h ContainerHeader
	if err := h.UnmarshalBinary(data); err != nil {
		return nil, errors.Wrap(err, "parse container header")
	}
	frame := data[ContainerHeaderSize:]
	if uint64(len(frame)) < h.CompressedLength {
		return nil, &BufferBoundsError{Name: "container", Offset: ContainerHeaderSize,
			Size: int(h.CompressedLength), Available: len(frame)}
	}

	zr := zstd.NewReader(bytes.NewReader(frame[:h.CompressedLength]))
	defer zr.Close()

	out := make([]byte, h.Length)
	if _, err := io.ReadFull(zr, out); err != nil {
		return nil, errors.Wrap(err, "decompress payload")
	}
	return out, nil
}

// Package wire encodes the two outbound message kinds C6 emits: acks
// (samples have left the ring buffer, slot reusable) and timing reports
// (per-sequence kernel latency, the controller's back-pressure signal).
//
// The wire shape is adapted from the teacher pack's chunked IR-library
// container (pkg/irformat): a 4-byte type tag, a length, a version, and
// a field section. Here each message is a single record rather than a
// multi-chunk file, and fields are tagged so a consumer on an older or
// newer schema version can skip fields it does not recognise instead of
// failing to parse.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Message type tags, four bytes each like irformat's chunk IDs.
const (
	TypeAck    = "ACK-"
	TypeTiming = "TIME"
)

// CurrentVersion is the schema version written by this package. Readers
// must accept any version <= CurrentVersion and ignore unknown field tags.
const CurrentVersion uint16 = 1

// Field tags within a message's field section. Unknown tags encountered
// while decoding are skipped using their declared length, so adding a
// field in a later version does not break older consumers.
const (
	fieldSequenceNum  uint8 = 1
	fieldKernelTimeMs uint8 = 2
	fieldStatus       uint8 = 3
)

// StatusCode reports per-sequence outcome in a timing message. Zero value
// is StatusOK.
type StatusCode uint8

const (
	StatusOK StatusCode = iota
	StatusAllocationFailure
	StatusKernelConfigInvalid
	StatusSlotMissing
	StatusCopyError
	StatusDeviceLost
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusAllocationFailure:
		return "ALLOCATION_FAILURE"
	case StatusKernelConfigInvalid:
		return "KERNEL_CONFIG_INVALID"
	case StatusSlotMissing:
		return "SLOT_MISSING"
	case StatusCopyError:
		return "COPY_ERROR"
	case StatusDeviceLost:
		return "DEVICE_LOST"
	default:
		return "UNKNOWN"
	}
}

// SentinelKernelTimeMs marks a dropped sequence in a timing message, per
// the failure-surfacing convention: a non-zero status plus this sentinel
// elapsed time.
const SentinelKernelTimeMs float32 = -1

// AckMessage tells the driver that raw samples have left the ring buffer
// and the slot is reusable.
type AckMessage struct {
	SequenceNum uint32
}

// TimingMessage reports per-sequence kernel latency, or a failure via
// Status != StatusOK and KernelTimeMs == SentinelKernelTimeMs.
type TimingMessage struct {
	SequenceNum  uint32
	KernelTimeMs float32
	Status       StatusCode
}

var (
	ErrTruncated   = errors.New("wire: message truncated")
	ErrWrongType   = errors.New("wire: unexpected message type")
	ErrUnsupported = errors.New("wire: unsupported message version")
)

// EncodeAck serialises an ack message.
func EncodeAck(m AckMessage) []byte {
	var fields bytes.Buffer
	writeUint32Field(&fields, fieldSequenceNum, m.SequenceNum)
	return frame(TypeAck, fields.Bytes())
}

// EncodeTiming serialises a timing message.
func EncodeTiming(m TimingMessage) []byte {
	var fields bytes.Buffer
	writeUint32Field(&fields, fieldSequenceNum, m.SequenceNum)
	writeFloat32Field(&fields, fieldKernelTimeMs, m.KernelTimeMs)
	writeUint8Field(&fields, fieldStatus, uint8(m.Status))
	return frame(TypeTiming, fields.Bytes())
}

// frame wraps a field section with the [type(4) | length(4) | version(2)]
// header irformat-style chunks use, minus the file magic number (these
// are standalone messages, not entries in a container).
func frame(msgType string, fields []byte) []byte {
	buf := make([]byte, 0, 10+len(fields))
	buf = append(buf, []byte(msgType)...)
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(fields)))
	buf = append(buf, lenBuf[:]...)
	var verBuf [2]byte
	binary.LittleEndian.PutUint16(verBuf[:], CurrentVersion)
	buf = append(buf, verBuf[:]...)
	buf = append(buf, fields...)
	return buf
}

func writeUint32Field(buf *bytes.Buffer, tag uint8, v uint32) {
	buf.WriteByte(tag)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], 4)
	buf.Write(lenBuf[:])
	var vBuf [4]byte
	binary.LittleEndian.PutUint32(vBuf[:], v)
	buf.Write(vBuf[:])
}

func writeFloat32Field(buf *bytes.Buffer, tag uint8, v float32) {
	buf.WriteByte(tag)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], 4)
	buf.Write(lenBuf[:])
	var vBuf [4]byte
	binary.LittleEndian.PutUint32(vBuf[:], math.Float32bits(v))
	buf.Write(vBuf[:])
}

func writeUint8Field(buf *bytes.Buffer, tag uint8, v uint8) {
	buf.WriteByte(tag)
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], 1)
	buf.Write(lenBuf[:])
	buf.WriteByte(v)
}

// DecodeAck parses an ack message, ignoring any field tags it does not
// recognise.
func DecodeAck(data []byte) (AckMessage, error) {
	fields, err := unframe(data, TypeAck)
	if err != nil {
		return AckMessage{}, err
	}
	var m AckMessage
	err = walkFields(fields, func(tag uint8, payload []byte) error {
		if tag == fieldSequenceNum && len(payload) == 4 {
			m.SequenceNum = binary.LittleEndian.Uint32(payload)
		}
		return nil
	})
	return m, err
}

// DecodeTiming parses a timing message, ignoring any field tags it does
// not recognise.
func DecodeTiming(data []byte) (TimingMessage, error) {
	fields, err := unframe(data, TypeTiming)
	if err != nil {
		return TimingMessage{}, err
	}
	var m TimingMessage
	err = walkFields(fields, func(tag uint8, payload []byte) error {
		switch {
		case tag == fieldSequenceNum && len(payload) == 4:
			m.SequenceNum = binary.LittleEndian.Uint32(payload)
		case tag == fieldKernelTimeMs && len(payload) == 4:
			m.KernelTimeMs = math.Float32frombits(binary.LittleEndian.Uint32(payload))
		case tag == fieldStatus && len(payload) == 1:
			m.Status = StatusCode(payload[0])
		}
		return nil
	})
	return m, err
}

func unframe(data []byte, wantType string) ([]byte, error) {
	if len(data) < 10 {
		return nil, ErrTruncated
	}
	if string(data[0:4]) != wantType {
		return nil, fmt.Errorf("%w: got %q want %q", ErrWrongType, data[0:4], wantType)
	}
	length := binary.LittleEndian.Uint32(data[4:8])
	version := binary.LittleEndian.Uint16(data[8:10])
	if version > CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupported, version)
	}
	fields := data[10:]
	if uint32(len(fields)) < length {
		return nil, ErrTruncated
	}
	return fields[:length], nil
}

// walkFields iterates tag-length-value fields, calling fn for each one
// it can fully read. A field whose tag fn does not recognise is still
// skipped using its declared length rather than treated as an error,
// satisfying the "unknown tags ignored" requirement for forward schema
// compatibility.
func walkFields(fields []byte, fn func(tag uint8, payload []byte) error) error {
	pos := 0
	for pos < len(fields) {
		if pos+3 > len(fields) {
			return ErrTruncated
		}
		tag := fields[pos]
		flen := int(binary.LittleEndian.Uint16(fields[pos+1 : pos+3]))
		pos += 3
		if pos+flen > len(fields) {
			return ErrTruncated
		}
		payload := fields[pos : pos+flen]
		pos += flen
		if err := fn(tag, payload); err != nil {
			return err
		}
	}
	return nil
}

// Package format implements the on-disk wire encoding for log records.
// A data file is a concatenation of these records with no framing beyond
// the codec's own length prefixes.
package format

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// HeaderSize is the fixed byte length of a record's header, before the
// variable-length key and value:
//
//	[0:4]   crc32 (IEEE) over everything from byte 4 onward
//	[4:12]  tstamp   int64, little-endian, seconds since Unix epoch
//	[12:16] keyLen   uint32, little-endian
//	[16:20] valueLen uint32, little-endian (ignored when hasValue == 0)
//	[20:21] hasValue uint8 (0 = tombstone, 1 = present)
const HeaderSize = 21

// ErrCorrupt is returned when a decoded record fails its CRC check.
var ErrCorrupt = errors.New("format: crc mismatch, record corrupt")

// ErrShortRead is returned when fewer bytes are supplied than the header
// or record body requires.
var ErrShortRead = errors.New("format: truncated record")

// Record is a single DataFileEntry: a timestamped key with an optional
// value. A nil Value encodes a tombstone (a deletion marker).
type Record struct {
	Tstamp int64
	Key    []byte
	Value  []byte // nil means tombstone
}

// IsTombstone reports whether r records a deletion rather than a value.
func (r *Record) IsTombstone() bool {
	return r.Value == nil
}

// EncodedSize returns the number of bytes Encode(r) will produce, without
// performing the encoding. It must always agree with len(Encode(r)).
func EncodedSize(r *Record) uint64 {
	size := uint64(HeaderSize) + uint64(len(r.Key))
	if r.Value != nil {
		size += uint64(len(r.Value))
	}
	return size
}

// Encode serializes r into its fixed binary form. Encoding cannot fail in
// practice; decoding is where corruption or truncation surfaces.
func Encode(r *Record) []byte {
	buf := make([]byte, EncodedSize(r))

	binary.LittleEndian.PutUint64(buf[4:12], uint64(r.Tstamp))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(r.Key)))

	var hasValue byte
	if r.Value != nil {
		hasValue = 1
		binary.LittleEndian.PutUint32(buf[16:20], uint32(len(r.Value)))
	}
	buf[20] = hasValue

	copy(buf[HeaderSize:], r.Key)
	if r.Value != nil {
		copy(buf[HeaderSize+len(r.Key):], r.Value)
	}

	crc := crc32.ChecksumIEEE(buf[4:])
	binary.LittleEndian.PutUint32(buf[0:4], crc)

	return buf
}

// Decode deserializes a single record from data. data must contain at
// least the full record; any trailing bytes beyond it are ignored.
func Decode(data []byte) (*Record, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: have %d bytes, need %d for header", ErrShortRead, len(data), HeaderSize)
	}

	crc := binary.LittleEndian.Uint32(data[0:4])
	tstamp := int64(binary.LittleEndian.Uint64(data[4:12]))
	keyLen := binary.LittleEndian.Uint32(data[12:16])
	valueLen := binary.LittleEndian.Uint32(data[16:20])
	hasValue := data[20] != 0

	bodyLen := int(keyLen)
	if hasValue {
		bodyLen += int(valueLen)
	}
	expected := HeaderSize + bodyLen
	if len(data) < expected {
		return nil, fmt.Errorf("%w: have %d bytes, need %d for full record", ErrShortRead, len(data), expected)
	}

	if calculated := crc32.ChecksumIEEE(data[4:expected]); calculated != crc {
		return nil, fmt.Errorf("%w: calculated %d, expected %d", ErrCorrupt, calculated, crc)
	}

	key := make([]byte, keyLen)
	copy(key, data[HeaderSize:HeaderSize+int(keyLen)])

	var value []byte
	if hasValue {
		value = make([]byte, valueLen)
		copy(value, data[HeaderSize+int(keyLen):expected])
	}

	return &Record{Tstamp: tstamp, Key: key, Value: value}, nil
}

// DecodeHeader reads only the fixed-size header, returning the key and
// value lengths and whether a value is present. Streaming readers use
// this to learn how many more bytes to read before decoding the body.
func DecodeHeader(header []byte) (keyLen, valueLen uint32, hasValue bool, err error) {
	if len(header) < HeaderSize {
		return 0, 0, false, fmt.Errorf("%w: have %d bytes, need %d for header", ErrShortRead, len(header), HeaderSize)
	}
	keyLen = binary.LittleEndian.Uint32(header[12:16])
	valueLen = binary.LittleEndian.Uint32(header[16:20])
	hasValue = header[20] != 0
	return keyLen, valueLen, hasValue, nil
}

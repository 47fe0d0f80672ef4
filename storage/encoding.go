package storage

import (
	"bytes"
	"encoding/binary"
	"time"
)

const (
	grantFormatVersionCurrent = 1
	grantRecordSize           = 1 + 8
)

// EncodeGrant serializes a grant timestamp as a version byte followed by Unix
// milliseconds in big-endian order.
func EncodeGrant(at time.Time) []byte {
	var buf bytes.Buffer
	buf.Grow(grantRecordSize)
	buf.WriteByte(grantFormatVersionCurrent)
	_ = binary.Write(&buf, binary.BigEndian, at.UnixMilli())
	return buf.Bytes()
}

// DecodeGrant parses a record written by [EncodeGrant].
func DecodeGrant(data []byte) (time.Time, error) {
	if len(data) != grantRecordSize || data[0] != grantFormatVersionCurrent {
		return time.Time{}, ErrCorruptRecord
	}
	ms := int64(binary.BigEndian.Uint64(data[1:]))
	if ms < 0 {
		return time.Time{}, ErrCorruptRecord
	}
	return time.UnixMilli(ms), nil
}

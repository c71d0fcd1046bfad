package format

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodedSize(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
		want   uint64
	}{
		{
			name:   "normal record",
			record: &Record{Tstamp: 1234567890, Key: []byte("key"), Value: []byte("value")},
			want:   HeaderSize + 3 + 5,
		},
		{
			name:   "tombstone record",
			record: &Record{Tstamp: 1234567890, Key: []byte("key"), Value: nil},
			want:   HeaderSize + 3,
		},
		{
			name:   "empty key and value",
			record: &Record{Tstamp: 1234567890, Key: []byte{}, Value: []byte{}},
			want:   HeaderSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodedSize(tt.record); got != tt.want {
				t.Errorf("EncodedSize() = %v, want %v", got, tt.want)
			}
			if got := uint64(len(Encode(tt.record))); got != tt.want {
				t.Errorf("len(Encode()) = %v, want %v (EncodedSize must agree with Encode)", got, tt.want)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	originalRecord := &Record{Tstamp: 1234567890, Key: []byte("key"), Value: []byte("value")}
	encoded := Encode(originalRecord)

	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{name: "valid encoded data", data: encoded, wantErr: false},
		{name: "too short for header", data: []byte{1, 2, 3}, wantErr: true},
		{name: "empty data", data: []byte{}, wantErr: true},
		{name: "header only, missing body", data: encoded[:HeaderSize], wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := Decode(tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr && !errors.Is(err, ErrShortRead) {
				t.Errorf("Decode() error = %v, want ErrShortRead", err)
			}
			if !tt.wantErr && record == nil {
				t.Error("Decode() returned nil record without error")
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
	}{
		{
			name:   "normal record",
			record: &Record{Tstamp: 1234567890, Key: []byte("key"), Value: []byte("value")},
		},
		{
			name:   "tombstone record",
			record: &Record{Tstamp: 1234567890, Key: []byte("key"), Value: nil},
		},
		{
			name:   "empty value",
			record: &Record{Tstamp: 42, Key: []byte("k"), Value: []byte{}},
		},
		{
			name:   "empty key",
			record: &Record{Tstamp: 42, Key: []byte{}, Value: []byte("v")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded := Encode(tt.record)

			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			if diff := cmp.Diff(tt.record, decoded); diff != "" {
				t.Errorf("Decode() mismatch (-want +got):\n%s", diff)
			}
			if decoded.IsTombstone() != tt.record.IsTombstone() {
				t.Errorf("IsTombstone() = %v, want %v", decoded.IsTombstone(), tt.record.IsTombstone())
			}
		})
	}
}

func TestDecodeCRCValidation(t *testing.T) {
	record := &Record{Tstamp: 1234567890, Key: []byte("key"), Value: []byte("value")}
	encoded := Encode(record)

	// Corrupt a payload byte; the CRC no longer matches.
	encoded[len(encoded)-1] ^= 0xFF

	_, err := Decode(encoded)
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("Decode() error = %v, want ErrCorrupt", err)
	}
}

func TestDecodeHeader(t *testing.T) {
	record := &Record{Tstamp: 99, Key: []byte("abc"), Value: []byte("defgh")}
	encoded := Encode(record)

	keyLen, valueLen, hasValue, err := DecodeHeader(encoded[:HeaderSize])
	if err != nil {
		t.Fatalf("DecodeHeader() error = %v", err)
	}
	if keyLen != 3 || valueLen != 5 || !hasValue {
		t.Errorf("DecodeHeader() = (%d, %d, %v), want (3, 5, true)", keyLen, valueLen, hasValue)
	}

	_, _, _, err = DecodeHeader(encoded[:HeaderSize-1])
	if !errors.Is(err, ErrShortRead) {
		t.Errorf("DecodeHeader() on truncated header error = %v, want ErrShortRead", err)
	}
}

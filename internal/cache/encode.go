package cache

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Column payloads are stored as little-endian binary, zstd-compressed:
// dates as a first absolute unix timestamp followed by deltas, values as
// raw float64 bits (NaN cells survive the round trip bit-exactly). The
// format is small and self-contained so a frozen cache file stays loadable
// with any sqlite client plus this codec.

var (
	zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	zstdDecoder, _ = zstd.NewReader(nil)
)

func encodeDates(dates []time.Time) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int64(len(dates))); err != nil {
		return nil, err
	}
	prev := int64(0)
	for i, d := range dates {
		ts := d.UTC().Unix()
		delta := ts
		if i > 0 {
			delta = ts - prev
		}
		prev = ts
		if err := binary.Write(buf, binary.LittleEndian, delta); err != nil {
			return nil, err
		}
	}
	return zstdEncoder.EncodeAll(buf.Bytes(), nil), nil
}

func decodeDates(data []byte) ([]time.Time, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress dates: %w", err)
	}
	buf := bytes.NewReader(raw)
	var n int64
	if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("decode date count: %w", err)
	}
	dates := make([]time.Time, n)
	ts := int64(0)
	for i := range dates {
		var delta int64
		if err := binary.Read(buf, binary.LittleEndian, &delta); err != nil {
			return nil, fmt.Errorf("decode date %d: %w", i, err)
		}
		ts += delta
		dates[i] = time.Unix(ts, 0).UTC()
	}
	return dates, nil
}

func encodeValues(values []float64) ([]byte, error) {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	return zstdEncoder.EncodeAll(raw, nil), nil
}

func decodeValues(data []byte) ([]float64, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress values: %w", err)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("value payload not a multiple of 8 bytes")
	}
	values := make([]float64, len(raw)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return values, nil
}

func encodeInts(values []int) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.LittleEndian, int64(len(values))); err != nil {
		return nil, err
	}
	for _, v := range values {
		if err := binary.Write(buf, binary.LittleEndian, int64(v)); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func decodeInts(data []byte) ([]int, error) {
	buf := bytes.NewReader(data)
	var n int64
	if err := binary.Read(buf, binary.LittleEndian, &n); err != nil {
		return nil, fmt.Errorf("decode int count: %w", err)
	}
	values := make([]int, n)
	for i := range values {
		var v int64
		if err := binary.Read(buf, binary.LittleEndian, &v); err != nil {
			return nil, fmt.Errorf("decode int %d: %w", i, err)
		}
		values[i] = int(v)
	}
	return values, nil
}

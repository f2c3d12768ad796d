package session

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// Shared coders; zstd.Encoder and zstd.Decoder are safe for concurrent use
// through EncodeAll / DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("session: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("session: zstd decoder initialization failed: " + err.Error())
	}
}

// encodeBlob returns the stored form of data and the encoding used. Data
// that does not shrink under zstd is stored raw.
func encodeBlob(data []byte, c Compression) ([]byte, Compression) {
	if c != CompressionZstd || len(data) == 0 {
		return data, CompressionNone
	}
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return data, CompressionNone
	}
	return compressed, CompressionZstd
}

// decodeBlob reverses encodeBlob and checks the resulting length.
func decodeBlob(stored []byte, enc Compression, size int64) ([]byte, error) {
	var out []byte
	switch enc {
	case CompressionNone, "":
		out = stored
	case CompressionZstd:
		var err error
		out, err = zstdDecoder.DecodeAll(stored, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown blob encoding %q", enc)
	}
	if int64(len(out)) != size {
		return nil, fmt.Errorf("blob length %d does not match recorded size %d", len(out), size)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

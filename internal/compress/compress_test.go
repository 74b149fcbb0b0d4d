package compress

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("chroma embeddings "), 512)
	random := make([]byte, 1024)
	for i := range random {
		random[i] = byte((i * 7919) ^ (i >> 3))
	}

	for _, typ := range []Type{None, LZ4, ZSTD} {
		for name, data := range map[string][]byte{
			"compressible": compressible,
			"random":       random,
			"empty":        {},
		} {
			t.Run(typ.String()+"/"+name, func(t *testing.T) {
				enc, err := Encode(data, typ)
				require.NoError(t, err)
				assert.Equal(t, byte(typ), enc[0])

				dec, err := Decode(enc)
				require.NoError(t, err)
				assert.Equal(t, len(data), len(dec))
				assert.True(t, bytes.Equal(data, dec))
			})
		}
	}
}

func TestCompressionShrinks(t *testing.T) {
	data := bytes.Repeat([]byte{1, 2, 3, 4}, 4096)
	for _, typ := range []Type{LZ4, ZSTD} {
		enc, err := Encode(data, typ)
		require.NoError(t, err)
		assert.Less(t, len(enc), len(data)/2, typ.String())
	}
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := Decode([]byte{1, 2})
	assert.ErrorIs(t, err, ErrCorrupt)

	enc, err := Encode(bytes.Repeat([]byte("abc"), 1000), LZ4)
	require.NoError(t, err)
	_, err = Decode(enc[:len(enc)-5])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestParseType(t *testing.T) {
	for in, want := range map[string]Type{"": LZ4, "lz4": LZ4, "zstd": ZSTD, "none": None} {
		got, err := ParseType(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseType("brotli")
	assert.Error(t, err)
}

package zstream

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func deflateAll(t *testing.T, payload []byte, flush FlushMode) []byte {
	t.Helper()
	stream, err := NewDeflateStream(zlib.BestCompression)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = stream.Write(payload, func(chunk []byte) { out.Write(chunk) }, flush)
	require.NoError(t, err)
	if flush != FlushFinish {
		_, err = stream.Finish(func(chunk []byte) { out.Write(chunk) })
		require.NoError(t, err)
	}
	return out.Bytes()
}

func TestDeflateInflate_RoundTrip(t *testing.T) {
	payload := []byte("You step through the portal.\r\n")
	compressed := deflateAll(t, payload, FlushSync)

	inflater := NewInflateStream()
	var out bytes.Buffer
	_, err := inflater.Write(compressed, func(chunk []byte) { out.Write(chunk) })
	require.NoError(t, err)
	assert.Equal(t, payload, out.Bytes())
}

func TestInflate_SyncFlushIsIncremental(t *testing.T) {
	stream, err := NewDeflateStream(zlib.BestCompression)
	require.NoError(t, err)

	var first, second bytes.Buffer
	_, err = stream.Write([]byte("hello "), func(chunk []byte) { first.Write(chunk) }, FlushSync)
	require.NoError(t, err)
	_, err = stream.Write([]byte("world"), func(chunk []byte) { second.Write(chunk) }, FlushSync)
	require.NoError(t, err)

	inflater := NewInflateStream()
	var out bytes.Buffer
	_, err = inflater.Write(first.Bytes(), func(chunk []byte) { out.Write(chunk) })
	require.NoError(t, err)
	assert.Equal(t, "hello ", out.String())

	_, err = inflater.Write(second.Bytes(), func(chunk []byte) { out.Write(chunk) })
	require.NoError(t, err)
	assert.Equal(t, "hello world", out.String())
}

func TestDeflate_WriteAfterFinishFails(t *testing.T) {
	stream, err := NewDeflateStream(zlib.DefaultCompression)
	require.NoError(t, err)

	_, err = stream.Write([]byte("data"), nil, FlushFinish)
	require.NoError(t, err)

	_, err = stream.Write([]byte("more"), nil, FlushSync)
	assert.ErrorIs(t, err, ErrStreamEnded)
}

func TestDeflate_ResetRestartsStream(t *testing.T) {
	stream, err := NewDeflateStream(zlib.DefaultCompression)
	require.NoError(t, err)

	_, err = stream.Write([]byte("one"), nil, FlushFinish)
	require.NoError(t, err)
	require.NoError(t, stream.Reset(zlib.BestSpeed))

	var out bytes.Buffer
	_, err = stream.Write([]byte("two"), func(chunk []byte) { out.Write(chunk) }, FlushFinish)
	require.NoError(t, err)

	inflater := NewInflateStream()
	var plain bytes.Buffer
	_, err = inflater.Write(out.Bytes(), func(chunk []byte) { plain.Write(chunk) })
	require.NoError(t, err)
	assert.Equal(t, "two", plain.String())
}

func TestInflate_ResetRestartsStream(t *testing.T) {
	first := deflateAll(t, []byte("first stream"), FlushFinish)
	second := deflateAll(t, []byte("second stream"), FlushFinish)

	inflater := NewInflateStream()
	var out bytes.Buffer
	_, err := inflater.Write(first, func(chunk []byte) { out.Write(chunk) })
	require.NoError(t, err)

	inflater.Reset()
	out.Reset()
	_, err = inflater.Write(second, func(chunk []byte) { out.Write(chunk) })
	require.NoError(t, err)
	assert.Equal(t, "second stream", out.String())
}

func TestInflate_CorruptInputFails(t *testing.T) {
	inflater := NewInflateStream()
	_, err := inflater.Write([]byte{0x00, 0x01, 0x02, 0x03, 0x04, 0x05}, nil)
	assert.Error(t, err)
}

// Property: deflate then inflate is the identity across arbitrary chunk
// splits on both sides.
func TestPropertyDeflateInflate_ChunkedRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 4096).Draw(t, "payload")

		deflater, err := NewDeflateStream(zlib.DefaultCompression)
		if err != nil {
			t.Fatalf("deflate init: %v", err)
		}

		var compressed bytes.Buffer
		sink := func(chunk []byte) { compressed.Write(chunk) }

		// split the input at random points
		remaining := payload
		for len(remaining) > 0 {
			n := rapid.IntRange(1, len(remaining)).Draw(t, "writeLen")
			if _, err := deflater.Write(remaining[:n], sink, FlushNone); err != nil {
				t.Fatalf("deflate write: %v", err)
			}
			remaining = remaining[n:]
		}
		if _, err := deflater.Finish(sink); err != nil {
			t.Fatalf("deflate finish: %v", err)
		}

		inflater := NewInflateStream()
		var out bytes.Buffer
		wire := compressed.Bytes()
		for len(wire) > 0 {
			n := rapid.IntRange(1, len(wire)).Draw(t, "readLen")
			if _, err := inflater.Write(wire[:n], func(chunk []byte) { out.Write(chunk) }); err != nil {
				t.Fatalf("inflate write: %v", err)
			}
			wire = wire[n:]
		}

		if !bytes.Equal(payload, out.Bytes()) {
			t.Fatalf("round trip mismatch: %d in, %d out", len(payload), len(out.Bytes()))
		}
	})
}

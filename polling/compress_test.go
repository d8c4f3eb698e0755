package polling

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"io"
	"testing"

	"github.com/googollee/go-assert"
)

func TestNegotiateEncoding(t *testing.T) {
	cfg := &Compression{Threshold: 10, Level: gzip.DefaultCompression}

	tests := []struct {
		name     string
		length   int
		compress bool
		accept   string
		config   *Compression
		want     string
	}{
		{"no config", 100, true, "gzip", nil, ""},
		{"flag off", 100, false, "gzip", cfg, ""},
		{"below threshold", 5, true, "gzip", cfg, ""},
		{"at threshold", 10, true, "gzip", cfg, ""},
		{"gzip", 11, true, "gzip", cfg, "gzip"},
		{"gzip preferred", 100, true, "deflate, gzip", cfg, "gzip"},
		{"deflate only", 100, true, "deflate", cfg, "deflate"},
		{"wildcard", 100, true, "*", cfg, "gzip"},
		{"quality zero", 100, true, "gzip;q=0", cfg, ""},
		{"quality nonzero", 100, true, "gzip;q=0.5", cfg, "gzip"},
		{"nothing acceptable", 100, true, "br, identity", cfg, ""},
		{"empty header", 100, true, "", cfg, ""},
	}

	for _, test := range tests {
		got := negotiateEncoding(test.length, test.compress, test.accept, test.config)
		assert.Equal(t, got, test.want)
	}
}

func TestCompressPayload(t *testing.T) {
	data := bytes.Repeat([]byte("polling "), 64)

	buf := bytes.NewBuffer(nil)
	err := compressPayload(buf, data, "gzip", gzip.DefaultCompression)
	assert.MustEqual(t, err, nil)
	zr, err := gzip.NewReader(buf)
	assert.MustEqual(t, err, nil)
	out, err := io.ReadAll(zr)
	assert.MustEqual(t, err, nil)
	assert.Equal(t, string(out), string(data))

	buf.Reset()
	err = compressPayload(buf, data, "deflate", flate.DefaultCompression)
	assert.MustEqual(t, err, nil)
	out, err = io.ReadAll(flate.NewReader(buf))
	assert.MustEqual(t, err, nil)
	assert.Equal(t, string(out), string(data))

	err = compressPayload(io.Discard, data, "br", flate.DefaultCompression)
	assert.NotEqual(t, err, nil)
}

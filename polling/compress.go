package polling

import (
	"compress/flate"
	"compress/gzip"
	"io"
	"strings"

	"github.com/pkg/errors"
)

// Compression configures response compression for poll responses.
type Compression struct {
	// Threshold is the payload byte length above which compression kicks in.
	Threshold int

	// Level is the compress/flate compression level.
	Level int
}

// encodings this transport can produce, in preference order.
var supportedEncodings = []string{"gzip", "deflate"}

// negotiateEncoding decides how to compress an outgoing payload. It returns
// the chosen Content-Encoding, or "" for an uncompressed response. Purely a
// decision; the caller runs the matching compressor.
func negotiateEncoding(length int, compress bool, acceptEncoding string, c *Compression) string {
	if c == nil || !compress || length <= c.Threshold {
		return ""
	}
	for _, name := range supportedEncodings {
		if acceptsEncoding(acceptEncoding, name) {
			return name
		}
	}
	return ""
}

func acceptsEncoding(header, name string) bool {
	for _, part := range strings.Split(header, ",") {
		token, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		token = strings.TrimSpace(token)
		if token != name && token != "*" {
			continue
		}
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if strings.TrimLeft(strings.TrimSpace(q), "0.") == "" {
				continue
			}
		}
		return true
	}
	return false
}

// compressPayload streams data through the compressor for encoding into w.
func compressPayload(w io.Writer, data []byte, encoding string, level int) error {
	var cw io.WriteCloser
	var err error
	switch encoding {
	case "gzip":
		cw, err = gzip.NewWriterLevel(w, level)
	case "deflate":
		cw, err = flate.NewWriter(w, level)
	default:
		return errors.Errorf("unsupported encoding %q", encoding)
	}
	if err != nil {
		return errors.Wrapf(err, "open %s writer", encoding)
	}
	if _, err := cw.Write(data); err != nil {
		cw.Close()
		return errors.Wrapf(err, "%s compress", encoding)
	}
	return errors.Wrapf(cw.Close(), "%s flush", encoding)
}

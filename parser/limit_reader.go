package parser

import (
	"io"
)

type limitReader struct {
	io.Reader
}

func newLimitReader(r io.Reader, limit int64) *limitReader {
	return &limitReader{
		Reader: io.LimitReader(r, limit),
	}
}

func (r *limitReader) Close() error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	return nil
}

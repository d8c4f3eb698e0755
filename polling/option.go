package polling

import "go.uber.org/zap"

type Option func(*options)

type options struct {
	maxBodyBytes int64
	compression  *Compression
	binary       bool
	logger       *zap.SugaredLogger
}

func newOptions(opts ...Option) options {
	o := options{
		maxBodyBytes: 1 << 20,
		logger:       zap.NewNop().Sugar(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// MaxBodyBytes sets the ceiling on an accumulated POST body. A body growing
// past it destroys the connection without a response.
func MaxBodyBytes(n int64) Option {
	return func(o *options) {
		o.maxBodyBytes = n
	}
}

// WithCompression enables response compression for payloads longer than
// threshold bytes, at the given compress/flate level.
func WithCompression(threshold, level int) Option {
	return func(o *options) {
		o.compression = &Compression{
			Threshold: threshold,
			Level:     level,
		}
	}
}

// Binary selects binary payload framing for poll responses. Clients sending
// the b64 query parameter still get text framing.
func Binary(b bool) Option {
	return func(o *options) {
		o.binary = b
	}
}

// Logger sets the transport logger. Defaults to a nop logger.
func Logger(l *zap.SugaredLogger) Option {
	return func(o *options) {
		o.logger = l
	}
}

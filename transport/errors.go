package transport

import "errors"

var (
	// ErrOverlap reports a second GET or POST arriving while one of the
	// same kind is still bound. The offending request is rejected, the
	// existing binding is untouched.
	ErrOverlap = errors.New("overlap from client")

	// ErrBodyTooLarge reports an upload body exceeding the configured
	// ceiling. The connection is destroyed without a response.
	ErrBodyTooLarge = errors.New("payload too large")

	// ErrPrematureClose reports the underlying connection dropping while a
	// request was still in flight.
	ErrPrematureClose = errors.New("connection closed prematurely")

	// ErrClosed reports use of a transport after its close packet went out.
	ErrClosed = errors.New("transport closed")

	// ErrNotWritable reports a Send attempted while no poll response is
	// bound or a previous send is still completing.
	ErrNotWritable = errors.New("transport not writable")
)

// Error is a transport-level failure delivered to Callback.OnError.
type Error struct {
	Transport string
	Err       error
}

func (e *Error) Error() string {
	return e.Transport + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

package queue

import "errors"

// ErrUnknownSubscriber is returned by health and circuit operations when no
// subscriber with the given identity is configured.
var ErrUnknownSubscriber = errors.New("unknown subscriber")

// permanentError marks a delivery error as not worth retrying.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string {
	return e.err.Error()
}

func (e *permanentError) Unwrap() error {
	return e.err
}

// Permanent wraps err so the queue fails the event immediately instead of
// retrying it. Subscribers return this for errors that cannot succeed on a
// second attempt, such as rejected payloads.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err is marked permanent.
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

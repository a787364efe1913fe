package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
)

// Attachment is an optional file carried with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a fully formed single-recipient email.
type Message struct {
	To         string
	Subject    string
	HTML       string
	Text       string
	Attachment *Attachment
	Headers    map[string]string
}

// Receipt carries the transport-assigned identifier of an accepted message.
type Receipt struct {
	MessageID string
}

// Transport delivers one message at a time.
type Transport interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// Verifier is implemented by transports that can check connectivity up front.
type Verifier interface {
	Verify(ctx context.Context) error
}

// TransportError is the only error type returned by Send.
type TransportError struct {
	Code      string
	Message   string
	Temporary bool
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AsTransportError wraps err unless it already is a *TransportError.
func AsTransportError(stage string, err error) *TransportError {
	var te *TransportError
	if errors.As(err, &te) {
		return te
	}
	return classify(stage, err)
}

// classify maps an SMTP conversation error to a TransportError. 4xx replies
// and network failures are temporary; 5xx replies are permanent.
func classify(stage string, err error) *TransportError {
	te := &TransportError{Code: stage, Message: err.Error(), Err: err}

	var tp *textproto.Error
	if errors.As(err, &tp) {
		te.Code = fmt.Sprintf("smtp_%d", tp.Code)
		te.Message = tp.Msg
		te.Temporary = tp.Code >= 400 && tp.Code < 500
		return te
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		te.Code = "cancelled"
		return te
	}

	var ne net.Error
	if errors.As(err, &ne) {
		te.Temporary = true
		if ne.Timeout() {
			te.Code = "timeout"
		} else {
			te.Code = "connection"
		}
	}
	return te
}

package elastic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"

	"github.com/tidwall/gjson"
)

var (
	// ErrScrollExpired is returned by ScrollContinue when the server no longer knows the cursor.
	ErrScrollExpired = errors.New("scroll context expired")
	// ErrConnection marks transport failures detected by a client adapter.
	ErrConnection = errors.New("connection failed")
)

// StatusError is an error response returned by the cluster.
type StatusError struct {
	Status int
	Type   string
	Reason string
}

func (e *StatusError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("elasticsearch returned status %d", e.Status)
	}
	return fmt.Sprintf("elasticsearch returned status %d: [%s] %s", e.Status, e.Type, e.Reason)
}

// NewStatusError decodes an error body of the form {"error":{"type":..,"reason":..},"status":..}.
func NewStatusError(status int, body []byte) *StatusError {
	se := &StatusError{Status: status}
	if !gjson.ValidBytes(body) {
		return se
	}
	res := gjson.ParseBytes(body)
	errField := res.Get("error")
	if errField.IsObject() {
		se.Type = errField.Get("type").String()
		se.Reason = errField.Get("reason").String()
		if root := errField.Get("root_cause.0.reason"); root.Exists() && se.Reason == "" {
			se.Reason = root.String()
		}
	} else if errField.Exists() {
		se.Reason = errField.String()
	}
	return se
}

// IsBadRequest reports whether err is a 400 response, i.e. a query the cluster rejected.
func IsBadRequest(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Status == http.StatusBadRequest
}

// IsConnectionError reports whether err is a network-class failure worth retrying.
func IsConnectionError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrConnection) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

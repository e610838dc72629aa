package jsonrpc

import (
	"bytes"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

// decodeProbe is unmarshaled first to classify a frame before committing to
// one of the four concrete shapes; mirrors transport/server/base.MessageType
// but also looks at "method" so a response is never mistaken for a request.
type decodeProbe struct {
	Id     RequestId `json:"id"`
	Method string    `json:"method"`
	Error  *Error    `json:"error"`
}

// DecodeMessage parses a raw wire frame into a typed Message. The wire is
// defined over UTF-8 text; a frame that isn't valid UTF-8 could not have
// been produced by a conforming peer and is rejected with EncodingError
// before it reaches the JSON decoder, rather than surfacing as a confusing
// ParseError deeper in. A top-level JSON array (a batch) is rejected with
// InvalidRequest. Callers that only care whether a frame is usable
// can ignore the returned Message and check the *Error alone.
func DecodeMessage(data []byte) (*Message, *Error) {
	if !utf8.Valid(data) {
		return nil, NewError(EncodingError, "message payload is not valid UTF-8", nil)
	}
	if trimmed := bytes.TrimLeft(data, " \t\r\n"); len(trimmed) > 0 && trimmed[0] == '[' {
		return nil, NewError(InvalidRequest, "batch requests are not supported", nil)
	}
	probe := &decodeProbe{}
	if err := json.Unmarshal(data, probe); err != nil {
		return nil, NewError(ParseError, "malformed JSON-RPC message", err.Error())
	}
	switch {
	case probe.Error != nil:
		return NewErrorMessage(probe.Error), nil
	case probe.Id == nil:
		notification := &Notification{}
		if err := json.Unmarshal(data, notification); err != nil {
			return nil, NewError(ParseError, "malformed JSON-RPC notification", err.Error())
		}
		return NewNotificationMessage(notification), nil
	case probe.Method != "":
		request := &Request{}
		if err := json.Unmarshal(data, request); err != nil {
			return nil, NewError(ParseError, "malformed JSON-RPC request", err.Error())
		}
		return NewRequestMessage(request), nil
	default:
		response := &Response{}
		if err := json.Unmarshal(data, response); err != nil {
			return nil, NewError(ParseError, "malformed JSON-RPC response", err.Error())
		}
		return NewResponseMessage(response), nil
	}
}

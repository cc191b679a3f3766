package revue

import (
	"encoding/json"
	"net/http"
)

// Response is the result of a single API call. It is immutable once returned.
type Response struct {
	StatusCode int
	Header     http.Header
	body       []byte
}

func newResponse(status int, header http.Header, body []byte) *Response {
	if header == nil {
		header = http.Header{}
	}
	return &Response{
		StatusCode: status,
		Header:     header,
		body:       body,
	}
}

// AsJSON returns the response body exactly as received.
func (r *Response) AsJSON() string {
	return string(r.body)
}

// Body returns a copy of the raw response body.
func (r *Response) Body() []byte {
	out := make([]byte, len(r.body))
	copy(out, r.body)
	return out
}

// AsValue decodes the body into a Value. It fails if the body is not a single valid JSON document.
func (r *Response) AsValue() (Value, error) {
	return ParseValue(r.body)
}

// Decode unmarshals the body into out, for callers that know the payload shape.
func (r *Response) Decode(out any) error {
	return json.Unmarshal(r.body, out)
}

// withBody returns a copy of r carrying body instead of the original payload.
func (r *Response) withBody(body []byte) *Response {
	header := r.Header.Clone()
	if header != nil {
		header.Del("Content-Length")
	}
	return newResponse(r.StatusCode, header, body)
}

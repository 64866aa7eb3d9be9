package grant

import (
	"bytes"
	"encoding/json"
	"maps"
)

// Request is the verify-and-grant payload.
type Request struct {
	UserID        string `json:"userId"`
	ProductID     string `json:"productId"`
	OS            string `json:"os"`
	Receipt       string `json:"receipt"`
	Signature     string `json:"signature"`
	TransactionID string `json:"transactionID"`
	Restore       bool   `json:"restore,omitempty"`
}

// Response is a structured grant server answer.
type Response struct {
	// Error is the server-reported failure code; empty means granted.
	Error string
	// Fields holds every other top-level field, untouched.
	Fields map[string]json.RawMessage
}

// Failed reports whether the server reported an error.
func (r *Response) Failed() bool {
	return r != nil && r.Error != ""
}

// Field decodes the named field into v. It returns false when the field is
// absent or does not decode.
func (r *Response) Field(name string, v any) bool {
	if r == nil {
		return false
	}
	raw, ok := r.Fields[name]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}

func (r *Response) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		// literal null
		return ErrInvalidResponse
	}

	r.Error = ""
	if raw, ok := fields["error"]; ok {
		delete(fields, "error")
		r.Error = errorCode(raw)
	}
	r.Fields = fields
	return nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(r.Fields)+1)
	maps.Copy(out, r.Fields)
	if r.Error != "" {
		raw, err := json.Marshal(r.Error)
		if err != nil {
			return nil, err
		}
		out["error"] = raw
	}
	return json.Marshal(out)
}

// errorCode normalizes the "error" field: strings are taken as is, falsy
// values mean no error, anything else is kept as its JSON text.
func errorCode(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "null", "false", "0":
		return ""
	}
	return string(trimmed)
}

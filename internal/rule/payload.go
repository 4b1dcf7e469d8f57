package rule

import "encoding/json"

// Payload is the parsed form of a message body. When the body decodes as a
// JSON object, Fields holds the decoded keys; otherwise the payload is
// treated as an opaque scalar and Fields is nil. Raw always carries the
// original bytes unchanged.
type Payload struct {
	Fields map[string]interface{}
	Raw    []byte
}

// ParsePayload converts a raw message body into its structured form.
// It never fails: bodies that are not JSON objects degrade to the scalar
// form. The function is pure.
func ParsePayload(raw []byte) *Payload {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err == nil && fields != nil {
		return &Payload{Fields: fields, Raw: raw}
	}
	return &Payload{Raw: raw}
}

// IsObject reports whether the payload decoded as a JSON object.
func (p *Payload) IsObject() bool {
	return p.Fields != nil
}

// Scalar returns the raw payload text.
func (p *Payload) Scalar() string {
	return string(p.Raw)
}

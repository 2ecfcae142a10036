package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JobHandle references one in-flight remote generation
type JobHandle struct {
	Auth string `json:"auth"`
	ID   string `json:"id"`
}

// Valid reports whether both credentials are present
func (h JobHandle) Valid() bool {
	return h.Auth != "" && h.ID != ""
}

// JobStatus is either Pending or Done. Anything else is rejected by DecodeStatus.
type JobStatus interface {
	jobStatus()
}

// Pending means the remote job is still running
type Pending struct {
	Note string
}

// Done means the remote job finished; HTML holds the rendered result fragment
type Done struct {
	HTML string
}

func (Pending) jobStatus() {}
func (Done) jobStatus()    {}

// DecodeStatus turns a raw status payload into a JobStatus.
// A "note" key marks Pending; done == 1 with an html fragment marks Done.
func DecodeStatus(raw []byte) (JobStatus, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, &ProtocolViolation{Reason: fmt.Sprintf("status is not a JSON object: %v", err)}
	}

	if note, ok := fields["note"]; ok {
		var text string
		// notes are informational, a non-string note still means pending
		if err := json.Unmarshal(note, &text); err != nil {
			text = string(note)
		}
		return Pending{Note: text}, nil
	}

	done, ok := fields["done"]
	if !ok {
		return nil, &ProtocolViolation{Reason: "status has neither note nor done marker"}
	}
	if !isDoneMarker(done) {
		return nil, &ProtocolViolation{Reason: fmt.Sprintf("unexpected done marker %s", string(done))}
	}

	var html string
	if rawHTML, ok := fields["html"]; ok {
		if err := json.Unmarshal(rawHTML, &html); err != nil {
			return nil, &ProtocolViolation{Reason: fmt.Sprintf("html is not a string: %v", err)}
		}
	}
	if html == "" {
		return nil, &ProtocolViolation{Reason: "done status without html"}
	}

	return Done{HTML: html}, nil
}

func isDoneMarker(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	return bytes.Equal(v, []byte("1")) || bytes.Equal(v, []byte(`"1"`)) || bytes.Equal(v, []byte("true"))
}

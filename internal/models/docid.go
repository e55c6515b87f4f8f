package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DocID identifies an indexed document. The service sends integers, but any
// JSON string or number is accepted.
type DocID string

func (d *DocID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*d = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*d = DocID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("doc_id: %w", err)
	}
	*d = DocID(n.String())
	return nil
}

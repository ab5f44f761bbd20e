package output

import (
	"bytes"
	"encoding/json"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
)

// JSONFormatter writes the report as a single indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newDocument(r))
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

var _ Formatter = (*JSONFormatter)(nil)

// jsonlRecord is one line of JSONL output. Type is "group" or "warning".
type jsonlRecord struct {
	Type string `json:"type"`
	*groupDoc
	*warningDoc
}

// JSONLFormatter writes one compact JSON object per line: a record per
// group followed by a record per warning. Suitable for streaming into jq.
type JSONLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONLFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	encoder := json.NewEncoder(w)

	for _, g := range r.Groups {
		doc := newGroupDoc(g)
		if err := encoder.Encode(jsonlRecord{Type: "group", groupDoc: &doc}); err != nil {
			return err
		}
	}

	for _, warn := range r.Warnings {
		doc := newWarningDoc(warn)
		if err := encoder.Encode(jsonlRecord{Type: "warning", warningDoc: &doc}); err != nil {
			return err
		}
	}

	return nil
}

func init() {
	Register("jsonl", func() Formatter {
		return &JSONLFormatter{}
	})
}

var _ Formatter = (*JSONLFormatter)(nil)

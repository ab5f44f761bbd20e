package output

import (
	"bytes"

	"github.com/jamesainslie/dupsweep/pkg/dupsweep/types"
	"gopkg.in/yaml.v3"
)

// YAMLFormatter writes the same document as JSONFormatter, in YAML.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, r *types.DuplicateReport) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(newDocument(r)); err != nil {
		return err
	}
	return encoder.Close()
}

func init() {
	Register("yaml", func() Formatter {
		return &YAMLFormatter{}
	})
}

var _ Formatter = (*YAMLFormatter)(nil)

package render

import (
	"github.com/hyperifyio/gorestruct/internal/batch"
	"github.com/hyperifyio/gorestruct/internal/markup"
)

// WriteDocBook serializes the mapped tree and writes it atomically.
func WriteDocBook(path string, root *markup.Node, dtdPublic, dtdSystem string) error {
	s := markup.Serializer{DTDPublic: dtdPublic, DTDSystem: dtdSystem}
	return batch.WriteAtomic(path, []byte(s.Serialize(root)), 0o644)
}

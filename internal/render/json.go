package render

import (
	"encoding/json"
	"io"
)

// JSON writes the tree at n as indented JSON.
func JSON(w io.Writer, n *Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(n)
}

// Package importer maps external DSP configuration documents (CamillaDSP
// YAML, or JSON exports of this server) onto a mixer snapshot.
package importer

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/Youpit44/camillamix/internal/domain"
)

const (
	DefaultMaxBytes = 5 << 20
	maxDepth        = 64
)

// Document is a parsed import document. Mapping keys of the "mixers"
// section keep their document order.
type Document struct {
	Root       any
	mixerOrder []string
}

// FromValue wraps an already decoded value. Mixer order is by name.
func FromValue(v any) Document {
	doc := Document{Root: v}
	if mixers, ok := asMap(field(v, "mixers")); ok {
		for name := range mixers {
			doc.mixerOrder = append(doc.mixerOrder, name)
		}
		slices.Sort(doc.mixerOrder)
	}
	return doc
}

// Parse rejects documents larger than maxBytes, then parses YAML (which
// includes JSON).
func Parse(raw []byte, maxBytes int) (Document, error) {
	if maxBytes > 0 && len(raw) > maxBytes {
		return Document{}, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrDocumentTooLarge, len(raw), maxBytes)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return Document{}, fmt.Errorf("%w: %v", domain.ErrMalformedDoc, err)
	}
	if depth(&root, 0) > maxDepth {
		return Document{}, fmt.Errorf("%w: nesting deeper than %d", domain.ErrMalformedDoc, maxDepth)
	}

	var doc Document
	if root.Kind == 0 {
		return doc, nil
	}
	if err := root.Decode(&doc.Root); err != nil {
		return Document{}, fmt.Errorf("%w: %v", domain.ErrMalformedDoc, err)
	}
	doc.mixerOrder = mixerOrder(&root)
	return doc, nil
}

func depth(n *yaml.Node, d int) int {
	if n == nil || d > maxDepth {
		return d
	}
	deepest := d
	for _, c := range n.Content {
		if cd := depth(c, d+1); cd > deepest {
			deepest = cd
		}
	}
	return deepest
}

// mixerOrder returns the keys of the top-level "mixers" mapping in
// document order.
func mixerOrder(root *yaml.Node) []string {
	n := root
	if n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value != "mixers" || n.Content[i+1].Kind != yaml.MappingNode {
			continue
		}
		mixers := n.Content[i+1]
		order := make([]string, 0, len(mixers.Content)/2)
		for j := 0; j+1 < len(mixers.Content); j += 2 {
			order = append(order, mixers.Content[j].Value)
		}
		return order
	}
	return nil
}

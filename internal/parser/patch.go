package parser

import (
	"bytes"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// PatchFrontmatter applies patch to the frontmatter of data and returns the
// new document. A nil patch value deletes the property. Properties not named in patch keep their value and position,
// and the body is left untouched. A document without frontmatter gets a new
// block. changed is false when the patch was a no-op.
func PatchFrontmatter(data []byte, patch map[string]any) (out []byte, changed bool, err error) {
	if len(patch) == 0 {
		return data, false, nil
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fm, ok := locate(data)
	var root *yaml.Node
	if ok {
		root, err = mappingNode(fm.block)
		if err != nil {
			return nil, false, fmt.Errorf("parser: patch: %w", err)
		}
	} else {
		root = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	}

	for _, k := range keys {
		if apply(root, k, patch[k]) {
			changed = true
		}
	}
	if !changed {
		return data, false, nil
	}

	var buf bytes.Buffer
	if len(root.Content) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(root); err != nil {
			return nil, false, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, false, fmt.Errorf("parser: encode frontmatter: %w", err)
		}
	}

	var b bytes.Buffer
	if ok {
		b.Write(fm.head)
		b.Write(buf.Bytes())
		b.Write(fm.tail)
	} else {
		b.WriteString(delim + "\n")
		b.Write(buf.Bytes())
		b.WriteString(delim + "\n")
		b.Write(data)
	}
	return b.Bytes(), true, nil
}

// apply sets or removes key on the mapping node and reports whether the
// mapping changed.
func apply(root *yaml.Node, key string, value any) bool {
	idx := -1
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			idx = i
			break
		}
	}

	if value == nil {
		if idx < 0 {
			return false
		}
		root.Content = append(root.Content[:idx], root.Content[idx+2:]...)
		return true
	}

	next := valueNode(value)
	if idx < 0 {
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: key},
			next,
		)
		return true
	}
	if sameValue(root.Content[idx+1], next) {
		return false
	}
	next.HeadComment = root.Content[idx+1].HeadComment
	next.LineComment = root.Content[idx+1].LineComment
	root.Content[idx+1] = next
	return true
}

// valueNode builds an untagged node so that dates are written plain rather
// than quoted. Strings that would read back as null are quoted.
func valueNode(v any) *yaml.Node {
	switch x := v.(type) {
	case string:
		n := &yaml.Node{Kind: yaml.ScalarNode, Value: x}
		if n.ShortTag() == "!!null" {
			n.Style = yaml.DoubleQuotedStyle
		}
		return n
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, s := range x {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: s})
		}
		return seq
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Value: fmt.Sprint(x)}
	}
}

func sameValue(old, next *yaml.Node) bool {
	if old.Kind != next.Kind {
		return false
	}
	switch old.Kind {
	case yaml.ScalarNode:
		return old.Tag != "!!null" && old.Value == next.Value
	case yaml.SequenceNode:
		if len(old.Content) != len(next.Content) {
			return false
		}
		for i := range old.Content {
			if !sameValue(old.Content[i], next.Content[i]) {
				return false
			}
		}
		return true
	}
	return false
}

// Package parser reads and patches YAML frontmatter of Markdown notes.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delim = "---"

// Result holds the output of parsing a Markdown file.
type Result struct {
	// Frontmatter maps property names to their values. Scalars carry their
	// source text, sequences of scalars become []string, anything else is
	// decoded generically.
	Frontmatter map[string]any
	Body        string
	// Inline holds `key:: value` properties found in the body.
	Inline map[string]string
}

// Parse extracts frontmatter, body and inline properties from raw Markdown
// bytes. Invalid YAML is not an error: the whole content is treated as body.
func Parse(data []byte) (*Result, error) {
	fm, ok := locate(data)
	if !ok {
		body := string(data)
		return &Result{Body: body, Inline: InlineProperties(body)}, nil
	}

	props, err := decode(fm.block)
	if err != nil {
		body := string(data)
		return &Result{Body: body, Inline: InlineProperties(body)}, nil
	}
	body := fm.body()
	return &Result{Frontmatter: props, Body: body, Inline: InlineProperties(body)}, nil
}

// section locates a frontmatter block inside a document.
type section struct {
	head  []byte // up to and including the opening delimiter line
	block []byte // YAML between the delimiters
	tail  []byte // from the closing delimiter to the end
}

func (s section) body() string {
	rest := s.tail[len(delim):]
	if i := bytes.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		rest = nil
	}
	return strings.TrimLeft(string(rest), "\n\r")
}

// locate finds a frontmatter block opened by a leading --- line and closed
// by the next line starting with ---.
func locate(data []byte) (section, bool) {
	start := len(data) - len(bytes.TrimLeft(data, "\n\r"))
	if !bytes.HasPrefix(data[start:], []byte(delim)) {
		return section{}, false
	}
	nl := bytes.IndexByte(data[start:], '\n')
	if nl < 0 {
		return section{}, false
	}
	nl += start
	if strings.TrimSpace(string(data[start:nl])) != delim {
		return section{}, false
	}

	idx := bytes.Index(data[nl:], []byte("\n"+delim))
	if idx < 0 {
		return section{}, false
	}
	closing := nl + idx + 1
	return section{
		head:  data[:nl+1],
		block: data[nl+1 : closing],
		tail:  data[closing:],
	}, true
}

func decode(block []byte) (map[string]any, error) {
	root, err := mappingNode(block)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		v, err := nodeValue(root.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("parser: property %q: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

// mappingNode decodes block into its top-level mapping node. An empty block
// yields an empty mapping.
func mappingNode(block []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(block, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 {
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}, nil
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) != 1 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, fmt.Errorf("parser: frontmatter is not a mapping")
	}
	return doc.Content[0], nil
}

func nodeValue(n *yaml.Node) (any, error) {
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return "", nil
		}
		return n.Value, nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				var generic any
				if err := n.Decode(&generic); err != nil {
					return nil, err
				}
				return generic, nil
			}
			items = append(items, c.Value)
		}
		return items, nil
	default:
		var generic any
		if err := n.Decode(&generic); err != nil {
			return nil, err
		}
		return generic, nil
	}
}

// InlineProperties collects `key:: value` lines from body. List markers are
// allowed before the key, fenced code blocks are skipped and the first
// occurrence of a key wins.
func InlineProperties(body string) map[string]string {
	var out map[string]string
	fenced := false
	for _, line := range strings.Split(body, "\n") {
		s := strings.TrimSpace(line)
		if strings.HasPrefix(s, "```") || strings.HasPrefix(s, "~~~") {
			fenced = !fenced
			continue
		}
		if fenced {
			continue
		}
		s = strings.TrimLeft(s, "-*+ \t")
		key, value, ok := strings.Cut(s, "::")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" || strings.ContainsAny(key, "[]#`") {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		if _, dup := out[key]; !dup {
			out[key] = strings.TrimSpace(value)
		}
	}
	return out
}

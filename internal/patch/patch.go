// Package patch maintains the user override document (default.custom.yaml)
// that selects which input schemas the engine enables.
//
// The document has the shape
//
//	patch:
//	  schema_list:
//	    - schema: luna_pinyin
//	    - schema: cangjie5
//
// Merging edits the YAML node tree in place so that unrelated keys, extra
// per-entry keys and comments survive.
package patch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the override document the engine reads from the user data directory.
const FileName = "default.custom.yaml"

const (
	patchKey      = "patch"
	schemaListKey = "schema_list"
	schemaKey     = "schema"
)

var (
	// ErrMerge matches every *MergeError via errors.Is.
	ErrMerge = errors.New("patch: merge failed")

	// ErrEmptySchemaList is returned when no schema id is requested.
	ErrEmptySchemaList = errors.New("patch: empty schema list")
)

// MergeError reports an existing document that could not be read or merged.
// The document on disk is left untouched.
type MergeError struct {
	Path string
	Err  error
}

func (e *MergeError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("patch: %v", e.Err)
	}
	return fmt.Sprintf("patch: %s: %v", e.Path, e.Err)
}

func (e *MergeError) Is(target error) bool { return target == ErrMerge }

func (e *MergeError) Unwrap() error { return e.Err }

// SchemaList returns existing with patch.schema_list replaced by ids. An
// empty existing document yields a new one. Duplicate ids keep their first
// position.
func SchemaList(existing []byte, ids []string) ([]byte, error) {
	ids = dedupe(ids)
	if len(ids) == 0 {
		return nil, ErrEmptySchemaList
	}

	doc, err := parse(existing)
	if err != nil {
		return nil, &MergeError{Err: err}
	}
	root := doc.Content[0]

	patch := ensureMapping(root, patchKey)
	if patch.Kind != yaml.MappingNode {
		return nil, &MergeError{Err: fmt.Errorf("%s is a %s, want a mapping", patchKey, kindName(patch))}
	}

	list := lookup(patch, schemaListKey)
	if list == nil {
		list = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		patch.Content = append(patch.Content, scalar(schemaListKey), list)
	}
	if err := replaceEntries(list, ids); err != nil {
		return nil, &MergeError{Err: err}
	}

	return encode(doc)
}

// SelectedSchemas returns the schema ids listed in data, in order.
func SelectedSchemas(data []byte) ([]string, error) {
	doc, err := parse(data)
	if err != nil {
		return nil, &MergeError{Err: err}
	}
	patch := lookup(doc.Content[0], patchKey)
	if patch == nil || isNull(patch) {
		return nil, nil
	}
	if patch.Kind != yaml.MappingNode {
		return nil, &MergeError{Err: fmt.Errorf("%s is a %s, want a mapping", patchKey, kindName(patch))}
	}
	list := lookup(patch, schemaListKey)
	if list == nil || isNull(list) {
		return nil, nil
	}
	if list.Kind != yaml.SequenceNode {
		return nil, &MergeError{Err: fmt.Errorf("%s is a %s, want a sequence", schemaListKey, kindName(list))}
	}

	ids := make([]string, 0, len(list.Content))
	for _, entry := range list.Content {
		if id, ok := entryID(entry); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// WriteSchemaList creates or merges the document at path. A document that
// cannot be read or merged is reported as a *MergeError and not rewritten.
func WriteSchemaList(path string, ids []string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return &MergeError{Path: path, Err: err}
	}

	merged, err := SchemaList(existing, ids)
	if err != nil {
		var me *MergeError
		if errors.As(err, &me) {
			me.Path = path
		}
		return err
	}

	if bytes.Equal(existing, merged) {
		return nil
	}
	return writeFile(path, merged)
}

// ReadSchemaList reads the selected schema ids from path. A missing file
// selects nothing.
func ReadSchemaList(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &MergeError{Path: path, Err: err}
	}
	ids, err := SelectedSchemas(data)
	if err != nil {
		var me *MergeError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, err
	}
	return ids, nil
}

// parse returns the document node of data; its single child is the root
// mapping, created for an empty document.
func parse(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode {
		doc = yaml.Node{Kind: yaml.DocumentNode}
	}
	if len(doc.Content) == 0 || isNull(doc.Content[0]) {
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}
	}
	if root := doc.Content[0]; root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("document is a %s, want a mapping", kindName(root))
	}
	return &doc, nil
}

func encode(doc *yaml.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	return buf.Bytes(), nil
}

// replaceEntries rewrites list to hold one entry per id. Entries for ids
// that stay selected are reused with their extra keys and comments.
func replaceEntries(list *yaml.Node, ids []string) error {
	if isNull(list) {
		*list = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq", Line: list.Line, Column: list.Column}
	}
	if list.Kind != yaml.SequenceNode {
		return fmt.Errorf("%s is a %s, want a sequence", schemaListKey, kindName(list))
	}

	kept := make(map[string]*yaml.Node, len(list.Content))
	for _, entry := range list.Content {
		if id, ok := entryID(entry); ok {
			if _, dup := kept[id]; !dup {
				kept[id] = entry
			}
		}
	}

	content := make([]*yaml.Node, 0, len(ids))
	for _, id := range ids {
		if entry, ok := kept[id]; ok {
			content = append(content, entry)
			continue
		}
		content = append(content, &yaml.Node{
			Kind:    yaml.MappingNode,
			Tag:     "!!map",
			Content: []*yaml.Node{scalar(schemaKey), scalar(id)},
		})
	}
	list.Content = content
	return nil
}

func entryID(entry *yaml.Node) (string, bool) {
	if entry.Kind != yaml.MappingNode {
		return "", false
	}
	v := lookup(entry, schemaKey)
	if v == nil || v.Kind != yaml.ScalarNode || v.Value == "" {
		return "", false
	}
	return v.Value, true
}

// ensureMapping returns the value under key, adding an empty mapping when
// the key is absent or null.
func ensureMapping(m *yaml.Node, key string) *yaml.Node {
	if v := lookup(m, key); v != nil {
		if isNull(v) {
			*v = yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: v.Line, Column: v.Column}
		}
		return v
	}
	v := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, scalar(key), v)
	return v
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	if m.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func scalar(v string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.AliasNode:
		return "alias"
	default:
		return "scalar"
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// writeFile replaces path atomically via a temp file in the same directory.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create patch directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write patch: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync patch: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close patch: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod patch: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace patch: %w", err)
	}
	return nil
}

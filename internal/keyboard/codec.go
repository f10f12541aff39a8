package keyboard

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed keyboard.schema.json
var schemaJSON string

const schemaURL = "keyboard.schema.json"

var compiledSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	return compiler.Compile(schemaURL)
})

type parseOptions struct {
	strict bool
	file   string
}

// ParseOption adjusts Parse.
type ParseOption func(*parseOptions)

// WithLenientActions accepts unknown action verbs as ActionOpaque.
func WithLenientActions() ParseOption {
	return func(o *parseOptions) { o.strict = false }
}

// WithStrictActions sets action strictness explicitly.
func WithStrictActions(strict bool) ParseOption {
	return func(o *parseOptions) { o.strict = strict }
}

// WithFilename names the document in errors.
func WithFilename(name string) ParseOption {
	return func(o *parseOptions) { o.file = name }
}

// Parse decodes a keyboard document. It checks the document shape, decodes
// it onto the defaults and validates the result; any failure is a
// *ParseError and no partial configuration is returned.
func Parse(data []byte, opts ...ParseOption) (*Configuration, error) {
	o := parseOptions{strict: true}
	for _, opt := range opts {
		opt(&o)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, o.wrap(err)
	}

	cfg := Default()
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || isNull(root.Content[0]) {
		return cfg, nil
	}
	doc := root.Content[0]

	if err := checkStructure(doc); err != nil {
		return nil, o.wrap(err)
	}
	if o.strict {
		if err := checkActions(doc, ""); err != nil {
			return nil, o.wrap(err)
		}
	}
	if err := doc.Decode(cfg); err != nil {
		return nil, o.wrap(err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, o.wrap(err)
	}
	return cfg, nil
}

func (o parseOptions) wrap(err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		if pe.File == "" {
			pe.File = o.file
		}
		return pe
	}
	return &ParseError{File: o.file, Msg: err.Error(), Err: err}
}

// Load reads and parses the document at path.
func Load(path string, opts ...ParseOption) (*Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyboard document: %w", err)
	}
	return Parse(data, append([]ParseOption{WithFilename(path)}, opts...)...)
}

// Encode serializes cfg so that Parse(Encode(cfg)) equals cfg.
func Encode(cfg *Configuration) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode keyboard document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode keyboard document: %w", err)
	}
	return buf.Bytes(), nil
}

// checkStructure validates the generic document against the embedded JSON schema.
func checkStructure(doc *yaml.Node) error {
	schema, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile keyboard schema: %w", err)
	}

	instance := toJSONValue(doc)
	if err := schema.Validate(instance); err != nil {
		var ve *jsonschema.ValidationError
		if !errors.As(err, &ve) {
			return err
		}
		leaf := ve
		for len(leaf.Causes) > 0 {
			leaf = leaf.Causes[0]
		}
		return &ParseError{
			Path: pointerPath(leaf.InstanceLocation),
			Line: lineAt(doc, leaf.InstanceLocation),
			Msg:  leaf.Message,
			Err:  err,
		}
	}
	return nil
}

// toJSONValue converts a YAML node into the value shapes encoding/json produces.
func toJSONValue(n *yaml.Node) any {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return toJSONValue(n.Content[0])
	case yaml.AliasNode:
		return toJSONValue(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = toJSONValue(n.Content[i+1])
		}
		return m
	case yaml.SequenceNode:
		s := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			s = append(s, toJSONValue(c))
		}
		return s
	}

	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return json.Number(strconv.FormatInt(i, 10))
		}
		var u uint64
		if err := n.Decode(&u); err == nil {
			return json.Number(strconv.FormatUint(u, 10))
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			if s := strconv.FormatFloat(f, 'g', -1, 64); !strings.ContainsAny(s, "IN") {
				return json.Number(s)
			}
		}
	}
	return n.Value
}

func pointerTokens(ptr string) []string {
	ptr = strings.TrimPrefix(ptr, "#")
	if ptr == "" || ptr == "/" {
		return nil
	}
	tokens := strings.Split(strings.TrimPrefix(ptr, "/"), "/")
	for i, t := range tokens {
		t = strings.ReplaceAll(t, "~1", "/")
		tokens[i] = strings.ReplaceAll(t, "~0", "~")
	}
	return tokens
}

// pointerPath renders /keyboards/0/name as keyboards[0].name.
func pointerPath(ptr string) string {
	var sb strings.Builder
	for _, t := range pointerTokens(ptr) {
		if _, err := strconv.Atoi(t); err == nil {
			sb.WriteString("[" + t + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(t)
	}
	return sb.String()
}

// lineAt returns the line of the node a JSON pointer addresses, or of its
// deepest existing ancestor.
func lineAt(doc *yaml.Node, ptr string) int {
	n := doc
	for _, t := range pointerTokens(ptr) {
		for n.Kind == yaml.AliasNode {
			n = n.Alias
		}
		var next *yaml.Node
		switch n.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				if n.Content[i].Value == t {
					next = n.Content[i+1]
					break
				}
			}
		case yaml.SequenceNode:
			if idx, err := strconv.Atoi(t); err == nil && idx >= 0 && idx < len(n.Content) {
				next = n.Content[idx]
			}
		}
		if next == nil {
			break
		}
		n = next
	}
	return n.Line
}

// checkActions applies the strict action grammar to every action and
// longPress value, so errors carry their line.
func checkActions(n *yaml.Node, path string) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i].Value, n.Content[i+1]
			sub := key
			if path != "" {
				sub = path + "." + key
			}
			if (key == "action" || key == "longPress") && val.Kind == yaml.ScalarNode {
				if _, err := ParseAction(val.Value, true); err != nil {
					return &ParseError{Path: sub, Line: val.Line, Msg: err.Error()}
				}
				continue
			}
			if err := checkActions(val, sub); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		for i, c := range n.Content {
			if err := checkActions(c, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// validate enforces rules the schema cannot express.
func (c *Configuration) validate() error {
	layouts := map[string]bool{}
	for i, l := range c.Keyboards {
		path := fmt.Sprintf("keyboards[%d]", i)
		if layouts[l.Name] {
			return &ParseError{Path: path + ".name", Msg: fmt.Sprintf("duplicate layout %q", l.Name)}
		}
		layouts[l.Name] = true
		for j, row := range l.Rows {
			if err := validateKeys(row.Keys, fmt.Sprintf("%s.rows[%d]", path, j)); err != nil {
				return err
			}
		}
	}

	types := map[string]bool{}
	for i, ks := range c.Swipe.KeyboardSwipe {
		path := fmt.Sprintf("swipe.keyboardSwipe[%d]", i)
		if types[ks.KeyboardType] {
			return &ParseError{Path: path + ".keyboardType", Msg: fmt.Sprintf("duplicate keyboard type %q", ks.KeyboardType)}
		}
		types[ks.KeyboardType] = true
		if err := validateKeys(ks.Keys, path); err != nil {
			return err
		}
	}

	schemes := map[string]bool{}
	for i, cs := range c.Keyboard.ColorSchemas {
		if schemes[cs.SchemaName] {
			return &ParseError{
				Path: fmt.Sprintf("keyboard.colorSchemas[%d].schemaName", i),
				Msg:  fmt.Sprintf("duplicate color scheme %q", cs.SchemaName),
			}
		}
		schemes[cs.SchemaName] = true
	}
	return nil
}

func validateKeys(keys []Key, path string) error {
	for i, k := range keys {
		kp := fmt.Sprintf("%s.keys[%d]", path, i)
		if k.Action.IsZero() {
			return &ParseError{Path: kp + ".action", Msg: "required"}
		}
		seen := map[Direction]bool{}
		for j, b := range k.Swipe {
			if seen[b.Direction] {
				return &ParseError{
					Path: fmt.Sprintf("%s.swipe[%d].direction", kp, j),
					Msg:  fmt.Sprintf("duplicate binding for %s", b.Direction),
				}
			}
			seen[b.Direction] = true
		}
	}
	return nil
}

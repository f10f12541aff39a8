package tableengine

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"hamster/internal/store"
)

// DefaultAlphabet is the speller alphabet of a schema that names none.
const DefaultAlphabet = "zyxwvutsrqponmlkjihgfedcba"

var (
	// ErrSchemaNotFound is returned when no data directory holds a schema file.
	ErrSchemaNotFound = errors.New("tableengine: schema not found")

	// ErrDictionary wraps dictionary syntax errors.
	ErrDictionary = errors.New("tableengine: bad dictionary")
)

// schemaFile is the part of a *.schema.yaml the engine reads.
type schemaFile struct {
	Schema struct {
		ID      string `yaml:"schema_id"`
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"schema"`
	Speller struct {
		Alphabet string `yaml:"alphabet"`
	} `yaml:"speller"`
	Translator struct {
		Dictionary string `yaml:"dictionary"`
	} `yaml:"translator"`
}

// DictHeader is the YAML document before the "..." line of a *.dict.yaml.
type DictHeader struct {
	Name         string   `yaml:"name"`
	Version      string   `yaml:"version"`
	Sort         string   `yaml:"sort"`
	Columns      []string `yaml:"columns"`
	ImportTables []string `yaml:"import_tables"`
}

// defaultFile holds the schema list of default.yaml.
type defaultFile struct {
	SchemaList []struct {
		Schema string `yaml:"schema"`
	} `yaml:"schema_list"`
}

// dataDirs resolves files with the user directory taking precedence.
type dataDirs struct {
	user, shared string
}

func (d dataDirs) find(name string) (string, error) {
	for _, dir := range []string{d.user, d.shared} {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSchemaNotFound, name)
}

// defaultSchemaList reads schema_list from default.yaml.
func (d dataDirs) defaultSchemaList() ([]string, error) {
	p, err := d.find("default.yaml")
	if err != nil {
		return nil, nil
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var f defaultFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	var ids []string
	for _, e := range f.SchemaList {
		if e.Schema != "" {
			ids = append(ids, e.Schema)
		}
	}
	return ids, nil
}

// availableSchemas lists every *.schema.yaml in either directory.
func (d dataDirs) availableSchemas() []string {
	var ids []string
	for _, dir := range []string{d.user, d.shared} {
		if dir == "" {
			continue
		}
		matches, _ := filepath.Glob(filepath.Join(dir, "*.schema.yaml"))
		for _, m := range matches {
			ids = append(ids, strings.TrimSuffix(filepath.Base(m), ".schema.yaml"))
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func (d dataDirs) loadSchema(id string) (*schemaFile, error) {
	p, err := d.find(id + ".schema.yaml")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var f schemaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	if f.Schema.ID == "" {
		f.Schema.ID = id
	}
	if f.Schema.Name == "" {
		f.Schema.Name = f.Schema.ID
	}
	if f.Speller.Alphabet == "" {
		f.Speller.Alphabet = DefaultAlphabet
	}
	return &f, nil
}

// loadDictionary reads name.dict.yaml and the tables it imports.
func (d dataDirs) loadDictionary(name string) ([]store.Entry, error) {
	return d.loadDictionaryRec(name, map[string]bool{})
}

func (d dataDirs) loadDictionaryRec(name string, seen map[string]bool) ([]store.Entry, error) {
	if seen[name] {
		return nil, nil
	}
	seen[name] = true

	p, err := d.find(name + ".dict.yaml")
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	hdr, entries, err := ParseDictionary(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	for _, imp := range hdr.ImportTables {
		more, err := d.loadDictionaryRec(imp, seen)
		if err != nil {
			return nil, fmt.Errorf("import %s from %s: %w", imp, name, err)
		}
		entries = append(entries, more...)
	}
	return entries, nil
}

// ParseDictionary splits a dict file into its header and entries. Lines
// after "..." are tab-separated columns; "#" starts a comment line. Text
// and codes are stored in NFC, and the spaces between syllables of a code
// are dropped.
func ParseDictionary(data []byte) (*DictHeader, []store.Entry, error) {
	head, body, found := splitDocument(data)
	if !found {
		return nil, nil, fmt.Errorf("%w: missing \"...\" after header", ErrDictionary)
	}

	var hdr DictHeader
	if err := yaml.Unmarshal(head, &hdr); err != nil {
		return nil, nil, fmt.Errorf("%w: header: %v", ErrDictionary, err)
	}
	columns := hdr.Columns
	if len(columns) == 0 {
		columns = []string{"text", "code", "weight"}
	}
	col := map[string]int{"text": -1, "code": -1, "weight": -1}
	for i, c := range columns {
		col[c] = i
	}
	if col["text"] < 0 || col["code"] < 0 {
		return nil, nil, fmt.Errorf("%w: columns must include text and code", ErrDictionary)
	}

	var entries []store.Entry
	headLines := bytes.Count(head, []byte("\n")) + 1
	sc := bufio.NewScanner(bytes.NewReader(body))
	for n := headLines + 1; sc.Scan(); n++ {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		get := func(name string) string {
			if i := col[name]; i >= 0 && i < len(fields) {
				return strings.TrimSpace(fields[i])
			}
			return ""
		}

		e := store.Entry{
			Text: norm.NFC.String(get("text")),
			Code: strings.ReplaceAll(norm.NFC.String(get("code")), " ", ""),
		}
		if e.Text == "" {
			return nil, nil, fmt.Errorf("%w: line %d: empty text", ErrDictionary, n)
		}
		if e.Code == "" {
			// Entries without a code only feed phrase building.
			continue
		}
		if w := get("weight"); w != "" {
			weight, err := parseWeight(w)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: line %d: weight %q", ErrDictionary, n, w)
			}
			e.Weight = weight
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, nil, err
	}
	return &hdr, entries, nil
}

// parseWeight accepts integers and the percentage form "50%".
func parseWeight(s string) (int64, error) {
	if pct, ok := strings.CutSuffix(s, "%"); ok {
		f, err := strconv.ParseFloat(pct, 64)
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	}
	return strconv.ParseInt(s, 10, 64)
}

// splitDocument cuts data at the first line consisting of "...".
func splitDocument(data []byte) (head, body []byte, found bool) {
	rest := data
	offset := 0
	for len(rest) > 0 {
		line, next, _ := bytes.Cut(rest, []byte("\n"))
		if string(bytes.TrimRight(line, " \r")) == "..." {
			return data[:offset], next, true
		}
		offset += len(line) + 1
		rest = next
	}
	return nil, nil, false
}

package patch

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestWriteSchemaListCreatesThenMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rime", FileName)

	require.NoError(t, WriteSchemaList(path, []string{"luna_pinyin"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, map[string]any{
		"patch": map[string]any{
			"schema_list": []any{map[string]any{"schema": "luna_pinyin"}},
		},
	}, doc)

	require.NoError(t, WriteSchemaList(path, []string{"luna_pinyin", "cangjie"}))
	ids, err := ReadSchemaList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"luna_pinyin", "cangjie"}, ids)
}

func TestSchemaListPreservesUnrelatedKeys(t *testing.T) {
	existing := []byte(`# user overrides
customization:
  distribution_code_name: Hamster
patch:
  "menu/page_size": 9
  schema_list:
    - schema: cangjie5
      note: keep me
    - schema: terra_pinyin
  switcher/hotkeys:
    - F4
`)

	merged, err := SchemaList(existing, []string{"luna_pinyin", "cangjie5"})
	require.NoError(t, err)

	var doc struct {
		Customization map[string]any `yaml:"customization"`
		Patch         struct {
			PageSize   int              `yaml:"menu/page_size"`
			Hotkeys    []string         `yaml:"switcher/hotkeys"`
			SchemaList []map[string]any `yaml:"schema_list"`
		} `yaml:"patch"`
	}
	require.NoError(t, yaml.Unmarshal(merged, &doc))

	assert.Equal(t, "Hamster", doc.Customization["distribution_code_name"])
	assert.Equal(t, 9, doc.Patch.PageSize)
	assert.Equal(t, []string{"F4"}, doc.Patch.Hotkeys)
	assert.Equal(t, []map[string]any{
		{"schema": "luna_pinyin"},
		{"schema": "cangjie5", "note": "keep me"},
	}, doc.Patch.SchemaList)
	assert.Contains(t, string(merged), "# user overrides")
}

func TestSchemaListIdempotent(t *testing.T) {
	docs := map[string]string{
		"empty":       "",
		"no patch":    "customization:\n  generator: hamster\n",
		"null patch":  "patch:\n",
		"other keys":  "patch:\n  key_binder/bindings: []\n",
		"with list":   "patch:\n  schema_list:\n    - schema: cangjie5\n    - schema: luna_pinyin\n",
		"flow list":   "patch: {schema_list: [{schema: double_pinyin}]}\n",
		"null list":   "patch:\n  schema_list:\n",
		"commented":   "# head\npatch:\n  # the list\n  schema_list:\n    - schema: cangjie5 # mine\n",
		"extra entry": "patch:\n  schema_list:\n    - {schema: luna_pinyin, enabled: true}\n",
	}
	ids := []string{"luna_pinyin", "cangjie5"}

	for name, in := range docs {
		t.Run(name, func(t *testing.T) {
			once, err := SchemaList([]byte(in), ids)
			require.NoError(t, err)
			twice, err := SchemaList(once, ids)
			require.NoError(t, err)
			assert.Equal(t, string(once), string(twice))

			got, err := SelectedSchemas(twice)
			require.NoError(t, err)
			assert.Equal(t, ids, got)
		})
	}
}

func TestSchemaListDedupes(t *testing.T) {
	out, err := SchemaList(nil, []string{"a", "b", "a", ""})
	require.NoError(t, err)
	got, err := SelectedSchemas(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSchemaListEmpty(t *testing.T) {
	_, err := SchemaList(nil, nil)
	assert.ErrorIs(t, err, ErrEmptySchemaList)

	_, err = SchemaList(nil, []string{""})
	assert.ErrorIs(t, err, ErrEmptySchemaList)
}

func TestSchemaListRejectsMalformed(t *testing.T) {
	for name, in := range map[string]string{
		"not yaml":        "patch: [unclosed\n",
		"scalar document": "just text\n",
		"sequence root":   "- a\n- b\n",
		"scalar patch":    "patch: 3\n",
		"scalar list":     "patch:\n  schema_list: luna_pinyin\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := SchemaList([]byte(in), []string{"luna_pinyin"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMerge), err.Error())
		})
	}
}

func TestWriteSchemaListLeavesUnreadableDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	corrupt := []byte("patch: [unclosed\n")
	require.NoError(t, os.WriteFile(path, corrupt, 0o644))

	err := WriteSchemaList(path, []string{"luna_pinyin"})
	var me *MergeError
	require.True(t, errors.As(err, &me))
	assert.Equal(t, path, me.Path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, corrupt, data)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteSchemaListDirectoryAsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.Mkdir(path, 0o755))

	err := WriteSchemaList(path, []string{"luna_pinyin"})
	assert.True(t, errors.Is(err, ErrMerge))
}

func TestReadSchemaListMissing(t *testing.T) {
	ids, err := ReadSchemaList(filepath.Join(t.TempDir(), FileName))
	require.NoError(t, err)
	assert.Nil(t, ids)
}

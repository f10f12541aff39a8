package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hamster/internal/keyboard"
)

// writeConfig writes a config that keeps all state under a temp directory
// and reads schemas from the table engine fixtures.
func writeConfig(t *testing.T, keyboardPath string) string {
	t.Helper()
	shared, err := filepath.Abs(filepath.Join("..", "tableengine", "testdata", "shared"))
	require.NoError(t, err)
	if keyboardPath == "" {
		keyboardPath = filepath.Join(t.TempDir(), "missing.yaml")
	} else {
		keyboardPath, err = filepath.Abs(keyboardPath)
		require.NoError(t, err)
	}

	dir := t.TempDir()
	body := fmt.Sprintf(`[engine]
shared_data_dir = %q
user_data_dir = %q
max_candidates = 100
page_size = 5

[keyboard]
path = %q
strict = true

[store]
path = %q

[logging]
level = "error"
output = "stderr"
`, shared, filepath.Join(dir, "rime"), keyboardPath, filepath.Join(dir, "hamster.db"))

	path := filepath.Join(dir, "hamster.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", configPath, "--env", ""}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "hamster", cmd.Use)

	for _, name := range []string{"validate", "schemas", "deploy", "type", "swipe", "watch"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	env := cmd.PersistentFlags().Lookup("env")
	require.NotNil(t, env)
	assert.Equal(t, ".env", env.DefValue)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}

func TestValidate(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := run(t, cfg, "validate", filepath.Join("..", "keyboard", "testdata", "hamster.yaml"))
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "keyboard type:  chinese")
	assert.Contains(t, out, "color schemes:  2")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("keyboard:\n  useKeyboardType: chinese\nswipe:\n  keyboardSwipe:\n    - keyboardType: chinese\n      keys:\n        - action: frobnicate(x)\n"), 0o600))

	out, err = run(t, cfg, "validate", bad)
	require.Error(t, err)
	assert.Contains(t, out, "✗")

	_, err = run(t, cfg, "validate", "--lenient", bad)
	assert.NoError(t, err)
}

func TestDeployAndSchemas(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := run(t, cfg, "schemas", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No schemas deployed")

	out, err = run(t, cfg, "deploy")
	require.NoError(t, err)
	assert.Contains(t, out, "deployStart")
	assert.Contains(t, out, "✓ deployed 2 schema(s)")

	out, err = run(t, cfg, "schemas", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "luna_pinyin")
	assert.Contains(t, out, "cangjie5")
	assert.Contains(t, out, "Last deploy:")

	out, err = run(t, cfg, "schemas", "select", "cangjie5")
	require.NoError(t, err)
	assert.Contains(t, out, "Selected 1 schema(s)")

	_, err = run(t, cfg, "deploy")
	require.NoError(t, err)
	out, err = run(t, cfg, "schemas", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "* cangjie5")
	assert.NotContains(t, out, "luna_pinyin")

	out, err = run(t, cfg, "deploy", "--history", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "STARTED")
	assert.Contains(t, out, "ok")
}

func TestType(t *testing.T) {
	cfg := writeConfig(t, "")

	out, err := run(t, cfg, "type", "nihao")
	require.NoError(t, err)
	assert.Contains(t, out, "input:  nihao")
	assert.Contains(t, out, "1. 你好")

	out, err = run(t, cfg, "type", "nihao{space}")
	require.NoError(t, err)
	assert.Contains(t, out, "text:   你好\n")

	out, err = run(t, cfg, "type", "nihao", "--select", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "text:   拟好\n")

	_, err = run(t, cfg, "type", "nihao", "--page", "0")
	assert.Error(t, err)
}

func TestSwipe(t *testing.T) {
	cfg := writeConfig(t, filepath.Join("..", "keyboard", "testdata", "hamster.yaml"))

	out, err := run(t, cfg, "swipe", "--key", "character(b)", "--to", "0,-40")
	require.NoError(t, err)
	assert.Contains(t, out, "kind:      swipe")
	assert.Contains(t, out, "direction: up")
	assert.Contains(t, out, "action:    symbol(《》)")
	assert.Contains(t, out, "engine:    true")

	out, err = run(t, cfg, "swipe", "--key", "character(b)")
	require.NoError(t, err)
	assert.Contains(t, out, "kind:      tap")

	out, err = run(t, cfg, "swipe", "--key", "character(b)", "--to", "40,-40")
	require.NoError(t, err)
	assert.Contains(t, out, "ambiguous: true")

	_, err = run(t, cfg, "swipe", "--key", "character(b)", "--to", "nope")
	assert.Error(t, err)
}

func TestParseKeys(t *testing.T) {
	actions, err := parseKeys("ni {space}{shortCommand(#行首)}好\n")
	require.NoError(t, err)
	assert.Equal(t, []keyboard.Action{
		keyboard.Character("n"),
		keyboard.Character("i"),
		keyboard.Space,
		keyboard.Space,
		keyboard.ShortCommand(keyboard.CommandLineStart),
		keyboard.Character("好"),
		keyboard.Enter,
	}, actions)

	_, err = parseKeys("ni{space")
	assert.Error(t, err)
}

func TestParsePoint(t *testing.T) {
	p, err := parsePoint(" 1.5, -2")
	require.NoError(t, err)
	assert.Equal(t, 1.5, p.X)
	assert.Equal(t, -2.0, p.Y)

	_, err = parsePoint("12")
	assert.Error(t, err)
}

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bundledDir = "../../data/scenarios"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const chainYAML = `name: Chain
stages:
  - id: a
    neighbors: [b]
    content:
      exercises:
        - id: q
          max_score: 2
  - id: b
    content:
      exercises:
        - id: q
          max_score: 2
behaviour:
  map:
    roaming: complete
    fog: all
  lives: 1
visual:
  misc:
    use_animation: false
`

func TestValidate_BundledScenarios(t *testing.T) {
	out, err := run(t,
		filepath.Join(bundledDir, "forest_trail.json"),
		filepath.Join(bundledDir, "island_hop.yaml"))
	require.NoError(t, err, out)
	assert.Equal(t, 2, strings.Count(out, "Scenario file is valid!"))
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		content  string
		contains string
	}{
		{
			name:     "wrong extension",
			file:     "chain.txt",
			content:  chainYAML,
			contains: "extension",
		},
		{
			name:     "filename not snake_case",
			file:     "Chain-Map.yaml",
			content:  chainYAML,
			contains: "snake_case",
		},
		{
			name:     "unknown field",
			file:     "chain.json",
			content:  `{"name":"Chain","stages":[{"id":"a"}],"colour":"red"}`,
			contains: "unknown field",
		},
		{
			name:     "unknown neighbor",
			file:     "chain.json",
			content:  `{"name":"Chain","stages":[{"id":"a","neighbors":["z"]}]}`,
			contains: "unknown neighbor 'z'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, writeFile(t, tt.file, tt.content))
			require.Error(t, err)
			assert.Contains(t, out, tt.contains)
		})
	}
}

func TestValidate_Lenient(t *testing.T) {
	path := writeFile(t, "chain.json", `{"name":"Chain","stages":[{"id":"a"}],"colour":"red"}`)
	out, err := run(t, "--lenient", path)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Scenario file is valid!")
}

func TestIsValidScenarioFilename(t *testing.T) {
	assert.True(t, isValidScenarioFilename("forest_trail"))
	assert.True(t, isValidScenarioFilename("x.draft_map"))
	assert.True(t, isValidScenarioFilename("a"))
	assert.False(t, isValidScenarioFilename("Forest"))
	assert.False(t, isValidScenarioFilename("forest-trail"))
	assert.False(t, isValidScenarioFilename("trail_"))
}

func TestSimulate_Autoplay(t *testing.T) {
	out, err := run(t, "simulate", filepath.Join(bundledDir, "forest_trail.json"))
	require.NoError(t, err, out)
	assert.Contains(t, out, `Started "Forest Trail" at trailhead`)
	assert.Contains(t, out, "stage meadow: unlocking -> open")
	assert.Contains(t, out, ", finished")
	assert.NotContains(t, out, "game over")
}

func TestSimulate_Script(t *testing.T) {
	sc := writeFile(t, "chain.yaml", chainYAML)
	script := writeFile(t, "play.txt", `# lose the only life on a
click b
expect b locked
click a
expect a opened
score a q 1
expect a sealed
solutions
expect a completed
expect b open
`)
	out, err := run(t, "simulate", "--start", "a", "--script", script, "--snapshot", sc)
	require.NoError(t, err, out)
	assert.Contains(t, out, "stage b denied (locked)")
	assert.Contains(t, out, "lives 0")
	assert.Contains(t, out, "game over: lives")
	assert.Contains(t, out, `"gameOver": true`)
}

func TestSimulate_ScriptErrors(t *testing.T) {
	sc := writeFile(t, "chain.yaml", chainYAML)

	tests := []struct {
		name     string
		script   string
		contains string
	}{
		{"unknown step", "click a\njump b\n", "script line 2: unknown step \"jump\""},
		{"missing args", "score a q\n", "score needs 3 arguments"},
		{"bad duration", "advance soon\n", "invalid duration"},
		{"failed expectation", "expect b open\n", "expected b to be open, got locked"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, "simulate", "--start", "a", "--script", writeFile(t, "play.txt", tt.script), sc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

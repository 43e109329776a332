package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-sandbox/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.True(t, cfg.Sandbox.EnableDocker)
	assert.Equal(t, 64*1024, cfg.Sandbox.OutputLimitBytes)
	assert.Equal(t, 10*1024, cfg.Sandbox.CodeLimitBytes)

	require.Len(t, cfg.Languages, 3)
	names := make([]string, 0, 3)
	for _, lang := range cfg.Languages {
		names = append(names, lang.Name)
	}
	assert.Equal(t, []string{"python", "javascript", "bash"}, names)

	py := cfg.Languages[0]
	assert.Equal(t, "python:3.11-alpine", py.Image)
	assert.Equal(t, ".py", py.Extension)
	assert.Equal(t, 30*time.Second, py.Timeout())
	assert.Equal(t, int64(128*1024*1024), py.MemoryBytes())
	assert.NotEmpty(t, py.Example)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sandbox.yaml")
	yaml := `
server:
  port: 9000
sandbox:
  enable_docker: false
  output_limit_bytes: 1024
  code_limit_bytes: 512
  stdin_limit_bytes: 256
languages:
  - name: python
    image: python:3.12-alpine
    command: ["python3"]
    extension: .py
    timeout_sec: 5
    memory_mb: 64
    cpu_limit: 0.25
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.Sandbox.EnableDocker)
	assert.Equal(t, 1024, cfg.Sandbox.OutputLimitBytes)
	require.Len(t, cfg.Languages, 1)
	assert.Equal(t, "python:3.12-alpine", cfg.Languages[0].Image)
	assert.Equal(t, 5*time.Second, cfg.Languages[0].Timeout())
}

// A zero CPU share would mean "unlimited" at the container runtime, so
// omitted values pick up the stock share instead.
func TestLoadDefaultsCPULimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sandbox.yaml")
	yaml := `
languages:
  - name: python
    image: python:3.11-alpine
    command: ["python3"]
    extension: .py
    timeout_sec: 5
    memory_mb: 64
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Languages, 1)
	assert.Equal(t, 0.5, cfg.Languages[0].CPULimit)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			"zero timeout",
			`
languages:
  - name: python
    image: python:3.11-alpine
    command: ["python3"]
    extension: .py
    timeout_sec: 0
    memory_mb: 64
`,
		},
		{
			"missing image",
			`
languages:
  - name: python
    command: ["python3"]
    extension: .py
    timeout_sec: 5
    memory_mb: 64
`,
		},
		{
			"duplicate language",
			`
languages:
  - name: python
    image: python:3.11-alpine
    command: ["python3"]
    extension: .py
    timeout_sec: 5
    memory_mb: 64
  - name: python
    image: python:3.12-alpine
    command: ["python3"]
    extension: .py
    timeout_sec: 5
    memory_mb: 64
`,
		},
		{
			"negative cpu limit",
			`
languages:
  - name: python
    image: python:3.11-alpine
    command: ["python3"]
    extension: .py
    timeout_sec: 5
    memory_mb: 64
    cpu_limit: -1
`,
		},
		{
			"bad port",
			`
server:
  port: -1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "sandbox.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			_, err := config.Load(path)
			assert.Error(t, err)
		})
	}
}

package language_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/code-sandbox/internal/config"
	"github.com/sakif/code-sandbox/internal/language"
)

func testLanguages() []config.LanguageConfig {
	return []config.LanguageConfig{
		{
			Name:       "python",
			Image:      "python:3.11-alpine",
			Command:    []string{"python3"},
			Extension:  ".py",
			TimeoutSec: 30,
			MemoryMB:   128,
			CPULimit:   0.5,
			Example:    `print("hi")`,
		},
		{
			Name:       "bash",
			Image:      "alpine:3.19",
			Command:    []string{"sh"},
			Extension:  ".sh",
			TimeoutSec: 15,
			MemoryMB:   64,
			CPULimit:   0.5,
		},
	}
}

func TestRegistryLookup(t *testing.T) {
	reg, err := language.NewRegistry(testLanguages())
	require.NoError(t, err)

	spec, ok := reg.Lookup("python")
	require.True(t, ok)
	assert.Equal(t, "python", spec.Name)
	assert.Equal(t, 30*time.Second, spec.Timeout)
	assert.Equal(t, int64(128*1024*1024), spec.MemoryBytes)
	assert.True(t, spec.NetworkDisabled)

	_, ok = reg.Lookup("cobol")
	assert.False(t, ok)
}

func TestRegistryNamesKeepConfigOrder(t *testing.T) {
	reg, err := language.NewRegistry(testLanguages())
	require.NoError(t, err)

	assert.Equal(t, []string{"python", "bash"}, reg.Names())
}

func TestRegistrySummaries(t *testing.T) {
	reg, err := language.NewRegistry(testLanguages())
	require.NoError(t, err)

	summaries := reg.Summaries()
	require.Len(t, summaries, 2)
	assert.Equal(t, "python", summaries[0].Name)
	assert.Equal(t, ".py", summaries[0].Extension)
	assert.Equal(t, float64(30), summaries[0].TimeoutSec)
	assert.Equal(t, int64(128), summaries[0].MemoryMB)
	assert.Equal(t, "alpine:3.19", summaries[1].Image)
}

func TestRegistryExamplesSkipsEmpty(t *testing.T) {
	reg, err := language.NewRegistry(testLanguages())
	require.NoError(t, err)

	examples := reg.Examples()
	assert.Contains(t, examples, "python")
	assert.NotContains(t, examples, "bash")
}

func TestRegistryMaxTimeout(t *testing.T) {
	reg, err := language.NewRegistry(testLanguages())
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, reg.MaxTimeout())
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	langs := testLanguages()
	langs[1].Name = "python"

	_, err := language.NewRegistry(langs)
	assert.Error(t, err)
}

func TestRegistryRejectsEmpty(t *testing.T) {
	_, err := language.NewRegistry(nil)
	assert.Error(t, err)
}

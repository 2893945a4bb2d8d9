package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aaronkwan/synced-object/pkg/object"
	"github.com/aaronkwan/synced-object/pkg/registry"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objects.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
objects:
  - key: counter
    mode: durable
    defaultValue:
      value: 0
    debounce: 250ms
    unloadPolicy: flush
  - key: scratch
    mode: none
    strict: false
`)

	m, err := Load(path)
	require.NoError(t, err)
	require.Len(t, m.Objects, 2)

	counter := m.Objects[0]
	assert.Equal(t, "counter", counter.Key)
	assert.Equal(t, "durable", counter.Mode)
	assert.Equal(t, "250ms", counter.Debounce)
	assert.Equal(t, "flush", counter.UnloadPolicy)
	assert.Nil(t, counter.Strict)

	scratch := m.Objects[1]
	assert.Equal(t, "scratch", scratch.Key)
	require.NotNil(t, scratch.Strict)
	assert.False(t, *scratch.Strict)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, "objects: [not: {closed")
	_, err := Load(path)
	require.Error(t, err)
}

func TestObjectManifest_Options(t *testing.T) {
	t.Parallel()

	om := ObjectManifest{
		Key:          "counter",
		Mode:         "durable",
		DefaultValue: map[string]any{"value": 0},
		Debounce:     "1s",
		UnloadPolicy: "block",
	}

	opts, err := om.Options()
	require.NoError(t, err)
	assert.Equal(t, time.Second, opts.DebounceInterval)
	assert.Equal(t, object.UnloadBlock, opts.UnloadPolicy)
	assert.Equal(t, map[string]any{"value": 0}, opts.DefaultValue)
}

func TestObjectManifest_OptionsInvalidDebounce(t *testing.T) {
	t.Parallel()

	om := ObjectManifest{Key: "counter", Debounce: "soon"}
	_, err := om.Options()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "counter")
}

func TestManifest_Apply(t *testing.T) {
	t.Parallel()

	path := writeManifest(t, `
objects:
  - key: counter
    mode: durable
    defaultValue:
      value: 0
  - key: scratch
    mode: none
`)

	m, err := Load(path)
	require.NoError(t, err)

	reg := registry.New()
	require.NoError(t, m.Apply(reg))

	obj, ok := reg.Get("counter")
	require.True(t, ok)
	assert.Equal(t, object.ModeDurable, obj.Mode())

	obj, ok = reg.Get("scratch")
	require.True(t, ok)
	assert.Equal(t, object.ModeNone, obj.Mode())
}

func TestManifest_ApplyInvalidObject(t *testing.T) {
	t.Parallel()

	m := &Manifest{Objects: []ObjectManifest{
		{Key: "bad", Mode: "cloud"},
	}}
	err := m.Apply(registry.New())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad")
}

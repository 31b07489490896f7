package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnvFile(t *testing.T) {
	const key = "ELITE_ENV_FILE_CHECK"
	t.Setenv(key, "")
	require.NoError(t, os.Unsetenv(key))

	path := filepath.Join(t.TempDir(), "custom.env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=loaded\n"), 0o600))
	require.NoError(t, loadEnvFile(path))
	assert.Equal(t, "loaded", os.Getenv(key))

	err := loadEnvFile(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load env file")
}

func TestRoot_MissingEnvFileFails(t *testing.T) {
	root := newRootCmd()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "config", "--validate"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load env file")
}

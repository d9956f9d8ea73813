package main

import (
	"bytes"
	"testing"

	"artifact-publisher/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFileArgs(t *testing.T) {
	files := parseFileArgs([]string{"/tmp/out/zImage", "/tmp/out/build.log=kernel.log", "/tmp/x="})

	assert.Equal(t, []storage.FilePair{
		{Source: "/tmp/out/zImage", Name: "zImage"},
		{Source: "/tmp/out/build.log", Name: "kernel.log"},
		{Source: "/tmp/x", Name: "x"},
	}, files)
}

func TestURLCommand(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "azure-files")
	t.Setenv("AZURE_FILES_BASE_URL", "https://acct.file.core.windows.net/")
	t.Setenv("AZURE_FILES_SHARE", "artifacts")
	t.Setenv("AZURE_FILES_SAS_PUBLIC_TOKEN", "?sv=2020")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"url", "--dest", "build42", "b.bin", "a.bin"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t,
		"a.bin\thttps://acct.file.core.windows.net/artifacts/build42/a.bin?sv=2020\n"+
			"b.bin\thttps://acct.file.core.windows.net/artifacts/build42/b.bin?sv=2020\n",
		out.String())
}

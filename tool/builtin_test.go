package tool

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agencyhub/model"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(body), 0o644))
}

func builtinRegistry(t *testing.T, root string, m model.Model) *Registry {
	t.Helper()
	return NewRegistry(Builtins(func(o *BuiltinOptions) {
		o.Root = root
		o.Model = m
	})...)
}

func call(t *testing.T, r *Registry, name string, args map[string]any) (any, error) {
	t.Helper()
	tl, ok := r.Lookup(name)
	require.True(t, ok, name)
	return tl.Call(context.Background(), args)
}

func TestBuiltins_WithoutModel(t *testing.T) {
	r := builtinRegistry(t, t.TempDir(), nil)
	assert.Equal(t, []string{BuildDirectoryTreeName, PrintAllFilesInPathName, PrintFileContentsName, WriteAndSaveProgramName}, r.Names())
}

func TestBuildDirectoryTree(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/main.go", "package main")
	writeFile(t, root, "src/util/util.go", "package util")
	writeFile(t, root, "README.md", "# hi")
	writeFile(t, root, ".git/config", "x")

	r := builtinRegistry(t, root, nil)

	out, err := call(t, r, BuildDirectoryTreeName, map[string]any{})
	require.NoError(t, err)
	tree := out.(string)
	assert.Contains(t, tree, "README.md\n")
	assert.Contains(t, tree, "src/\n")
	assert.Contains(t, tree, "    main.go\n")
	assert.Contains(t, tree, "        util.go\n")
	assert.NotContains(t, tree, ".git")

	out, err = call(t, r, BuildDirectoryTreeName, map[string]any{"file_extensions": []any{".md"}})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "README.md")
	assert.NotContains(t, out.(string), "main.go")
}

func TestPrintFileContents_Sandboxed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	r := builtinRegistry(t, root, nil)

	out, err := call(t, r, PrintFileContentsName, map[string]any{"file_path": "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, "alpha", out)

	for _, p := range []string{"../secret", "/etc/passwd"} {
		_, err = call(t, r, PrintFileContentsName, map[string]any{"file_path": p})
		var toolErr *ToolError
		require.True(t, errors.As(err, &toolErr), p)
		assert.Equal(t, CodeForbidden, toolErr.Code, p)
	}
}

func TestSandbox_RejectsSymlinkEscape(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, outside, "secret.txt", "top secret")
	root := t.TempDir()
	writeFile(t, root, "a.txt", "alpha")
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	r := builtinRegistry(t, root, nil)

	_, err := call(t, r, PrintFileContentsName, map[string]any{"file_path": "link/secret.txt"})
	var toolErr *ToolError
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeForbidden, toolErr.Code)

	_, err = call(t, r, WriteAndSaveProgramName, map[string]any{"files": []any{
		map[string]any{"file_name": "link/new/planted.txt", "body": "x"},
	}})
	require.True(t, errors.As(err, &toolErr))
	assert.Equal(t, CodeForbidden, toolErr.Code)
	_, statErr := os.Stat(filepath.Join(outside, "new", "planted.txt"))
	assert.True(t, os.IsNotExist(statErr))

	out, err := call(t, r, PrintAllFilesInPathName, map[string]any{})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "alpha")
	assert.NotContains(t, out.(string), "top secret")
}

func TestPrintAllFilesInPath_Pattern(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg/a.go", "package pkg")
	writeFile(t, root, "pkg/a_test.go", "package pkg_test")
	r := builtinRegistry(t, root, nil)

	out, err := call(t, r, PrintAllFilesInPathName, map[string]any{"start_path": "pkg", "pattern": "**/*_test.go"})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "pkg/a_test.go:\n```\npackage pkg_test\n```")
	assert.NotContains(t, out.(string), "pkg/a.go:")
}

func TestWriteAndSaveProgram(t *testing.T) {
	root := t.TempDir()
	r := builtinRegistry(t, root, nil)

	out, err := call(t, r, WriteAndSaveProgramName, map[string]any{"files": []any{
		map[string]any{"file_name": "web/index.html", "body": "<h1>hi</h1>"},
	}})
	require.NoError(t, err)
	assert.Contains(t, out.(string), "web/index.html")

	data, err := os.ReadFile(filepath.Join(root, "web", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "<h1>hi</h1>", string(data))

	_, err = call(t, r, WriteAndSaveProgramName, map[string]any{"files": []any{
		map[string]any{"file_name": "../escape.txt", "body": "x"},
	}})
	assert.Error(t, err)
}

func TestSummarizeCode_TruncatesOutput(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	m := model.NewScriptedModel(model.Reply(strings.Repeat("x", defaultMaxOutput+10)))
	r := builtinRegistry(t, root, m)

	out, err := call(t, r, SummarizeCodeName, map[string]any{"start_path": "."})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.(string), truncatedOutputNote))
	assert.Len(t, out.(string), defaultMaxOutput+len(truncatedOutputNote))

	req := m.Requests()[0]
	assert.Equal(t, summarizeCodeSystem, req.Instructions)
	assert.Contains(t, req.Contents[0].Text(), "main.go:\n```\npackage main")
}

func TestSummarizeCode_ModelFailure(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	r := builtinRegistry(t, root, model.NewScriptedModel(model.Fail(errors.New("API failed"))))

	_, err := call(t, r, SummarizeCodeName, map[string]any{})
	assert.ErrorContains(t, err, "API failed")
}

func TestGenerateProposal(t *testing.T) {
	m := model.NewScriptedModel(model.Reply("# Proposal"))
	r := builtinRegistry(t, t.TempDir(), m)

	out, err := call(t, r, GenerateProposalName, map[string]any{"project_brief": "a landing page"})
	require.NoError(t, err)
	assert.Equal(t, "# Proposal", out)
	assert.Contains(t, m.Requests()[0].Contents[0].Text(), "a landing page")
}

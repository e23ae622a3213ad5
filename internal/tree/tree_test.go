package tree

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitstore/internal/blob"
)

func fileNames(f *Folder) []string {
	names := make([]string, 0, len(f.Files))
	for _, fi := range f.Files {
		names = append(names, fi.Name)
	}
	return names
}

func TestProject(t *testing.T) {
	t.Run("NestedFolders", func(t *testing.T) {
		root := Project([]*blob.Blob{
			{SHA1: "aaa", Path: "src/a.py", Size: 10},
			{SHA1: "bbb", Path: "src/b.py", Size: 20},
			{SHA1: "ccc", Path: "README.md", Size: 30},
		})

		assert.Equal(t, []string{"README.md"}, fileNames(root))
		require.Contains(t, root.Folders, "src")
		assert.Equal(t, []string{"a.py", "b.py"}, fileNames(root.Folders["src"]))
	})

	t.Run("DeepPath", func(t *testing.T) {
		root := Project([]*blob.Blob{
			{SHA1: "abc", Path: "a/b/c/leaf.txt", Size: 1},
		})

		node := root.Folders["a"].Folders["b"].Folders["c"]
		require.NotNil(t, node)
		require.Len(t, node.Files, 1)
		assert.Equal(t, "leaf.txt", node.Files[0].Name)
		assert.Equal(t, "a/b/c/leaf.txt", node.Files[0].Path)
	})

	t.Run("DuplicateFilenameFirstWins", func(t *testing.T) {
		root := Project([]*blob.Blob{
			{SHA1: "old", Path: "src/x.py", Size: 1},
			{SHA1: "new", Path: "src/x.py", Size: 2},
		})

		files := root.Folders["src"].Files
		require.Len(t, files, 1)
		assert.Equal(t, "old", files[0].SHA1)
	})

	t.Run("EmptyPathSkipped", func(t *testing.T) {
		root := Project([]*blob.Blob{{SHA1: "x", Path: ""}})
		assert.Empty(t, root.Files)
		assert.Empty(t, root.Folders)
	})

	t.Run("DocumentShape", func(t *testing.T) {
		root := Project([]*blob.Blob{
			{SHA1: "aaa", Path: "src/a.py", Size: 10},
			{SHA1: "ccc", Path: "README.md", Size: 30},
		})

		data, err := json.Marshal(root)
		require.NoError(t, err)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(data, &doc))

		files, ok := doc["files"].([]any)
		require.True(t, ok)
		require.Len(t, files, 1)
		leaf := files[0].(map[string]any)
		assert.Equal(t, "README.md", leaf["name"])
		assert.Equal(t, "ccc", leaf["sha1"])
		assert.Equal(t, float64(30), leaf["size"])
		assert.Equal(t, "README.md", leaf["path"])

		src, ok := doc["src"].(map[string]any)
		require.True(t, ok)
		srcFiles, ok := src["files"].([]any)
		require.True(t, ok)
		assert.Len(t, srcFiles, 1)
	})

	t.Run("EmptyTreeMarshalsFilesList", func(t *testing.T) {
		data, err := json.Marshal(NewFolder())
		require.NoError(t, err)
		assert.JSONEq(t, `{"files": []}`, string(data))
	})
}

func TestRender(t *testing.T) {
	root := Project([]*blob.Blob{
		{SHA1: "aaa", Path: "src/a.py", Size: 10},
		{SHA1: "bbb", Path: "src/b.py", Size: 20},
		{SHA1: "ccc", Path: "README.md", Size: 30},
	})

	out := Render("demo", root)
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "src/")
	assert.Contains(t, out, "a.py (10 bytes)")
	assert.Contains(t, out, "b.py (20 bytes)")
	assert.Contains(t, out, "README.md (30 bytes)")
}

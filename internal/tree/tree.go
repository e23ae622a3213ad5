// Package tree projects a flat live file set into the nested folder
// document the API serves and the CLI draws. Projection is pure and
// recomputed on every read.
package tree

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/disiqueira/gotree/v3"

	"bitstore/internal/blob"
)

// FileInfo is one file leaf in the folder document.
type FileInfo struct {
	Name string `json:"name"`
	SHA1 string `json:"sha1"`
	Size int    `json:"size"`
	Path string `json:"path"`
}

// Folder is one directory node: its files plus its subfolders.
type Folder struct {
	Files   []FileInfo
	Folders map[string]*Folder
}

func NewFolder() *Folder {
	return &Folder{
		Files:   []FileInfo{},
		Folders: map[string]*Folder{},
	}
}

func (f *Folder) child(name string) *Folder {
	sub, ok := f.Folders[name]
	if !ok {
		sub = NewFolder()
		f.Folders[name] = sub
	}
	return sub
}

// addFile appends the leaf unless the folder already holds a file with
// the same name. First occurrence wins; the live set can transiently
// carry duplicate paths mid-update.
func (f *Folder) addFile(fi FileInfo) {
	for _, existing := range f.Files {
		if existing.Name == fi.Name {
			return
		}
	}
	f.Files = append(f.Files, fi)
}

// MarshalJSON renders the document shape clients consume: a "files"
// list plus one key per subfolder. A subfolder literally named "files"
// cannot appear in that shape; the file list keeps the key.
func (f *Folder) MarshalJSON() ([]byte, error) {
	doc := make(map[string]any, len(f.Folders)+1)
	for name, sub := range f.Folders {
		doc[name] = sub
	}
	doc["files"] = f.Files
	return json.Marshal(doc)
}

// Project folds path-tagged blobs into a folder tree. Every path
// segment becomes a directory node and the final segment a file leaf;
// paths without a separator land at the root.
func Project(blobs []*blob.Blob) *Folder {
	root := NewFolder()
	for _, b := range blobs {
		if b.Path == "" {
			continue
		}
		parts := strings.Split(b.Path, "/")
		current := root
		for _, part := range parts[:len(parts)-1] {
			current = current.child(part)
		}
		current.addFile(FileInfo{
			Name: parts[len(parts)-1],
			SHA1: b.SHA1,
			Size: b.Size,
			Path: b.Path,
		})
	}
	return root
}

// Render draws the folder tree as ASCII for terminal output, folders
// first, everything sorted by name.
func Render(name string, f *Folder) string {
	root := gotree.New(name)
	addNode(root, f)
	return root.Print()
}

func addNode(node gotree.Tree, f *Folder) {
	names := make([]string, 0, len(f.Folders))
	for name := range f.Folders {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addNode(node.Add(name+"/"), f.Folders[name])
	}

	files := append([]FileInfo(nil), f.Files...)
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	for _, fi := range files {
		node.Add(fmt.Sprintf("%s (%d bytes)", fi.Name, fi.Size))
	}
}

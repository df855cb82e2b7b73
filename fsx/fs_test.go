package fsx_test

import (
	"errors"
	"io"
	"io/fs"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/jaclang/jtype/fsx"
	"github.com/nalgeon/be"
)

func TestFS(t *testing.T) {
	tfs := fsx.TestFS([][2]string{
		{"main.jac", "with entry {}"},
		{"shapes/__init__.jac", "obj Shape {}"},
		{"shapes/circle.jac", "obj Circle {}"},
	})
	if err := fstest.TestFS(tfs, "main.jac", "shapes/__init__.jac", "shapes/circle.jac"); err != nil {
		t.Fatal(err)
	}
}

func TestReadIndependentHandles(t *testing.T) {
	tfs := fsx.TestFS([][2]string{{"a.jac", "hello"}})
	f1, err := tfs.Open("a.jac")
	be.Err(t, err, nil)
	buf := make([]byte, 3)
	_, err = f1.Read(buf)
	be.Err(t, err, nil)

	data, err := fs.ReadFile(tfs, "a.jac")
	be.Err(t, err, nil)
	be.Equal(t, string(data), "hello")
}

func TestWrite(t *testing.T) {
	tfs := fsx.TestFS([][2]string{{"a/b.jac", "obj B {}"}})
	dir, err := fsx.Mkdir(tfs, "out", 0)
	be.Err(t, err, nil)
	be.Err(t, fsx.WriteFile(dir, "stub.jac", []byte("obj Stub {}")), nil)

	data, err := fs.ReadFile(tfs, "out/stub.jac")
	be.Err(t, err, nil)
	be.Equal(t, string(data), "obj Stub {}")

	_, err = fsx.Mkdir(tfs, "out", 0)
	be.Err(t, err, fs.ErrExist)
}

func TestCreateNested(t *testing.T) {
	tfs := fsx.TestFS(nil)
	be.Err(t, fsx.WriteFile(tfs, "x/y/z.jac", []byte("first")), nil)
	be.Err(t, fsx.WriteFile(tfs, "x/y/z.jac", []byte("second")), nil)

	data, err := fs.ReadFile(tfs, "x/y/z.jac")
	be.Err(t, err, nil)
	be.Equal(t, string(data), "second")

	_, err = fsx.Create(tfs, "../escape.jac")
	be.Err(t, err, fs.ErrInvalid)
}

func TestDirFS(t *testing.T) {
	root := fsx.DirFS(t.TempDir())
	be.Err(t, fsx.WriteFile(root, "pkg/mod.jac", []byte("glob x = 1;")), nil)

	data, err := fs.ReadFile(root, "pkg/mod.jac")
	be.Err(t, err, nil)
	be.Equal(t, string(data), "glob x = 1;")

	info, err := fs.Stat(root, "pkg")
	be.Err(t, err, nil)
	be.True(t, info.IsDir())

	_, err = root.Open("missing.jac")
	be.Err(t, err, fs.ErrNotExist)
	var pe *fs.PathError
	be.True(t, errors.As(err, &pe))
	be.Equal(t, pe.Path, "missing.jac")
	be.True(t, filepath.IsAbs(string(root)))
}

func TestReadDir(t *testing.T) {
	tfs := fsx.TestFS([][2]string{
		{"b.jac", "glob b = 1;"},
		{"a/x.jac", ""},
	})
	entries, err := fs.ReadDir(tfs, ".")
	be.Err(t, err, nil)
	be.Equal(t, len(entries), 2)
	be.Equal(t, entries[0].Name(), "a")
	be.True(t, entries[0].IsDir())
	be.Equal(t, entries[1].Name(), "b.jac")
	info, err := entries[1].Info()
	be.Err(t, err, nil)
	be.Equal(t, info.Size(), int64(11))

	// A handle reads the directory in chunks and then reports EOF.
	f, err := tfs.Open(".")
	be.Err(t, err, nil)
	dir := f.(fs.ReadDirFile)
	first, err := dir.ReadDir(1)
	be.Err(t, err, nil)
	be.Equal(t, len(first), 1)
	_, err = dir.ReadDir(1)
	be.Err(t, err, nil)
	_, err = dir.ReadDir(1)
	be.Err(t, err, io.EOF)
}

// Package fsx extends io/fs with writable file systems: an in-memory tree
// for tests and a directory-backed one for the command line.
package fsx

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/exp/slices"
)

var _ fs.File = (*memDir)(nil)
var _ fs.ReadDirFile = (*memDir)(nil)
var _ fs.FS = (*memDir)(nil)
var _ CreateFS = (*memDir)(nil)
var _ MkdirFS = (*memDir)(nil)
var _ fs.FS = DirFS("")
var _ CreateFS = DirFS("")
var _ MkdirFS = DirFS("")

// memDir is a directory of an in-memory tree. Paths use forward slashes
// regardless of the host.
type memDir struct {
	entries []fs.File
	memFile
}

// TestFS builds an in-memory tree from (path, contents) pairs.
func TestFS(files [][2]string) *memDir {
	root := newMemDir("", 0)
	for _, file := range files {
		dir, name := path.Split(file[0])
		cur, err := root.mkdirAll(strings.TrimSuffix(dir, "/"))
		if err != nil {
			panic(err)
		}
		cur.entries = append(cur.entries, newMemFile(name, 0, []byte(file[1])))
	}
	return root
}

func (d *memDir) index(name string) int {
	return slices.IndexFunc(d.entries, func(f fs.File) bool {
		return header(f).name == name
	})
}

func (d *memDir) mkdirAll(dir string) (*memDir, error) {
	cur := d
	if dir == "" || dir == "." {
		return cur, nil
	}
	for _, part := range strings.Split(dir, "/") {
		i := cur.index(part)
		if i < 0 {
			cur.entries = append(cur.entries, newMemDir(part, 0))
			i = len(cur.entries) - 1
		}
		next, ok := cur.entries[i].(*memDir)
		if !ok {
			return nil, &fs.PathError{Op: "mkdir", Path: dir, Err: fs.ErrExist}
		}
		cur = next
	}
	return cur, nil
}

// ReadDir implements fs.ReadDirFile
func (d *memDir) ReadDir(count int) ([]fs.DirEntry, error) {
	rest := d.entries[d.offset:]
	if count > 0 {
		if len(rest) == 0 {
			return nil, io.EOF
		}
		rest = rest[:min(count, len(rest))]
	}
	d.offset += len(rest)
	list := make([]fs.DirEntry, 0, len(rest))
	for _, e := range rest {
		list = append(list, fs.FileInfoToDirEntry(header(e).info()))
	}
	return list, nil
}

var _ fs.File = (*memFile)(nil)
var _ WriteableFile = (*memFile)(nil)
var _ fs.FileInfo = memInfo{}

// memFile is a file of an in-memory tree. Handles returned by Open share
// data but keep their own offset.
type memFile struct {
	name   string
	mode   fs.FileMode
	data   *[]byte
	offset int
}

func newMemFile(name string, mode fs.FileMode, data []byte) *memFile {
	return &memFile{name: name, mode: mode, data: &data}
}

func (f *memFile) Write(p []byte) (n int, err error) {
	*f.data = append(*f.data, p...)
	return len(p), nil
}

func (f *memFile) Read(p []byte) (int, error) {
	if f.offset >= len(*f.data) {
		return 0, io.EOF
	}
	n := copy(p, (*f.data)[f.offset:])
	f.offset += n
	return n, nil
}

// Close rewinds the handle.
func (f *memFile) Close() error {
	f.offset = 0
	return nil
}

func (f *memFile) Stat() (fs.FileInfo, error) { return f.info(), nil }

func (f *memFile) info() memInfo {
	return memInfo{name: f.name, size: int64(len(*f.data)), mode: f.mode}
}

// memInfo is a snapshot of an entry's metadata. Entries have no
// modification time.
type memInfo struct {
	name string
	size int64
	mode fs.FileMode
}

func (i memInfo) Name() string       { return i.name }
func (i memInfo) Size() int64        { return i.size }
func (i memInfo) Mode() fs.FileMode  { return i.mode }
func (i memInfo) IsDir() bool        { return i.mode.IsDir() }
func (i memInfo) ModTime() time.Time { return time.Time{} }
func (i memInfo) Sys() any           { return nil }

func (d *memDir) Read([]byte) (int, error) { return 0, errors.New("cannot read directory") }

// Mkdir implements MkdirFS
func (d *memDir) Mkdir(name string, perm fs.FileMode) (fs.FS, error) {
	if d.index(name) >= 0 {
		return nil, &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrExist}
	}
	nd := newMemDir(name, perm)
	d.entries = append(d.entries, nd)
	return nd, nil
}

func newMemDir(name string, perm fs.FileMode) *memDir {
	var data []byte
	return &memDir{
		entries: []fs.File{},
		memFile: memFile{
			name: name,
			mode: perm | fs.ModeDir,
			data: &data,
		},
	}
}

// Create implements CreateFS. Missing parent directories are created and
// an existing file is truncated.
func (d *memDir) Create(name string) (WriteableFile, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrInvalid}
	}
	dir, base := path.Split(name)
	parent, err := d.mkdirAll(strings.TrimSuffix(dir, "/"))
	if err != nil {
		return nil, err
	}
	if i := parent.index(base); i >= 0 {
		f, ok := parent.entries[i].(*memFile)
		if !ok {
			return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrExist}
		}
		*f.data = nil
		f.offset = 0
		return f, nil
	}
	f := newMemFile(base, 0, nil)
	parent.entries = append(parent.entries, f)
	return f, nil
}

// header returns the part of an entry shared by files and directories.
func header(f fs.File) *memFile {
	switch f := f.(type) {
	case *memDir:
		return &f.memFile
	case *memFile:
		return f
	}
	panic("unreachable")
}

// open returns a fresh handle so concurrent readers keep their own offset.
func (d *memDir) open(name string) (fs.File, error) {
	cur := d
	if name != "." {
		for _, elem := range strings.Split(name, "/") {
			i := cur.index(elem)
			if i < 0 {
				return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
			}
			switch entry := cur.entries[i].(type) {
			case *memDir:
				cur = entry
			case *memFile:
				h := *entry
				h.offset = 0
				return &h, nil
			}
		}
	}
	h := *cur
	h.offset = 0
	return &h, nil
}

// Open implements fs.FS
func (d *memDir) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	return d.open(name)
}

type WriteableFile interface {
	fs.File
	io.Writer
}

type CreateFS interface {
	fs.FS
	Create(name string) (WriteableFile, error)
}

func Create(fsys fs.FS, name string) (WriteableFile, error) {
	if cfs, ok := fsys.(CreateFS); ok {
		return cfs.Create(name)
	}
	return nil, &fs.PathError{Op: "create", Path: name, Err: fs.ErrNotExist}
}

// WriteFile creates or truncates name and writes data to it.
func WriteFile(fsys fs.FS, name string, data []byte) error {
	f, err := Create(fsys, name)
	if err != nil {
		return err
	}
	_, werr := f.Write(data)
	return errors.Join(werr, f.Close())
}

type MkdirFS interface {
	fs.FS
	Mkdir(name string, perm fs.FileMode) (fs.FS, error)
}

func Mkdir(fsys fs.FS, name string, perm fs.FileMode) (fs.FS, error) {
	if mfs, ok := fsys.(MkdirFS); ok {
		return mfs.Mkdir(name, perm)
	}
	return nil, &fs.PathError{Op: "mkdir", Path: name, Err: fs.ErrInvalid}
}

type DirFS string

// Mkdir implements MkdirFS
func (dir DirFS) Mkdir(name string, perm fs.FileMode) (fs.FS, error) {
	fullname, err := dir.join(name)
	if err != nil {
		return nil, &os.PathError{Op: "mkdir", Path: name, Err: err}
	}
	if err := os.Mkdir(fullname, perm); err != nil {
		return nil, relabel(err, name)
	}
	return DirFS(fullname), nil
}

// Create implements CreateFS. Missing parent directories are created.
func (dir DirFS) Create(name string) (WriteableFile, error) {
	fullname, err := dir.join(name)
	if err != nil {
		return nil, &os.PathError{Op: "create", Path: name, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(fullname), 0o755); err != nil {
		return nil, relabel(err, name)
	}
	f, err := os.Create(fullname)
	if err != nil {
		return nil, relabel(err, name)
	}
	return f, nil
}

func (dir DirFS) Open(name string) (fs.File, error) {
	fullname, err := dir.join(name)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: name, Err: err}
	}
	f, err := os.Open(fullname)
	if err != nil {
		return nil, relabel(err, name)
	}
	return f, nil
}

func (dir DirFS) Stat(name string) (fs.FileInfo, error) {
	fullname, err := dir.join(name)
	if err != nil {
		return nil, &os.PathError{Op: "stat", Path: name, Err: err}
	}
	f, err := os.Stat(fullname)
	if err != nil {
		return nil, relabel(err, name)
	}
	return f, nil
}

// relabel reports errors against the name inside the file system rather
// than the host path.
func relabel(err error, name string) error {
	var pe *os.PathError
	if errors.As(err, &pe) {
		pe.Path = name
	}
	return err
}

// join returns the host path for name in dir.
func (dir DirFS) join(name string) (string, error) {
	if dir == "" {
		return "", errors.New("fsx: DirFS with empty root")
	}
	if !fs.ValidPath(name) {
		return "", os.ErrInvalid
	}
	local, err := filepath.Localize(name)
	if err != nil {
		return "", os.ErrInvalid
	}
	return filepath.Join(string(dir), local), nil
}

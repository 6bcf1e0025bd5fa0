package rfile

import (
	"io"
	"io/fs"
	"os"
)

// File is a read-only handle on an object's local copy. It stays valid
// until closed, even if a transform installs a newer copy meanwhile.
type File struct {
	f    *os.File
	name string
}

var (
	_ io.ReadSeekCloser = (*File)(nil)
	_ io.ReaderAt       = (*File)(nil)
	_ fs.File           = (*File)(nil)
)

func (f *File) Read(p []byte) (int, error) {
	return f.f.Read(p)
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	return f.f.ReadAt(p, off)
}

func (f *File) Seek(offset int64, whence int) (int64, error) {
	return f.f.Seek(offset, whence)
}

// Name is the base name of the object's key, not the temp file's.
func (f *File) Name() string {
	return f.name
}

func (f *File) Stat() (fs.FileInfo, error) {
	info, err := f.f.Stat()
	if err != nil {
		return nil, err
	}
	return fileInfo{FileInfo: info, name: f.name}, nil
}

func (f *File) Close() error {
	return f.f.Close()
}

type fileInfo struct {
	fs.FileInfo
	name string
}

func (i fileInfo) Name() string { return i.name }

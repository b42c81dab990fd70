// Package sandbox confines one session's file operations to a per-user
// directory tree and tracks the session's sequential read cursor.
package sandbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkaski/cubby/internal/errors"
)

// ChunkSize is the number of bytes returned by one read operation.
const ChunkSize = 100

// EOFSentinel is returned by ReadFile when no bytes remain.
const EOFSentinel = "EOF"

// rootDisplay stands in for the sandbox root in paths shown to clients.
const rootDisplay = "root"

// Entry is one item of a directory listing.
type Entry struct {
	Name     string
	IsDir    bool
	Size     int64
	Modified time.Time
}

// cursor tracks sequential reads of one open file. The offset only grows,
// by exactly ChunkSize per read, even when fewer bytes were available.
type cursor struct {
	name   string
	path   string
	offset int64
}

// Sandbox is one session's view of its user directory. The current
// location is a stack of validated segment names under the root, so the
// "cannot go above root" invariant holds structurally.
//
// A Sandbox is owned by exactly one session and is not safe for
// concurrent use; it never needs to be.
type Sandbox struct {
	root     string
	segments []string
	open     *cursor
}

// New creates a sandbox rooted at dataDir/username, creating the backing
// directory if absent.
func New(dataDir, username string) (*Sandbox, error) {
	root := filepath.Join(dataDir, username)
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("create user directory: %w", err)
	}
	return &Sandbox{root: root}, nil
}

// Root returns the absolute root path of the sandbox.
func (s *Sandbox) Root() string {
	return s.root
}

// workingDir resolves the current location to an absolute path.
func (s *Sandbox) workingDir() string {
	return filepath.Join(append([]string{s.root}, s.segments...)...)
}

// displayPath renders the current location with the root shown as "root".
func (s *Sandbox) displayPath() string {
	return filepath.Join(append([]string{rootDisplay}, s.segments...)...)
}

// List returns the entries of the current directory in enumeration order.
func (s *Sandbox) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.workingDir())
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			Name:     de.Name(),
			IsDir:    de.IsDir(),
			Size:     info.Size(),
			Modified: info.ModTime(),
		})
	}
	return entries, nil
}

// validName reports whether name is a single plain path segment. The
// segment stack only confines the location if every pushed segment stays
// below its parent, so separators and dot segments are rejected before
// any path is built from caller input.
func validName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, os.PathSeparator) {
		return false
	}
	return true
}

// ChangeFolder moves the current location and returns the new display
// path. ".." pops one segment and fails at the root; any other name is
// pushed after a name check and an existence check. A name that exists
// but is a plain file is accepted; the mistake surfaces on the next list.
func (s *Sandbox) ChangeFolder(name string) (string, error) {
	if name == ".." {
		if len(s.segments) == 0 {
			return "", errors.NewAlreadyAtRoot()
		}
		s.segments = s.segments[:len(s.segments)-1]
		return s.displayPath(), nil
	}

	if !validName(name) {
		return "", errors.NewInvalidName()
	}
	if _, err := os.Stat(filepath.Join(s.workingDir(), name)); err != nil {
		return "", errors.NewDirNotFound()
	}
	s.segments = append(s.segments, name)
	return s.displayPath(), nil
}

// CreateFolder creates a new directory under the current location.
func (s *Sandbox) CreateFolder(name string) error {
	if !validName(name) {
		return errors.NewInvalidName()
	}
	target := filepath.Join(s.workingDir(), name)
	if _, err := os.Stat(target); err == nil {
		return errors.NewFolderExists()
	}
	if err := os.MkdirAll(target, 0700); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ReadFile reads the next ChunkSize bytes of the named file, or closes the
// open cursor when name is empty.
//
// A read of a name other than the open file's replaces the cursor at
// offset zero. The existence check runs against the current directory, but
// an already-open cursor keeps reading the path it was opened with. Zero
// available bytes yield the EOF sentinel; the offset advances either way.
func (s *Sandbox) ReadFile(name string) (string, error) {
	if name == "" {
		if s.open == nil {
			return "", errors.NewNoFileOpen()
		}
		s.open = nil
		return "File closed", nil
	}

	if !validName(name) {
		return "", errors.NewInvalidName()
	}
	if _, err := os.Stat(filepath.Join(s.workingDir(), name)); err != nil {
		return "", errors.NewFileNotFound()
	}

	if s.open == nil || s.open.name != name {
		s.open = &cursor{name: name, path: filepath.Join(s.workingDir(), name)}
	}

	chunk, err := readChunk(s.open.path, s.open.offset)
	if err != nil {
		return "", errors.NewInternal(err)
	}
	s.open.offset += ChunkSize

	if len(chunk) == 0 {
		return EOFSentinel, nil
	}
	return string(chunk), nil
}

// WriteFile creates, truncates, or appends to the named file in the
// current directory. A missing file or absent content truncate-creates;
// otherwise a newline plus content is appended. Writing the open file
// drops the read cursor so the next read starts over on fresh content.
func (s *Sandbox) WriteFile(name, content string, hasContent bool) error {
	if !validName(name) {
		return errors.NewInvalidName()
	}
	target := filepath.Join(s.workingDir(), name)

	_, statErr := os.Stat(target)
	exists := statErr == nil

	var err error
	if !exists || !hasContent {
		err = os.WriteFile(target, []byte(content), 0600)
	} else {
		err = appendToFile(target, "\n"+content)
	}
	if err != nil {
		return errors.NewInternal(err)
	}

	if s.open != nil && s.open.name == name {
		s.open = nil
	}
	return nil
}

// HasOpenFile reports whether a read cursor is currently open.
func (s *Sandbox) HasOpenFile() bool {
	return s.open != nil
}

// readChunk returns up to ChunkSize bytes of the file at offset.
func readChunk(path string, offset int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, err
	}

	buf := make([]byte, ChunkSize)
	n, err := io.ReadFull(f, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// appendToFile opens path for appending and writes data.
func appendToFile(path, data string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

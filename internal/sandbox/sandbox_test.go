package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkaski/cubby/internal/errors"
)

func testSandbox(t *testing.T) *Sandbox {
	t.Helper()
	s, err := New(t.TempDir(), "alice")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

// writeInDir creates a file directly on disk, bypassing the sandbox API.
func writeInDir(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func TestNew_CreatesUserDirectory(t *testing.T) {
	dataDir := t.TempDir()
	s, err := New(dataDir, "alice")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	info, err := os.Stat(s.Root())
	if err != nil {
		t.Fatalf("user directory missing: %v", err)
	}
	if !info.IsDir() {
		t.Error("user root is not a directory")
	}
	if s.Root() != filepath.Join(dataDir, "alice") {
		t.Errorf("Root() = %q, want %q", s.Root(), filepath.Join(dataDir, "alice"))
	}
}

func TestChangeFolder_UpAtRoot(t *testing.T) {
	s := testSandbox(t)

	_, err := s.ChangeFolder("..")
	if !errors.Is(err, errors.ErrAlreadyAtRoot) {
		t.Errorf("ChangeFolder(..) at root should return ErrAlreadyAtRoot, got: %v", err)
	}
}

func TestChangeFolder_Missing(t *testing.T) {
	s := testSandbox(t)

	_, err := s.ChangeFolder("nonexistent")
	if !errors.Is(err, errors.ErrDirNotFound) {
		t.Errorf("ChangeFolder should return ErrDirNotFound, got: %v", err)
	}
}

func TestChangeFolder_DownAndUp(t *testing.T) {
	s := testSandbox(t)
	if err := s.CreateFolder("docs"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	got, err := s.ChangeFolder("docs")
	if err != nil {
		t.Fatalf("ChangeFolder failed: %v", err)
	}
	if got != filepath.Join("root", "docs") {
		t.Errorf("display path = %q, want %q", got, filepath.Join("root", "docs"))
	}

	got, err = s.ChangeFolder("..")
	if err != nil {
		t.Fatalf("ChangeFolder(..) failed: %v", err)
	}
	if got != "root" {
		t.Errorf("display path = %q, want %q", got, "root")
	}
}

func TestChangeFolder_ReducesDepthByOne(t *testing.T) {
	s := testSandbox(t)
	if err := s.CreateFolder("a"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if _, err := s.ChangeFolder("a"); err != nil {
		t.Fatalf("ChangeFolder failed: %v", err)
	}
	if err := s.CreateFolder("b"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if _, err := s.ChangeFolder("b"); err != nil {
		t.Fatalf("ChangeFolder failed: %v", err)
	}

	got, err := s.ChangeFolder("..")
	if err != nil {
		t.Fatalf("ChangeFolder(..) failed: %v", err)
	}
	if got != filepath.Join("root", "a") {
		t.Errorf("display path = %q, want %q", got, filepath.Join("root", "a"))
	}
}

func TestChangeFolder_RejectsEscapingNames(t *testing.T) {
	dataDir := t.TempDir()
	s, err := New(dataDir, "alice")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	// A sibling user directory that an unconfined join would reach.
	if _, err := New(dataDir, "bob"); err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, name := range []string{"../bob", "a/../../bob", "docs/inner", `..\bob`, "."} {
		if _, err := s.ChangeFolder(name); !errors.Is(err, errors.ErrInvalidName) {
			t.Errorf("ChangeFolder(%q) should return ErrInvalidName, got: %v", name, err)
		}
	}

	// The location never moved.
	if got := s.workingDir(); got != s.Root() {
		t.Errorf("workingDir = %q, want unchanged root %q", got, s.Root())
	}
	if got := s.displayPath(); got != "root" {
		t.Errorf("displayPath = %q, want %q", got, "root")
	}
}

func TestWriteFile_RejectsEscapingNames(t *testing.T) {
	dataDir := t.TempDir()
	s, err := New(dataDir, "alice")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.WriteFile("../evil", "x", true); !errors.Is(err, errors.ErrInvalidName) {
		t.Fatalf("WriteFile(../evil) should return ErrInvalidName, got: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "evil")); !os.IsNotExist(err) {
		t.Error("file was created outside the sandbox root")
	}
}

func TestReadFile_RejectsEscapingNames(t *testing.T) {
	dataDir := t.TempDir()
	s, err := New(dataDir, "alice")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	writeInDir(t, dataDir, "secret", "outside")

	if _, err := s.ReadFile("../secret"); !errors.Is(err, errors.ErrInvalidName) {
		t.Errorf("ReadFile(../secret) should return ErrInvalidName, got: %v", err)
	}
	if s.HasOpenFile() {
		t.Error("rejected read must not open a cursor")
	}
}

func TestCreateFolder_RejectsEscapingNames(t *testing.T) {
	dataDir := t.TempDir()
	s, err := New(dataDir, "alice")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.CreateFolder("../outside"); !errors.Is(err, errors.ErrInvalidName) {
		t.Fatalf("CreateFolder(../outside) should return ErrInvalidName, got: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "outside")); !os.IsNotExist(err) {
		t.Error("folder was created outside the sandbox root")
	}
}

func TestCreateFolder_Exists(t *testing.T) {
	s := testSandbox(t)
	if err := s.CreateFolder("docs"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	err := s.CreateFolder("docs")
	if !errors.Is(err, errors.ErrFolderExists) {
		t.Errorf("second CreateFolder should return ErrFolderExists, got: %v", err)
	}
}

func TestList(t *testing.T) {
	s := testSandbox(t)
	writeInDir(t, s.Root(), "notes.txt", "hello")
	if err := s.CreateFolder("docs"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}

	entries, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}

	byName := make(map[string]Entry)
	for _, e := range entries {
		byName[e.Name] = e
	}
	if e, ok := byName["notes.txt"]; !ok || e.IsDir || e.Size != 5 {
		t.Errorf("notes.txt entry = %+v, want file of size 5", e)
	}
	if e, ok := byName["docs"]; !ok || !e.IsDir {
		t.Errorf("docs entry = %+v, want directory", e)
	}
}

func TestReadFile_Missing(t *testing.T) {
	s := testSandbox(t)

	_, err := s.ReadFile("nope")
	if !errors.Is(err, errors.ErrFileNotFound) {
		t.Errorf("ReadFile should return ErrFileNotFound, got: %v", err)
	}
}

func TestReadFile_CloseWithoutOpen(t *testing.T) {
	s := testSandbox(t)

	_, err := s.ReadFile("")
	if !errors.Is(err, errors.ErrNoFileOpen) {
		t.Errorf("close without open cursor should return ErrNoFileOpen, got: %v", err)
	}
}

func TestReadFile_CloseOpenCursor(t *testing.T) {
	s := testSandbox(t)
	writeInDir(t, s.Root(), "f", "content")

	if _, err := s.ReadFile("f"); err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !s.HasOpenFile() {
		t.Fatal("cursor should be open after read")
	}

	got, err := s.ReadFile("")
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got != "File closed" {
		t.Errorf("close response = %q, want %q", got, "File closed")
	}
	if s.HasOpenFile() {
		t.Error("cursor should be cleared after close")
	}
}

func TestReadFile_ChunkPagination(t *testing.T) {
	s := testSandbox(t)
	content := strings.Repeat("a", ChunkSize) + strings.Repeat("b", 50)
	writeInDir(t, s.Root(), "big", content)

	first, err := s.ReadFile("big")
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	if first != strings.Repeat("a", ChunkSize) {
		t.Errorf("first chunk = %q, want %d a's", first, ChunkSize)
	}

	second, err := s.ReadFile("big")
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}
	if second != strings.Repeat("b", 50) {
		t.Errorf("second chunk = %q, want 50 b's", second)
	}

	third, err := s.ReadFile("big")
	if err != nil {
		t.Fatalf("third read failed: %v", err)
	}
	if third != EOFSentinel {
		t.Errorf("third read = %q, want %q", third, EOFSentinel)
	}

	// EOF stays EOF on further reads.
	fourth, err := s.ReadFile("big")
	if err != nil {
		t.Fatalf("fourth read failed: %v", err)
	}
	if fourth != EOFSentinel {
		t.Errorf("fourth read = %q, want %q", fourth, EOFSentinel)
	}
}

func TestReadFile_EmptyFileIsEOF(t *testing.T) {
	s := testSandbox(t)
	writeInDir(t, s.Root(), "empty", "")

	got, err := s.ReadFile("empty")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got != EOFSentinel {
		t.Errorf("read of empty file = %q, want %q", got, EOFSentinel)
	}
}

func TestReadFile_DifferentNameResetsCursor(t *testing.T) {
	s := testSandbox(t)
	writeInDir(t, s.Root(), "one", strings.Repeat("x", ChunkSize*2))
	writeInDir(t, s.Root(), "two", "second file")

	if _, err := s.ReadFile("one"); err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	got, err := s.ReadFile("two")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got != "second file" {
		t.Errorf("read of two = %q, want %q (fresh cursor at offset 0)", got, "second file")
	}

	// Going back to the first file also starts over.
	got, err = s.ReadFile("one")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got != strings.Repeat("x", ChunkSize) {
		t.Errorf("re-read of one should restart at offset 0")
	}
}

func TestWriteFile_CreatesAndAppends(t *testing.T) {
	s := testSandbox(t)

	if err := s.WriteFile("notes", "first", true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := s.WriteFile("notes", "second", true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Root(), "notes"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "first\nsecond" {
		t.Errorf("content = %q, want %q", string(data), "first\nsecond")
	}
}

func TestWriteFile_NoContentTruncates(t *testing.T) {
	s := testSandbox(t)

	if err := s.WriteFile("notes", "something", true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := s.WriteFile("notes", "", false); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Root(), "notes"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "" {
		t.Errorf("content = %q, want empty (truncated)", string(data))
	}
}

func TestWriteFile_InvalidatesOpenCursor(t *testing.T) {
	s := testSandbox(t)
	writeInDir(t, s.Root(), "notes", strings.Repeat("x", ChunkSize*2))

	if _, err := s.ReadFile("notes"); err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	if err := s.WriteFile("notes", "", false); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if s.HasOpenFile() {
		t.Fatal("cursor should be invalidated by writing the open file")
	}

	// The truncated file still exists, so content is appended after a
	// newline.
	if err := s.WriteFile("notes", "fresh", true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	got, err := s.ReadFile("notes")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got != "\nfresh" {
		t.Errorf("read after rewrite = %q, want %q (offset reset via re-open)", got, "\nfresh")
	}
}

func TestWriteFile_OtherNameKeepsCursor(t *testing.T) {
	s := testSandbox(t)
	writeInDir(t, s.Root(), "a", "aaa")

	if _, err := s.ReadFile("a"); err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if err := s.WriteFile("b", "bbb", true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if !s.HasOpenFile() {
		t.Error("writing a different file should not touch the cursor")
	}
}

func TestReadFile_InSubfolder(t *testing.T) {
	s := testSandbox(t)
	if err := s.CreateFolder("docs"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if _, err := s.ChangeFolder("docs"); err != nil {
		t.Fatalf("ChangeFolder failed: %v", err)
	}
	if err := s.WriteFile("inner", "deep", true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	got, err := s.ReadFile("inner")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if got != "deep" {
		t.Errorf("read = %q, want %q", got, "deep")
	}
}

package source

import (
	"crypto/sha256"
	"fmt"
	"os"
	"slices"
	"sort"

	"fortio.org/safecast"
)

// FileSet manages a collection of source files and resolves spans to
// line/column positions.
type FileSet struct {
	files []File
	index map[string]FileID // path -> id
}

// NewFileSet creates a new empty FileSet.
func NewFileSet() *FileSet {
	return &FileSet{
		files: make([]File, 0),
		index: make(map[string]FileID),
	}
}

// Add stores a file from normalized bytes, computes LineIdx and Hash, and
// returns a new FileID. A later Add for the same path shadows the earlier
// entry in the path index.
func (fs *FileSet) Add(path string, content []byte, flags FileFlags) FileID {
	lenFiles, err := safecast.Conv[uint32](len(fs.files))
	if err != nil {
		panic(fmt.Errorf("len files overflow: %w", err))
	}
	id := FileID(lenFiles)
	fs.files = append(fs.files, File{
		ID:      id,
		Path:    path,
		Content: content,
		LineIdx: buildLineIndex(content),
		Hash:    sha256.Sum256(content),
		Flags:   flags,
	})
	fs.index[path] = id
	return id
}

// Load reads a file from disk, normalizes CRLF/BOM, and calls Add.
func (fs *FileSet) Load(path string) (FileID, error) {
	// #nosec G304 -- path is provided by the caller
	content, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	content, hadBOM := removeBOM(content)
	content, hadCRLF := normalizeCRLF(content)

	flags := FileFlags(0)
	if hadBOM {
		flags |= FileHadBOM
	}
	if hadCRLF {
		flags |= FileNormalizedCRLF
	}
	return fs.Add(path, content, flags), nil
}

// AddVirtual adds a virtual file (test or embedded unit source).
func (fs *FileSet) AddVirtual(name string, content []byte) FileID {
	return fs.Add(name, content, FileVirtual)
}

// Get returns the file metadata for the given ID, or nil if out of range.
func (fs *FileSet) Get(id FileID) *File {
	if int(id) >= len(fs.files) {
		return nil
	}
	return &fs.files[id]
}

// GetByPath returns the file for path, if one was added.
func (fs *FileSet) GetByPath(path string) (*File, bool) {
	if id, ok := fs.index[path]; ok {
		return &fs.files[id], true
	}
	return nil, false
}

// Len returns the number of files.
func (fs *FileSet) Len() int {
	return len(fs.files)
}

// Position resolves a span start to a 1-based line/column pair.
func (fs *FileSet) Position(sp Span) (string, LineCol) {
	f := fs.Get(sp.File)
	if f == nil {
		return "", LineCol{}
	}
	return f.Path, offsetToLineCol(f, sp.Start)
}

// Line returns the content of the 1-based line, without the trailing newline.
func (fs *FileSet) Line(id FileID, line uint32) []byte {
	f := fs.Get(id)
	if f == nil || line == 0 || int(line) > len(f.LineIdx) {
		return nil
	}
	start := f.LineIdx[line-1]
	end := uint32(len(f.Content))
	if int(line) < len(f.LineIdx) {
		end = f.LineIdx[line] - 1 // strip '\n'
	}
	if end < start {
		end = start
	}
	return f.Content[start:end]
}

// buildLineIndex records the byte offset of every line start.
func buildLineIndex(content []byte) []uint32 {
	idx := []uint32{0}
	for i, b := range content {
		if b == '\n' {
			idx = append(idx, uint32(i+1)) //nolint:gosec // file size bounded by uint32 spans
		}
	}
	return idx
}

func offsetToLineCol(f *File, off uint32) LineCol {
	line := sort.Search(len(f.LineIdx), func(i int) bool {
		return f.LineIdx[i] > off
	})
	// line is now 1-based index of the containing line
	col := off - f.LineIdx[line-1] + 1
	return LineCol{Line: uint32(line), Col: col} //nolint:gosec // line count bounded by file size
}

// normalizeCRLF replaces every \r\n with \n, leaving lone \r untouched.
func normalizeCRLF(content []byte) ([]byte, bool) {
	if !slices.Contains(content, '\r') {
		return content, false
	}
	out := make([]byte, 0, len(content))
	changed := false
	for i := 0; i < len(content); {
		if content[i] == '\r' && i+1 < len(content) && content[i+1] == '\n' {
			out = append(out, '\n')
			i += 2
			changed = true
		} else {
			out = append(out, content[i])
			i++
		}
	}
	return out, changed
}

func removeBOM(content []byte) ([]byte, bool) {
	if len(content) >= 3 && content[0] == 0xEF && content[1] == 0xBB && content[2] == 0xBF {
		return content[3:], true
	}
	return content, false
}

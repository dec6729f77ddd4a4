package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/localflix/localflix/pkg/logger"
)

// Scan walks the library rooted at rootPath and returns an entry for every
// playable file found. Directories and files whose name begins with a dot
// are skipped, as are zero-byte files and files with an unsupported
// extension. Symbolic links are followed, but any real path is visited at
// most once so link cycles cannot trap the walk.
//
// Failure to read a single directory or stat a single file is not fatal;
// the offending path is logged and skipped. An error is only returned when
// the root itself cannot be walked.
func Scan(rootPath string) ([]MediaEntry, error) {
	realRoot, err := filepath.EvalSymlinks(rootPath)
	if err != nil {
		return nil, fmt.Errorf("library root '%s' is not walkable: %w", rootPath, err)
	}

	rootInfo, err := os.Stat(realRoot)
	if err != nil {
		return nil, fmt.Errorf("library root '%s' is not walkable: %w", rootPath, err)
	} else if !rootInfo.IsDir() {
		return nil, fmt.Errorf("library root '%s' is not a directory", rootPath)
	}

	walker := &libraryWalker{
		root:    rootPath,
		visited: map[string]bool{realRoot: true},
		entries: make([]MediaEntry, 0),
	}
	walker.walkDir(rootPath)

	return walker.entries, nil
}

type libraryWalker struct {
	root    string
	visited map[string]bool
	entries []MediaEntry
}

func (walker *libraryWalker) walkDir(dirPath string) {
	dirEntries, err := os.ReadDir(dirPath)
	if err != nil {
		log.Emit(logger.WARNING, "Skipping unreadable directory '%s': %v\n", dirPath, err)
		return
	}

	for _, dirEntry := range dirEntries {
		name := dirEntry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		walker.visitPath(filepath.Join(dirPath, name))
	}
}

// visitPath stats the path (following symlinks) and either descends in to
// it, records it as a media entry, or skips it. Paths whose resolved real
// path has already been seen are skipped outright.
func (walker *libraryWalker) visitPath(path string) {
	realPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		log.Emit(logger.WARNING, "Skipping unresolvable path '%s': %v\n", path, err)
		return
	} else if walker.visited[realPath] {
		return
	}
	walker.visited[realPath] = true

	info, err := os.Stat(path)
	if err != nil {
		log.Emit(logger.WARNING, "Skipping unstattable path '%s': %v\n", path, err)
		return
	}

	if info.IsDir() {
		walker.walkDir(path)
		return
	}

	if !info.Mode().IsRegular() || info.Size() == 0 {
		return
	}

	kind, supported := KindForPath(path)
	if !supported {
		return
	}

	relPath, err := filepath.Rel(walker.root, path)
	if err != nil {
		log.Emit(logger.WARNING, "Skipping path '%s' outside of library root: %v\n", path, err)
		return
	}
	relPath = filepath.ToSlash(relPath)

	walker.entries = append(walker.entries, MediaEntry{
		Key:     KeyForRelPath(relPath),
		AbsPath: path,
		RelPath: relPath,
		Name:    nameForPath(path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Kind:    kind,
	})
}

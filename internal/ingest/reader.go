package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/graaaaa/reconcile/internal/event"
)

// ExportExt is the extension of export files. Other files are ignored.
const ExportExt = ".json"

// maxLineSize bounds a single export line.
const maxLineSize = 16 << 20

// Files returns every export file under root, recursively, in lexical order.
func Files(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ExportExt) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	return files, nil
}

// scanFile calls fn for each non-blank line of path. Line numbers count
// blank lines. fn receives a copy of the line it may retain.
func scanFile(path string, fn func(num int, raw []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	num := 0
	for sc.Scan() {
		num++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(num, bytes.Clone(line)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

// ReadDir parses every export file under root into records, in file then
// line order. The first malformed line aborts with a *ParseError.
func ReadDir(root string) ([]event.Record, error) {
	files, err := Files(root)
	if err != nil {
		return nil, err
	}

	var records []event.Record
	for _, path := range files {
		rel := relPath(root, path)
		err := scanFile(path, func(num int, raw []byte) error {
			r, err := event.Parse(raw)
			if err != nil {
				return &ParseError{File: rel, Line: num, Raw: string(raw), Err: err}
			}
			records = append(records, r)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

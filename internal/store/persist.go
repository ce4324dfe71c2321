package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/echosage/microlog/internal/models"
)

// FilePersister keeps the document as pretty-printed JSON in a single file.
// Saves go through a temp file plus rename so a crash mid-write never leaves
// a torn document behind.
type FilePersister struct {
	Path string
}

func NewFilePersister(path string) *FilePersister {
	return &FilePersister{Path: path}
}

func (p *FilePersister) Load() (*models.Document, error) {
	b, err := os.ReadFile(p.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.Path, err)
	}
	var doc models.Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", p.Path, err)
	}
	return &doc, nil
}

func (p *FilePersister) Save(doc *models.Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(p.Path)
	tmp, err := os.CreateTemp(dir, ".microlog-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, p.Path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// MemoryPersister backs the store in tests. It clones on both sides so test
// code cannot alias the stored document.
type MemoryPersister struct {
	doc  *models.Document
	fail error
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{}
}

// FailWith makes every subsequent Save return err. Pass nil to heal.
func (p *MemoryPersister) FailWith(err error) {
	p.fail = err
}

func (p *MemoryPersister) Load() (*models.Document, error) {
	if p.doc == nil {
		return nil, nil
	}
	return cloneDocument(p.doc), nil
}

func (p *MemoryPersister) Save(doc *models.Document) error {
	if p.fail != nil {
		return p.fail
	}
	p.doc = cloneDocument(doc)
	return nil
}

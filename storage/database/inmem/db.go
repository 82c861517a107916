package inmemdb

import (
	"sync"

	"github.com/trezcool/somo/core/content"
)

type (
	DB struct {
		documents *documentTable
	}

	documentTable struct {
		sync.RWMutex
		table map[content.Kind]map[string]*content.Document
	}
)

func Open() (*DB, error) {
	table := make(map[content.Kind]map[string]*content.Document, len(content.Kinds))
	for _, kind := range content.Kinds {
		table[kind] = make(map[string]*content.Document)
	}
	db := &DB{
		documents: &documentTable{table: table},
	}
	return db, nil
}

// Reset drops every stored Document.
func (db *DB) Reset() {
	db.documents.Lock()
	defer db.documents.Unlock()
	for kind := range db.documents.table {
		db.documents.table[kind] = make(map[string]*content.Document)
	}
}

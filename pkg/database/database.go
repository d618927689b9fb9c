// Package database assembles the storage engine: one disk manager, one
// buffer pool, and the set of named B+Tree indexes discovered through the
// header page.
package database

import (
	"errors"
	"path/filepath"
	"regexp"
	"strings"

	"rexdb/pkg/btree"
	"rexdb/pkg/buffer"
	"rexdb/pkg/config"
	"rexdb/pkg/disk"

	"github.com/otiai10/copy"
	"go.uber.org/zap"
)

// Database interface.
type Database struct {
	basepath string
	disk     *disk.Manager
	bpm      *buffer.Manager
	indexes  map[string]*btree.BPlusTree
	log      *zap.Logger
}

// Opens a database given a data folder, creating the backing file and the
// header page on first use. logger and metrics may be nil.
func Open(folder string, logger *zap.Logger, metrics *buffer.Metrics) (*Database, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Ensure folder is of the form */
	if !strings.HasSuffix(folder, "/") {
		folder += "/"
	}
	diskManager, err := disk.New(filepath.Join(folder, config.DBFileName), logger)
	if err != nil {
		return nil, err
	}
	bpm := buffer.NewManager(config.PoolSize, diskManager, config.ReplacerK, logger, metrics)
	db := &Database{
		basepath: folder,
		disk:     diskManager,
		bpm:      bpm,
		indexes:  make(map[string]*btree.BPlusTree),
		log:      logger,
	}
	if err := db.initHeaderPage(); err != nil {
		bpm.Close()
		return nil, err
	}
	return db, nil
}

// initHeaderPage pins the reserved header page into existence on a fresh
// database file.
func (db *Database) initHeaderPage() error {
	if db.disk.GetNumPages() > 0 {
		return nil
	}
	page, err := db.bpm.NewPage()
	if err != nil {
		return err
	}
	if page.GetPageID() != btree.HeaderPageID {
		return errors.New("header page did not receive page id 0")
	}
	db.bpm.UnpinPage(page.GetPageID(), true)
	db.bpm.FlushPage(page.GetPageID())
	return nil
}

// GetBufferPool returns the database's buffer pool.
func (db *Database) GetBufferPool() *buffer.Manager {
	return db.bpm
}

// CreateIndex creates a B+Tree index with the given name. Index names may
// contain only letters, digits and underscores, and must be unique.
func (db *Database) CreateIndex(name string) (*btree.BPlusTree, error) {
	alphanumeric, _ := regexp.Compile(`\W`)
	if alphanumeric.MatchString(name) {
		return nil, errors.New("index name must contain only letters, digits and underscores")
	}
	if _, ok := db.indexes[name]; ok {
		return nil, errors.New("index already exists")
	}
	index, err := btree.NewBPlusTree(name, db.bpm, btree.CompareInt64, 0, 0, db.log)
	if err != nil {
		return nil, err
	}
	db.indexes[name] = index
	db.log.Info("created index", zap.String("name", name))
	return index, nil
}

// GetIndex returns the index with the given name, opening it from the header
// page if it isn't resident yet.
func (db *Database) GetIndex(name string) (*btree.BPlusTree, error) {
	if index, ok := db.indexes[name]; ok {
		return index, nil
	}
	index, err := btree.NewBPlusTree(name, db.bpm, btree.CompareInt64, 0, 0, db.log)
	if err != nil {
		return nil, err
	}
	db.indexes[name] = index
	return index, nil
}

// Backup flushes every resident page and copies the database folder to the
// given destination.
func (db *Database) Backup(destination string) error {
	db.bpm.FlushAllPages()
	return copy.Copy(db.basepath, destination)
}

// Close flushes all pages to disk and closes the backing file.
func (db *Database) Close() error {
	db.log.Info("closing database", zap.String("path", db.basepath))
	return db.bpm.Close()
}

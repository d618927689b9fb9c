package database

import (
	"fmt"
	"strconv"
	"strings"

	"rexdb/pkg/concurrency"
	"rexdb/pkg/repl"
	"rexdb/pkg/rid"
)

// Creates a DB Repl for the given database.
func DatabaseRepl(db *Database) *repl.REPL {
	r := repl.NewRepl()
	r.AddCommand("create", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleCreateIndex(db, payload)
	}, "Create an index. usage: create index <index>")

	r.AddCommand("find", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleFind(db, payload)
	}, "Find an element. usage: find <key> from <index>")

	r.AddCommand("insert", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleInsert(db, payload)
	}, "Insert an element. usage: insert <key> <page> <slot> into <index>")

	r.AddCommand("delete", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return "", HandleDelete(db, payload)
	}, "Delete an element. usage: delete <key> from <index>")

	r.AddCommand("select", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleSelect(db, payload)
	}, "Select elements from an index. usage: select from <index>")

	r.AddCommand("backup", func(payload string, replConfig *repl.REPLConfig) (string, error) {
		return HandleBackup(db, payload)
	}, "Copy the database folder. usage: backup to <folder>")

	return r
}

// Handle create index.
func HandleCreateIndex(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: create index <index>
	if len(fields) != 3 || fields[1] != "index" {
		return "", fmt.Errorf("usage: create index <index>")
	}
	indexName := fields[2]
	if _, err = d.CreateIndex(indexName); err != nil {
		return "", err
	}
	return fmt.Sprintf("index %s created.\n", indexName), nil
}

// Handle find.
func HandleFind(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: find <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return "", fmt.Errorf("usage: find <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	index, err := d.GetIndex(fields[3])
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	values, err := index.GetValue(key)
	if err != nil {
		return "", fmt.Errorf("find error: %v", err)
	}
	if len(values) == 0 {
		return "", fmt.Errorf("no entry with key %d was found", key)
	}
	return fmt.Sprintf("found entry: (%d, (%d, %d))\n", key, values[0].PageID, values[0].SlotNum), nil
}

// Handle insert.
func HandleInsert(d *Database, payload string) (err error) {
	fields := strings.Fields(payload)
	// Usage: insert <key> <page> <slot> into <index>
	if len(fields) != 6 || fields[4] != "into" {
		return fmt.Errorf("usage: insert <key> <page> <slot> into <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	pageID, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	slotNum, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	index, err := d.GetIndex(fields[5])
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	inserted, err := index.Insert(key, rid.New(pageID, slotNum), concurrency.NewTransaction())
	if err != nil {
		return fmt.Errorf("insert error: %v", err)
	}
	if !inserted {
		return fmt.Errorf("insert error: duplicate key %d", key)
	}
	return nil
}

// Handle delete.
func HandleDelete(d *Database, payload string) (err error) {
	fields := strings.Fields(payload)
	// Usage: delete <key> from <index>
	if len(fields) != 4 || fields[2] != "from" {
		return fmt.Errorf("usage: delete <key> from <index>")
	}
	key, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	index, err := d.GetIndex(fields[3])
	if err != nil {
		return fmt.Errorf("delete error: %v", err)
	}
	return index.Remove(key, concurrency.NewTransaction())
}

// Handle select.
func HandleSelect(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: select from <index>
	if len(fields) != 3 || fields[1] != "from" {
		return "", fmt.Errorf("usage: select from <index>")
	}
	index, err := d.GetIndex(fields[2])
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	entries, err := index.Select()
	if err != nil {
		return "", fmt.Errorf("select error: %v", err)
	}
	var sb strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&sb, "(%d, (%d, %d))\n", entry.Key, entry.Value.PageID, entry.Value.SlotNum)
	}
	return sb.String(), nil
}

// Handle backup.
func HandleBackup(d *Database, payload string) (output string, err error) {
	fields := strings.Fields(payload)
	// Usage: backup to <folder>
	if len(fields) != 3 || fields[1] != "to" {
		return "", fmt.Errorf("usage: backup to <folder>")
	}
	if err := d.Backup(fields[2]); err != nil {
		return "", fmt.Errorf("backup error: %v", err)
	}
	return fmt.Sprintf("backed up to %s.\n", fields[2]), nil
}

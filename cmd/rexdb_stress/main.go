package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rexdb/pkg/concurrency"
	"rexdb/pkg/database"
	"rexdb/pkg/rid"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var MAX_DELAY int64 = 10

// Listens for SIGINT or SIGTERM and closes the database.
func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		fmt.Println("closehandler invoked")
		db.Close()
		os.Exit(0)
	}()
}

// Get delay jitter.
func jitter() time.Duration {
	return time.Duration(rand.Int63n(MAX_DELAY)+1) * time.Millisecond
}

// worker inserts, reads, and deletes its own slice of the keyspace.
func worker(db *database.Database, id int64, n int64, count int64) error {
	index, err := db.GetIndex("stress")
	if err != nil {
		return err
	}
	txn := concurrency.NewTransaction()
	for i := int64(0); i < count; i++ {
		key := i*n + id
		if _, err := index.Insert(key, rid.New(key, 0), txn); err != nil {
			return err
		}
		time.Sleep(jitter())
		values, err := index.GetValue(key)
		if err != nil {
			return err
		}
		if len(values) == 0 || values[0].PageID != key {
			return fmt.Errorf("worker %d: lost key %d", id, key)
		}
		if key%3 == 0 {
			if err := index.Remove(key, txn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Start the database and hammer one index from n goroutines.
func main() {
	var nFlag = flag.Int64("n", 4, "number of workers to run")
	var countFlag = flag.Int64("count", 1000, "operations per worker")
	var dbFlag = flag.String("db", "data/", "DB folder")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	db, err := database.Open(*dbFlag, logger, nil)
	if err != nil {
		logger.Fatal("opening database", zap.Error(err))
	}
	defer db.Close()
	setupCloseHandler(db)

	if _, err := db.CreateIndex("stress"); err != nil {
		logger.Fatal("creating index", zap.Error(err))
	}

	start := time.Now()
	var g errgroup.Group
	for id := int64(0); id < *nFlag; id++ {
		g.Go(func() error {
			return worker(db, id, *nFlag, *countFlag)
		})
	}
	if err := g.Wait(); err != nil {
		logger.Fatal("workload failed", zap.Error(err))
	}
	fmt.Printf("completed %d ops across %d workers in %v\n",
		*nFlag**countFlag, *nFlag, time.Since(start))
}

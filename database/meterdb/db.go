// Copyright (C) 2019-2024, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package meterdb

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/worldstate/database"
	"github.com/ava-labs/worldstate/utils/wrappers"
)

const methodLabel = "method"

var (
	_ database.Database = (*Database)(nil)
	_ database.Batch    = (*batch)(nil)
	_ database.Iterator = (*iterator)(nil)

	methodLabels = []string{methodLabel}

	hasLabel             = prometheus.Labels{methodLabel: "has"}
	getLabel             = prometheus.Labels{methodLabel: "get"}
	putLabel             = prometheus.Labels{methodLabel: "put"}
	deleteLabel          = prometheus.Labels{methodLabel: "delete"}
	newBatchLabel        = prometheus.Labels{methodLabel: "new_batch"}
	newIteratorLabel     = prometheus.Labels{methodLabel: "new_iterator"}
	compactLabel         = prometheus.Labels{methodLabel: "compact"}
	closeLabel           = prometheus.Labels{methodLabel: "close"}
	batchPutLabel        = prometheus.Labels{methodLabel: "batch_put"}
	batchDeleteLabel     = prometheus.Labels{methodLabel: "batch_delete"}
	batchWriteLabel      = prometheus.Labels{methodLabel: "batch_write"}
	batchResetLabel      = prometheus.Labels{methodLabel: "batch_reset"}
	batchReplayLabel     = prometheus.Labels{methodLabel: "batch_replay"}
	iteratorNextLabel    = prometheus.Labels{methodLabel: "iterator_next"}
	iteratorReleaseLabel = prometheus.Labels{methodLabel: "iterator_release"}
)

// Database tracks the amount of time each operation takes and how many bytes
// are read/written to the underlying database instance.
type Database struct {
	db database.Database

	calls    *prometheus.CounterVec
	duration *prometheus.GaugeVec
	size     *prometheus.CounterVec
}

// New returns a new database with added metrics
func New(
	reg prometheus.Registerer,
	db database.Database,
) (*Database, error) {
	meterDB := &Database{
		db: db,
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "calls",
				Help: "number of calls to the database",
			},
			methodLabels,
		),
		duration: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "duration",
				Help: "time spent in database calls (ns)",
			},
			methodLabels,
		),
		size: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "size",
				Help: "size of data passed in database calls",
			},
			methodLabels,
		),
	}
	errs := wrappers.Errs{}
	errs.Add(
		reg.Register(meterDB.calls),
		reg.Register(meterDB.duration),
		reg.Register(meterDB.size),
	)
	return meterDB, errs.Err
}

func (db *Database) Has(key []byte) (bool, error) {
	start := time.Now()
	has, err := db.db.Has(key)
	duration := time.Since(start)

	db.observe(hasLabel, duration, len(key))
	return has, err
}

func (db *Database) Get(key []byte) ([]byte, error) {
	start := time.Now()
	value, err := db.db.Get(key)
	duration := time.Since(start)

	db.observe(getLabel, duration, len(key)+len(value))
	return value, err
}

func (db *Database) Put(key, value []byte) error {
	start := time.Now()
	err := db.db.Put(key, value)
	duration := time.Since(start)

	db.observe(putLabel, duration, len(key)+len(value))
	return err
}

func (db *Database) Delete(key []byte) error {
	start := time.Now()
	err := db.db.Delete(key)
	duration := time.Since(start)

	db.observe(deleteLabel, duration, len(key))
	return err
}

func (db *Database) NewBatch() database.Batch {
	start := time.Now()
	b := &batch{
		batch: db.db.NewBatch(),
		db:    db,
	}
	duration := time.Since(start)

	db.observe(newBatchLabel, duration, 0)
	return b
}

func (db *Database) NewIterator() database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, nil)
}

func (db *Database) NewIteratorWithStart(start []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(start, nil)
}

func (db *Database) NewIteratorWithPrefix(prefix []byte) database.Iterator {
	return db.NewIteratorWithStartAndPrefix(nil, prefix)
}

func (db *Database) NewIteratorWithStartAndPrefix(
	start,
	prefix []byte,
) database.Iterator {
	startTime := time.Now()
	it := &iterator{
		iterator: db.db.NewIteratorWithStartAndPrefix(start, prefix),
		db:       db,
	}
	duration := time.Since(startTime)

	db.observe(newIteratorLabel, duration, len(start)+len(prefix))
	return it
}

func (db *Database) Compact(start, limit []byte) error {
	startTime := time.Now()
	err := db.db.Compact(start, limit)
	duration := time.Since(startTime)

	db.observe(compactLabel, duration, len(start)+len(limit))
	return err
}

func (db *Database) Close() error {
	start := time.Now()
	err := db.db.Close()
	duration := time.Since(start)

	db.observe(closeLabel, duration, 0)
	return err
}

func (db *Database) observe(labels prometheus.Labels, duration time.Duration, size int) {
	db.calls.With(labels).Inc()
	db.duration.With(labels).Add(float64(duration))
	if size > 0 {
		db.size.With(labels).Add(float64(size))
	}
}

type batch struct {
	batch database.Batch
	db    *Database
}

func (b *batch) Put(key, value []byte) error {
	start := time.Now()
	err := b.batch.Put(key, value)
	duration := time.Since(start)

	b.db.observe(batchPutLabel, duration, len(key)+len(value))
	return err
}

func (b *batch) Delete(key []byte) error {
	start := time.Now()
	err := b.batch.Delete(key)
	duration := time.Since(start)

	b.db.observe(batchDeleteLabel, duration, len(key))
	return err
}

func (b *batch) Size() int {
	return b.batch.Size()
}

func (b *batch) Write() error {
	start := time.Now()
	err := b.batch.Write()
	duration := time.Since(start)

	b.db.observe(batchWriteLabel, duration, b.batch.Size())
	return err
}

func (b *batch) Reset() {
	start := time.Now()
	b.batch.Reset()
	duration := time.Since(start)

	b.db.observe(batchResetLabel, duration, 0)
}

func (b *batch) Replay(w database.KeyValueWriterDeleter) error {
	start := time.Now()
	err := b.batch.Replay(w)
	duration := time.Since(start)

	b.db.observe(batchReplayLabel, duration, 0)
	return err
}

func (b *batch) Inner() database.Batch {
	return b.batch.Inner()
}

type iterator struct {
	iterator database.Iterator
	db       *Database
}

func (it *iterator) Next() bool {
	start := time.Now()
	next := it.iterator.Next()
	duration := time.Since(start)

	size := len(it.iterator.Key()) + len(it.iterator.Value())
	it.db.observe(iteratorNextLabel, duration, size)
	return next
}

func (it *iterator) Error() error {
	return it.iterator.Error()
}

func (it *iterator) Key() []byte {
	return it.iterator.Key()
}

func (it *iterator) Value() []byte {
	return it.iterator.Value()
}

func (it *iterator) Release() {
	start := time.Now()
	it.iterator.Release()
	duration := time.Since(start)

	it.db.observe(iteratorReleaseLabel, duration, 0)
}

package nus

import (
	"fmt"
	"time"

	"github.com/boltdb/bolt"
)

var cacheBucket = []byte("nus")

// Cache is a persistent store for NUS responses, keyed by URL. TMD and
// content files for a given version never change on the CDN, so cached
// entries have no expiry.
type Cache struct {
	db *bolt.DB
}

// OpenCache opens or creates a cache database at path.
func OpenCache(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(cacheBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating cache bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Get returns the cached response for a URL, or nil when absent.
func (c *Cache) Get(url string) []byte {
	var data []byte
	c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(cacheBucket).Get([]byte(url)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	return data
}

// Put stores a response for a URL.
func (c *Cache) Put(url string, data []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(cacheBucket).Put([]byte(url), data)
	})
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

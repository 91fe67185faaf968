// Package filestore defines the object storage interface that s3:// CSV
// sources are read through.
//
// Usage:
//
//	cfg := filestore.DefaultConfig("localhost:9000", "minioadmin", "minioadmin")
//	store, err := minio.New(ctx, cfg)
//	if err != nil { ... }
//	defer store.Close()
//
//	obj, err := store.GetObject(ctx, "exports", "daily/orders.csv")
package filestore

import "context"

// Store is the interface all object storage providers implement.
// It is scoped to reads.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// GetObject opens a streaming handle to the object at key inside bucket.
	// The caller MUST call Object.Close() after reading.
	// The object's metadata is available from Object.Info without a second
	// round trip.
	GetObject(ctx context.Context, bucket, key string) (Object, error)
}

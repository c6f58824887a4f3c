// Package state provides the key-value stores behind heartbeat key-value storage.
//
// Some platforms restrict file quotas, so a heartbeat bundle can live under a
// single key in a key-value store instead of a file. The Store interface is the
// minimal contract the storage package needs, with three backends:
//
//   - MemoryStore: process-local, for tests and ephemeral hosts
//   - NATSStore: a NATS JetStream KV bucket, shared between processes
//   - SQLiteStore: a single kv table in a local SQLite database
//
// # Usage
//
//	conn, _ := nats.Connect(nats.DefaultURL)
//	store, _ := state.NewNATSStore(state.NATSStoreConfig{
//	    Conn:   conn,
//	    Bucket: "heartbeats",
//	})
//	defer store.Close()
//
//	store.Put("heartbeats-app", data)
//	val, err := store.Get("heartbeats-app")
//	if errors.Is(err, state.ErrNotFound) {
//	    // nothing stored yet
//	}
package state

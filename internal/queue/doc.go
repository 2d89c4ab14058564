// Package queue implements the message lifecycle of an embeddable job queue
// and the storage backends it runs on.
//
// A Queue is a thin engine over a Backend handle. Producers Add payloads,
// workers Reserve the oldest pending message, then Complete or Fail it.
// Messages move Pending -> Reserved -> Completed, or back to Pending on Fail;
// nothing leaves Completed and nothing moves on a timer. A worker that dies
// while holding a reservation leaves the message Reserved until the caller
// decides what to do with it.
//
// The claim in Reserve is a single conditional update inside the backend.
// SQLiteStore and PostgresStore express it as one UPDATE ... RETURNING
// statement; MemoryStore serializes the same read-modify-write behind a mutex.
// The engine never caches state between calls, so several Queue values (or
// processes) can share one database.
//
// Schema changes bump schemaVersion in schema.go; users recreate the database
// to adopt the new schema.
package queue

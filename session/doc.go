// Package session implements the Kaizen session: a versioned StateStore, a
// size bounded ArtifactStore and an append-only Trajectory under one id,
// persisted to and restored from a single SQLite file.
//
// Every mutation of state or artifacts also appends an Entry, so the
// Trajectory is a complete audit trail:
//
//	sess, _ := session.New(session.WithID("demo"))
//	_, _ = sess.State().Set("text", "hello world")
//	_ = sess.Artifacts().Write("notes.txt", []byte("..."))
//	_ = sess.Save(ctx, "demo.kaizen")
//
//	restored, _ := session.Load(ctx, "demo.kaizen")
//
// Sessions are single-writer. No internal locking is performed.
package session

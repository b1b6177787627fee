/*
writer.go - Chunked, paced commits of pending cell updates

PURPOSE:
  The store's write API is rate-limited, so updates go out in chunks
  with a fixed pause between them. Pacing is deliberately dumb: a flat
  delay, no adaptive backoff, because the pass is single-threaded and
  the budget math is easier to reason about.

FAILURE CONTRACT:
  The first failing chunk aborts the rest. Chunks already written STAY
  written; there is no rollback in the store. The returned WriteError
  names the failed chunk and carries every update that never made it,
  so the caller can inspect or re-drive.

SEE ALSO:
  - errors.go: WriteError
  - session.go: Orders the per-table commits of a pass
*/
package ledger

import (
	"context"
	"time"

	"github.com/keystone/ads-ledger/tablestore"
)

const (
	// DefaultChunkSize is how many cell updates ride in one store call.
	DefaultChunkSize = 5

	// DefaultPause separates consecutive chunks.
	DefaultPause = time.Second
)

// BatchWriter pushes pending updates to a table in paced chunks.
type BatchWriter struct {
	ChunkSize int
	Pause     time.Duration
}

func NewBatchWriter() *BatchWriter {
	return &BatchWriter{ChunkSize: DefaultChunkSize, Pause: DefaultPause}
}

// Commit writes updates in order and returns how many cells were
// committed. On failure the error is a *WriteError; the count still
// reflects the chunks that landed.
func (w *BatchWriter) Commit(ctx context.Context, table tablestore.Table, updates []CellUpdate) (int, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	size := w.ChunkSize
	if size <= 0 {
		size = DefaultChunkSize
	}

	committed := 0
	for chunk := 0; committed < len(updates); chunk++ {
		if chunk > 0 && w.Pause > 0 {
			select {
			case <-ctx.Done():
				return committed, &WriteError{
					Table:           table.Name(),
					FailedChunk:     chunk,
					ChunksCommitted: chunk,
					CellsCommitted:  committed,
					Pending:         updates[committed:],
					Err:             ctx.Err(),
				}
			case <-time.After(w.Pause):
			}
		}

		end := committed + size
		if end > len(updates) {
			end = len(updates)
		}

		writes := make([]tablestore.CellWrite, 0, end-committed)
		for _, u := range updates[committed:end] {
			writes = append(writes, tablestore.Write(u.Ref, u.Value))
		}

		if err := table.BatchWrite(ctx, writes); err != nil {
			return committed, &WriteError{
				Table:           table.Name(),
				FailedChunk:     chunk,
				ChunksCommitted: chunk,
				CellsCommitted:  committed,
				Pending:         updates[committed:],
				Err:             err,
			}
		}
		committed = end
	}

	return committed, nil
}

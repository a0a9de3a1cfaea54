package store

import "fmt"

// CommitBatch applies every buffered replacement from batch within a
// single transaction, in the order files were first buffered. On error
// nothing is applied and the buffer is lost.
func (s *Store) CommitBatch(batch *BatchedStore) error {
	files := batch.drain()
	if len(files) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("commit batch: begin: %w", err)
	}
	defer tx.Rollback()

	for i := range files {
		if err := replaceFileTx(tx, &files[i].file, files[i].entries); err != nil {
			return fmt.Errorf("commit batch: file %s: %w", files[i].file.Path, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: commit: %w", err)
	}
	return nil
}

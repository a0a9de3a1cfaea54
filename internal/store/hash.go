package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash returns the hex SHA-256 of a file's content. The indexer
// stores it to skip files whose content has not changed.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

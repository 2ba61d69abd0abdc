package cache

import (
	"bytes"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/seclab-ucsb/turi-go/internal/ir"
)

func init() {
	gob.Register(&ir.AssignStmt{})
	gob.Register(&ir.IdentityStmt{})
	gob.Register(&ir.InvokeStmt{})
	gob.Register(&ir.GotoStmt{})
	gob.Register(&ir.IfStmt{})
	gob.Register(&ir.SwitchStmt{})
	gob.Register(&ir.ReturnStmt{})
	gob.Register(&ir.ReturnVoidStmt{})
	gob.Register(&ir.UnknownStmt{})
	gob.Register(&ir.Local{})
	gob.Register(&ir.ParamRef{})
	gob.Register(&ir.InstanceFieldRef{})
	gob.Register(&ir.StaticFieldRef{})
	gob.Register(&ir.ArrayRef{})
	gob.Register(&ir.BinOp{})
	gob.Register(&ir.CastExpr{})
	gob.Register(&ir.LengthExpr{})
	gob.Register(&ir.PhiExpr{})
	gob.Register(&ir.InvokeExpr{})
	gob.Register(&ir.ConstExpr{})
}

// Load returns the cached class table for cacheKey (typically the
// absolute app path a Project was constructed from), and whether an entry
// was found. A hash mismatch between the stored blob and its recorded
// hash is treated as a miss rather than an error, so a corrupted cache
// degrades to "re-lift" instead of failing the caller.
func (c *Cache) Load(cacheKey string) ([]*ir.Class, bool, error) {
	var blob []byte
	var blobHash string
	err := c.db.QueryRow(
		"SELECT blob, blob_hash FROM class_table WHERE cache_key = ?", cacheKey,
	).Scan(&blob, &blobHash)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("load class table %s: %w", cacheKey, err)
	}

	if hashOf(blob) != blobHash {
		return nil, false, nil
	}

	var classes []*ir.Class
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&classes); err != nil {
		return nil, false, fmt.Errorf("decode class table %s: %w", cacheKey, err)
	}
	// gob decodes BlockByLabel's entries as copies distinct from the
	// Blocks slice; point each label back at the block in Blocks.
	for _, c := range classes {
		for _, m := range c.Methods {
			for _, b := range m.Blocks {
				if _, ok := m.BlockByLabel[b.Label]; ok {
					m.BlockByLabel[b.Label] = b
				}
			}
		}
	}
	return classes, true, nil
}

// Save persists classes under cacheKey, overwriting any prior entry.
func (c *Cache) Save(cacheKey, inputFormat, sdk string, classes []*ir.Class) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(classes); err != nil {
		return fmt.Errorf("encode class table %s: %w", cacheKey, err)
	}
	blob := buf.Bytes()

	_, err := c.db.Exec(`
		INSERT INTO class_table (cache_key, blob, blob_hash, input_format, sdk, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			blob = excluded.blob,
			blob_hash = excluded.blob_hash,
			input_format = excluded.input_format,
			sdk = excluded.sdk,
			cached_at = excluded.cached_at`,
		cacheKey, blob, hashOf(blob), inputFormat, sdk, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("save class table %s: %w", cacheKey, err)
	}
	return nil
}

// Invalidate removes the cached entry for cacheKey, if any.
func (c *Cache) Invalidate(cacheKey string) error {
	_, err := c.db.Exec("DELETE FROM class_table WHERE cache_key = ?", cacheKey)
	if err != nil {
		return fmt.Errorf("invalidate class table %s: %w", cacheKey, err)
	}
	return nil
}

func hashOf(blob []byte) string {
	sum := sha256.Sum256(blob)
	return hex.EncodeToString(sum[:])
}

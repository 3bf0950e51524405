package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const (
	contentKeyPrefix  = "qr:content:"
	identityKeyPrefix = "qr:chart:"
)

// ContentKey derives the content-addressed cache key for a query result.
// The table list is sorted on a copy so callers' slices are never mutated
// and table order does not change the key.
func ContentKey(sqlQuery string, datasourceID uuid.UUID, tables []string) string {
	sorted := make([]string, len(tables))
	copy(sorted, tables)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(sqlQuery))
	h.Write([]byte{0})
	h.Write([]byte(datasourceID.String()))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, ",")))

	return contentKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

// IdentityKey derives the identity cache key for a chart. The value stored
// under it is a content key, giving one level of indirection.
func IdentityKey(chartID uuid.UUID) string {
	return identityKeyPrefix + chartID.String()
}

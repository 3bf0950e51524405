package cache

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestContentKey_TableOrderIndependent(t *testing.T) {
	dsID := uuid.New()
	a := ContentKey("SELECT 1", dsID, []string{"public.orders", "public.users"})
	b := ContentKey("SELECT 1", dsID, []string{"public.users", "public.orders"})
	assert.Equal(t, a, b, "table order must not change the key")
}

func TestContentKey_DoesNotMutateInput(t *testing.T) {
	tables := []string{"z", "a"}
	ContentKey("SELECT 1", uuid.New(), tables)
	assert.Equal(t, []string{"z", "a"}, tables)
}

func TestContentKey_DistinctInputsDistinctKeys(t *testing.T) {
	dsID := uuid.New()
	base := ContentKey("SELECT 1", dsID, []string{"t"})

	assert.NotEqual(t, base, ContentKey("SELECT 2", dsID, []string{"t"}), "different SQL")
	assert.NotEqual(t, base, ContentKey("SELECT 1", uuid.New(), []string{"t"}), "different datasource")
	assert.NotEqual(t, base, ContentKey("SELECT 1", dsID, []string{"t", "u"}), "different tables")
}

func TestKeyPrefixes(t *testing.T) {
	assert.True(t, strings.HasPrefix(ContentKey("SELECT 1", uuid.New(), nil), "qr:content:"))
	assert.True(t, strings.HasPrefix(IdentityKey(uuid.New()), "qr:chart:"))
}

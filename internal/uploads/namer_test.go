package uploads

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageNameShape(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	name, err := StorageName(now, "my spawn (v2).yml")
	require.NoError(t, err)

	parts := strings.SplitN(name, "-", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, strconv.FormatInt(now.UnixMilli(), 10), parts[0])
	assert.Len(t, parts[1], 16)
	assert.Equal(t, "my-spawn--v2-.yml", parts[2])
}

func TestStorageNameNeverCollides(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		name, err := StorageName(now, "config.zip")
		require.NoError(t, err)
		if _, dup := seen[name]; dup {
			t.Fatalf("collision on %q", name)
		}
		seen[name] = struct{}{}
	}
}

func TestStorageNameRejectsTraversal(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

	_, err := StorageName(now, "../../etc/passwd")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

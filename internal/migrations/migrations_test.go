package migrations

import (
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFiles_UpAndDownPaired(t *testing.T) {
	entries, err := fs.ReadDir(Files, ".")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups := map[string]bool{}
	downs := map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		}
	}
	require.Equal(t, ups, downs)
}

func TestFiles_BucketIdentityConstraint(t *testing.T) {
	up, err := fs.ReadFile(Files, "000001_create_value_metric_buckets.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(up), "UNIQUE (metric_name, dimension, bucket_start_ns)")
}

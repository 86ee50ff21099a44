package snapkv

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	db := openTestDB(t, WithRegisterer(reg), WithWritePolicy(FailFast))

	require.NoError(t, db.Update(ctx, func(tx *Tx) error { return tx.Set([]byte("a"), []byte("1")) }))
	require.NoError(t, db.Update(ctx, func(tx *Tx) error { return tx.Set([]byte("b"), []byte("2")) }))
	tx, err := db.BeginWrite(ctx)
	require.NoError(t, err)
	_, err = db.BeginWrite(ctx)
	require.ErrorIs(t, err, ErrWriteContention)
	require.NoError(t, tx.Rollback())
	reader, err := db.BeginRead()
	require.NoError(t, err)
	defer reader.Rollback()

	expected := `
# HELP snapkv_commits_total Committed write transactions that published a version.
# TYPE snapkv_commits_total counter
snapkv_commits_total 2
# HELP snapkv_rollbacks_total Rolled back write transactions.
# TYPE snapkv_rollbacks_total counter
snapkv_rollbacks_total 1
# HELP snapkv_write_contention_total Write transactions refused by the write gate.
# TYPE snapkv_write_contention_total counter
snapkv_write_contention_total 1
# HELP snapkv_current_version Id of the current version.
# TYPE snapkv_current_version gauge
snapkv_current_version 2
# HELP snapkv_active_readers Open read-only transactions.
# TYPE snapkv_active_readers gauge
snapkv_active_readers 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"snapkv_commits_total",
		"snapkv_rollbacks_total",
		"snapkv_write_contention_total",
		"snapkv_current_version",
		"snapkv_active_readers",
	))
	count, err := testutil.GatherAndCount(reg, "snapkv_write_wait_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	openTestDB(t, WithRegisterer(reg))
	_, err := Open(WithRegisterer(reg))
	require.Error(t, err)
}

func TestMetricsUnregisteredOnClose(t *testing.T) {
	reg := prometheus.NewRegistry()
	db, err := Open(WithRegisterer(reg))
	require.NoError(t, err)
	require.NoError(t, db.Close())
	again, err := Open(WithRegisterer(reg))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

package inventory

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventoryd/pkg/db"
)

func TestQueryDevice(t *testing.T) {
	ctx := context.Background()
	gdb, err := db.Open(ctx, db.Config{Path: filepath.Join(t.TempDir(), "inventory.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	store, err := NewStore(gdb)
	require.NoError(t, err)
	q, err := NewQuery(store)
	require.NoError(t, err)

	_, err = q.Device(ctx, "SN001")
	assert.ErrorIs(t, err, ErrNotFound)

	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, host := range []string{"host-v1", "host-v2"} {
		evt, state := checkinPair("SN001", host, ts.Add(time.Duration(i)*time.Hour), `[{"model":"m","device_id":"\\\\.\\PHYSICALDRIVE0"}]`)
		_, err := store.RecordCheckin(ctx, evt, state)
		require.NoError(t, err)
	}

	dev, err := q.Device(ctx, "SN001")
	require.NoError(t, err)
	assert.Equal(t, "host-v2", dev.State.Hostname)
	require.Len(t, dev.History, 2)
	assert.Equal(t, "host-v2", dev.History[0].Hostname)

	drives := dev.State.DriveList()
	require.Len(t, drives, 1)
	assert.Equal(t, "PHYSICALDRIVE0", drives[0].DisplayName())

	machines, err := q.Machines(ctx)
	require.NoError(t, err)
	assert.Len(t, machines, 1)

	m, err := q.Machine(ctx, "SN001")
	require.NoError(t, err)
	assert.Equal(t, "host-v2", m.Hostname)

	history, err := q.History(ctx, "SN001")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

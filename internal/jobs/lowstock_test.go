package jobs

import (
	"context"
	"sync"
	"testing"

	"pharmacy_system/internal/notify"
	"pharmacy_system/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (r *recorder) Dispatch(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func TestLowStockReport(t *testing.T) {
	db := testutil.DB(t)
	sent := &recorder{}
	job := &LowStockReport{DB: db, Notifier: sent, AdminEmail: "admin@pharma.com", Threshold: 5}

	testutil.Medicine(t, db, 1, "Plenty", 10, 0, 50)
	n, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, sent.msgs)

	testutil.Medicine(t, db, 2, "Scarce", 10, 0, 2)
	testutil.Medicine(t, db, 3, "Gone", 10, 0, 0)
	n, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, sent.msgs, 1)
	assert.Equal(t, notify.KindLowStock, sent.msgs[0].Kind)
	assert.Contains(t, sent.msgs[0].Body, "#3 Gone")
	assert.Contains(t, sent.msgs[0].Body, "#2 Scarce")
	assert.NotContains(t, sent.msgs[0].Body, "Plenty")
}

func TestStartRejectsBadTime(t *testing.T) {
	job := &LowStockReport{}
	_, err := job.Start("25:99")
	assert.Error(t, err)
}

package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dtcops/blobsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusWrite struct {
	blob   string
	status domain.ProcessingStatus
}

type fakeStore struct {
	processable []string
	verifiable  []string
	gotMinAge   time.Duration

	statusWrites []statusWrite
	statusRows   int64
	statusErr    error

	counts       domain.Counts
	countsStatus domain.ProcessingStatus
	influxCount  int64
	influxStatus domain.ProcessingStatus
	setErr       error
}

func (f *fakeStore) ClaimForProcessing(ctx context.Context, minAge time.Duration) ([]string, error) {
	f.gotMinAge = minAge
	return f.processable, nil
}

func (f *fakeStore) ClaimForVerification(ctx context.Context) ([]string, error) {
	return f.verifiable, nil
}

func (f *fakeStore) SetStatus(ctx context.Context, blob string, status domain.ProcessingStatus) (int64, error) {
	if f.statusErr != nil {
		return 0, f.statusErr
	}
	f.statusWrites = append(f.statusWrites, statusWrite{blob, status})
	return f.statusRows, nil
}

func (f *fakeStore) SetCounts(ctx context.Context, blob string, counts domain.Counts, status domain.ProcessingStatus) (int64, error) {
	if f.setErr != nil {
		return 0, f.setErr
	}
	f.counts = counts
	f.countsStatus = status
	return 1, nil
}

func (f *fakeStore) SetInfluxCount(ctx context.Context, blob string, count int64, status domain.ProcessingStatus) (int64, error) {
	if f.setErr != nil {
		return 0, f.setErr
	}
	f.influxCount = count
	f.influxStatus = status
	return 1, nil
}

func TestClaimsPassThrough(t *testing.T) {
	store := &fakeStore{
		processable: []string{"a.json", "b.json"},
		verifiable:  []string{"c.json"},
	}
	c := New(store, 10*time.Minute)

	names, err := c.ClaimForProcessing(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.json"}, names)
	assert.Equal(t, 10*time.Minute, store.gotMinAge)

	names, err = c.ClaimForVerification(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"c.json"}, names)
}

func TestMarksWriteExpectedStatuses(t *testing.T) {
	store := &fakeStore{statusRows: 1}
	c := New(store, time.Minute)
	ctx := context.Background()

	c.MarkProcessing(ctx, "f1.json")
	c.MarkFailed(ctx, "f1.json")
	c.MarkVerifying(ctx, "f2.json")
	c.MarkVerifiedFailed(ctx, "f2.json")

	assert.Equal(t, []statusWrite{
		{"f1.json", domain.StatusProcessing},
		{"f1.json", domain.StatusFailed},
		{"f2.json", domain.StatusVerifying},
		{"f2.json", domain.StatusVerifiedFailed},
	}, store.statusWrites)
}

func TestMarkCompletedWritesCountsAndStatusTogether(t *testing.T) {
	store := &fakeStore{}
	c := New(store, time.Minute)

	err := c.MarkCompleted(context.Background(), "f1.json", domain.Counts{Total: 10, Distinct: 8})
	require.NoError(t, err)
	assert.Equal(t, domain.Counts{Total: 10, Distinct: 8}, store.counts)
	assert.Equal(t, domain.StatusCompleted, store.countsStatus)
}

func TestMarkVerifiedOKWritesCountAndStatusTogether(t *testing.T) {
	store := &fakeStore{}
	c := New(store, time.Minute)

	err := c.MarkVerifiedOK(context.Background(), "f1.json", 1200)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), store.influxCount)
	assert.Equal(t, domain.StatusVerifiedOK, store.influxStatus)
}

func TestTerminalMarksSurfaceStoreErrors(t *testing.T) {
	store := &fakeStore{setErr: errors.New("connection lost")}
	c := New(store, time.Minute)

	err := c.MarkCompleted(context.Background(), "f1.json", domain.Counts{})
	assert.Error(t, err)

	err = c.MarkVerifiedOK(context.Background(), "f1.json", 0)
	assert.Error(t, err)
}

func TestBestEffortMarksSwallowErrors(t *testing.T) {
	store := &fakeStore{statusErr: errors.New("connection lost")}
	c := New(store, time.Minute)

	// Intermediate marks are advisory; a failed write must not panic or
	// propagate, the next claim re-selects the blob anyway.
	c.MarkProcessing(context.Background(), "f1.json")
	c.MarkVerifying(context.Background(), "f1.json")
	assert.Empty(t, store.statusWrites)
}

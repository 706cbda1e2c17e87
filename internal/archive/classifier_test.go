package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/dtcops/blobsync/internal/retry"
	"github.com/dtcops/blobsync/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	objects   map[string]string
	openErr   error
	existsErr error
	openCalls int
}

func (f *fakeStore) List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	f.openCalls++
	if f.openErr != nil {
		return nil, f.openErr
	}
	return io.NopCloser(strings.NewReader(f.objects[name])), nil
}

func (f *fakeStore) Exists(ctx context.Context, name string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.objects[name]
	return ok, nil
}

func fastPolicy(maxRetries int) retry.Policy {
	return retry.Policy{MaxRetries: maxRetries, Base: time.Millisecond}
}

func classify(t *testing.T, content string) (int, int, error) {
	t.Helper()
	store := &fakeStore{objects: map[string]string{"f1.json": content}}
	c := NewClassifier(store, fastPolicy(0))
	counts, err := c.Classify(context.Background(), "f1.json")
	return counts.Total, counts.Distinct, err
}

func TestClassifyDataShapeDeduplicates(t *testing.T) {
	content := `{
		"_name": "export", "_model": "iris_data", "_timestamp": 1700000000,
		"ExportedData": {
			"Header": {"SystemName": "sys", "StartDate": "2023-11-14", "EndDate": "2023-11-15"},
			"Objects": [
				{"Id": 1, "Fullname": "a", "Time": "t1", "Value": 1.5},
				{"Id": 1, "Fullname": "a", "Time": "t1", "Value": 99.9},
				{"Id": 2, "Fullname": "a", "Time": "t1"}
			]
		}
	}`
	total, distinct, err := classify(t, content)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	// Identity key is {Id, Fullname, Time}; differing Value does not matter.
	assert.Equal(t, 2, distinct)
}

func TestClassifyEventsShapeSeqNoIsDistinct(t *testing.T) {
	content := `{
		"ExportedEvents": {
			"Objects": [
				{"Id": 7, "Fullname": "pump", "RecordTime": "t1", "SeqNo": 1},
				{"Id": 7, "Fullname": "pump", "RecordTime": "t1", "SeqNo": 2},
				{"Id": 7, "Fullname": "pump", "RecordTime": "t1", "SeqNo": 2}
			]
		}
	}`
	total, distinct, err := classify(t, content)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	// Same {Id, Fullname, RecordTime} but a new SeqNo is a new record.
	assert.Equal(t, 2, distinct)
}

func TestClassifyEmptyObjectsIsZeroNotError(t *testing.T) {
	for name, content := range map[string]string{
		"empty data list":  `{"ExportedData": {"Objects": []}}`,
		"absent data list": `{"ExportedData": {}}`,
		"empty events":     `{"ExportedEvents": {"Objects": []}}`,
	} {
		t.Run(name, func(t *testing.T) {
			total, distinct, err := classify(t, content)
			require.NoError(t, err)
			assert.Equal(t, 0, total)
			assert.Equal(t, 0, distinct)
		})
	}
}

func TestClassifyAbsentIDDistinctFromZero(t *testing.T) {
	content := `{
		"ExportedData": {
			"Objects": [
				{"Fullname": "a", "Time": "t1"},
				{"Id": 0, "Fullname": "a", "Time": "t1"}
			]
		}
	}`
	total, distinct, err := classify(t, content)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 2, distinct)
}

func TestClassifyNeitherShapeIsStructural(t *testing.T) {
	_, _, err := classify(t, `{"_name": "export"}`)
	require.Error(t, err)
	var pf *ProcessingFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, FailureStructural, pf.Kind)
	assert.Contains(t, pf.Detail, "neither ExportedData nor ExportedEvents")
}

func TestClassifyBothShapesIsStructural(t *testing.T) {
	_, _, err := classify(t, `{"ExportedData": {}, "ExportedEvents": {}}`)
	require.Error(t, err)
	var pf *ProcessingFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, FailureStructural, pf.Kind)
}

func TestClassifySyntaxErrorReportsPosition(t *testing.T) {
	content := "{\n\"ExportedData\": {\n\"Objects\": [}\n}"
	_, _, err := classify(t, content)
	require.Error(t, err)
	var pf *ProcessingFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, FailureStructural, pf.Kind)
	assert.Contains(t, pf.Detail, "line 3")
}

func TestClassifyTypeErrorReportsFieldPath(t *testing.T) {
	content := `{"ExportedData": {"Objects": [{"Id": "not-a-number"}]}}`
	_, _, err := classify(t, content)
	require.Error(t, err)
	var pf *ProcessingFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, FailureStructural, pf.Kind)
	assert.Contains(t, pf.Detail, "Id")
}

func TestClassifyMissingBlobFailsFastWithoutRetry(t *testing.T) {
	store := &fakeStore{objects: map[string]string{}}
	c := NewClassifier(store, fastPolicy(5))
	_, err := c.Classify(context.Background(), "missing.json")
	require.Error(t, err)
	var pf *ProcessingFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, FailureNotFound, pf.Kind)
	// A missing blob is terminal; the retry budget must not be spent on it.
	assert.Equal(t, 0, store.openCalls)
}

func TestClassifyTransientFailureRetriesToBound(t *testing.T) {
	store := &fakeStore{
		objects: map[string]string{"f1.json": "{}"},
		openErr: errors.New("connection reset"),
	}
	c := NewClassifier(store, fastPolicy(3))
	_, err := c.Classify(context.Background(), "f1.json")
	require.Error(t, err)
	assert.Equal(t, 4, store.openCalls)
	assert.Contains(t, err.Error(), "giving up after 4 attempts")
}

func TestClassifyStructuralFailureNotRetried(t *testing.T) {
	store := &fakeStore{objects: map[string]string{"f1.json": "not json at all"}}
	c := NewClassifier(store, fastPolicy(5))
	_, err := c.Classify(context.Background(), "f1.json")
	require.Error(t, err)
	assert.Equal(t, 1, store.openCalls)
}

package sculptor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func indexedRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{"idx": i, "text": fmt.Sprintf("post %d", i)}
	}
	return records
}

// idxOf returns the idx of the record a request was built from.
func idxOf(t *testing.T, req *Request) int {
	v := inputOf(t, req)["idx"]
	return int(v.(float64))
}

func TestNewRequiresTransport(t *testing.T) {
	_, err := New(nil, categorySchema(t))
	assert.ErrorIs(t, err, ErrNoTransport)

	_, err = NewAsync(nil, categorySchema(t))
	assert.ErrorIs(t, err, ErrNoTransport)
}

func TestNewRejectsBadTemplate(t *testing.T) {
	_, err := New(greetingTransport(), categorySchema(t), WithTemplate("{{ input "))
	assert.ErrorIs(t, err, ErrSchema)
}

func TestSculptMergesInput(t *testing.T) {
	s, err := New(greetingTransport(), categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	in := Record{"id": "1", "text": "hello"}
	out, err := s.Sculpt(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, Record{"id": "1", "text": "hello", "category": "greeting"}, out)

	out, err = s.Sculpt(context.Background(), in, WithMergeInput(false))
	require.NoError(t, err)
	assert.Equal(t, Record{"category": "greeting"}, out)
}

func TestSculptUsesModel(t *testing.T) {
	tr := greetingTransport()
	s, err := New(tr, categorySchema(t), WithModel("gpt-4.1-mini"), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.Sculpt(context.Background(), Record{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4.1-mini", tr.Requests()[0].Model)

	d, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)
	req, err := d.BuildRequest(Record{"text": "hi"}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, req.Model)
}

func TestSculptBatchPreservesInputOrder(t *testing.T) {
	const n = 10
	tr := NewScriptedTransport(func(_ context.Context, req *Request, _ int) (*Completion, error) {
		// Later items finish first.
		time.Sleep(time.Duration(n-idxOf(t, req)) * time.Millisecond)
		return &Completion{Text: `{"category":"other"}`}, nil
	})
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	results, err := s.SculptBatch(context.Background(), indexedRecords(n), fastRun(WithWorkers(4))...)
	require.NoError(t, err)
	require.Len(t, results, n)
	for i, res := range results {
		require.True(t, res.OK(), "item %d: %v", i, res.Err)
		assert.Equal(t, i, res.Index)
		assert.Equal(t, i, res.Record["idx"])
		assert.Equal(t, "other", res.Record["category"])
	}
	assert.Equal(t, n, tr.Calls())
}

func TestSculptBatchSingleWorkerIsSequential(t *testing.T) {
	tr := greetingTransport()
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.SculptBatch(context.Background(), indexedRecords(5), fastRun(WithWorkers(1))...)
	require.NoError(t, err)

	reqs := tr.Requests()
	require.Len(t, reqs, 5)
	for i, req := range reqs {
		assert.Equal(t, i, idxOf(t, req))
	}
}

func TestSculptBatchBoundsConcurrency(t *testing.T) {
	var inFlight, peak int32
	tr := NewScriptedTransport(func(context.Context, *Request, int) (*Completion, error) {
		cur := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return &Completion{Text: `{"category":"other"}`}, nil
	})
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.SculptBatch(context.Background(), indexedRecords(12), fastRun(WithWorkers(3))...)
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
}

// failingTransport fails every attempt for the listed items.
func failingTransport(t *testing.T, failing ...int) *ScriptedTransport {
	bad := make(map[int]bool, len(failing))
	for _, i := range failing {
		bad[i] = true
	}
	return NewScriptedTransport(func(_ context.Context, req *Request, _ int) (*Completion, error) {
		if bad[idxOf(t, req)] {
			return nil, errors.New("rate limited")
		}
		return &Completion{Text: `{"category":"greeting"}`}, nil
	})
}

func TestSculptBatchFailureModes(t *testing.T) {
	records := indexedRecords(5)

	t.Run("include", func(t *testing.T) {
		s, err := New(failingTransport(t, 2), categorySchema(t), WithLogger(quietLogger()))
		require.NoError(t, err)

		results, err := s.SculptBatch(context.Background(), records, fastRun(WithWorkers(2), WithRetries(2))...)
		require.NoError(t, err)
		require.Len(t, results, 5)
		assert.False(t, results[2].OK())
		assert.Equal(t, 2, results[2].Index)
		assert.Nil(t, results[2].Record)
		assert.ErrorIs(t, results[2].Err, ErrRetriesExhausted)
		for _, i := range []int{0, 1, 3, 4} {
			assert.True(t, results[i].OK())
		}
	})

	t.Run("drop", func(t *testing.T) {
		s, err := New(failingTransport(t, 1, 3), categorySchema(t), WithLogger(quietLogger()))
		require.NoError(t, err)

		results, err := s.SculptBatch(context.Background(), records,
			fastRun(WithWorkers(2), WithRetries(1), WithFailureMode(DropFailures))...)
		require.NoError(t, err)
		require.Len(t, results, 3)
		var got []int
		for _, res := range results {
			assert.True(t, res.OK())
			got = append(got, res.Index)
		}
		assert.Equal(t, []int{0, 2, 4}, got)
	})

	t.Run("abort", func(t *testing.T) {
		tr := failingTransport(t, 2)
		s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
		require.NoError(t, err)

		results, err := s.SculptBatch(context.Background(), records,
			fastRun(WithWorkers(1), WithRetries(1), WithFailureMode(AbortOnFailure))...)
		require.Error(t, err)
		assert.Nil(t, results)
		assert.ErrorIs(t, err, ErrRetriesExhausted)
		assert.Contains(t, err.Error(), "item 2")
		assert.Equal(t, 3, tr.Calls(), "items after the failure are not started")
	})
}

func TestSculptBatchBuildFailureIsolated(t *testing.T) {
	tr := greetingTransport()
	s, err := New(tr, categorySchema(t), WithInputKeys("text"), WithLogger(quietLogger()))
	require.NoError(t, err)

	records := []Record{{"text": "a"}, {"body": "b"}, {"text": "c"}}
	results, err := s.SculptBatch(context.Background(), records, fastRun(WithWorkers(2))...)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.ErrorIs(t, results[1].Err, ErrBuild)
	assert.True(t, results[2].OK())
	assert.Equal(t, 2, tr.Calls())
}

func TestSculptBatchProgress(t *testing.T) {
	s, err := New(greetingTransport(), categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		calls [][2]int
	)
	progress := func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		calls = append(calls, [2]int{done, total})
	}
	_, err = s.SculptBatch(context.Background(), indexedRecords(6), fastRun(WithWorkers(3), WithProgress(progress))...)
	require.NoError(t, err)

	require.Len(t, calls, 6)
	for i, c := range calls {
		assert.Equal(t, [2]int{i + 1, 6}, c)
	}
}

func TestSculptBatchEmpty(t *testing.T) {
	s, err := New(greetingTransport(), categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	results, err := s.SculptBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSculptBatchCustomRunner(t *testing.T) {
	tr := greetingTransport()
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	runner := NewLimitedRunner(context.Background(), 2)
	results, err := s.SculptBatch(context.Background(), indexedRecords(4), fastRun(WithWorkers(2), WithRunner(runner))...)
	require.NoError(t, err)
	require.Len(t, results, 4)
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.True(t, res.OK())
	}
}

package sculptor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetriesExhaustedAfterBudget(t *testing.T) {
	boom := errors.New("upstream unavailable")
	tr := NewScriptedTransport(func(context.Context, *Request, int) (*Completion, error) {
		return nil, boom
	})
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.Sculpt(context.Background(), Record{"text": "hello"}, fastRun(WithRetries(3))...)
	require.Error(t, err)

	assert.Equal(t, 3, tr.Calls())
	assert.True(t, errors.Is(err, ErrRetriesExhausted))
	assert.True(t, errors.Is(err, boom), "last attempt's error is wrapped")

	var re *RetriesExhaustedError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 3, re.Attempts)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
}

func TestRetryRecoversAfterValidationFailure(t *testing.T) {
	tr := NewScriptedTransport(func(_ context.Context, _ *Request, call int) (*Completion, error) {
		if call == 0 {
			return &Completion{Text: `{"category":"farewell"}`}, nil
		}
		return &Completion{Text: `{"category":"greeting"}`}, nil
	})
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	out, err := s.Sculpt(context.Background(), Record{"text": "hello"}, fastRun()...)
	require.NoError(t, err)
	assert.Equal(t, "greeting", out["category"])

	reqs := tr.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, 0, reqs[0].Attempt)
	assert.Equal(t, 1, reqs[1].Attempt)
	assert.Contains(t, reqs[1].Messages[1].Content, "farewell", "retry tells the model what went wrong")
}

func TestRetryMixedFailuresShareBudget(t *testing.T) {
	tr := NewScriptedTransport(func(_ context.Context, _ *Request, call int) (*Completion, error) {
		switch call {
		case 0:
			return nil, errors.New("timeout")
		case 1:
			return &Completion{Text: "not json"}, nil
		default:
			return &Completion{Text: `{}`}, nil
		}
	})
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.Sculpt(context.Background(), Record{"text": "hello"}, fastRun(WithRetries(3))...)
	require.Error(t, err)
	assert.Equal(t, 3, tr.Calls())
	assert.True(t, errors.Is(err, ErrValidation), "last error is the validation failure")
}

func TestBuildErrorIsNotRetried(t *testing.T) {
	tr := greetingTransport()
	s, err := New(tr, categorySchema(t), WithInputKeys("text"), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.Sculpt(context.Background(), Record{"body": "hello"}, fastRun()...)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrBuild))
	assert.False(t, errors.Is(err, ErrRetriesExhausted))
	assert.Equal(t, 0, tr.Calls())
}

func TestRetriesZeroMeansOneAttempt(t *testing.T) {
	tr := NewScriptedTransport(func(context.Context, *Request, int) (*Completion, error) {
		return nil, errors.New("down")
	})
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = s.Sculpt(context.Background(), Record{"text": "hello"}, fastRun(WithRetries(0))...)
	require.Error(t, err)
	assert.Equal(t, 1, tr.Calls())
}

func TestRetryBackoffHonorsContext(t *testing.T) {
	tr := NewScriptedTransport(func(context.Context, *Request, int) (*Completion, error) {
		return nil, errors.New("down")
	})
	s, err := New(tr, categorySchema(t), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = s.Sculpt(ctx, Record{"text": "hello"}, WithRetries(3), WithBackoff(time.Hour))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, tr.Calls())
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&SchemaError{Reason: "x"}))
	assert.False(t, IsRetryable(&BuildError{Reason: "x"}))
	assert.True(t, IsRetryable(&ParseError{Reason: "x"}))
	assert.True(t, IsRetryable(&ValidationError{Reason: "x"}))
	assert.True(t, IsRetryable(errors.New("connection reset")))
}

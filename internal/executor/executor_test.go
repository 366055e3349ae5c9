package executor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thaiproxy/searchproxy/internal/apierrors"
	"github.com/thaiproxy/searchproxy/internal/backend"
	"github.com/thaiproxy/searchproxy/internal/query"
)

type fakeBackend struct {
	name    string
	delay   time.Duration
	failFor map[string]error
	hits    map[string][]backend.SearchHit
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Probe(ctx context.Context) error { return nil }

func (f *fakeBackend) Search(ctx context.Context, q string, opts backend.Options) ([]backend.SearchHit, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.failFor[q]; ok {
		return nil, err
	}
	return f.hits[q], nil
}

func variantsFor(texts ...string) []query.Variant {
	out := make([]query.Variant, len(texts))
	for i, t := range texts {
		out[i] = query.Variant{Text: t, Kind: query.Original, Weight: 1.0}
	}
	return out
}

func TestDispatch_AllSucceed(t *testing.T) {
	b := &fakeBackend{
		name: "fake",
		hits: map[string][]backend.SearchHit{
			"a": {{DocID: "1"}},
			"b": {{DocID: "2"}},
		},
	}
	e := New(b)

	outcome := e.Dispatch(context.Background(), variantsFor("a", "b"), backend.Options{})
	assert.Len(t, outcome.Succeeded, 2)
	assert.Empty(t, outcome.Failed)
	assert.False(t, outcome.AllFailed())
}

func TestDispatch_PartialFailureTolerated(t *testing.T) {
	b := &fakeBackend{
		name: "fake",
		failFor: map[string]error{
			"bad": apierrors.New(apierrors.KindBackendTimeout, "timeout", nil),
		},
		hits: map[string][]backend.SearchHit{
			"good": {{DocID: "1"}},
		},
	}
	e := New(b)

	outcome := e.Dispatch(context.Background(), variantsFor("good", "bad"), backend.Options{})
	require.Len(t, outcome.Succeeded, 1)
	require.Len(t, outcome.Failed, 1)
	assert.False(t, outcome.AllFailed())
}

func TestDispatch_AllFail(t *testing.T) {
	b := &fakeBackend{
		name: "fake",
		failFor: map[string]error{
			"a": errors.New("boom"),
			"b": errors.New("boom"),
		},
	}
	e := New(b)

	outcome := e.Dispatch(context.Background(), variantsFor("a", "b"), backend.Options{})
	assert.True(t, outcome.AllFailed())
}

func TestDispatch_BackpressureRejectsOverflow(t *testing.T) {
	b := &fakeBackend{name: "fake", hits: map[string][]backend.SearchHit{}}
	e := New(b, WithMaxQueue(1))

	outcome := e.Dispatch(context.Background(), variantsFor("a", "b", "c"), backend.Options{})
	require.Len(t, outcome.Failed, 2)
	for _, f := range outcome.Failed {
		assert.Equal(t, apierrors.KindBackpressure, apierrors.GetKind(f.Err))
	}
}

func TestDispatch_VariantTimeoutIsolatesSlowVariant(t *testing.T) {
	b := &fakeBackend{
		name:  "fake",
		delay: 50 * time.Millisecond,
		hits: map[string][]backend.SearchHit{
			"slow": {{DocID: "1"}},
		},
	}
	e := New(b, WithVariantTimeout(5*time.Millisecond))

	outcome := e.Dispatch(context.Background(), variantsFor("slow"), backend.Options{})
	require.Len(t, outcome.Failed, 1)
}

func TestDispatch_EmptyVariantsReturnsEmptyOutcome(t *testing.T) {
	b := &fakeBackend{name: "fake"}
	e := New(b)

	outcome := e.Dispatch(context.Background(), nil, backend.Options{})
	assert.Empty(t, outcome.Succeeded)
	assert.Empty(t, outcome.Failed)
	assert.False(t, outcome.AllFailed())
}

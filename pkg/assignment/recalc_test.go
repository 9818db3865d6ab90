package assignment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekou/sekou/pkg/model"
)

type recommendFunc func(ctx context.Context, ev model.Event) Result

func (f recommendFunc) Recommend(ctx context.Context, ev model.Event) Result {
	return f(ctx, ev)
}

func resultFor(id string) Result {
	return Result{
		Request:    Request{EventID: id},
		Source:     SourceService,
		Candidates: []Candidate{{WorkerID: id}},
	}
}

func TestRecalculator_LastRequestWins(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	firstCtxErr := make(chan error, 1)

	r := NewRecalculator(recommendFunc(func(ctx context.Context, ev model.Event) Result {
		if ev.ID == "first" {
			close(started)
			<-release
			firstCtxErr <- ctx.Err()
		}
		return resultFor(ev.ID)
	}))

	done := make(chan Outcome, 1)
	go func() {
		done <- r.Recalculate(context.Background(), model.Event{ID: "first"})
	}()
	<-started

	second := r.Recalculate(context.Background(), model.Event{ID: "second"})
	assert.False(t, second.Superseded)

	// 第一个响应在第二个之后到达
	close(release)
	first := <-done
	assert.True(t, first.Superseded)
	assert.ErrorIs(t, <-firstCtxErr, context.Canceled)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "second", latest.Request.EventID)
	assert.Equal(t, second.Seq, latest.Seq)
}

func TestRecalculator_OverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.EventID == "slow" {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
		writeJSON(w, map[string]interface{}{
			"success":     true,
			"assignments": []Candidate{{WorkerID: "for-" + req.EventID, Score: 70}},
		})
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	r := NewRecalculator(NewClient(cfg))

	done := make(chan Outcome, 1)
	go func() {
		done <- r.Recalculate(context.Background(), model.Event{ID: "slow"})
	}()
	time.Sleep(100 * time.Millisecond)

	fast := r.Recalculate(context.Background(), model.Event{ID: "fast"})
	require.False(t, fast.Superseded)
	assert.Equal(t, "for-fast", fast.Candidates[0].WorkerID)

	slow := <-done
	assert.True(t, slow.Superseded)

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "for-fast", latest.Candidates[0].WorkerID)
}

func TestRecalculator_NoResultYet(t *testing.T) {
	r := NewRecalculator(recommendFunc(func(ctx context.Context, ev model.Event) Result {
		return resultFor(ev.ID)
	}))
	_, ok := r.Latest()
	assert.False(t, ok)

	r.Recalculate(context.Background(), model.Event{ID: "a"})
	r.Recalculate(context.Background(), model.Event{ID: "b"})
	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, "b", latest.Request.EventID)
	assert.Equal(t, uint64(2), latest.Seq)
}

func TestRecalculatorSet(t *testing.T) {
	s := NewRecalculatorSet(recommendFunc(func(ctx context.Context, ev model.Event) Result {
		return resultFor(ev.ID)
	}))

	a := s.For("session-a")
	assert.Same(t, a, s.For("session-a"))
	assert.NotSame(t, a, s.For("session-b"))
	assert.Equal(t, 2, s.Len())

	s.Drop("session-a")
	assert.Equal(t, 1, s.Len())
	assert.NotSame(t, a, s.For("session-a"))
}

func TestRecalculatorSet_LookupAndPrune(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := NewRecalculatorSet(recommendFunc(func(ctx context.Context, ev model.Event) Result {
		return resultFor(ev.ID)
	}))
	s.now = func() time.Time { return now }

	t.Run("查找不存在的键不创建条目", func(t *testing.T) {
		_, ok := s.Lookup("unknown")
		assert.False(t, ok)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("清理长时间未使用的条目", func(t *testing.T) {
		s.For("old")
		now = now.Add(2 * time.Hour)
		s.For("fresh")

		assert.Equal(t, 1, s.PruneIdle(time.Hour))
		assert.Equal(t, 1, s.Len())
		_, ok := s.Lookup("old")
		assert.False(t, ok)
		r, ok := s.Lookup("fresh")
		require.True(t, ok)
		assert.NotNil(t, r)
	})
}

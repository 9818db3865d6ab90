package assignment

import (
	"context"
	"sync"
	"time"

	"github.com/sekou/sekou/pkg/model"
)

// Recommender 推荐来源
type Recommender interface {
	Recommend(ctx context.Context, ev model.Event) Result
}

// Outcome 一次重新计算的结果
type Outcome struct {
	Result
	Seq uint64 `json:"seq"`

	// Superseded 为 true 时说明期间有更新的请求，本结果没有被发布
	Superseded bool `json:"superseded"`
}

// Recalculator 保证「最后一次请求生效」
// 新的 Recalculate 会取消仍在进行中的上一次调用，较早的响应即使晚到也不会覆盖较新的结果
type Recalculator struct {
	source Recommender

	mu        sync.Mutex
	seq       uint64
	cancel    context.CancelFunc
	latest    Result
	latestSeq uint64
}

// NewRecalculator 创建重新计算器
func NewRecalculator(source Recommender) *Recalculator {
	return &Recalculator{source: source}
}

// Recalculate 发起一次推荐
func (r *Recalculator) Recalculate(ctx context.Context, ev model.Event) Outcome {
	ctx, cancel := context.WithCancel(ctx)

	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	seq := r.seq
	r.cancel = cancel
	r.mu.Unlock()

	res := r.source.Recommend(ctx, ev)

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq {
		cancel()
		return Outcome{Result: res, Seq: seq, Superseded: true}
	}
	r.latest = res
	r.latestSeq = seq
	r.cancel = nil
	cancel()
	return Outcome{Result: res, Seq: seq}
}

// Latest 返回最近发布的结果
func (r *Recalculator) Latest() (Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latestSeq == 0 {
		return Outcome{}, false
	}
	return Outcome{Result: r.latest, Seq: r.latestSeq}, true
}

// Cancel 取消进行中的请求（如弹窗关闭）
func (r *Recalculator) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.seq++
}

// RecalculatorSet 按键（会话）管理重新计算器
type RecalculatorSet struct {
	source Recommender
	now    func() time.Time

	mu    sync.Mutex
	items map[string]*setEntry
}

type setEntry struct {
	r    *Recalculator
	used time.Time
}

// NewRecalculatorSet 创建集合
func NewRecalculatorSet(source Recommender) *RecalculatorSet {
	return &RecalculatorSet{
		source: source,
		now:    time.Now,
		items:  make(map[string]*setEntry),
	}
}

// For 返回键对应的重新计算器，不存在时创建
func (s *RecalculatorSet) For(key string) *Recalculator {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		e = &setEntry{r: NewRecalculator(s.source)}
		s.items[key] = e
	}
	e.used = s.now()
	return e.r
}

// Lookup 只查找已有的重新计算器，不创建
func (s *RecalculatorSet) Lookup(key string) (*Recalculator, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, false
	}
	e.used = s.now()
	return e.r, true
}

// Drop 取消并移除键对应的重新计算器（登出或会话失效时调用）
func (s *RecalculatorSet) Drop(key string) {
	s.mu.Lock()
	e, ok := s.items[key]
	delete(s.items, key)
	s.mu.Unlock()
	if ok {
		e.r.Cancel()
	}
}

// PruneIdle 移除超过 idle 未使用的条目，返回移除数量
func (s *RecalculatorSet) PruneIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle)

	s.mu.Lock()
	stale := make([]*Recalculator, 0)
	for key, e := range s.items {
		if e.used.Before(cutoff) {
			stale = append(stale, e.r)
			delete(s.items, key)
		}
	}
	s.mu.Unlock()

	for _, r := range stale {
		r.Cancel()
	}
	return len(stale)
}

// Len 当前数量
func (s *RecalculatorSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

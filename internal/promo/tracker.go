// Package promo はプロモーション表示の「1回だけ表示」フラグを管理する。
package promo

import (
	"container/list"
	"sync"
	"time"
)

// DefaultCapacity は記録する訪問者数の既定の上限。
const DefaultCapacity = 100_000

// Tracker は訪問者ごとにプロモーションを表示済みかを記録する。
// プロセス起動時に1つ生成してハンドラーに注入する。状態はプロセス内にのみ保持し、
// 再起動かResetで初期化される。
// 記録数が上限に達すると最も古い記録から捨てるため、捨てられた訪問者には再表示されうる。
type Tracker struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // 記録時刻の古い順
	ttl      time.Duration
	capacity int
}

type entry struct {
	visitorID string
	shownAt   time.Time
}

// Option はTrackerのオプション。
type Option func(*Tracker)

// WithCapacity は記録する訪問者数の上限を設定する。0以下は既定値になる。
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// NewTracker はTrackerを生成する。ttlを過ぎた表示記録は再表示の対象になる。
// ttlが0以下の場合は記録を期限切れにしない。
func NewTracker(ttl time.Duration, opts ...Option) *Tracker {
	t := &Tracker{
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		ttl:      ttl,
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ShouldShow は訪問者にまだ表示していなければtrueを返し、表示済みとして記録する。
// 同じ訪問者の2回目以降はfalseを返す。
func (t *Tracker) ShouldShow(visitorID string) bool {
	if visitorID == "" {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if el, ok := t.entries[visitorID]; ok {
		e := el.Value.(*entry)
		if t.ttl <= 0 || now.Sub(e.shownAt) < t.ttl {
			return false
		}
		e.shownAt = now
		t.order.MoveToBack(el)
		return true
	}

	for t.order.Len() >= t.capacity {
		t.remove(t.order.Front())
	}
	t.entries[visitorID] = t.order.PushBack(&entry{visitorID: visitorID, shownAt: now})
	return true
}

func (t *Tracker) remove(el *list.Element) {
	t.order.Remove(el)
	delete(t.entries, el.Value.(*entry).visitorID)
}

// Reset は全ての表示記録を消去する。
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[string]*list.Element)
	t.order.Init()
}

// Cleanup は期限切れの記録を削除し、削除件数を返す。
func (t *Tracker) Cleanup() int {
	if t.ttl <= 0 {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	now := time.Now()
	for el := t.order.Front(); el != nil; el = t.order.Front() {
		if now.Sub(el.Value.(*entry).shownAt) < t.ttl {
			break
		}
		t.remove(el)
		n++
	}
	return n
}

// Len は記録中の訪問者数を返す。
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.order.Len()
}

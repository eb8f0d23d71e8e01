package media

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"media-artwork/internal/core/artwork"
	"media-artwork/internal/pkg/common"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull 請求隊列已滿
	ErrQueueFull = errors.New("session queue is full")
	// ErrSessionClosed 工作階段已關閉
	ErrSessionClosed = errors.New("session is closed")
	// ErrNoArtwork 處理器沒有產出圖片
	ErrNoArtwork = errors.New("artwork could not be processed")
)

// UseFunc 在處理 goroutine 上使用結果圖片，返回後圖片可能被回收
type UseFunc func(bitmap *artwork.Bitmap, cacheHit bool) error

type requestKind int

const (
	kindProcess requestKind = iota
	kindClear
	kindInvalidate
)

// request 隊列請求
type request struct {
	ctx      context.Context
	kind     requestKind
	trackKey string
	display  artwork.Dimensions
	artwork  *artwork.Bitmap
	use      UseFunc
	result   chan error
}

// Status 工作階段狀態
type Status struct {
	QueueLength int    `json:"queue_length"`
	MaxQueue    int    `json:"max_queue_size"`
	Processed   int64  `json:"processed_count"`
	Hits        int64  `json:"cache_hits"`
	Misses      int64  `json:"cache_misses"`
	Failures    int64  `json:"failures"`
	Clears      int64  `json:"clears"`
	TrackKey    string `json:"track_key,omitempty"`
	Cached      bool   `json:"cached"`
}

// Session 將 Processor 的所有呼叫限制在同一個 goroutine 上。
// 換曲（trackKey 改變）時先清除快取再處理。
type Session struct {
	processor *artwork.Processor
	logger    *zap.Logger

	queue     chan *request
	done      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once

	// 只在 worker 中讀寫
	trackKey string

	processed atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	failures  atomic.Int64
	clears    atomic.Int64

	mu       sync.RWMutex
	snapshot struct {
		trackKey string
		cached   bool
	}
}

// NewSession 創建工作階段並啟動處理 goroutine
func NewSession(processor *artwork.Processor, queueSize int, logger *zap.Logger) *Session {
	if queueSize <= 0 {
		queueSize = 1
	}
	if logger == nil {
		logger = common.L()
	}
	s := &Session{
		processor: processor,
		logger:    logger,
		queue:     make(chan *request, queueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go s.run()
	return s
}

// Process 處理藝術圖，use 在處理 goroutine 上執行
func (s *Session) Process(ctx context.Context, trackKey string, display artwork.Dimensions, art *artwork.Bitmap, use UseFunc) error {
	return s.enqueue(&request{
		ctx:      ctx,
		kind:     kindProcess,
		trackKey: trackKey,
		display:  display,
		artwork:  art,
		use:      use,
	})
}

// Clear 清除快取
func (s *Session) Clear(ctx context.Context) error {
	return s.enqueue(&request{ctx: ctx, kind: kindClear})
}

// Invalidate 通知換曲，trackKey 與目前相同時忽略，空字串視為強制清除
func (s *Session) Invalidate(ctx context.Context, trackKey string) error {
	return s.enqueue(&request{ctx: ctx, kind: kindInvalidate, trackKey: trackKey})
}

// enqueue 將請求加入隊列並等待結果
func (s *Session) enqueue(req *request) error {
	req.result = make(chan error, 1)

	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	// 已取消的請求不進入隊列
	if err := req.ctx.Err(); err != nil {
		return err
	}

	select {
	case s.queue <- req:
	case <-req.ctx.Done():
		return req.ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrQueueFull
	}

	select {
	case err := <-req.result:
		return err
	case <-req.ctx.Done():
		return req.ctx.Err()
	case <-s.stopped:
		// worker 可能在退出前已處理完
		select {
		case err := <-req.result:
			return err
		default:
			return ErrSessionClosed
		}
	}
}

// run 處理 goroutine
func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.queue:
			s.handle(req)
		case <-s.done:
			s.drain()
			s.processor.ClearCache()
			s.publish()
			return
		}
	}
}

// drain 關閉時拒絕隊列中剩餘的請求
func (s *Session) drain() {
	for {
		select {
		case req := <-s.queue:
			req.result <- ErrSessionClosed
		default:
			return
		}
	}
}

func (s *Session) handle(req *request) {
	if err := req.ctx.Err(); err != nil {
		req.result <- err
		return
	}

	var err error
	switch req.kind {
	case kindProcess:
		err = s.process(req)
	case kindClear:
		s.clear("explicit")
	case kindInvalidate:
		if req.trackKey == "" || req.trackKey != s.trackKey {
			s.clear("track changed")
		}
	}
	s.processed.Add(1)
	s.publish()
	req.result <- err
}

func (s *Session) process(req *request) error {
	if req.trackKey != s.trackKey {
		if _, ok := s.processor.Cached(); ok {
			s.clear("track changed")
		}
		s.trackKey = req.trackKey
	}

	_, hit := s.processor.Cached()
	bitmap := s.processor.ProcessArtwork(req.display, req.artwork)
	if bitmap == nil {
		s.failures.Add(1)
		return ErrNoArtwork
	}

	if hit {
		s.hits.Add(1)
		common.LogCacheHit("artwork", zap.String("track_key", req.trackKey))
	} else {
		s.misses.Add(1)
		common.LogCacheMiss("artwork", zap.String("track_key", req.trackKey))
	}

	if req.use == nil {
		return nil
	}
	return req.use(bitmap, hit)
}

func (s *Session) clear(reason string) {
	s.processor.ClearCache()
	s.clears.Add(1)
	s.logger.Debug("Artwork cache cleared",
		zap.String("reason", reason),
		zap.String("track_key", s.trackKey),
	)
}

// publish 更新供 Status 讀取的快照
func (s *Session) publish() {
	_, cached := s.processor.Cached()
	s.mu.Lock()
	s.snapshot.trackKey = s.trackKey
	s.snapshot.cached = cached
	s.mu.Unlock()
}

// Status 獲取工作階段狀態
func (s *Session) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Status{
		QueueLength: len(s.queue),
		MaxQueue:    cap(s.queue),
		Processed:   s.processed.Load(),
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Failures:    s.failures.Load(),
		Clears:      s.clears.Load(),
		TrackKey:    s.snapshot.trackKey,
		Cached:      s.snapshot.cached,
	}
}

// Close 停止處理 goroutine 並釋放快取
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	<-s.stopped
}

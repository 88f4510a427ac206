package cache

import (
	"container/list"
	"sync"
	"time"
)

type LRUOpts struct {
	Size int
}

type entry struct {
	key       string
	val       any
	expiresAt time.Time // zero means no expiry
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type getReq struct {
	key  string
	resp chan getResp
}

type getResp struct {
	val any
	ok  bool
}

type putReq struct {
	key  string
	val  any
	opts []PutOption
}

type LRU struct {
	getCh  chan getReq
	putCh  chan putReq
	delCh  chan string
	stopCh chan struct{}
	once   sync.Once
}

func (L *LRU) Get(key string) (any, bool) {
	resp := make(chan getResp, 1)
	select {
	case L.getCh <- getReq{key: key, resp: resp}:
	case <-L.stopCh:
		return nil, false
	}
	select {
	case r := <-resp:
		return r.val, r.ok
	case <-L.stopCh:
		return nil, false
	}
}

func (L *LRU) Put(key string, val any, opts ...PutOption) {
	select {
	case L.putCh <- putReq{key: key, val: val, opts: opts}:
	case <-L.stopCh:
	}
}

func (L *LRU) Delete(key string) {
	select {
	case L.delCh <- key:
	case <-L.stopCh:
	}
}

// Close stops the background goroutine. Operations after Close are no-ops.
func (L *LRU) Close() {
	L.once.Do(func() { close(L.stopCh) })
}

func NewLRU(opts LRUOpts) *LRU {
	if opts.Size <= 0 {
		opts.Size = 128
	}

	l := &LRU{
		getCh:  make(chan getReq),
		putCh:  make(chan putReq),
		delCh:  make(chan string),
		stopCh: make(chan struct{}),
	}

	go l.run(opts.Size)

	return l
}

func (L *LRU) run(size int) {
	ll := list.New()
	cache := make(map[string]*list.Element)

	remove := func(ele *list.Element) {
		ll.Remove(ele)
		delete(cache, ele.Value.(*entry).key)
	}

	for {
		select {
		case <-L.stopCh:
			return
		case req := <-L.getCh:
			ele, ok := cache[req.key]
			if !ok {
				req.resp <- getResp{ok: false}
				continue
			}
			if ele.Value.(*entry).expired(time.Now()) {
				remove(ele)
				req.resp <- getResp{ok: false}
				continue
			}
			ll.MoveToFront(ele)
			req.resp <- getResp{val: ele.Value.(*entry).val, ok: true}
		case req := <-L.putCh:
			var po PutOptions
			for _, o := range req.opts {
				o(&po)
			}
			var expiresAt time.Time
			if po.TTL > 0 {
				expiresAt = time.Now().Add(po.TTL)
			}
			if ele, ok := cache[req.key]; ok {
				ll.MoveToFront(ele)
				e := ele.Value.(*entry)
				e.val = req.val
				e.expiresAt = expiresAt
			} else {
				ele := ll.PushFront(&entry{key: req.key, val: req.val, expiresAt: expiresAt})
				cache[req.key] = ele
				if ll.Len() > size {
					last := ll.Back()
					if last != nil {
						remove(last)
					}
				}
			}
		case key := <-L.delCh:
			if ele, ok := cache[key]; ok {
				remove(ele)
			}
		}
	}
}

var _ Cache = (*LRU)(nil)

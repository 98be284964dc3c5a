package chat

import "sync"

// quotaLocks 按 用户+会话类型 串行化额度检查与写入，确保同一进程内并发发送不会超出每日额度。
type quotaLocks struct {
	mu    sync.Mutex
	locks map[string]*quotaLock
}

type quotaLock struct {
	sync.Mutex
	refs int
}

// lock 获取 key 对应的锁，返回释放函数。无人持有的锁会被回收。
func (q *quotaLocks) lock(key string) func() {
	q.mu.Lock()
	if q.locks == nil {
		q.locks = make(map[string]*quotaLock)
	}
	l, ok := q.locks[key]
	if !ok {
		l = &quotaLock{}
		q.locks[key] = l
	}
	l.refs++
	q.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		q.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(q.locks, key)
		}
		q.mu.Unlock()
	}
}

func (q *quotaLocks) size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.locks)
}

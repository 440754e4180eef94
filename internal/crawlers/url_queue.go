package crawlers

import (
	"sync"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

// URLQueue URL队列管理器
// 职责: 维护先进先出的待爬队列和已访问集合,并发安全
type URLQueue struct {
	// 待处理URL队列(FIFO)
	pending []models.URLItem

	// 已入队URL集合,避免同一URL重复排队
	queued map[string]bool

	// 已访问URL标记集合
	visited map[string]bool

	mu sync.Mutex
}

// NewURLQueue 创建URL队列实例
func NewURLQueue() *URLQueue {
	return &URLQueue{
		queued:  make(map[string]bool),
		visited: make(map[string]bool),
	}
}

// Push 添加URL到待爬队列
// 已访问或已在队列中的URL被忽略,返回是否实际入队
func (q *URLQueue) Push(item models.URLItem) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.visited[item.URL] || q.queued[item.URL] {
		return false
	}
	q.queued[item.URL] = true
	q.pending = append(q.pending, item)
	return true
}

func (q *URLQueue) popLocked() (models.URLItem, bool) {
	if len(q.pending) == 0 {
		return models.URLItem{}, false
	}
	item := q.pending[0]
	q.pending[0] = models.URLItem{}
	q.pending = q.pending[1:]
	delete(q.queued, item.URL)
	return item, true
}

// NextBatch 依次出队最多n个未访问URL,并在同一临界区内标记为已访问
// 已访问的URL直接丢弃,不计入批次
func (q *URLQueue) NextBatch(n int) []models.URLItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	batch := make([]models.URLItem, 0, n)
	for len(batch) < n {
		item, ok := q.popLocked()
		if !ok {
			break
		}
		if q.visited[item.URL] {
			continue
		}
		q.visited[item.URL] = true
		batch = append(batch, item)
	}
	return batch
}

// IsVisited 检查URL是否已访问
func (q *URLQueue) IsVisited(url string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.visited[url]
}

// PendingCount 返回当前待处理URL数量
func (q *URLQueue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// VisitedCount 返回已访问URL数量
func (q *URLQueue) VisitedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.visited)
}

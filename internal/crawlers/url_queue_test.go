package crawlers

import (
	"sync"
	"testing"

	"github.com/RecoveryAshes/CSPcrawl/internal/models"
)

func TestURLQueue_FIFO(t *testing.T) {
	q := NewURLQueue()
	for _, u := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"} {
		if !q.Push(models.URLItem{URL: u}) {
			t.Fatalf("Push(%s) 应成功", u)
		}
	}

	if q.Push(models.URLItem{URL: "https://a.com/2"}) {
		t.Error("重复入队应被忽略")
	}
	if q.PendingCount() != 3 {
		t.Errorf("PendingCount() = %d, want 3", q.PendingCount())
	}

	for _, want := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"} {
		batch := q.NextBatch(1)
		if len(batch) != 1 || batch[0].URL != want {
			t.Errorf("NextBatch(1) = %v, want %s", batch, want)
		}
	}
	if batch := q.NextBatch(1); len(batch) != 0 {
		t.Errorf("空队列 NextBatch() = %v", batch)
	}
}

func TestURLQueue_Visited(t *testing.T) {
	q := NewURLQueue()
	q.Push(models.URLItem{URL: "https://a.com/"})
	q.NextBatch(1)

	if !q.IsVisited("https://a.com/") {
		t.Error("IsVisited() 应为 true")
	}
	if q.Push(models.URLItem{URL: "https://a.com/"}) {
		t.Error("已访问URL不应入队")
	}
	if q.VisitedCount() != 1 {
		t.Errorf("VisitedCount() = %d, want 1", q.VisitedCount())
	}
}

func TestURLQueue_NextBatch(t *testing.T) {
	q := NewURLQueue()
	for _, u := range []string{"https://a.com/1", "https://a.com/2", "https://a.com/3"} {
		q.Push(models.URLItem{URL: u, Depth: 1})
	}

	batch := q.NextBatch(2)
	if len(batch) != 2 || batch[0].URL != "https://a.com/1" || batch[1].URL != "https://a.com/2" {
		t.Fatalf("NextBatch(2) = %v", batch)
	}
	if !q.IsVisited("https://a.com/1") || !q.IsVisited("https://a.com/2") {
		t.Error("批次中的URL应已标记访问")
	}

	// 出队后可重新入队,但出批次时会被丢弃
	q.Push(models.URLItem{URL: "https://a.com/4"})
	batch = q.NextBatch(5)
	if len(batch) != 2 {
		t.Errorf("NextBatch(5) 长度 = %d, want 2", len(batch))
	}
	if q.PendingCount() != 0 {
		t.Errorf("PendingCount() = %d, want 0", q.PendingCount())
	}
}

func TestURLQueue_Concurrent(t *testing.T) {
	q := NewURLQueue()
	pushAll := func() {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					q.Push(models.URLItem{URL: "https://a.com/same"})
					q.Push(models.URLItem{URL: "https://a.com/other"})
				}
			}()
		}
		wg.Wait()
	}

	pushAll()
	if q.PendingCount() != 2 {
		t.Errorf("PendingCount() = %d, want 2", q.PendingCount())
	}

	var wg sync.WaitGroup
	batches := make([][]models.URLItem, 4)
	for i := range batches {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batches[i] = q.NextBatch(1)
		}()
	}
	wg.Wait()

	total := 0
	for _, b := range batches {
		total += len(b)
	}
	if total != 2 || q.VisitedCount() != 2 {
		t.Errorf("出队总数 = %d, VisitedCount() = %d, want 2", total, q.VisitedCount())
	}

	pushAll()
	if q.PendingCount() != 0 {
		t.Errorf("已访问URL不应再入队, PendingCount() = %d", q.PendingCount())
	}
}

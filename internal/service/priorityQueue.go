package service

import (
	"time"
)

// cacheEntry это элемент кучи (партнёр и время последнего обращения)
type cacheEntry struct {
	name     string
	id       int64
	lastUsed time.Time
	index    int // индекс в куче, нужен для heap.Fix
}

// lruHeap реализует heap.Interface; на вершине самый давно использованный партнёр
type lruHeap []*cacheEntry

func (h *lruHeap) Len() int { return len(*h) }

func (h *lruHeap) Less(i, j int) bool {
	return (*h)[i].lastUsed.Before((*h)[j].lastUsed)
}

func (h *lruHeap) Swap(i, j int) {
	(*h)[i], (*h)[j] = (*h)[j], (*h)[i]
	(*h)[i].index = i
	(*h)[j].index = j
}

func (h *lruHeap) Push(x any) {
	e := x.(*cacheEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *lruHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil // избегаем утечки памяти
	e.index = -1
	*h = old[:n-1]
	return e
}

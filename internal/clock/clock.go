// Package clock абстрагирует текущее время, чтобы временные проверки
// можно было детерминированно тестировать.
package clock

import (
	"sync"
	"time"
)

// Clock возвращает текущее время.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Real возвращает системные часы.
func Real() Clock { return realClock{} }

// FakeClock - часы для тестов, время меняется только через Set и Advance.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// Fake возвращает FakeClock, установленные на initial.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{current: initial}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set переставляет часы на t.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance сдвигает часы на d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

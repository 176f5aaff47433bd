package service

import (
	"sync"
	"time"

	"focus-tasks/internal/model"
)

// UndoSlot holds the most recently deleted task for a bounded window.
// Holding a new task discards the previous one.
type UndoSlot struct {
	mu     sync.Mutex
	window time.Duration
	task   *model.Task
	timer  *time.Timer
	gen    uint64
}

func NewUndoSlot(window time.Duration) *UndoSlot {
	return &UndoSlot{window: window}
}

// Hold parks task until the window expires or Take is called.
func (u *UndoSlot) Hold(task model.Task) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.stopLocked()
	held := task.Clone()
	u.task = &held
	u.gen++
	gen := u.gen
	u.timer = time.AfterFunc(u.window, func() {
		u.mu.Lock()
		defer u.mu.Unlock()
		if u.gen == gen {
			u.task = nil
			u.timer = nil
		}
	})
}

// Take empties the slot and returns its task, if it has not expired yet.
func (u *UndoSlot) Take() (model.Task, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.task == nil {
		return model.Task{}, false
	}
	task := *u.task
	u.stopLocked()
	u.task = nil
	u.gen++
	return task, true
}

// Stop discards the slot and its timer.
func (u *UndoSlot) Stop() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.stopLocked()
	u.task = nil
	u.gen++
}

func (u *UndoSlot) stopLocked() {
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package splash

import (
	"sync"
	"time"
)

// ticker calls fn every interval until stopped.
type ticker struct {
	quit chan struct{}
	wg   sync.WaitGroup
}

func startTicker(interval time.Duration, fn func()) *ticker {
	t := &ticker{quit: make(chan struct{})}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		tk := time.NewTicker(interval)
		defer tk.Stop()
		for {
			select {
			case <-t.quit:
				return
			case <-tk.C:
				fn()
			}
		}
	}()
	return t
}

// stop halts the ticker and waits for a running fn to return.
func (t *ticker) stop() {
	close(t.quit)
	t.wg.Wait()
}

// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package event

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(4)
	q.Push(RefreshRateChanged{Rate: 90})
	q.Push(IPDChanged{IPD: 0.064})
	q.Push(FrustumChanged{})

	var got []Event
	n := q.Drain(func(e Event) { got = append(got, e) })
	require.Equal(t, 3, n)
	assert.Equal(t, []Event{RefreshRateChanged{Rate: 90}, IPDChanged{IPD: 0.064}, FrustumChanged{}}, got)
	assert.Zero(t, q.Len())
}

func TestQueueDropsOldest(t *testing.T) {
	q := NewQueue(2)
	assert.False(t, q.Push(FoveationLevelChanged{Level: 1}))
	assert.False(t, q.Push(FoveationLevelChanged{Level: 2}))
	assert.True(t, q.Push(FoveationLevelChanged{Level: 3}))

	var levels []int
	q.Drain(func(e Event) { levels = append(levels, e.(FoveationLevelChanged).Level) })
	assert.Equal(t, []int{2, 3}, levels)
	assert.Equal(t, uint64(1), q.Dropped())
}

func TestQueueWrapAround(t *testing.T) {
	q := NewQueue(3)
	for round := range 5 {
		q.Push(TargetFrameRateChanged{Rate: float32(round)})
		q.Push(TargetFrameRateChanged{Rate: float32(round) + 0.5})
		var got []float32
		q.Drain(func(e Event) { got = append(got, e.(TargetFrameRateChanged).Rate) })
		assert.Equal(t, []float32{float32(round), float32(round) + 0.5}, got)
	}
	assert.Zero(t, q.Dropped())
}

func TestQueueIgnoresNil(t *testing.T) {
	q := NewQueue(0)
	q.Push(nil)
	assert.Zero(t, q.Len())
}

func TestQueueConcurrentPush(t *testing.T) {
	q := NewQueue(1024)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				q.Push(FrustumChanged{})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 800, q.Len())
}

func TestEventStrings(t *testing.T) {
	events := []Event{
		SessionStateChanged{State: SessionReady},
		SeeThroughStateChanged{State: 1},
		FoveationLevelChanged{Level: 2},
		FrustumChanged{},
		RenderTextureChanged{Width: 1920, Height: 1920},
		TargetFrameRateChanged{Rate: 72},
		IPDChanged{IPD: 0.063},
		MRCStatusChanged{Enabled: true},
		RefreshRateChanged{Rate: 90},
		InputFocusChanged{Focused: true},
		SettingsChanged{},
	}
	for _, e := range events {
		assert.NotEmpty(t, e.String())
	}
	assert.Equal(t, "SessionState(9)", SessionState(9).String())
}

func TestQueuePop(t *testing.T) {
	q := NewQueue(2)
	_, ok := q.Pop()
	assert.False(t, ok)

	q.Push(InputFocusChanged{Focused: true})
	q.Push(MRCStatusChanged{Enabled: true})
	q.Push(FrustumChanged{})

	e, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, MRCStatusChanged{Enabled: true}, e)
	e, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, FrustumChanged{}, e)
	_, ok = q.Pop()
	assert.False(t, ok)
}

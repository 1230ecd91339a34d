package app

import (
	"sort"
	"sync"
	"time"

	"quiz-pipeline-service/internal/domain"
)

const subscriberBuffer = 8

// LeaderboardHub fans leaderboard snapshots out to subscribers.
type LeaderboardHub struct {
	now func() time.Time

	mu          sync.Mutex
	latest      domain.Leaderboard
	subscribers map[chan domain.Leaderboard]struct{}
}

func NewLeaderboardHub() *LeaderboardHub {
	return newLeaderboardHubWithClock(time.Now)
}

func newLeaderboardHubWithClock(now func() time.Time) *LeaderboardHub {
	return &LeaderboardHub{
		now:         now,
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Subscribe returns a channel primed with the latest snapshot. The caller
// must invoke cancel to release it; cancel is safe to call twice.
func (h *LeaderboardHub) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, subscriberBuffer)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	ch <- h.latest
	h.mu.Unlock()

	return ch, func() { h.unsubscribe(ch) }
}

func (h *LeaderboardHub) unsubscribe(ch chan domain.Leaderboard) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subscribers[ch]; !ok {
		return
	}
	delete(h.subscribers, ch)
	close(ch)
}

// Publish ranks users and broadcasts the snapshot. A subscriber that has
// fallen behind loses its oldest pending snapshot.
func (h *LeaderboardHub) Publish(users []domain.UserProfile) domain.Leaderboard {
	lb := rank(users, h.now())

	h.mu.Lock()
	defer h.mu.Unlock()
	h.latest = lb
	for ch := range h.subscribers {
		select {
		case ch <- lb:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

// Latest is the last published snapshot.
func (h *LeaderboardHub) Latest() domain.Leaderboard {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest
}

// rank orders by points, then by who registered first, then by name.
func rank(users []domain.UserProfile, now time.Time) domain.Leaderboard {
	sorted := append([]domain.UserProfile(nil), users...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Points != sorted[j].Points {
			return sorted[i].Points > sorted[j].Points
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].Name < sorted[j].Name
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for i, u := range sorted {
		entries = append(entries, domain.LeaderboardEntry{
			Rank:   i + 1,
			UserID: u.UserID,
			Name:   u.Name,
			Points: u.Points,
			Level:  u.Level,
		})
	}
	return domain.Leaderboard{Entries: entries, UpdatedAt: now}
}

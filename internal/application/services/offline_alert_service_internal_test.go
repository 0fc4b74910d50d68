package services

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOfflineAlertService_ReserveSweepsExpiredKeys(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	s := NewOfflineAlertService(nil, nil, nil, OfflineAlertOptions{Cooldown: time.Minute})
	s.now = func() time.Time { return now }

	assert.True(t, s.reserve("ana:c1"))
	assert.True(t, s.reserve("bruno:c2"))
	assert.False(t, s.reserve("ana:c1"))

	now = now.Add(40 * time.Second)
	assert.True(t, s.reserve("carla:c3"))
	assert.Len(t, s.lastSent, 3)

	now = now.Add(30 * time.Second)
	assert.True(t, s.reserve("ana:c1"))
	assert.Equal(t, []string{"ana:c1", "carla:c3"}, sortedKeys(s.lastSent))
	assert.False(t, s.reserve("carla:c3"))
}

func TestOfflineAlertService_NoCooldownKeepsNothing(t *testing.T) {
	s := NewOfflineAlertService(nil, nil, nil, OfflineAlertOptions{})

	assert.True(t, s.reserve("ana:c1"))
	assert.True(t, s.reserve("ana:c1"))
	assert.Empty(t, s.lastSent)
}

func sortedKeys(m map[string]time.Time) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDateOf_TruncatesToCalendarDay(t *testing.T) {
	ts := time.Date(2024, 1, 2, 23, 59, 59, 0, time.Local)
	assert.Equal(t, Date("2024-01-02"), DateOf(ts))
}

func TestDate_AddDays(t *testing.T) {
	d := Date("2024-01-30")
	assert.Equal(t, Date("2024-02-01"), d.AddDays(2))
	assert.Equal(t, Date("2024-01-29"), d.AddDays(-1))
	// Month and year rollover.
	assert.Equal(t, Date("2025-01-04"), Date("2024-12-30").AddDays(5))
}

func TestDate_Ordering(t *testing.T) {
	a := Date("2024-01-01")
	b := Date("2024-01-02")

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.OnOrBefore(a))
	assert.True(t, a.OnOrBefore(b))
	assert.False(t, b.OnOrBefore(a))
}

func TestParseDate_RejectsGarbage(t *testing.T) {
	_, err := ParseDate("01/02/2024")
	require.Error(t, err)

	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, Date("2024-02-29"), d)
}

func TestNormalizeTags(t *testing.T) {
	tags := NormalizeTags([]string{
		"geography/europe",
		"  history ",
		"geography/europe",
		"",
		"/languages/spanish/",
	})

	assert.Equal(t, []string{"geography/europe", "history", "languages/spanish"}, tags)
}

func TestCard_HasTag_MatchesHierarchy(t *testing.T) {
	card := &Card{Tags: []string{"geography/europe/capitals"}}

	assert.True(t, card.HasTag("geography/europe/capitals"))
	assert.True(t, card.HasTag("geography"))
	assert.True(t, card.HasTag("geography/europe"))
	assert.False(t, card.HasTag("geo"))
	assert.False(t, card.HasTag("history"))
}

func TestNewReviewState_StartsInactive(t *testing.T) {
	state := NewReviewState("card-1")

	assert.Equal(t, BoxInactive, state.Box)
	assert.True(t, state.DueDate.IsZero())
	assert.False(t, state.IsLearned)
	assert.Nil(t, state.LearnedAt)
	assert.False(t, state.UpdatedAt.IsZero())
}

func TestCompareByUpdatedAt(t *testing.T) {
	now := time.Now()

	assert.Equal(t, LocalWins, CompareByUpdatedAt(now.Add(time.Second), now))
	assert.Equal(t, RemoteWins, CompareByUpdatedAt(now, now.Add(time.Second)))
	assert.Equal(t, Equal, CompareByUpdatedAt(now, now))
}

func TestSettings_IntervalForBox_FallsBackToDefaults(t *testing.T) {
	s := &Settings{BoxIntervalDays: map[int]int{2: 5}}

	assert.Equal(t, 5, s.IntervalForBox(2))
	// Missing entries fall back to the default table.
	assert.Equal(t, DefaultSettings().BoxIntervalDays[4], s.IntervalForBox(4))
}

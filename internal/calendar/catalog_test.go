package calendar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCatalogBuiltins(t *testing.T) {
	c := NewCatalog()

	require.Len(t, c.All(), 4)

	tpl, ok := c.Get("office_hours")
	require.True(t, ok)
	require.Equal(t, TypeOfficeHours, tpl.EventType)
	require.NotNil(t, tpl.Recurrence)
	require.Equal(t, []int{4}, tpl.Recurrence.DaysOfWeek)

	tpl, ok = c.Get("coaching")
	require.True(t, ok)
	require.Nil(t, tpl.Recurrence)

	_, ok = c.Get("retreat")
	require.False(t, ok)
}

func TestCatalogAllSortedByKey(t *testing.T) {
	all := NewCatalog().All()
	for i := 1; i < len(all); i++ {
		require.Less(t, all[i-1].Key, all[i].Key)
	}
}

func TestNewCatalogWithDir(t *testing.T) {
	dir := t.TempDir()
	tpl := `
key: standup
title: Daily Standup
description: Quick sync
event_type: community_call
duration_minutes: 15
meeting_provider: google_meet
recurrence:
  frequency: daily
  interval: 1
  end_type: never
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "standup.yaml"), []byte(tpl), 0o644))

	// Overriding a built-in by key replaces it.
	override := `
key: coaching
title: One-on-One Coaching
event_type: coaching
duration_minutes: 30
meeting_provider: zoom
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "coaching.yaml"), []byte(override), 0o644))

	c, err := NewCatalogWithDir(dir)
	require.NoError(t, err)
	require.Len(t, c.All(), 5)

	standup, ok := c.Get("standup")
	require.True(t, ok)
	require.Equal(t, 15, standup.DurationMinutes)
	require.Equal(t, FreqDaily, standup.Recurrence.Frequency)

	coaching, ok := c.Get("coaching")
	require.True(t, ok)
	require.Equal(t, 30, coaching.DurationMinutes)
}

func TestNewCatalogWithDir_MissingDirIsValid(t *testing.T) {
	c, err := NewCatalogWithDir(filepath.Join(t.TempDir(), "nope"))
	require.NoError(t, err)
	require.Len(t, c.All(), 4)
}

func TestNewCatalogWithDir_RejectsKeylessTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("title: No Key"), 0o644))

	_, err := NewCatalogWithDir(dir)
	require.Error(t, err)
}

package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{"", RangeToday, false},
		{"today", RangeToday, false},
		{" Week ", RangeWeek, false},
		{"upcoming", RangeUpcoming, false},
		{"month", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRange(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.False(t, RangeToday.Grouped())
	assert.True(t, RangeWeek.Grouped())
	assert.True(t, RangeUpcoming.Grouped())
}

func TestNewSnapshot(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	t.Run("TodayIsUngrouped", func(t *testing.T) {
		p := &Payload{
			Date:   "Monday, October 19",
			Events: []Event{{Summary: "Standup", StartTime: "2026-10-19T09:00:00Z", TimeRange: "09:00 - 09:15"}},
			EventsByDate: []DateGroup{
				{Date: "Monday, October 19", Events: []Event{{Summary: "Standup"}}},
			},
		}
		s := NewSnapshot(RangeToday, p, time.UTC, now)
		assert.Equal(t, RangeToday, s.Range)
		assert.Nil(t, s.Groups)
		assert.Len(t, s.Events, 1)
		assert.Equal(t, now, s.FetchedAt)
	})

	t.Run("WeekUsesPayloadGroups", func(t *testing.T) {
		p := &Payload{
			Date: "Week of October 19",
			EventsByDate: []DateGroup{
				{Date: "Tuesday, October 20", Events: []Event{{Summary: "B"}}},
				{Date: "Monday, October 19", Events: []Event{{Summary: "A"}}},
			},
		}
		s := NewSnapshot(RangeWeek, p, time.UTC, now)
		require.Len(t, s.Groups, 2)
		assert.Equal(t, "Tuesday, October 20", s.Groups[0].Date)
		assert.Equal(t, "Monday, October 19", s.Groups[1].Date)
		assert.Equal(t, []Event{{Summary: "B"}, {Summary: "A"}}, s.Events)
		assert.False(t, s.Empty())
	})

	t.Run("WeekGroupsClientSide", func(t *testing.T) {
		p := &Payload{
			Date: "Week of October 19",
			Events: []Event{
				{Summary: "A", StartTime: "2026-10-19T09:00:00Z"},
				{Summary: "B", StartTime: "2026-10-20T10:00:00Z"},
				{Summary: "C", StartTime: "2026-10-19T15:00:00Z"},
				{Summary: "Offsite", StartTime: "2026-10-21"},
				{Summary: "Mystery", StartTime: "soon"},
			},
		}
		s := NewSnapshot(RangeWeek, p, time.UTC, now)
		require.Len(t, s.Groups, 4)
		assert.Equal(t, "Monday, October 19", s.Groups[0].Date)
		assert.Equal(t, []string{"A", "C"}, summaries(s.Groups[0].Events))
		assert.Equal(t, "Tuesday, October 20", s.Groups[1].Date)
		assert.Equal(t, "Wednesday, October 21", s.Groups[2].Date)
		assert.Equal(t, "Other", s.Groups[3].Date)
	})

	t.Run("Empty", func(t *testing.T) {
		s := NewSnapshot(RangeUpcoming, &Payload{Date: "Upcoming"}, time.UTC, now)
		assert.True(t, s.Empty())
		assert.True(t, (*Snapshot)(nil).Empty())
	})
}

func TestEventPayloadStartTime(t *testing.T) {
	loc := time.FixedZone("PDT", -7*3600)

	ev := EventPayload{Summary: "Lunch", Start: EventTime{DateTime: "2026-10-19T12:30:00-07:00"}}
	start, allDay, err := ev.StartTime(loc)
	require.NoError(t, err)
	assert.False(t, allDay)
	assert.Equal(t, 12, start.In(loc).Hour())

	ev = EventPayload{Summary: "Holiday", Start: EventTime{Date: "2026-10-19"}}
	_, allDay, err = ev.StartTime(loc)
	require.NoError(t, err)
	assert.True(t, allDay)

	_, _, err = EventPayload{Summary: "Nothing"}.StartTime(loc)
	assert.Error(t, err)
}

func summaries(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Summary
	}
	return out
}

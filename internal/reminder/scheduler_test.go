package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailySpec(t *testing.T) {
	spec, err := dailySpec("08:30")
	require.NoError(t, err)
	assert.Equal(t, "0 30 8 * * *", spec)

	spec, err = dailySpec(" 0:05 ")
	require.NoError(t, err)
	assert.Equal(t, "0 5 0 * * *", spec)

	for _, bad := range []string{"", "8", "24:00", "12:60", "ab:cd", "1:2:3"} {
		_, err := dailySpec(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchedulerRegistersJobs(t *testing.T) {
	s := NewScheduler(time.UTC)
	_, err := s.ScheduleDaily("07:00", func() {})
	require.NoError(t, err)
	_, err = s.ScheduleDaily("19:30", func() {})
	require.NoError(t, err)
	_, err = s.ScheduleDaily("7am", func() {})
	assert.Error(t, err)
	assert.Len(t, s.Entries(), 2)

	s.Start()
	s.Stop()
}

package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntegrationTokenExpired(t *testing.T) {
	skew := 30 * time.Second

	t.Run("no expiry means expired", func(t *testing.T) {
		i := &Integration{}
		assert.True(t, i.TokenExpired(skew))
	})

	t.Run("future expiry", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		i := &Integration{TokenExpiry: &future}
		assert.False(t, i.TokenExpired(skew))
	})

	t.Run("expiry inside the skew window counts as expired", func(t *testing.T) {
		soon := time.Now().Add(10 * time.Second)
		i := &Integration{TokenExpiry: &soon}
		assert.True(t, i.TokenExpired(skew))
	})

	t.Run("past expiry", func(t *testing.T) {
		past := time.Now().Add(-time.Hour)
		i := &Integration{TokenExpiry: &past}
		assert.True(t, i.TokenExpired(skew))
	})
}

func TestIntegrationWatchActive(t *testing.T) {
	future := time.Now().Add(time.Hour)
	past := time.Now().Add(-time.Hour)

	assert.False(t, (&Integration{}).WatchActive())
	assert.False(t, (&Integration{WatchChannelID: "c"}).WatchActive())
	assert.False(t, (&Integration{WatchChannelID: "c", WatchExpiration: &past}).WatchActive())
	assert.True(t, (&Integration{WatchChannelID: "c", WatchExpiration: &future}).WatchActive())
}

func TestIntegrationWatchNeedsRenewal(t *testing.T) {
	window := 24 * time.Hour

	soon := time.Now().Add(12 * time.Hour)
	later := time.Now().Add(48 * time.Hour)

	assert.False(t, (&Integration{}).WatchNeedsRenewal(window))
	assert.True(t, (&Integration{WatchChannelID: "c", WatchExpiration: &soon}).WatchNeedsRenewal(window))
	assert.False(t, (&Integration{WatchChannelID: "c", WatchExpiration: &later}).WatchNeedsRenewal(window))
}

func TestJobOverlaps(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	job := &Job{StartTime: base, EndTime: base.Add(2 * time.Hour)}

	assert.True(t, job.Overlaps(base.Add(time.Hour), base.Add(3*time.Hour)))
	assert.True(t, job.Overlaps(base.Add(-time.Hour), base.Add(time.Hour)))
	assert.True(t, job.Overlaps(base.Add(-time.Hour), base.Add(3*time.Hour)))
	// Half-open intervals: touching edges do not overlap
	assert.False(t, job.Overlaps(base.Add(2*time.Hour), base.Add(3*time.Hour)))
	assert.False(t, job.Overlaps(base.Add(-time.Hour), base))
}

func TestJobValidate(t *testing.T) {
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	valid := &Job{
		Title:     "Boiler service",
		StartTime: base,
		EndTime:   base.Add(time.Hour),
		Status:    JOB_STATUS_SCHEDULED,
	}
	assert.NoError(t, valid.Validate())

	endBeforeStart := &Job{
		Title:     "Boiler service",
		StartTime: base,
		EndTime:   base.Add(-time.Hour),
		Status:    JOB_STATUS_SCHEDULED,
	}
	assert.Error(t, endBeforeStart.Validate())

	badStatus := &Job{
		Title:     "Boiler service",
		StartTime: base,
		EndTime:   base.Add(time.Hour),
		Status:    "nonsense",
	}
	assert.Error(t, badStatus.Validate())
}

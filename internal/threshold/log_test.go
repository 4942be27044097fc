package threshold

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alertAt(id string, offset time.Duration) Alert {
	return Alert{ID: id, Threshold: "frame_time", Severity: SeverityWarning, Timestamp: epoch.Add(offset)}
}

func TestLogReplaceAndUnresolved(t *testing.T) {
	log := NewLog(0, 0)
	log.Add(alertAt("a", 0), alertAt("b", time.Second))

	log.Replace([]Alert{alertAt("a", 0).Resolve(epoch.Add(2 * time.Second))})

	unresolved := log.Unresolved()
	require.Len(t, unresolved, 1)
	assert.Equal(t, "b", unresolved[0].ID)
	assert.Equal(t, 2, log.Len(), "resolved alerts are retained")
}

func TestLogPruneByAge(t *testing.T) {
	log := NewLog(time.Minute, 0)
	log.Add(alertAt("old", 0), alertAt("new", 50*time.Second))

	removed := log.Prune(epoch.Add(90 * time.Second))

	assert.Equal(t, 1, removed)
	alerts := log.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, "new", alerts[0].ID)
}

func TestLogPruneByCount(t *testing.T) {
	log := NewLog(0, 2)
	log.Add(alertAt("a", 0), alertAt("b", time.Second), alertAt("c", 2*time.Second))

	assert.Equal(t, 1, log.Prune(epoch))

	alerts := log.Alerts()
	require.Len(t, alerts, 2)
	assert.Equal(t, "b", alerts[0].ID)
	assert.Equal(t, "c", alerts[1].ID)
}

package slots

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog(t *testing.T) {
	tests := []struct {
		name      string
		start     int
		end       int
		step      time.Duration
		wantCount int
		wantFirst string
		wantLast  string
	}{
		{"shop hours", 11, 18, time.Hour, 7, "11:00", "17:00"},
		{"half hour steps", 9, 12, 30 * time.Minute, 6, "09:00", "11:30"},
		{"zero step defaults to an hour", 10, 12, 0, 2, "10:00", "11:00"},
		{"empty range", 12, 12, time.Hour, 0, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCatalog(tt.start, tt.end, tt.step)
			labels := c.Labels()

			require.Len(t, labels, tt.wantCount)
			assert.Equal(t, tt.wantCount, c.Len())
			if tt.wantCount > 0 {
				assert.Equal(t, tt.wantFirst, labels[0])
				assert.Equal(t, tt.wantLast, labels[len(labels)-1])
			}
		})
	}
}

func TestCatalog_Lookup(t *testing.T) {
	c := NewCatalog(11, 18, time.Hour)

	s, ok := c.Lookup("13:00")
	require.True(t, ok)
	assert.Equal(t, 13*time.Hour, s.Start)
	assert.Equal(t, "14:00", s.EndLabel())

	_, ok = c.Lookup("18:00")
	assert.False(t, ok)
	_, ok = c.Lookup("11:30")
	assert.False(t, ok)
}

func TestCatalog_SlotsIsCopy(t *testing.T) {
	c := NewCatalog(11, 13, time.Hour)
	got := c.Slots()
	got[0].Start = 0

	assert.Equal(t, "11:00", c.Slots()[0].Label())
}

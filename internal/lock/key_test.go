package lock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimeKeyNormalizesZoneAndSeconds(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	a := TimeKey(7, time.Date(2026, 3, 2, 11, 0, 42, 0, berlin), time.Date(2026, 3, 2, 12, 0, 0, 0, berlin), nil)
	b := TimeKey(7, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC), nil)
	assert.Equal(t, a.Name(), b.Name())
	assert.Equal(t, "time|item=7|start=2026-03-02T10:00:00Z|end=2026-03-02T11:00:00Z|res=-", a.String())
}

func TestKeyNameShape(t *testing.T) {
	name := TimeKey(1, time.Now(), time.Now().Add(time.Hour), nil).Name()
	assert.Len(t, name, 36)
	assert.True(t, len(name) <= 64)
	assert.Equal(t, NamePrefix, name[:len(NamePrefix)])
}

func TestKeyDistinguishesWindowAndResource(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	r1, r2 := uint64(1), uint64(2)

	base := TimeKey(1, start, start.Add(time.Hour), nil)
	longer := TimeKey(1, start, start.Add(90*time.Minute), nil)
	otherItem := TimeKey(2, start, start.Add(time.Hour), nil)
	pinned1 := TimeKey(1, start, start.Add(time.Hour), &r1)
	pinned2 := TimeKey(1, start, start.Add(time.Hour), &r2)

	names := map[string]bool{}
	for _, k := range []Key{base, longer, otherItem, pinned1, pinned2} {
		names[k.Name()] = true
	}
	assert.Len(t, names, 5)
}

func TestDateRangeKeyIgnoresClock(t *testing.T) {
	in := time.Date(2026, 7, 1, 15, 0, 0, 0, time.UTC)
	out := time.Date(2026, 7, 4, 11, 0, 0, 0, time.UTC)
	a := DateRangeKey(3, in, out, nil)
	b := DateRangeKey(3, in.Add(-3*time.Hour), out.Add(5*time.Hour), nil)
	assert.Equal(t, a.Name(), b.Name())
	assert.Equal(t, "range|item=3|in=2026-07-01|out=2026-07-04|res=-", a.String())
	assert.NotEqual(t, a.Name(), TimeKey(3, in, out, nil).Name())
}

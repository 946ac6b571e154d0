package ticketcode

import (
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codeFormat = regexp.MustCompile(`^AMP-[0-9A-Z]+-[0-9A-HJKMNP-TV-Z]{10}$`)

func TestGenerate_Format(t *testing.T) {
	g := New("amp")

	code := g.Generate()

	assert.Regexp(t, codeFormat, code)
	assert.GreaterOrEqual(t, len(code), 8)
}

func TestGenerate_NoCollisions(t *testing.T) {
	const n = 100_000

	g := New("AMP")
	seen := make(map[string]struct{}, n)

	for i := 0; i < n; i++ {
		code := g.Generate()
		_, dup := seen[code]
		require.False(t, dup, "duplicate code %s after %d generations", code, i)
		seen[code] = struct{}{}
	}
}

func TestGenerate_TimeSegmentNeverDecreases(t *testing.T) {
	base := time.Date(2025, 10, 29, 18, 0, 0, 0, time.UTC)
	clock := []time.Time{
		base,
		base.Add(5 * time.Millisecond),
		base.Add(-time.Second), // wall clock stepped back
		base.Add(10 * time.Millisecond),
	}

	g := New("AMP")
	i := 0
	g.now = func() time.Time {
		t := clock[i]
		i++
		return t
	}

	var prev int64
	for range clock {
		seg := strings.Split(g.Generate(), "-")[1]
		ms, err := strconv.ParseInt(strings.ToLower(seg), 36, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, ms, prev)
		prev = ms
	}

	assert.Equal(t, base.Add(10*time.Millisecond).UnixMilli(), prev)
}

// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Unix(1_700_000_000, 0)

func negTimeleft(secs int32) uint32 {
	return uint32(secs)
}

func TestClassify(t *testing.T) {
	started := Grace{Started: true, Deadline: testNow.Add(36 * time.Hour)}
	lapsed := Grace{Started: true, Deadline: testNow.Add(-time.Hour)}

	tests := []struct {
		name             string
		used, soft, hard uint64
		grace            Grace
		want             State
		left             uint64
	}{
		{"no limits", 500, 0, 0, Grace{}, NoLimit, 0},
		{"no limits huge usage", 1 << 60, 0, 0, started, NoLimit, 0},
		{"under soft", 10, 100, 200, Grace{}, Under, 0},
		{"at soft", 100, 100, 200, started, Under, 0},
		{"hard only under", 150, 0, 200, Grace{}, Under, 0},
		{"hard only over", 201, 0, 200, Grace{}, Expired, 0},
		{"over hard", 201, 100, 200, started, Expired, 0},
		{"at hard over soft", 200, 100, 200, Grace{}, NotStarted, 0},
		{"soft only over not started", 101, 100, 0, Grace{}, NotStarted, 0},
		{"grace running", 150, 100, 200, started, GraceActive, 36 * 3600},
		{"grace lapsed", 150, 100, 200, lapsed, Expired, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, left := Classify(tt.used, tt.soft, tt.hard, tt.grace, testNow)
			assert.Equal(t, tt.want, state)
			assert.Equal(t, tt.left, left)
		})
	}
}

func rank(s State) int {
	switch s {
	case NoLimit:
		return 0
	case Under:
		return 1
	case NotStarted, GraceActive:
		return 2
	default:
		return 3
	}
}

func TestClassifyMonotonic(t *testing.T) {
	graces := []Grace{
		{},
		{Started: true, Deadline: testNow.Add(time.Hour)},
		{Started: true, Deadline: testNow.Add(-time.Hour)},
	}
	limits := [][2]uint64{{0, 0}, {100, 0}, {0, 100}, {100, 200}, {200, 200}}

	for _, g := range graces {
		for _, l := range limits {
			prev := -1
			for used := uint64(0); used <= 300; used += 5 {
				state, _ := Classify(used, l[0], l[1], g, testNow)
				if l[0] == 0 && l[1] == 0 {
					assert.Equal(t, NoLimit, state)
				} else {
					assert.NotEqual(t, NoLimit, state)
				}
				r := rank(state)
				assert.GreaterOrEqual(t, r, prev, "used=%d soft=%d hard=%d", used, l[0], l[1])
				prev = r
			}
		}
	}
}

func TestNFSGrace(t *testing.T) {
	t.Run("positive is time left", func(t *testing.T) {
		g := NFSGrace(2*86400, testNow)
		require.True(t, g.Started)
		state, left := Classify(150, 100, 200, g, testNow)
		assert.Equal(t, GraceActive, state)
		assert.Equal(t, uint64(2*86400), left)
	})

	t.Run("zero is not started", func(t *testing.T) {
		assert.False(t, NFSGrace(0, testNow).Started)
	})

	t.Run("near minus now is not started", func(t *testing.T) {
		g := NFSGrace(negTimeleft(int32(-testNow.Unix()+100)), testNow)
		assert.False(t, g.Started)

		g = NFSGrace(negTimeleft(int32(-testNow.Unix()-3600)), testNow)
		assert.False(t, g.Started)
	})

	t.Run("just outside skew is expired", func(t *testing.T) {
		g := NFSGrace(negTimeleft(int32(-testNow.Unix()+86401)), testNow)
		assert.True(t, g.Started)
		state, _ := Classify(150, 100, 200, g, testNow)
		assert.Equal(t, Expired, state)
	})

	t.Run("small negative is expired", func(t *testing.T) {
		g := NFSGrace(negTimeleft(-3600), testNow)
		state, _ := Classify(150, 100, 200, g, testNow)
		assert.Equal(t, Expired, state)
	})
}

func TestLustreGrace(t *testing.T) {
	assert.False(t, LustreGrace(0).Started)

	future := LustreGrace(uint64(testNow.Unix() + 7200))
	state, left := Classify(150, 100, 200, future, testNow)
	assert.Equal(t, GraceActive, state)
	assert.Equal(t, uint64(7200), left)

	past := LustreGrace(uint64(testNow.Unix() - 10))
	state, _ = Classify(150, 100, 200, past, testNow)
	assert.Equal(t, Expired, state)
}

func TestStateJSON(t *testing.T) {
	for s := NoLimit; s <= Expired; s++ {
		data, err := json.Marshal(s)
		require.NoError(t, err)
		var back State
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, s, back)
	}
	var s State
	assert.Error(t, json.Unmarshal([]byte(`"sideways"`), &s))
}

func TestOverThreshold(t *testing.T) {
	u := Usage{Used: 85, Hard: 90}
	assert.True(t, u.OverThreshold(90))
	assert.False(t, u.OverThreshold(95))
	assert.False(t, u.OverThreshold(0))
	assert.False(t, Usage{Used: 85}.OverThreshold(50))
}

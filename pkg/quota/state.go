// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and nfsquota contributors
//
// SPDX-License-Identifier: Apache-2.0

package quota

import (
	"encoding/json"
	"fmt"
	"time"
)

type State int

const (
	NoLimit State = iota
	Under
	NotStarted
	GraceActive
	Expired
)

func (s State) String() string {
	switch s {
	case NoLimit:
		return "none"
	case Under:
		return "under"
	case NotStarted:
		return "not started"
	case GraceActive:
		return "started"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Over reports whether usage is past the soft or hard limit.
func (s State) Over() bool {
	return s == NotStarted || s == GraceActive || s == Expired
}

func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *State) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	for c := NoLimit; c <= Expired; c++ {
		if c.String() == str {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown quota state %q", str)
}

// MaxSkew is how far a negative rquota timeleft may be from -now and still
// be read as "timer not started". rpc.rquotad subtracts the current time
// from a zero deadline, so an unstarted timer comes back close to -now;
// RPC latency and unsynchronized clocks account for the slack.
const MaxSkew = 24 * time.Hour

// Grace is the grace-period timer state reported by a quota source.
// When Started is false the server has not begun counting down.
type Grace struct {
	Started  bool
	Deadline time.Time
}

// NFSGrace converts an rquota timeleft value, which the server has already
// turned into seconds remaining, into a Grace. The 32-bit value is read as
// signed: positive means time left, zero or a value near -now means the
// timer never started, any other negative value means it ran out.
func NFSGrace(timeleft uint32, now time.Time) Grace {
	secs := int64(int32(timeleft))
	if secs > 0 {
		return Grace{Started: true, Deadline: now.Add(time.Duration(secs) * time.Second)}
	}
	if secs == 0 {
		return Grace{}
	}
	skew := secs + now.Unix()
	if skew < 0 {
		skew = -skew
	}
	if skew <= int64(MaxSkew/time.Second) {
		return Grace{}
	}
	return Grace{Started: true, Deadline: now.Add(time.Duration(secs) * time.Second)}
}

// LustreGrace converts an absolute Lustre grace expiry (epoch seconds, 0
// when unset) into a Grace.
func LustreGrace(xtime uint64) Grace {
	if xtime == 0 {
		return Grace{}
	}
	return Grace{Started: true, Deadline: time.Unix(int64(xtime), 0)}
}

// Classify derives the quota state of one resource. Limits of zero are
// absent and never compared. The second return value is the number of
// seconds of grace left and is only meaningful for GraceActive.
func Classify(used, soft, hard uint64, g Grace, now time.Time) (State, uint64) {
	switch {
	case soft == 0 && hard == 0:
		return NoLimit, 0
	case hard != 0 && used > hard:
		return Expired, 0
	case soft != 0 && used > soft:
		if !g.Started {
			return NotStarted, 0
		}
		if g.Deadline.After(now) {
			return GraceActive, uint64(g.Deadline.Sub(now) / time.Second)
		}
		return Expired, 0
	default:
		return Under, 0
	}
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionID string
type EventID string
type EvidencePackID string
type ShareID string
type CandidateID string

type Timestamp = time.Time

type RoleTrack string

const (
	RoleTrackBackend  RoleTrack = "backend"
	RoleTrackFrontend RoleTrack = "frontend"
)

type Level string

const (
	LevelJunior Level = "junior"
	LevelMid    Level = "mid"
	LevelSenior Level = "senior"
)

type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
	StatusAbandoned SessionStatus = "abandoned"
)

// Terminal reports whether no further transitions are allowed from s.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// AllowedDurations lists the session lengths, in minutes, a session can be configured with.
var AllowedDurations = []int{15, 30, 45, 60}

func ParseRoleTrack(s string) (RoleTrack, error) {
	switch RoleTrack(strings.ToLower(strings.TrimSpace(s))) {
	case RoleTrackBackend:
		return RoleTrackBackend, nil
	case RoleTrackFrontend:
		return RoleTrackFrontend, nil
	default:
		return "", invalidValueError("roleTrack", s, []string{string(RoleTrackBackend), string(RoleTrackFrontend)})
	}
}

func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelJunior:
		return LevelJunior, nil
	case LevelMid:
		return LevelMid, nil
	case LevelSenior:
		return LevelSenior, nil
	default:
		return "", invalidValueError("level", s, []string{string(LevelJunior), string(LevelMid), string(LevelSenior)})
	}
}

func ValidateDuration(minutes int) error {
	for _, d := range AllowedDurations {
		if d == minutes {
			return nil
		}
	}
	valid := make([]string, 0, len(AllowedDurations))
	for _, d := range AllowedDurations {
		valid = append(valid, fmt.Sprint(d))
	}
	return invalidValueError("duration", fmt.Sprint(minutes), valid)
}

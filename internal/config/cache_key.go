package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionAnswersKey returns the cache key for a session's autosaved answers
func (r *CacheKeyStruct) SessionAnswersKey(sessionID string) string {
	return fmt.Sprintf("session:%s:answers", sessionID)
}

// SessionStartKey returns the cache key for a session's start time
func (r *CacheKeyStruct) SessionStartKey(sessionID string) string {
	return fmt.Sprintf("session:%s:started_at", sessionID)
}

// SessionDurationKey returns the cache key for a session's duration in minutes
func (r *CacheKeyStruct) SessionDurationKey(sessionID string) string {
	return fmt.Sprintf("session:%s:duration", sessionID)
}

// AssessmentPayloadKey returns the cache key for an assessment's learner payload
func (r *CacheKeyStruct) AssessmentPayloadKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:payload", assessmentID)
}

// LearnerActiveSessionKey returns the cache key for a learner's active session
func (r *CacheKeyStruct) LearnerActiveSessionKey(learnerID int) string {
	return fmt.Sprintf("learner:%d:active_session", learnerID)
}

// LearnerTokenKey returns the cache key for a learner's login session JTI
func (r *CacheKeyStruct) LearnerTokenKey(learnerID int) string {
	return fmt.Sprintf("learner:%d:token", learnerID)
}

var CacheKey = NewCacheKeyStruct()

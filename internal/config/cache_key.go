package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// QuizDefinitionKey returns the cache key for a quiz's definition (settings + questions).
func (r *CacheKeyStruct) QuizDefinitionKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:definition", quizID)
}

// QuizVersionKey returns the counter bumped on every invalidation of a quiz's definition
func (r *CacheKeyStruct) QuizVersionKey(quizID string) string {
	return fmt.Sprintf("quiz:%s:version", quizID)
}

// QuizAttemptsChannel returns the Redis PubSub channel name for a quiz's attempt feed
func (r *CacheKeyStruct) QuizAttemptsChannel(quizID string) string {
	return fmt.Sprintf("quiz:%s:attempts", quizID)
}

// RevokedTokenKey returns the cache key marking a JWT ID as logged out
func (r *CacheKeyStruct) RevokedTokenKey(jti string) string {
	return fmt.Sprintf("auth:revoked:%s", jti)
}

var CacheKey = NewCacheKeyStruct()

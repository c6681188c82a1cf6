package analytics

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"time"
)

// QuestionEvent is published once per answered question.
type QuestionEvent struct {
	Question     string    `json:"question"`
	QuestionHash string    `json:"question_hash"`
	HasImage     bool      `json:"has_image"`
	Mode         string    `json:"mode"`
	Outcome      string    `json:"outcome"`
	Hits         int       `json:"hits"`
	Links        int       `json:"links"`
	CacheHit     bool      `json:"cache_hit"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}

// HashQuestion keys events for partitioning so repeats of a question land on
// one partition.
func HashQuestion(q string) string {
	sum := sha256.Sum256([]byte(strings.Join(strings.Fields(strings.ToLower(q)), " ")))
	return fmt.Sprintf("%x", sum[:8])
}

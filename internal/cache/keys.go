package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func JobSnapshotKey(jobID uuid.UUID) string {
	return fmt.Sprintf("alumnitrack:job:%s:snapshot", jobID)
}

func JobLockKey(jobID uuid.UUID) string {
	return fmt.Sprintf("alumnitrack:job:%s:lock", jobID)
}

func RateLimitKey(clientID string) string {
	return fmt.Sprintf("alumnitrack:ratelimit:%s", clientID)
}

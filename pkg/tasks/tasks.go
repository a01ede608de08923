// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "healthtrack-go/internal/model"

// AssessmentRepairTask asks a worker to persist an assessment whose write failed
// after a successful analysis. The prediction travels with the task so no
// second upstream call is needed.
type AssessmentRepairTask struct {
	EntryID    string           `json:"entry_id"`
	UserID     string           `json:"user_id"`
	Prediction model.Prediction `json:"prediction"`
}

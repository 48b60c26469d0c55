package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskNotificationEmail delivers a stock notification by e-mail.
	TaskNotificationEmail = "notification:email"
	// TaskLedgerReconcile checks stock rows against the movement log.
	TaskLedgerReconcile = "ledger:reconcile"
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// NotificationEmailPayload carries a committed notification.
type NotificationEmailPayload struct {
	NotificationID int64  `json:"notification_id"`
	ItemID         int64  `json:"item_id"`
	Owner          string `json:"owner"`
	Status         string `json:"status"`
	Message        string `json:"message"`
}

// NewNotificationEmailTask builds the e-mail task. The notification id is the
// task id, so a replayed event does not send twice.
func NewNotificationEmailTask(payload NotificationEmailPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationEmail, data,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(5),
		asynq.TaskID(notificationTaskID(payload.NotificationID)),
	), nil
}

// LedgerReconcilePayload selects between report-only and repair runs.
type LedgerReconcilePayload struct {
	Repair bool `json:"repair"`
}

// NewLedgerReconcileTask builds the reconciliation task.
func NewLedgerReconcileTask(repair bool) (*asynq.Task, error) {
	data, err := json.Marshal(LedgerReconcilePayload{Repair: repair})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerReconcile, data, asynq.Queue(QueueDefault), asynq.MaxRetry(1)), nil
}

// IdempotencyCleanupPayload configures key retention.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewIdempotencyCleanupTask builds the cleanup task.
func NewIdempotencyCleanupTask(retention time.Duration) (*asynq.Task, error) {
	data, err := json.Marshal(IdempotencyCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data, asynq.Queue(QueueDefault)), nil
}

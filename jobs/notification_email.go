package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/almoxarifado/almoxarifado/internal/inventory"
	jobmetrics "github.com/almoxarifado/almoxarifado/internal/jobs"
)

func notificationTaskID(id int64) string {
	return "notification-email-" + strconv.FormatInt(id, 10)
}

// NotificationEmailJob mails stock notifications to the warehouse inbox.
type NotificationEmailJob struct {
	Mailer  Mailer
	To      string
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewNotificationEmailJob constructs the handler.
func NewNotificationEmailJob(mailer Mailer, to string, logger *slog.Logger, metrics *jobmetrics.Metrics) *NotificationEmailJob {
	return &NotificationEmailJob{Mailer: mailer, To: to, Logger: logger, Metrics: metrics}
}

// Handle processes TaskNotificationEmail tasks.
func (j *NotificationEmailJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("notification email: mailer not configured")
	}
	var payload NotificationEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("notification email payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskNotificationEmail)
	defer func() { err = tracker.End(err) }()

	if j.To == "" {
		j.logger().Info("notification e-mail skipped, no recipient", slog.Int64("notification_id", payload.NotificationID))
		return nil
	}
	subject := fmt.Sprintf("[Almoxarifado] %s", payload.Message)
	body := fmt.Sprintf("%s\n\nItem: %d\nResponsável: %s\nSituação: %s\n",
		payload.Message, payload.ItemID, payload.Owner, payload.Status)
	if err := j.Mailer.Send(ctx, j.To, subject, body); err != nil {
		j.logger().Warn("notification e-mail failed", slog.Int64("notification_id", payload.NotificationID), slog.Any("error", err))
		return err
	}
	j.logger().Info("notification e-mail sent", slog.Int64("notification_id", payload.NotificationID))
	return nil
}

func (j *NotificationEmailJob) logger() *slog.Logger {
	if j.Logger == nil {
		return slog.Default()
	}
	return j.Logger
}

// Enqueuer submits tasks to the queue.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NotificationEnqueuer turns status-change events into e-mail tasks.
type NotificationEnqueuer struct {
	client Enqueuer
}

// NewNotificationEnqueuer returns an inventory.EventPublisher backed by client.
func NewNotificationEnqueuer(client Enqueuer) *NotificationEnqueuer {
	return &NotificationEnqueuer{client: client}
}

// Publish implements inventory.EventPublisher.
func (e *NotificationEnqueuer) Publish(ctx context.Context, evt inventory.StockEvent) error {
	if evt.Notification == nil {
		return nil
	}
	n := evt.Notification
	task, err := NewNotificationEmailTask(NotificationEmailPayload{
		NotificationID: n.ID,
		ItemID:         n.ItemID,
		Owner:          n.Owner,
		Status:         string(n.Status),
		Message:        n.Message,
	})
	if err != nil {
		return err
	}
	_, err = e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	return err
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	cloudtasks "cloud.google.com/go/cloudtasks/apiv2"
	taskspb "cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"

	"github.com/maheshbhatiya73/secrds/internal/events"
)

// CloudTasksNotifier enqueues a durable HTTP delivery task per alert,
// adapted from internal/webhooks/cloud_dispatcher.go's CreateTaskRequest
// construction. Unlike the teacher's fire-and-forget goroutine, SendAlert
// here blocks until the task is accepted, since the Reactor's contract
// (spec §4.D step 2) is a synchronous call it logs and moves past on
// failure — there is no separate async completion path to report into.
type CloudTasksNotifier struct {
	client    *cloudtasks.Client
	queuePath string
	targetURL string
	secret    string
	fallback  Notifier
	logger    *log.Logger
}

// NewCloudTasksNotifier builds a durable webhook dispatcher over Cloud
// Tasks. fallback, if non-nil, is used when enqueueing itself fails (the
// same behavior cloud_dispatcher.go's fallback field provides).
func NewCloudTasksNotifier(ctx context.Context, project, location, queue, targetURL, secret string, fallback Notifier) (*CloudTasksNotifier, error) {
	client, err := cloudtasks.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cloudtasks.NewClient: %w", err)
	}
	queuePath := fmt.Sprintf("projects/%s/locations/%s/queues/%s", project, location, queue)
	return &CloudTasksNotifier{
		client:    client,
		queuePath: queuePath,
		targetURL: targetURL,
		secret:    secret,
		fallback:  fallback,
		logger:    log.New(log.Writer(), "[CLOUD-TASKS] ", log.LstdFlags),
	}, nil
}

func (n *CloudTasksNotifier) SendAlert(alert events.ThreatAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	headers := map[string]string{
		"Content-Type":      "application/json",
		"X-Agent-Alert-ID":  alert.ID,
		"X-Agent-Alert-Kind": string(alert.Kind),
	}
	if n.secret != "" {
		headers["X-Agent-Signature"] = "sha256=" + signPayload(payload, n.secret)
	}

	req := &taskspb.CreateTaskRequest{
		Parent: n.queuePath,
		Task: &taskspb.Task{
			MessageType: &taskspb.Task_HttpRequest{
				HttpRequest: &taskspb.HttpRequest{
					HttpMethod: taskspb.HttpMethod_POST,
					Url:        n.targetURL,
					Headers:    headers,
					Body:       payload,
				},
			},
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := n.client.CreateTask(ctx, req); err != nil {
		n.logger.Printf("cloud task enqueue failed for %s: %v", alert.ID, err)
		if n.fallback != nil {
			return n.fallback.SendAlert(alert)
		}
		return err
	}
	return nil
}

func (n *CloudTasksNotifier) Close() error {
	return n.client.Close()
}

package notification

import "context"

// NotificationService is the fire-and-forget notification sink. Errors are
// informational; callers log and move on, a failed notification never fails
// the operation that emitted it.
type NotificationService interface {
	Notify(ctx context.Context, title, message, recipientID string, meta map[string]interface{}) error
}

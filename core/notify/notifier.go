// Package notify defines how drivers are told about their new assignments
// after an allocation run.
package notify

// DriverNotification carries the ordered order IDs a driver received.
type DriverNotification struct {
	RunID    string   `json:"run_id"`
	DriverID string   `json:"driver_id"`
	OrderIDs []string `json:"order_ids"`
}

// Notifier delivers assignment notifications. Implementations must be
// fire-and-forget from the engine's point of view: a failed notification
// never fails the allocation run.
type Notifier interface {
	NotifyAssignments(n DriverNotification) error
	Close() error
}

// Nop discards all notifications.
type Nop struct{}

func (Nop) NotifyAssignments(DriverNotification) error { return nil }
func (Nop) Close() error                               { return nil }

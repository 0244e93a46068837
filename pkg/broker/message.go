package broker

import (
	"encoding/json"

	"github.com/juju/errors"
)

// Event types carried by Message.
const (
	EnableProtection  = "enable_protection"
	DisableProtection = "disable_protection"
	BackupNow         = "backup_now"
	Restore           = "restore"

	// JobSubmitted is published by the agent after a command was accepted
	// by the backup service.
	JobSubmitted = "job_submitted"
	// CommandFailed is published when a command could not be submitted.
	CommandFailed = "command_failed"
)

// ErrUnknownEventType is raised when receiving unhandled event from broker.
const ErrUnknownEventType = errors.ConstError("unknown event type")

// Message is the message event format.
type Message struct {
	EventType string `json:"event_type"`
	MachineID string `json:"machine_id"`
	CreatedAt string `json:"created_at"`

	// Target of protection, backup and restore commands.
	ContainerName string `json:"container_name,omitempty"`
	ItemName      string `json:"item_name,omitempty"`

	// For enabling protection of a machine not protected yet.
	VMName        string `json:"vm_name,omitempty"`
	ResourceGroup string `json:"resource_group,omitempty"`
	CloudService  string `json:"cloud_service,omitempty"`
	PolicyName    string `json:"policy_name,omitempty"`

	// For disabling protection.
	DeleteBackupData bool `json:"delete_backup_data,omitempty"`

	// For on demand backups, RFC 3339.
	ExpiryTime string `json:"expiry_time,omitempty"`

	// For performing restore.
	RecoveryPointID  string `json:"recovery_point_id,omitempty"`
	StorageAccountID string `json:"storage_account_id,omitempty"`

	// Set on replies.
	JobID    string `json:"job_id,omitempty"`
	Location string `json:"location,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ParseMessage decodes the payload of an event.
func ParseMessage(e Event) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(e.Payload, &msg); err != nil {
		return nil, errors.Annotatef(err, "decode message from %s", e.Topic)
	}
	return &msg, nil
}

package server

import (
	"context"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap"

	"github.com/bizflycloud/bizfly-vm-protection/pkg/backupapi"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/broker"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/protection"
	"github.com/bizflycloud/bizfly-vm-protection/pkg/workload"
)

func (s *Server) handleBrokerEvent(e broker.Event) error {
	msg, err := broker.ParseMessage(e)
	if err != nil {
		return err
	}
	if msg.MachineID != "" && s.machineID != "" && msg.MachineID != s.machineID {
		s.logger.Debug("ignore command for other machine", zap.String("machine_id", msg.MachineID))
		return nil
	}
	s.logger.Debug("Got broker event", zap.String("event_type", msg.EventType), zap.String("topic", e.Topic))

	release, err := s.hold()
	if err != nil {
		return err
	}
	defer release()

	ctx := context.Background()
	if s.valve != nil {
		ctx = s.valve.Context()
	}

	var job *backupapi.JobResponse
	switch msg.EventType {
	case broker.EnableProtection:
		job, err = s.enableFromMessage(ctx, msg)
	case broker.DisableProtection:
		job, err = s.disableFromMessage(ctx, msg)
	case broker.BackupNow:
		job, err = s.backupFromMessage(ctx, msg)
	case broker.Restore:
		job, err = s.restoreFromMessage(ctx, msg)
	default:
		s.logger.Debug("Got unknown event", zap.Any("message", msg))
		return errors.Annotate(broker.ErrUnknownEventType, msg.EventType)
	}

	s.reply(msg, job, err)
	return err
}

func (s *Server) enableFromMessage(ctx context.Context, msg *broker.Message) (*backupapi.JobResponse, error) {
	pol, err := s.policyFor(ctx, msg.PolicyName)
	if err != nil {
		return nil, err
	}
	req := protection.EnableProtectionRequest{
		VMName:        msg.VMName,
		ResourceGroup: msg.ResourceGroup,
		CloudService:  msg.CloudService,
		WorkloadType:  workload.AzureVM,
		Policy:        pol,
	}
	if msg.ItemName != "" {
		item, err := s.protector.FindProtectedItem(ctx, msg.ContainerName, msg.ItemName)
		if err != nil {
			return nil, err
		}
		req.Item = item
	}
	return s.protector.EnableProtection(ctx, req)
}

func (s *Server) disableFromMessage(ctx context.Context, msg *broker.Message) (*backupapi.JobResponse, error) {
	item, err := s.protector.FindProtectedItem(ctx, msg.ContainerName, msg.ItemName)
	if err != nil {
		return nil, err
	}
	return s.protector.DisableProtection(ctx, item, msg.DeleteBackupData)
}

func (s *Server) backupFromMessage(ctx context.Context, msg *broker.Message) (*backupapi.JobResponse, error) {
	var expiry time.Time
	if msg.ExpiryTime != "" {
		t, err := time.Parse(time.RFC3339, msg.ExpiryTime)
		if err != nil {
			return nil, errors.WithType(errors.Annotate(err, "expiry_time"), protection.ErrInvalidRequest)
		}
		expiry = t
	}
	item, err := s.protector.FindProtectedItem(ctx, msg.ContainerName, msg.ItemName)
	if err != nil {
		return nil, err
	}
	return s.protector.TriggerBackup(ctx, item, expiry)
}

func (s *Server) restoreFromMessage(ctx context.Context, msg *broker.Message) (*backupapi.JobResponse, error) {
	item, err := s.protector.FindProtectedItem(ctx, msg.ContainerName, msg.ItemName)
	if err != nil {
		return nil, err
	}
	rp, err := s.protector.GetRecoveryPointDetails(ctx, item, msg.RecoveryPointID)
	if err != nil {
		return nil, err
	}
	return s.protector.TriggerRestore(ctx, rp, msg.StorageAccountID)
}

// reply reports the outcome of a command on the publish topic.
func (s *Server) reply(msg *broker.Message, job *backupapi.JobResponse, cmdErr error) {
	if s.b == nil || s.publishTopic == "" {
		return
	}
	out := broker.Message{
		EventType:     broker.JobSubmitted,
		MachineID:     s.machineID,
		CreatedAt:     time.Now().UTC().Format(time.RFC3339),
		ContainerName: msg.ContainerName,
		ItemName:      msg.ItemName,
	}
	if cmdErr != nil {
		out.EventType = broker.CommandFailed
		out.Error = cmdErr.Error()
	} else if job != nil {
		out.JobID = job.JobID
		out.Location = job.Location
	}
	if err := s.b.Publish(s.publishTopic, out); err != nil {
		s.logger.Error("failed to publish reply", zap.Error(err), zap.String("topic", s.publishTopic))
	}
}

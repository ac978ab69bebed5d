package service

import (
	"context"
	"fmt"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	"github.com/eddyoasis/procurement-workflow/internal/domain/entity"
	"github.com/eddyoasis/procurement-workflow/internal/domain/event"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
	"github.com/eddyoasis/procurement-workflow/pkg/utils"
)

// NotificationService tells people about workflow progress. It implements
// port.NotificationDispatcher and exposes dispatcher handlers.
type NotificationService interface {
	port.NotificationDispatcher

	// HandleNextApprovers is a dispatcher.Handler for next-approvers events
	HandleNextApprovers(ctx context.Context, evt *event.Event) error

	// HandleOutcome is a dispatcher.Handler that informs the requester of
	// submission, approval and rejection
	HandleOutcome(ctx context.Context, evt *event.Event) error
}

type notificationServiceImpl struct {
	reqRepo port.RequisitionRepository
	sender  port.MessageSender
	logger  Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(reqRepo port.RequisitionRepository, sender port.MessageSender, logger Logger) NotificationService {
	return &notificationServiceImpl{
		reqRepo: reqRepo,
		sender:  sender,
		logger:  logger,
	}
}

// NotifyNextApprover sends one approver the pending-approval message
func (s *notificationServiceImpl) NotifyNextApprover(ctx context.Context, req *entity.Requisition, approverEmail string) error {
	message := fmt.Sprintf(
		"Requisition %s \"%s\" (%s) is waiting for your approval.\nRequested by: %s\nStep %d of %d",
		req.ReferenceCode,
		req.Title,
		utils.FormatMoney(req.Currency, req.TotalAmount),
		requesterLabel(req),
		req.CurrentStepOrder,
		req.TotalSteps,
	)

	messageID, err := s.sender.SendText(ctx, approverEmail, message)
	if err != nil {
		return fmt.Errorf("send message to %s: %w", approverEmail, err)
	}

	s.logger.Info("Approver notified",
		"requisition_id", req.ID,
		"approver", approverEmail,
		"message_id", messageID,
	)
	return nil
}

// HandleNextApprovers never returns a delivery error; failures are logged so
// that other handlers still run.
func (s *notificationServiceImpl) HandleNextApprovers(ctx context.Context, evt *event.Event) error {
	req, err := s.load(ctx, evt.RequisitionID)
	if err != nil {
		s.logger.Error("Cannot notify next approvers", "requisition_id", evt.RequisitionID, "error", err)
		return nil
	}

	for _, email := range evt.GetPayloadStrings(event.PayloadApproverEmails) {
		if err := s.NotifyNextApprover(ctx, req, email); err != nil {
			s.logger.Error("Failed to notify approver",
				"requisition_id", req.ID,
				"approver", email,
				"error", err,
			)
		}
	}
	return nil
}

func (s *notificationServiceImpl) HandleOutcome(ctx context.Context, evt *event.Event) error {
	req, err := s.load(ctx, evt.RequisitionID)
	if err != nil {
		s.logger.Error("Cannot notify requester", "requisition_id", evt.RequisitionID, "error", err)
		return nil
	}
	if req.RequesterEmail == "" {
		return nil
	}

	var message string
	switch evt.Type {
	case event.TypeRequisitionSubmitted:
		message = fmt.Sprintf("Your requisition %s \"%s\" was submitted with %d approval steps.",
			req.ReferenceCode, req.Title, req.TotalSteps)
	case event.TypeRequisitionApproved:
		message = fmt.Sprintf("Your requisition %s \"%s\" was approved by %s.",
			req.ReferenceCode, req.Title, req.FinalApprover)
	case event.TypeRequisitionRejected:
		message = fmt.Sprintf("Your requisition %s \"%s\" was rejected by %s.",
			req.ReferenceCode, req.Title, req.RejectedBy)
		if req.RejectionReason != "" {
			message += "\nReason: " + req.RejectionReason
		}
	default:
		return nil
	}

	if _, err := s.sender.SendText(ctx, req.RequesterEmail, message); err != nil {
		s.logger.Error("Failed to notify requester",
			"requisition_id", req.ID,
			"requester", req.RequesterEmail,
			"event", evt.Type.String(),
			"error", err,
		)
	}
	return nil
}

func (s *notificationServiceImpl) load(ctx context.Context, id int64) (*entity.Requisition, error) {
	req, err := s.reqRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %d", domainwf.ErrRequisitionNotFound, id)
	}
	return req, nil
}

func requesterLabel(req *entity.Requisition) string {
	if req.RequesterName == "" {
		return req.RequesterEmail
	}
	return fmt.Sprintf("%s <%s>", req.RequesterName, req.RequesterEmail)
}

var _ NotificationService = (*notificationServiceImpl)(nil)

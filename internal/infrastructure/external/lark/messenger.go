package lark

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"
)

const (
	receiveIDTypeEmail = "email"
	msgTypeText        = "text"
)

// messageCreator is the slice of the IM API the messenger needs
type messageCreator interface {
	Create(ctx context.Context, req *larkim.CreateMessageReq, options ...larkcore.RequestOptionFunc) (*larkim.CreateMessageResp, error)
}

// Messenger implements port.MessageSender over Lark IM, addressing users by email
type Messenger struct {
	messages messageCreator
	logger   *zap.Logger
}

// NewMessenger creates a new Lark message sender
func NewMessenger(sdkClient *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		messages: sdkClient.GetClient().Im.Message,
		logger:   logger,
	}
}

// SendText sends a plain text message and returns the Lark message ID
func (m *Messenger) SendText(ctx context.Context, email, content string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", fmt.Errorf("email cannot be empty")
	}
	if content == "" {
		return "", fmt.Errorf("content cannot be empty")
	}

	body, err := textMessageBody(email, content)
	if err != nil {
		return "", err
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDTypeEmail).
		Body(body).
		Build()

	resp, err := m.messages.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send message",
			zap.String("email", email),
			zap.Error(err))
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	if !resp.Success() {
		m.logger.Error("API returned failure",
			zap.String("email", email),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return "", fmt.Errorf("API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	messageID := ""
	if resp.Data != nil && resp.Data.MessageId != nil {
		messageID = *resp.Data.MessageId
	}

	m.logger.Info("Message sent successfully",
		zap.String("message_id", messageID),
		zap.String("email", email))

	return messageID, nil
}

// textMessageBody addresses a text message to a user by email
func textMessageBody(email, content string) (*larkim.CreateMessageReqBody, error) {
	encoded, err := json.Marshal(map[string]string{"text": content})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	return larkim.NewCreateMessageReqBodyBuilder().
		ReceiveId(email).
		MsgType(msgTypeText).
		Content(string(encoded)).
		Build(), nil
}

// LogMessenger writes messages to the log instead of delivering them. It is
// used when no Lark app is configured.
type LogMessenger struct {
	logger *zap.Logger
}

// NewLogMessenger creates a LogMessenger
func NewLogMessenger(logger *zap.Logger) *LogMessenger {
	return &LogMessenger{logger: logger}
}

// SendText logs the message and returns an empty message ID
func (m *LogMessenger) SendText(ctx context.Context, email, content string) (string, error) {
	m.logger.Info("Notification (delivery disabled)",
		zap.String("email", email),
		zap.String("content", content))
	return "", nil
}

var (
	_ port.MessageSender = (*Messenger)(nil)
	_ port.MessageSender = (*LogMessenger)(nil)
)

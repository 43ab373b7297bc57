// ABOUTME: Matrix delivery channel using mautrix
// ABOUTME: Renders the Markdown body to HTML with goldmark and posts an m.text event

package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/yuin/goldmark"
	"maunium.net/go/mautrix"
	"maunium.net/go/mautrix/event"
	"maunium.net/go/mautrix/id"
)

// matrixSendFunc posts a message event to a room.
type matrixSendFunc func(ctx context.Context, roomID id.RoomID, content *event.MessageEventContent) error

// MatrixNotifier posts notifications to a Matrix room.
type MatrixNotifier struct {
	send   matrixSendFunc
	roomID id.RoomID
	logger *slog.Logger
}

// NewMatrixNotifier creates a client for the homeserver and targets one room.
func NewMatrixNotifier(homeserver, userID, accessToken, roomID string, logger *slog.Logger) (*MatrixNotifier, error) {
	client, err := mautrix.NewClient(homeserver, id.UserID(userID), accessToken)
	if err != nil {
		return nil, fmt.Errorf("creating matrix client: %w", err)
	}
	send := func(ctx context.Context, room id.RoomID, content *event.MessageEventContent) error {
		_, err := client.SendMessageEvent(ctx, room, event.EventMessage, content)
		return err
	}
	return newMatrixNotifier(send, id.RoomID(roomID), logger), nil
}

func newMatrixNotifier(send matrixSendFunc, roomID id.RoomID, logger *slog.Logger) *MatrixNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatrixNotifier{
		send:   send,
		roomID: roomID,
		logger: logger.With("component", "notify-matrix"),
	}
}

func (m *MatrixNotifier) Send(ctx context.Context, n Notification) error {
	content := &event.MessageEventContent{
		MsgType: event.MsgText,
		Body:    n.PlainText(),
	}

	var htmlBuf bytes.Buffer
	if err := goldmark.Convert([]byte(n.Markdown()), &htmlBuf); err != nil {
		m.logger.Warn("failed to render markdown, sending plain text", "error", err)
	} else {
		content.Format = event.FormatHTML
		content.FormattedBody = htmlBuf.String()
	}

	if err := m.send(ctx, m.roomID, content); err != nil {
		return fmt.Errorf("sending matrix message: %w", err)
	}
	m.logger.Debug("matrix notification sent", "reminder_id", n.ReminderID, "room", m.roomID.String())
	return nil
}

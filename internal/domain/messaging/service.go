package messaging

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/domain/account"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/apperr"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/auth"
	"github.com/ssharvesh-steep/cervical-cancer-sub000/internal/platform/realtime"
)

// Directory resolves accounts by id.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*account.User, error)
}

// Connections reports doctor–patient connections by account id.
type Connections interface {
	AreConnected(ctx context.Context, doctorUserID, patientUserID uuid.UUID) (bool, error)
}

type Service struct {
	repo        Repository
	users       Directory
	connections Connections
	changes     realtime.Publisher
	logger      zerolog.Logger
}

func NewService(repo Repository, users Directory, connections Connections) *Service {
	return &Service{repo: repo, users: users, connections: connections, changes: realtime.Nop{}, logger: zerolog.Nop()}
}

func (s *Service) SetPublisher(p realtime.Publisher) { s.changes = p }
func (s *Service) SetLogger(l zerolog.Logger)        { s.logger = l }

func (s *Service) Send(ctx context.Context, id auth.Identity, in SendInput) (*Message, error) {
	body := strings.TrimSpace(in.Body)
	if body == "" {
		return nil, apperr.Validation("body", "message body is required")
	}
	if utf8.RuneCountInString(body) > maxBodyLength {
		return nil, apperr.Validation("body", "message must be at most %d characters", maxBodyLength)
	}
	if len(in.ClientRef) > maxClientRefLen {
		return nil, apperr.Validation("client_ref", "client_ref must be at most %d characters", maxClientRefLen)
	}
	if in.ReceiverID == uuid.Nil {
		return nil, apperr.Validation("receiver_id", "receiver_id is required")
	}
	if in.ReceiverID == id.UserID {
		return nil, apperr.Validation("receiver_id", "cannot message yourself")
	}

	receiver, err := s.users.GetUser(ctx, in.ReceiverID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, id, receiver); err != nil {
		return nil, err
	}

	m := &Message{SenderID: id.UserID, ReceiverID: receiver.ID, Body: body, IsUrgent: in.IsUrgent}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, apperr.Store(err, "create message")
	}
	m.ClientRef = in.ClientRef

	s.changes.Publish(ctx, realtime.Change{
		Table: "messages", Op: realtime.OpInsert, ID: m.ID.String(),
		Filters: threadFilters(m.SenderID, m.ReceiverID),
	})
	return m, nil
}

// authorize allows admin traffic in both directions and patient–doctor
// traffic between connected accounts.
func (s *Service) authorize(ctx context.Context, sender auth.Identity, receiver *account.User) error {
	if sender.IsAdmin() || receiver.Role == auth.RoleAdmin {
		return nil
	}
	var doctorID, patientID uuid.UUID
	switch {
	case sender.IsPatient() && receiver.Role == auth.RoleDoctor:
		doctorID, patientID = receiver.ID, sender.UserID
	case sender.IsDoctor() && receiver.Role == auth.RolePatient:
		doctorID, patientID = sender.UserID, receiver.ID
	default:
		return apperr.Unauthorized("messages are only allowed between patients and their doctors")
	}
	ok, err := s.connections.AreConnected(ctx, doctorID, patientID)
	if err != nil {
		return apperr.Store(err, "check connection")
	}
	if !ok {
		return apperr.Unauthorized("you are not connected to this user")
	}
	return nil
}

// OpenThread returns a page of the thread with other and then marks the
// caller's incoming messages on that page as read. Messages outside the
// page keep their unread flag. The two steps are not atomic.
func (s *Service) OpenThread(ctx context.Context, id auth.Identity, other uuid.UUID, limit, offset int) (*ThreadPage, error) {
	if _, err := s.users.GetUser(ctx, other); err != nil {
		return nil, err
	}
	items, total, err := s.repo.Thread(ctx, id.UserID, other, limit, offset)
	if err != nil {
		return nil, apperr.Store(err, "load thread")
	}
	if items == nil {
		items = []*Message{}
	}
	page := &ThreadPage{Messages: items, Total: total}

	var unread []uuid.UUID
	for _, m := range items {
		if m.ReceiverID == id.UserID && m.SenderID == other && !m.IsRead {
			unread = append(unread, m.ID)
		}
	}
	if len(unread) == 0 {
		return page, nil
	}
	marked, err := s.repo.MarkRead(ctx, id.UserID, other, unread)
	if err != nil {
		s.logger.Error().Err(err).Str("receiver_id", id.UserID.String()).Str("sender_id", other.String()).
			Msg("mark messages read")
		return page, nil
	}
	page.MarkedRead = marked
	if marked > 0 {
		s.changes.Publish(ctx, realtime.Change{
			Table: "messages", Op: realtime.OpUpdate,
			Filters: threadFilters(other, id.UserID),
		})
	}
	return page, nil
}

// ClearThread deletes both directions of the thread. The caller must confirm.
func (s *Service) ClearThread(ctx context.Context, id auth.Identity, other uuid.UUID, confirm bool) (int64, error) {
	if !confirm {
		return 0, apperr.Validation("confirm", "clearing a conversation must be confirmed")
	}
	n, err := s.repo.DeleteThread(ctx, id.UserID, other)
	if err != nil {
		return 0, apperr.Store(err, "clear thread")
	}
	if n > 0 {
		s.changes.Publish(ctx, realtime.Change{
			Table: "messages", Op: realtime.OpDelete,
			Filters: threadFilters(id.UserID, other),
		})
	}
	return n, nil
}

func (s *Service) Conversations(ctx context.Context, id auth.Identity, limit, offset int) ([]*Conversation, int, error) {
	items, total, err := s.repo.Conversations(ctx, id.UserID, limit, offset)
	if err != nil {
		return nil, 0, apperr.Store(err, "list conversations")
	}
	return items, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, id auth.Identity) (int, error) {
	n, err := s.repo.UnreadCount(ctx, id.UserID)
	if err != nil {
		return 0, apperr.Store(err, "count unread messages")
	}
	return n, nil
}

func threadFilters(sender, receiver uuid.UUID) map[string]string {
	return map[string]string{"sender_id": sender.String(), "receiver_id": receiver.String()}
}

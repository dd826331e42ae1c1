package services

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"

	"github.com/anonto42/nano-chat/backend/internal/apperr"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
	"github.com/anonto42/nano-chat/backend/pkg/encryption"
)

const (
	DeletedByAuthorPlaceholder = "this message has been deleted"
	DeletedByAdminPlaceholder  = "this message has been deleted by admin"

	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Messaging handles group (channel) and direct (conversation) messages.
// Message content is encrypted at rest and in the cache.
type Messaging struct {
	users         repositories.UserRepository
	graph         repositories.GraphRepository
	servers       repositories.ServerRepository
	conversations repositories.ConversationRepository
	group         repositories.MessageRepository
	direct        repositories.MessageRepository
	cipher        *encryption.Cipher
	notes         *Notifications
	cache         *CacheCoordinator
	bus           realtime.Broadcaster
	logger        *slog.Logger
}

func NewMessaging(d Deps, notes *Notifications) *Messaging {
	return &Messaging{
		users:         d.Users,
		graph:         d.Graph,
		servers:       d.Servers,
		conversations: d.Conversations,
		group:         d.GroupMessages,
		direct:        d.DirectMessages,
		cipher:        d.Cipher,
		notes:         notes,
		cache:         d.Cache,
		bus:           d.Bus,
		logger:        d.Logger,
	}
}

// storedPage is the cached form of a page: ciphertext plus author views.
type storedPage struct {
	Messages []models.Message           `json:"messages"`
	Authors  map[uint]models.UserCompact `json:"authors"`
	Total    int64                       `json:"total"`
}

// NormalizePage applies the page defaults and bounds.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// pageOffset is the number of documents before page. ok is false when the
// offset does not fit in an int64.
func pageOffset(page, limit int) (skip int64, ok bool) {
	before := int64(page) - 1
	if before > math.MaxInt64/int64(limit) {
		return 0, false
	}
	return before * int64(limit), true
}

func (m *Messaging) repo(kind models.MessageKind) (repositories.MessageRepository, error) {
	switch kind {
	case models.GroupMessageKind:
		return m.group, nil
	case models.DirectMessageKind:
		return m.direct, nil
	}
	return nil, apperr.Validation("invalid message kind: " + string(kind))
}

func scopePattern(msg *models.Message) string {
	if msg.Kind == models.DirectMessageKind {
		return cache.ConversationMessagesPattern(msg.ScopeID)
	}
	return cache.ChannelMessagesPattern(msg.ScopeID)
}

func (m *Messaging) decrypt(ciphertext string, messageID string) string {
	if ciphertext == "" {
		return ""
	}
	plain, err := m.cipher.Decrypt(ciphertext)
	if err != nil {
		m.logger.Error("failed to decrypt message content", "message_id", messageID, "error", err)
		return ""
	}
	return plain
}

func (m *Messaging) view(msg *models.Message, author models.UserCompact) models.MessageView {
	id := msg.ID.Hex()
	v := models.MessageView{
		ID:        id,
		Kind:      msg.Kind,
		ScopeID:   msg.ScopeID,
		ServerID:  msg.ServerID,
		Content:   m.decrypt(msg.Content, id),
		ImageURL:  msg.ImageURL,
		FileURL:   msg.FileURL,
		IsEdited:  msg.IsEdited,
		EditedBy:  msg.EditedBy,
		IsDeleted: msg.IsDeleted,
		DeletedBy: msg.DeletedBy,
		HasReply:  msg.HasReply,
		Author:    author,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
	if msg.Reply != nil {
		reply := *msg.Reply
		reply.ParentContent = m.decrypt(reply.ParentContent, reply.ParentID)
		v.Reply = &reply
	}
	return v
}

func (m *Messaging) authorView(ctx context.Context, msg *models.Message) (models.MessageView, error) {
	author, err := lookupUser(ctx, m.users, msg.AuthorID)
	if err != nil {
		return models.MessageView{}, err
	}
	return m.view(msg, author.ToCompact()), nil
}

func (m *Messaging) seal(content string) (string, error) {
	ct, err := m.cipher.Encrypt(content)
	if err != nil {
		return "", apperr.Internal("failed to encrypt message", err)
	}
	return ct, nil
}

func validateBody(req models.SendMessageRequest) error {
	if strings.TrimSpace(req.Content) == "" && req.ImageURL == "" && req.FileURL == "" {
		return apperr.Validation("message content is required")
	}
	return nil
}

// channelMember resolves the channel inside serverID and checks that userID
// belongs to the server.
func (m *Messaging) channelMember(ctx context.Context, serverID, channelID, userID uint) (*models.Channel, error) {
	channel, err := m.servers.GetChannel(ctx, channelID)
	if errors.Is(err, repositories.ErrNotFound) || (err == nil && channel.ServerID != serverID) {
		return nil, apperr.NotFound("channel not found in this server")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load channel", err)
	}
	if _, err := m.servers.GetMember(ctx, serverID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.Forbidden("you are not a member of this server")
		}
		return nil, apperr.Internal("failed to load membership", err)
	}
	return channel, nil
}

// SendGroupMessage posts to a channel of a server the user belongs to.
func (m *Messaging) SendGroupMessage(ctx context.Context, serverID, channelID, userID uint, req models.SendMessageRequest) (*models.MessageView, error) {
	if err := validateBody(req); err != nil {
		return nil, err
	}
	if _, err := m.servers.GetServerByID(ctx, serverID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperr.NotFound("server not found")
		}
		return nil, apperr.Internal("failed to load server", err)
	}
	channel, err := m.channelMember(ctx, serverID, channelID, userID)
	if err != nil {
		return nil, err
	}
	author, err := lookupUser(ctx, m.users, userID)
	if err != nil {
		return nil, err
	}
	content, err := m.seal(req.Content)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		Kind:     models.GroupMessageKind,
		ScopeID:  channelID,
		ServerID: serverID,
		AuthorID: userID,
		Content:  content,
		ImageURL: req.ImageURL,
		FileURL:  req.FileURL,
	}
	if err := m.group.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}

	view := m.view(msg, author.ToCompact())
	view.Channel = channel
	m.notes.MessagePosted(ctx, author, channel)
	m.cache.InvalidatePattern(ctx, cache.ChannelMessagesPattern(channelID))
	publish(ctx, m.bus, realtime.EventMessageSent, view)
	return &view, nil
}

func (m *Messaging) loadConversation(ctx context.Context, conversationID, userID uint) (*models.OneToOneConversation, error) {
	conv, err := m.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("conversation not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load conversation", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperr.Forbidden("you are not part of this conversation")
	}
	return conv, nil
}

// checkNotBlocked fails when either user has blocked the other.
func (m *Messaging) checkNotBlocked(ctx context.Context, a, b uint) error {
	for _, pair := range [2][2]uint{{a, b}, {b, a}} {
		blocked, err := m.graph.IsBlocked(ctx, pair[0], pair[1])
		if err != nil {
			return apperr.Internal("failed to check blocks", err)
		}
		if blocked {
			return apperr.Forbidden("you cannot message this user")
		}
	}
	return nil
}

// SendDirectMessage posts to a conversation the sender takes part in.
func (m *Messaging) SendDirectMessage(ctx context.Context, conversationID, senderID uint, req models.SendMessageRequest) (*models.MessageView, error) {
	if err := validateBody(req); err != nil {
		return nil, err
	}
	conv, err := m.loadConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	receiverID := conv.OtherParty(senderID)
	if err := m.checkNotBlocked(ctx, senderID, receiverID); err != nil {
		return nil, err
	}
	sender, err := lookupUser(ctx, m.users, senderID)
	if err != nil {
		return nil, err
	}
	receiver, err := lookupUser(ctx, m.users, receiverID)
	if err != nil {
		return nil, err
	}
	content, err := m.seal(req.Content)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		Kind:       models.DirectMessageKind,
		ScopeID:    conv.ID,
		AuthorID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		ImageURL:   req.ImageURL,
		FileURL:    req.FileURL,
	}
	if err := m.direct.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to send message", err)
	}

	view := m.view(msg, sender.ToCompact())
	rc := receiver.ToCompact()
	view.Receiver = &rc
	m.cache.InvalidatePattern(ctx, cache.ConversationMessagesPattern(conv.ID))
	publish(ctx, m.bus, realtime.EventMessageSent, view)
	return &view, nil
}

// CreateConversation returns the conversation for the unordered pair,
// creating it on first use.
func (m *Messaging) CreateConversation(ctx context.Context, initiatorID, otherID uint) (*models.OneToOneConversation, error) {
	if initiatorID == otherID {
		return nil, ErrInvalidTarget
	}
	if _, err := lookupUser(ctx, m.users, otherID); err != nil {
		return nil, err
	}

	conv, err := m.conversations.FindByPair(ctx, initiatorID, otherID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.Internal("failed to load conversation", err)
	}

	conv = models.NewConversation(initiatorID, otherID)
	if err := m.conversations.Create(ctx, conv); err != nil {
		if !errors.Is(err, repositories.ErrDuplicate) {
			return nil, apperr.Internal("failed to create conversation", err)
		}
		// lost a race with the other participant
		conv, err = m.conversations.FindByPair(ctx, initiatorID, otherID)
		if err != nil {
			return nil, apperr.Internal("failed to load conversation", err)
		}
		return conv, nil
	}

	m.cache.Invalidate(ctx, cache.ConversationsKey(initiatorID), cache.ConversationsKey(otherID))
	return conv, nil
}

func (m *Messaging) FetchConversations(ctx context.Context, userID uint) ([]models.OneToOneConversation, error) {
	return Remember(ctx, m.cache, cache.ConversationsKey(userID), func(ctx context.Context) ([]models.OneToOneConversation, error) {
		convs, err := m.conversations.ListForUser(ctx, userID)
		if err != nil {
			return nil, apperr.Internal("failed to list conversations", err)
		}
		return convs, nil
	})
}

func (m *Messaging) loadMessage(ctx context.Context, kind models.MessageKind, id string) (repositories.MessageRepository, *models.Message, error) {
	repo, err := m.repo(kind)
	if err != nil {
		return nil, nil, err
	}
	msg, err := repo.GetMessageByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, nil, apperr.NotFound("message not found")
	}
	if err != nil {
		return nil, nil, apperr.Internal("failed to load message", err)
	}
	return repo, msg, nil
}

// EditMessage replaces the content of the actor's own message.
func (m *Messaging) EditMessage(ctx context.Context, kind models.MessageKind, id string, actorID uint, content string) (*models.MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("message content is required")
	}
	repo, msg, err := m.loadMessage(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != actorID {
		return nil, apperr.Forbidden("only the author can edit this message")
	}
	if msg.IsDeleted {
		return nil, apperr.Conflict("a deleted message cannot be edited")
	}

	sealed, err := m.seal(content)
	if err != nil {
		return nil, err
	}
	msg.Content = sealed
	msg.IsEdited = true
	msg.EditedBy = actorID
	if err := repo.UpdateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to edit message", err)
	}

	view, err := m.authorView(ctx, msg)
	if err != nil {
		return nil, err
	}
	m.cache.InvalidatePattern(ctx, scopePattern(msg))
	publish(ctx, m.bus, realtime.EventMessageEdited, view)
	return &view, nil
}

// moderates reports whether actorID may delete other people's messages in
// msg's scope: the channel creator or server owner for group messages, the
// conversation initiator for direct ones.
func (m *Messaging) moderates(ctx context.Context, msg *models.Message, actorID uint) (bool, error) {
	if msg.Kind == models.DirectMessageKind {
		conv, err := m.conversations.GetByID(ctx, msg.ScopeID)
		if errors.Is(err, repositories.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, apperr.Internal("failed to load conversation", err)
		}
		return conv.InitiatorID == actorID && conv.HasParticipant(actorID), nil
	}

	channel, err := m.servers.GetChannel(ctx, msg.ScopeID)
	switch {
	case err == nil && channel.CreatorID == actorID:
		return true, nil
	case err != nil && !errors.Is(err, repositories.ErrNotFound):
		return false, apperr.Internal("failed to load channel", err)
	}
	server, err := m.servers.GetServerByID(ctx, msg.ServerID)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, apperr.Internal("failed to load server", err)
	}
	return server.OwnerID == actorID, nil
}

// DeleteMessage soft-deletes: the message keeps its id and position, its
// content becomes a placeholder and its media is cleared.
func (m *Messaging) DeleteMessage(ctx context.Context, kind models.MessageKind, id string, actorID uint) (*models.MessageView, error) {
	repo, msg, err := m.loadMessage(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted {
		return nil, apperr.Conflict("message already deleted")
	}

	placeholder := DeletedByAuthorPlaceholder
	if msg.AuthorID != actorID {
		ok, err := m.moderates(ctx, msg, actorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apperr.Forbidden("you cannot delete this message")
		}
		placeholder = DeletedByAdminPlaceholder
	}

	sealed, err := m.seal(placeholder)
	if err != nil {
		return nil, err
	}
	msg.Content = sealed
	msg.ImageURL = ""
	msg.FileURL = ""
	msg.IsDeleted = true
	msg.DeletedBy = actorID
	if err := repo.UpdateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to delete message", err)
	}

	view, err := m.authorView(ctx, msg)
	if err != nil {
		return nil, err
	}
	m.cache.InvalidatePattern(ctx, scopePattern(msg))
	publish(ctx, m.bus, realtime.EventMessageDeleted, view)
	return &view, nil
}

// ReplyToMessage posts into the parent's scope with a snapshot of the
// parent's author and content.
func (m *Messaging) ReplyToMessage(ctx context.Context, kind models.MessageKind, parentID string, actorID uint, req models.SendMessageRequest) (*models.MessageView, error) {
	if err := validateBody(req); err != nil {
		return nil, err
	}
	repo, parent, err := m.loadMessage(ctx, kind, parentID)
	if err != nil {
		return nil, err
	}
	if parent.IsDeleted {
		return nil, apperr.Conflict("cannot reply to a deleted message")
	}

	reply := &models.Message{
		Kind:     parent.Kind,
		ScopeID:  parent.ScopeID,
		ServerID: parent.ServerID,
		AuthorID: actorID,
		ImageURL: req.ImageURL,
		FileURL:  req.FileURL,
	}
	if parent.Kind == models.DirectMessageKind {
		conv, err := m.loadConversation(ctx, parent.ScopeID, actorID)
		if err != nil {
			return nil, err
		}
		reply.ReceiverID = conv.OtherParty(actorID)
		if err := m.checkNotBlocked(ctx, actorID, reply.ReceiverID); err != nil {
			return nil, err
		}
	} else if _, err := m.channelMember(ctx, parent.ServerID, parent.ScopeID, actorID); err != nil {
		return nil, err
	}

	actor, err := lookupUser(ctx, m.users, actorID)
	if err != nil {
		return nil, err
	}
	snapshot := &models.ReplySnapshot{
		ParentID:       parent.ID.Hex(),
		ParentAuthorID: parent.AuthorID,
		ParentContent:  parent.Content,
	}
	if parentAuthor, err := m.users.GetUserByID(ctx, parent.AuthorID); err == nil {
		snapshot.ParentAuthor = displayName(parentAuthor)
	}
	reply.Reply = snapshot

	if reply.Content, err = m.seal(req.Content); err != nil {
		return nil, err
	}
	if err := repo.CreateMessage(ctx, reply); err != nil {
		return nil, apperr.Internal("failed to send reply", err)
	}
	if err := repo.MarkHasReply(ctx, parentID); err != nil {
		m.logger.Warn("failed to flag parent message", "message_id", parentID, "error", err)
	}

	view := m.view(reply, actor.ToCompact())
	m.cache.InvalidatePattern(ctx, scopePattern(reply))
	publish(ctx, m.bus, realtime.EventMessageSent, view)
	return &view, nil
}

// FetchMessages returns one page of a channel, oldest first.
func (m *Messaging) FetchMessages(ctx context.Context, serverID, channelID, userID uint, page, limit int) (*models.MessagePage, error) {
	if _, err := m.channelMember(ctx, serverID, channelID, userID); err != nil {
		return nil, err
	}
	page, limit = NormalizePage(page, limit)
	return m.fetchPage(ctx, m.group, cache.ChannelMessagesKey(channelID, page, limit), channelID, page, limit)
}

// FetchConversationMessages returns one page of a conversation, oldest first.
func (m *Messaging) FetchConversationMessages(ctx context.Context, conversationID, userID uint, page, limit int) (*models.MessagePage, error) {
	if _, err := m.loadConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	page, limit = NormalizePage(page, limit)
	return m.fetchPage(ctx, m.direct, cache.ConversationMessagesKey(conversationID, page, limit), conversationID, page, limit)
}

func (m *Messaging) fetchPage(ctx context.Context, repo repositories.MessageRepository, key string, scopeID uint, page, limit int) (*models.MessagePage, error) {
	stored, err := Remember(ctx, m.cache, key, func(ctx context.Context) (*storedPage, error) {
		total, err := repo.CountByScope(ctx, scopeID)
		if err != nil {
			return nil, apperr.Internal("failed to count messages", err)
		}
		skip, inRange := pageOffset(page, limit)
		if !inRange || skip >= total {
			return &storedPage{Messages: []models.Message{}, Authors: map[uint]models.UserCompact{}, Total: total}, nil
		}
		msgs, err := repo.ListByScope(ctx, scopeID, skip, int64(limit))
		if err != nil {
			return nil, apperr.Internal("failed to load messages", err)
		}

		ids := make([]uint, 0, len(msgs))
		seen := make(map[uint]struct{}, len(msgs))
		for _, msg := range msgs {
			if _, ok := seen[msg.AuthorID]; !ok {
				seen[msg.AuthorID] = struct{}{}
				ids = append(ids, msg.AuthorID)
			}
		}
		authors, err := compactUsers(ctx, m.users, ids)
		if err != nil {
			return nil, err
		}
		byID := make(map[uint]models.UserCompact, len(authors))
		for _, a := range authors {
			byID[a.ID] = a
		}
		return &storedPage{Messages: msgs, Authors: byID, Total: total}, nil
	})
	if err != nil {
		return nil, err
	}

	totalPages := int((stored.Total + int64(limit) - 1) / int64(limit))
	out := &models.MessagePage{
		Messages:      make([]models.MessageView, 0, len(stored.Messages)),
		TotalMessages: stored.Total,
		TotalPages:    totalPages,
		HasMore:       page < totalPages,
	}
	for i := range stored.Messages {
		msg := &stored.Messages[i]
		out.Messages = append(out.Messages, m.view(msg, stored.Authors[msg.AuthorID]))
	}
	return out, nil
}

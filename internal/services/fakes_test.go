package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/anonto42/nano-chat/backend/internal/cache"
	"github.com/anonto42/nano-chat/backend/internal/models"
	"github.com/anonto42/nano-chat/backend/internal/realtime"
	"github.com/anonto42/nano-chat/backend/internal/repositories"
	"github.com/anonto42/nano-chat/backend/pkg/encryption"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeUsers is an in-memory UserRepository.
type fakeUsers struct {
	mu         sync.Mutex
	users      map[uint]*models.User
	setOnlines int
	// beforeSetOnline, when set, runs before SetOnline touches the map.
	beforeSetOnline func(id uint, online bool)
}

func newFakeUsers() *fakeUsers { return &fakeUsers{users: map[uint]*models.User{}} }

func (f *fakeUsers) add(id uint, name string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := &models.User{ID: id, FullName: name, UserName: strings.ToLower(name), Email: strings.ToLower(name) + "@example.com"}
	f.users[id] = u
	return u
}

func (f *fakeUsers) CreateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next uint = 1
	for id, u := range f.users {
		if u.Email == user.Email || u.UserName == user.UserName {
			return repositories.ErrDuplicate
		}
		if user.FirebaseUID != nil && u.FirebaseUID != nil && *u.FirebaseUID == *user.FirebaseUID {
			return repositories.ErrDuplicate
		}
		if id >= next {
			next = id + 1
		}
	}
	user.ID = next
	cp := *user
	f.users[next] = &cp
	return nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) GetUserByID(_ context.Context, id uint) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetUserByFirebaseUID(_ context.Context, uid string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.FirebaseUID != nil && *u.FirebaseUID == uid {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) sorted(keep func(*models.User) bool) []models.User {
	out := []models.User{}
	for _, u := range f.users {
		if keep(u) {
			out = append(out, *u)
		}
	}
	slices.SortFunc(out, func(a, b models.User) int { return int(a.ID) - int(b.ID) })
	return out
}

func (f *fakeUsers) GetUsersByIDs(_ context.Context, ids []uint) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(u *models.User) bool { return slices.Contains(ids, u.ID) }), nil
}

func (f *fakeUsers) ListUsers(_ context.Context, filter repositories.UserFilter) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sorted(func(u *models.User) bool {
		if filter.OnlineOnly && !u.IsOnline {
			return false
		}
		return !slices.Contains(filter.ExcludeIDs, u.ID)
	}), nil
}

func (f *fakeUsers) UpdateUser(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, u := range f.users {
		if id != user.ID && u.UserName == user.UserName {
			return repositories.ErrDuplicate
		}
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) SetOnline(_ context.Context, id uint, online bool) error {
	if f.beforeSetOnline != nil {
		f.beforeSetOnline(id, online)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.IsOnline = online
	f.setOnlines++
	return nil
}

func (f *fakeUsers) SearchUsers(_ context.Context, query string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(query)
	return f.sorted(func(u *models.User) bool {
		return strings.Contains(strings.ToLower(u.FullName), q) || strings.Contains(u.UserName, q)
	}), nil
}

// edgeSet keeps directed pairs in insertion order.
type edgeSet struct {
	pairs [][2]uint
}

func (s *edgeSet) has(a, b uint) bool { return slices.Contains(s.pairs, [2]uint{a, b}) }

func (s *edgeSet) add(a, b uint) bool {
	if s.has(a, b) {
		return false
	}
	s.pairs = append(s.pairs, [2]uint{a, b})
	return true
}

func (s *edgeSet) remove(a, b uint) bool {
	i := slices.Index(s.pairs, [2]uint{a, b})
	if i < 0 {
		return false
	}
	s.pairs = slices.Delete(s.pairs, i, i+1)
	return true
}

// from returns the b of every (a, b) pair; to returns the a of every (a, b).
func (s *edgeSet) from(a uint) []uint {
	out := []uint{}
	for _, p := range s.pairs {
		if p[0] == a {
			out = append(out, p[1])
		}
	}
	return out
}

func (s *edgeSet) to(b uint) []uint {
	out := []uint{}
	for _, p := range s.pairs {
		if p[1] == b {
			out = append(out, p[0])
		}
	}
	return out
}

// fakeGraph is an in-memory GraphRepository.
type fakeGraph struct {
	mu       sync.Mutex
	follows  edgeSet
	requests edgeSet
	blocks   edgeSet
}

func (g *fakeGraph) IsFollowing(_ context.Context, a, b uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.follows.has(a, b), nil
}

func (g *fakeGraph) HasPendingRequest(_ context.Context, a, b uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests.has(a, b), nil
}

func (g *fakeGraph) IsBlocked(_ context.Context, a, b uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocks.has(a, b), nil
}

func (g *fakeGraph) CreateFollowRequest(_ context.Context, a, b uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.requests.add(a, b) {
		return repositories.ErrDuplicate
	}
	return nil
}

func (g *fakeGraph) DeleteFollowRequest(_ context.Context, a, b uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.requests.remove(a, b), nil
}

func (g *fakeGraph) AcceptFollowRequest(_ context.Context, sender, receiver uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.requests.has(sender, receiver) {
		return repositories.ErrNotFound
	}
	if g.follows.has(sender, receiver) {
		return repositories.ErrDuplicate
	}
	g.requests.remove(sender, receiver)
	g.follows.add(sender, receiver)
	return nil
}

func (g *fakeGraph) DeleteFollow(_ context.Context, a, b uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.follows.remove(a, b), nil
}

func (g *fakeGraph) CreateBlock(_ context.Context, a, b uint) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.blocks.add(a, b) {
		return repositories.ErrDuplicate
	}
	return nil
}

func (g *fakeGraph) DeleteBlock(_ context.Context, a, b uint) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blocks.remove(a, b), nil
}

func (g *fakeGraph) lock(f func() []uint) ([]uint, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return f(), nil
}

func (g *fakeGraph) FollowerIDs(_ context.Context, id uint) ([]uint, error) {
	return g.lock(func() []uint { return g.follows.to(id) })
}

func (g *fakeGraph) FollowingIDs(_ context.Context, id uint) ([]uint, error) {
	return g.lock(func() []uint { return g.follows.from(id) })
}

func (g *fakeGraph) SentRequestIDs(_ context.Context, id uint) ([]uint, error) {
	return g.lock(func() []uint { return g.requests.from(id) })
}

func (g *fakeGraph) ReceivedRequestIDs(_ context.Context, id uint) ([]uint, error) {
	return g.lock(func() []uint { return g.requests.to(id) })
}

func (g *fakeGraph) BlockedIDs(_ context.Context, id uint) ([]uint, error) {
	return g.lock(func() []uint { return g.blocks.from(id) })
}

func (g *fakeGraph) BlockedByIDs(_ context.Context, id uint) ([]uint, error) {
	return g.lock(func() []uint { return g.blocks.to(id) })
}

// fakeServers is an in-memory ServerRepository.
type fakeServers struct {
	mu       sync.Mutex
	nextID   uint
	servers  map[uint]*models.Server
	members  map[uint]*models.Member
	channels map[uint]*models.Channel
}

func newFakeServers() *fakeServers {
	return &fakeServers{
		servers:  map[uint]*models.Server{},
		members:  map[uint]*models.Member{},
		channels: map[uint]*models.Channel{},
	}
}

func (f *fakeServers) id() uint {
	f.nextID++
	return f.nextID
}

func (f *fakeServers) CreateServer(_ context.Context, s *models.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s.ID = f.id()
	s.CreatedAt = time.Now()
	for i := range s.Channels {
		s.Channels[i].ID = f.id()
		s.Channels[i].ServerID = s.ID
		ch := s.Channels[i]
		f.channels[ch.ID] = &ch
	}
	for i := range s.Members {
		s.Members[i].ID = f.id()
		s.Members[i].ServerID = s.ID
		m := s.Members[i]
		f.members[m.ID] = &m
	}
	cp := *s
	cp.Channels, cp.Members = nil, nil
	f.servers[s.ID] = &cp
	return nil
}

// detailed assembles a server with its channels and members. Caller holds mu.
func (f *fakeServers) detailed(s *models.Server) *models.Server {
	cp := *s
	cp.Channels, cp.Members = []models.Channel{}, []models.Member{}
	for _, ch := range f.channels {
		if ch.ServerID == s.ID {
			cp.Channels = append(cp.Channels, *ch)
		}
	}
	for _, m := range f.members {
		if m.ServerID == s.ID {
			cp.Members = append(cp.Members, *m)
		}
	}
	slices.SortFunc(cp.Channels, func(a, b models.Channel) int { return int(a.ID) - int(b.ID) })
	slices.SortFunc(cp.Members, func(a, b models.Member) int { return int(a.ID) - int(b.ID) })
	return &cp
}

func (f *fakeServers) GetServerByID(_ context.Context, id uint) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.servers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return f.detailed(s), nil
}

func (f *fakeServers) GetServerByInviteCode(_ context.Context, code string) (*models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.servers {
		if s.InviteCode == code {
			return f.detailed(s), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeServers) ListServersForUser(_ context.Context, userID uint) ([]models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Server{}
	for _, m := range f.members {
		if m.UserID == userID {
			out = append(out, *f.servers[m.ServerID])
		}
	}
	slices.SortFunc(out, func(a, b models.Server) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (f *fakeServers) UpdateServer(_ context.Context, s *models.Server) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.servers[s.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	cur.Name, cur.ImageURL, cur.InviteCode = s.Name, s.ImageURL, s.InviteCode
	return nil
}

func (f *fakeServers) DeleteServer(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.servers[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.servers, id)
	for mid, m := range f.members {
		if m.ServerID == id {
			delete(f.members, mid)
		}
	}
	for cid, ch := range f.channels {
		if ch.ServerID == id {
			delete(f.channels, cid)
		}
	}
	return nil
}

func (f *fakeServers) AddMember(_ context.Context, m *models.Member) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.members {
		if cur.ServerID == m.ServerID && cur.UserID == m.UserID {
			return repositories.ErrDuplicate
		}
	}
	m.ID = f.id()
	cp := *m
	f.members[m.ID] = &cp
	return nil
}

func (f *fakeServers) GetMember(_ context.Context, serverID, userID uint) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.members {
		if m.ServerID == serverID && m.UserID == userID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeServers) GetMemberByID(_ context.Context, id uint) (*models.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeServers) UpdateMemberRole(_ context.Context, id uint, role models.MemberRole) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.members[id]
	if !ok {
		return repositories.ErrNotFound
	}
	m.Role = role
	return nil
}

func (f *fakeServers) RemoveMember(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.members[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.members, id)
	return nil
}

func (f *fakeServers) MemberUserIDs(_ context.Context, serverID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []uint{}
	for _, m := range f.members {
		if m.ServerID == serverID {
			ids = append(ids, m.UserID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeServers) MemberServerIDs(_ context.Context, userID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []uint{}
	for _, m := range f.members {
		if m.UserID == userID {
			ids = append(ids, m.ServerID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeServers) CreateChannel(_ context.Context, ch *models.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch.ID = f.id()
	ch.CreatedAt = time.Now()
	cp := *ch
	f.channels[ch.ID] = &cp
	return nil
}

func (f *fakeServers) GetChannel(_ context.Context, id uint) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (f *fakeServers) UpdateChannel(_ context.Context, ch *models.Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, ok := f.channels[ch.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	cur.Name, cur.Type = ch.Name, ch.Type
	return nil
}

func (f *fakeServers) DeleteChannel(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.channels[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.channels, id)
	return nil
}

func (f *fakeServers) ListChannels(_ context.Context, serverID uint, t models.ChannelType) ([]models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Channel{}
	for _, ch := range f.channels {
		if ch.ServerID == serverID && ch.Type == t {
			out = append(out, *ch)
		}
	}
	slices.SortFunc(out, func(a, b models.Channel) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

// fakeConversations is an in-memory ConversationRepository.
type fakeConversations struct {
	mu    sync.Mutex
	convs []*models.OneToOneConversation
}

func (f *fakeConversations) FindByPair(_ context.Context, a, b uint) (*models.OneToOneConversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	low, high := models.OrderedPair(a, b)
	for _, c := range f.convs {
		if c.UserLowID == low && c.UserHighID == high {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeConversations) Create(_ context.Context, c *models.OneToOneConversation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, cur := range f.convs {
		if cur.UserLowID == c.UserLowID && cur.UserHighID == c.UserHighID {
			return repositories.ErrDuplicate
		}
	}
	c.ID = uint(len(f.convs) + 1)
	c.CreatedAt = time.Now()
	cp := *c
	f.convs = append(f.convs, &cp)
	return nil
}

func (f *fakeConversations) GetByID(_ context.Context, id uint) (*models.OneToOneConversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.convs {
		if c.ID == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeConversations) ListForUser(_ context.Context, userID uint) ([]models.OneToOneConversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.OneToOneConversation{}
	for _, c := range f.convs {
		if c.HasParticipant(userID) {
			out = append(out, *c)
		}
	}
	return out, nil
}

// fakeMessages is an in-memory MessageRepository; insertion order is
// creation order.
type fakeMessages struct {
	mu    sync.Mutex
	msgs  []*models.Message
	lists int
}

func (f *fakeMessages) CreateMessage(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m.ID = primitive.NewObjectID()
	m.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	m.UpdatedAt = m.CreatedAt
	cp := *m
	f.msgs = append(f.msgs, &cp)
	return nil
}

func (f *fakeMessages) find(id string) *models.Message {
	for _, m := range f.msgs {
		if m.ID.Hex() == id {
			return m
		}
	}
	return nil
}

func (f *fakeMessages) GetMessageByID(_ context.Context, id string) (*models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.find(id)
	if m == nil {
		return nil, repositories.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (f *fakeMessages) UpdateMessage(_ context.Context, m *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur := f.find(m.ID.Hex())
	if cur == nil {
		return repositories.ErrNotFound
	}
	cur.Content, cur.ImageURL, cur.FileURL = m.Content, m.ImageURL, m.FileURL
	cur.IsEdited, cur.EditedBy = m.IsEdited, m.EditedBy
	cur.IsDeleted, cur.DeletedBy = m.IsDeleted, m.DeletedBy
	return nil
}

func (f *fakeMessages) MarkHasReply(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m := f.find(id); m != nil {
		m.HasReply = true
	}
	return nil
}

func (f *fakeMessages) scope(scopeID uint) []models.Message {
	out := []models.Message{}
	for _, m := range f.msgs {
		if m.ScopeID == scopeID {
			out = append(out, *m)
		}
	}
	return out
}

func (f *fakeMessages) ListByScope(_ context.Context, scopeID uint, skip, limit int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if skip < 0 {
		return nil, errors.New("(BadValue) skip value must be non-negative")
	}
	all := f.scope(scopeID)
	if skip >= int64(len(all)) {
		return []models.Message{}, nil
	}
	end := min(skip+limit, int64(len(all)))
	return all[skip:end], nil
}

func (f *fakeMessages) CountByScope(_ context.Context, scopeID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.scope(scopeID))), nil
}

func (f *fakeMessages) DeleteByScope(_ context.Context, scopeID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = slices.DeleteFunc(f.msgs, func(m *models.Message) bool { return m.ScopeID == scopeID })
	return nil
}

// fakeNotifications is an in-memory NotificationRepository.
type fakeNotifications struct {
	mu    sync.Mutex
	notes []*models.Notification
}

func (f *fakeNotifications) CreateNotification(_ context.Context, n *models.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uint(len(f.notes) + 1)
	n.CreatedAt = time.Now()
	cp := *n
	f.notes = append(f.notes, &cp)
	return nil
}

func (f *fakeNotifications) DeleteBetween(_ context.Context, typ models.NotificationType, sender, receiver uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	before := len(f.notes)
	f.notes = slices.DeleteFunc(f.notes, func(n *models.Notification) bool {
		return n.Type == typ && n.SenderID == sender && n.ReceiverID != nil && *n.ReceiverID == receiver
	})
	return int64(before - len(f.notes)), nil
}

func (f *fakeNotifications) ListForUser(_ context.Context, userID uint, serverIDs []uint) ([]models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Notification{}
	for i := len(f.notes) - 1; i >= 0; i-- {
		n := f.notes[i]
		if n.SenderID == userID {
			continue
		}
		direct := n.ReceiverID != nil && *n.ReceiverID == userID
		server := n.ServerID != nil && slices.Contains(serverIDs, *n.ServerID)
		if direct || server {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) GetByID(_ context.Context, id uint) (*models.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeNotifications) GetUnreadCount(_ context.Context, userID uint) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, n := range f.notes {
		if n.ReceiverID != nil && *n.ReceiverID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (f *fakeNotifications) MarkAsRead(_ context.Context, id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.ID == id {
			n.IsRead = true
		}
	}
	return nil
}

func (f *fakeNotifications) MarkAllAsRead(_ context.Context, userID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.notes {
		if n.ReceiverID != nil && *n.ReceiverID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (f *fakeNotifications) ofType(typ models.NotificationType) []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Notification{}
	for _, n := range f.notes {
		if n.Type == typ {
			out = append(out, *n)
		}
	}
	return out
}

type published struct {
	Event   realtime.Event
	Payload any
	Exclude string
}

// recordingBus captures every Publish call.
type recordingBus struct {
	mu     sync.Mutex
	events []published
}

func (b *recordingBus) Publish(event realtime.Event, payload any, exclude string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, published{Event: event, Payload: payload, Exclude: exclude})
}

func (b *recordingBus) count(event realtime.Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

func (b *recordingBus) last() published {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.events[len(b.events)-1]
}

type harness struct {
	users   *fakeUsers
	graph   *fakeGraph
	servers *fakeServers
	convs   *fakeConversations
	group   *fakeMessages
	direct  *fakeMessages
	notes   *fakeNotifications
	bus     *recordingBus
	redis   *miniredis.Miniredis
	store   *cache.RedisStore
	svc     *Services
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cipher, err := encryption.NewCipher("test-message-secret")
	require.NoError(t, err)

	h := &harness{
		users:   newFakeUsers(),
		graph:   &fakeGraph{},
		servers: newFakeServers(),
		convs:   &fakeConversations{},
		group:   &fakeMessages{},
		direct:  &fakeMessages{},
		notes:   &fakeNotifications{},
		bus:     &recordingBus{},
		redis:   mr,
		store:   cache.NewRedisStore(client),
	}
	logger := testLogger()
	h.svc = New(Deps{
		Users:          h.users,
		Graph:          h.graph,
		Servers:        h.servers,
		Conversations:  h.convs,
		GroupMessages:  h.group,
		DirectMessages: h.direct,
		Notifications:  h.notes,
		Cache:          NewCacheCoordinator(h.store, time.Minute, logger),
		Bus:            h.bus,
		Cipher:         cipher,
		Logger:         logger,
	})
	return h
}

func ids(users []models.UserCompact) []uint {
	out := make([]uint, len(users))
	for i, u := range users {
		out[i] = u.ID
	}
	return out
}

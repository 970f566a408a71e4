// Package memory is an in-process store.Store used by tests and by the server
// when no database DSN is configured. All invariants the postgres schema
// enforces with constraints are enforced here under a single mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/makerhub/makerhub/internal/common/apperrors"
	"github.com/makerhub/makerhub/internal/hubsrv/store"
)

type Store struct {
	mu sync.Mutex

	resources map[uuid.UUID]store.Resource
	groups    map[uuid.UUID]store.ResourceGroup
	sessions  map[uuid.UUID]store.UsageSession

	introducers   map[uuid.UUID]store.Introducer
	introductions map[uuid.UUID]store.Introduction
	history       map[uuid.UUID][]store.IntroductionHistoryItem

	mqttConfigs    map[uuid.UUID]store.MQTTConfig
	webhookConfigs map[uuid.UUID]store.WebhookConfig
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		resources:      make(map[uuid.UUID]store.Resource),
		groups:         make(map[uuid.UUID]store.ResourceGroup),
		sessions:       make(map[uuid.UUID]store.UsageSession),
		introducers:    make(map[uuid.UUID]store.Introducer),
		introductions:  make(map[uuid.UUID]store.Introduction),
		history:        make(map[uuid.UUID][]store.IntroductionHistoryItem),
		mqttConfigs:    make(map[uuid.UUID]store.MQTTConfig),
		webhookConfigs: make(map[uuid.UUID]store.WebhookConfig),
	}
}

func (s *Store) Close() error {
	return nil
}

// Resources

func (s *Store) CreateResource(_ context.Context, r *store.Resource) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if _, ok := s.resources[r.ID]; ok {
		return store.ErrAlreadyExists
	}
	if r.GroupID != nil {
		if _, ok := s.groups[*r.GroupID]; !ok {
			return store.ErrNotFound.Msg("resource group not found")
		}
	}
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	s.resources[r.ID] = *r
	return nil
}

func (s *Store) GetResource(_ context.Context, id uuid.UUID) (*store.Resource, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.resources[id]
	if !ok {
		return nil, store.ErrNotFound.Msg("resource not found")
	}
	return &r, nil
}

func (s *Store) UpdateResource(_ context.Context, r *store.Resource) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.resources[r.ID]
	if !ok {
		return store.ErrNotFound.Msg("resource not found")
	}
	if r.GroupID != nil {
		if _, ok := s.groups[*r.GroupID]; !ok {
			return store.ErrNotFound.Msg("resource group not found")
		}
	}
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = time.Now().UTC()
	s.resources[r.ID] = *r
	return nil
}

func (s *Store) DeleteResource(_ context.Context, id uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[id]; !ok {
		return store.ErrNotFound.Msg("resource not found")
	}
	delete(s.resources, id)
	scope := store.ResourceScope(id)
	for sid, sess := range s.sessions {
		if sess.ResourceID == id {
			delete(s.sessions, sid)
		}
	}
	for iid, intr := range s.introducers {
		if intr.Scope == scope {
			delete(s.introducers, iid)
		}
	}
	for iid, intro := range s.introductions {
		if intro.Scope == scope {
			delete(s.introductions, iid)
			delete(s.history, iid)
		}
	}
	delete(s.mqttConfigs, id)
	for wid, wc := range s.webhookConfigs {
		if wc.ResourceID == id {
			delete(s.webhookConfigs, wid)
		}
	}
	return nil
}

func (s *Store) ListResources(_ context.Context, page, limit int) ([]store.Resource, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]store.Resource, 0, len(s.resources))
	for _, r := range s.resources {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return paginate(all, page, limit), nil
}

// Groups

func (s *Store) CreateGroup(_ context.Context, g *store.ResourceGroup) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	if _, ok := s.groups[g.ID]; ok {
		return store.ErrAlreadyExists
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	s.groups[g.ID] = *g
	return nil
}

func (s *Store) GetGroup(_ context.Context, id uuid.UUID) (*store.ResourceGroup, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, store.ErrNotFound.Msg("resource group not found")
	}
	return &g, nil
}

func (s *Store) DeleteGroup(_ context.Context, id uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return store.ErrNotFound.Msg("resource group not found")
	}
	delete(s.groups, id)
	scope := store.GroupScope(id)
	for iid, intr := range s.introducers {
		if intr.Scope == scope {
			delete(s.introducers, iid)
		}
	}
	for iid, intro := range s.introductions {
		if intro.Scope == scope {
			delete(s.introductions, iid)
			delete(s.history, iid)
		}
	}
	for rid, r := range s.resources {
		if r.GroupID != nil && *r.GroupID == id {
			r.GroupID = nil
			s.resources[rid] = r
		}
	}
	return nil
}

func (s *Store) ListGroups(_ context.Context) ([]store.ResourceGroup, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]store.ResourceGroup, 0, len(s.groups))
	for _, g := range s.groups {
		all = append(all, g)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })
	return all, nil
}

// Sessions

func (s *Store) InsertSession(_ context.Context, sess *store.UsageSession) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.sessions {
		if existing.ResourceID == sess.ResourceID && existing.EndTime == nil {
			return store.ErrActiveSessionExists
		}
	}
	if sess.ID == uuid.Nil {
		sess.ID = uuid.New()
	}
	s.sessions[sess.ID] = *sess
	return nil
}

func (s *Store) CloseSession(_ context.Context, sessionID uuid.UUID, endTime time.Time, endNotes string) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.EndTime != nil {
		return store.ErrNotFound.Msg("no open session")
	}
	sess.EndTime = &endTime
	sess.EndNotes = endNotes
	s.sessions[sessionID] = sess
	return nil
}

func (s *Store) GetActiveSession(_ context.Context, resourceID uuid.UUID) (*store.UsageSession, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ResourceID == resourceID && sess.EndTime == nil {
			out := sess
			return &out, nil
		}
	}
	return nil, nil
}

func (s *Store) GetSession(_ context.Context, sessionID uuid.UUID) (*store.UsageSession, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, store.ErrNotFound.Msg("session not found")
	}
	return &sess, nil
}

func (s *Store) ListSessions(_ context.Context, resourceID uuid.UUID, filter store.SessionFilter) ([]store.UsageSession, int64, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []store.UsageSession
	for _, sess := range s.sessions {
		if sess.ResourceID != resourceID {
			continue
		}
		if filter.UserID != nil && sess.UserID != *filter.UserID {
			continue
		}
		all = append(all, sess)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })
	total := int64(len(all))
	return paginate(all, filter.Page, filter.Limit), total, nil
}

// Introducers

func (s *Store) AddIntroducer(_ context.Context, i *store.Introducer) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.introducers {
		if existing.Scope == i.Scope && existing.UserID == i.UserID {
			return store.ErrAlreadyExists.Msg("user is already an introducer")
		}
	}
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.GrantedAt.IsZero() {
		i.GrantedAt = time.Now().UTC()
	}
	s.introducers[i.ID] = *i
	return nil
}

func (s *Store) RemoveIntroducer(_ context.Context, scope store.Scope, userID uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, existing := range s.introducers {
		if existing.Scope == scope && existing.UserID == userID {
			delete(s.introducers, id)
			return nil
		}
	}
	return store.ErrNotFound.Msg("introducer not found")
}

func (s *Store) IsIntroducer(_ context.Context, scope store.Scope, userID uuid.UUID) (bool, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.introducers {
		if existing.Scope == scope && existing.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ListIntroducers(_ context.Context, scope store.Scope) ([]store.Introducer, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []store.Introducer
	for _, i := range s.introducers {
		if i.Scope == scope {
			all = append(all, i)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].GrantedAt.Before(all[j].GrantedAt) })
	return all, nil
}

// Introductions

func (s *Store) InsertIntroduction(_ context.Context, i *store.Introduction) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.introductions {
		if existing.Scope == i.Scope && existing.ReceiverUserID == i.ReceiverUserID {
			return store.ErrAlreadyExists.Msg("receiver already has an introduction")
		}
	}
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	s.introductions[i.ID] = *i
	return nil
}

func (s *Store) GetIntroduction(_ context.Context, id uuid.UUID) (*store.Introduction, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.introductions[id]
	if !ok {
		return nil, store.ErrNotFound.Msg("introduction not found")
	}
	return &i, nil
}

func (s *Store) FindIntroduction(_ context.Context, scope store.Scope, receiverUserID uuid.UUID) (*store.Introduction, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, i := range s.introductions {
		if i.Scope == scope && i.ReceiverUserID == receiverUserID {
			out := i
			return &out, nil
		}
	}
	return nil, store.ErrNotFound.Msg("introduction not found")
}

func (s *Store) ListIntroductions(_ context.Context, scope store.Scope) ([]store.Introduction, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []store.Introduction
	for _, i := range s.introductions {
		if i.Scope == scope {
			all = append(all, i)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return all, nil
}

func (s *Store) AppendHistory(_ context.Context, item *store.IntroductionHistoryItem) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.introductions[item.IntroductionID]; !ok {
		return store.ErrNotFound.Msg("introduction not found")
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.history[item.IntroductionID] = append(s.history[item.IntroductionID], *item)
	return nil
}

func (s *Store) ListHistory(_ context.Context, introductionID uuid.UUID) ([]store.IntroductionHistoryItem, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]store.IntroductionHistoryItem, len(s.history[introductionID]))
	copy(items, s.history[introductionID])
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}

// Notification configs

func (s *Store) UpsertMQTTConfig(_ context.Context, c *store.MQTTConfig) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[c.ResourceID]; !ok {
		return store.ErrNotFound.Msg("resource not found")
	}
	c.UpdatedAt = time.Now().UTC()
	s.mqttConfigs[c.ResourceID] = *c
	return nil
}

func (s *Store) GetMQTTConfig(_ context.Context, resourceID uuid.UUID) (*store.MQTTConfig, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.mqttConfigs[resourceID]
	if !ok {
		return nil, store.ErrNotFound.Msg("mqtt config not found")
	}
	return &c, nil
}

func (s *Store) DeleteMQTTConfig(_ context.Context, resourceID uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mqttConfigs[resourceID]; !ok {
		return store.ErrNotFound.Msg("mqtt config not found")
	}
	delete(s.mqttConfigs, resourceID)
	return nil
}

func (s *Store) CreateWebhookConfig(_ context.Context, c *store.WebhookConfig) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resources[c.ResourceID]; !ok {
		return store.ErrNotFound.Msg("resource not found")
	}
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.UpdatedAt = time.Now().UTC()
	s.webhookConfigs[c.ID] = *c
	return nil
}

func (s *Store) GetWebhookConfig(_ context.Context, id uuid.UUID) (*store.WebhookConfig, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.webhookConfigs[id]
	if !ok {
		return nil, store.ErrNotFound.Msg("webhook config not found")
	}
	return &c, nil
}

func (s *Store) ListWebhookConfigs(_ context.Context, resourceID uuid.UUID) ([]store.WebhookConfig, apperrors.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []store.WebhookConfig
	for _, c := range s.webhookConfigs {
		if c.ResourceID == resourceID {
			all = append(all, c)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID.String() < all[j].ID.String() })
	return all, nil
}

func (s *Store) UpdateWebhookConfig(_ context.Context, c *store.WebhookConfig) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhookConfigs[c.ID]; !ok {
		return store.ErrNotFound.Msg("webhook config not found")
	}
	c.UpdatedAt = time.Now().UTC()
	s.webhookConfigs[c.ID] = *c
	return nil
}

func (s *Store) DeleteWebhookConfig(_ context.Context, id uuid.UUID) apperrors.Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.webhookConfigs[id]; !ok {
		return store.ErrNotFound.Msg("webhook config not found")
	}
	delete(s.webhookConfigs, id)
	return nil
}

func paginate[T any](all []T, page, limit int) []T {
	if limit <= 0 {
		return all
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

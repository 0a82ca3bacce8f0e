package store

import (
	"context"
	"time"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/plugin/ai/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// instanceSettingCache caches setting values by name.
	instanceSettingCache *cache.Service[*InstanceSetting]
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		instanceSettingCache: cache.NewService[*InstanceSetting](cache.ServiceConfig{
			Capacity:        100,
			DefaultTTL:      10 * time.Minute,
			CleanupInterval: 5 * time.Minute,
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	s.instanceSettingCache.Close()
	return s.driver.Close()
}

func (s *Store) CreateConversation(ctx context.Context, create *Conversation) (*Conversation, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = create.CreatedTs
	}
	return s.driver.CreateConversation(ctx, create)
}

func (s *Store) ListConversations(ctx context.Context, find *FindConversation) ([]*Conversation, error) {
	return s.driver.ListConversations(ctx, find)
}

func (s *Store) GetConversation(ctx context.Context, find *FindConversation) (*Conversation, error) {
	list, err := s.driver.ListConversations(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateConversation(ctx context.Context, update *UpdateConversation) (*Conversation, error) {
	return s.driver.UpdateConversation(ctx, update)
}

func (s *Store) DeleteConversation(ctx context.Context, delete *DeleteConversation) error {
	return s.driver.DeleteConversation(ctx, delete)
}

// CreateConversationTurn stores a turn and bumps the conversation's updated time.
func (s *Store) CreateConversationTurn(ctx context.Context, create *ConversationTurn) (*ConversationTurn, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	turn, err := s.driver.CreateConversationTurn(ctx, create)
	if err != nil {
		return nil, err
	}
	updatedTs := turn.CreatedTs
	if _, err := s.driver.UpdateConversation(ctx, &UpdateConversation{ID: turn.ConversationID, UpdatedTs: &updatedTs}); err != nil {
		return nil, err
	}
	return turn, nil
}

func (s *Store) ListConversationTurns(ctx context.Context, find *FindConversationTurn) ([]*ConversationTurn, error) {
	return s.driver.ListConversationTurns(ctx, find)
}

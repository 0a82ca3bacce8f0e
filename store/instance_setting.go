package store

import (
	"context"
)

// Instance setting names.
const (
	InstanceSettingSchemaVersion = "SCHEMA_VERSION"
	InstanceSettingSecret        = "SECRET"
	InstanceSettingOpenAIAPIKey  = "OPENAI_API_KEY"
)

type InstanceSetting struct {
	Name        string
	Value       string
	Description string
}

type FindInstanceSetting struct {
	Name string
}

type DeleteInstanceSetting struct {
	Name string
}

func (s *Store) UpsertInstanceSetting(ctx context.Context, upsert *InstanceSetting) (*InstanceSetting, error) {
	setting, err := s.driver.UpsertInstanceSetting(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.instanceSettingCache.Set(setting.Name, setting, 0)
	return setting, nil
}

func (s *Store) ListInstanceSettings(ctx context.Context, find *FindInstanceSetting) ([]*InstanceSetting, error) {
	list, err := s.driver.ListInstanceSettings(ctx, find)
	if err != nil {
		return nil, err
	}
	for _, setting := range list {
		s.instanceSettingCache.Set(setting.Name, setting, 0)
	}
	return list, nil
}

// GetInstanceSetting returns the named setting, or nil when it does not exist.
func (s *Store) GetInstanceSetting(ctx context.Context, name string) (*InstanceSetting, error) {
	if setting, ok := s.instanceSettingCache.Get(name); ok {
		return setting, nil
	}
	list, err := s.ListInstanceSettings(ctx, &FindInstanceSetting{Name: name})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) DeleteInstanceSetting(ctx context.Context, delete *DeleteInstanceSetting) error {
	if err := s.driver.DeleteInstanceSetting(ctx, delete); err != nil {
		return err
	}
	s.instanceSettingCache.Invalidate(delete.Name)
	return nil
}

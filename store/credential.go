package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"io"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	apiKeyPrefix = "sk-"
	nonceSize    = 24
)

// ErrInvalidAPIKey is returned for keys that are not OpenAI secret keys.
var ErrInvalidAPIKey = errors.New("API key must start with \"sk-\"")

var secretMu sync.Mutex

// ValidateAPIKey checks the shape of an OpenAI API key.
func ValidateAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if !strings.HasPrefix(key, apiKeyPrefix) || len(key) == len(apiKeyPrefix) {
		return ErrInvalidAPIKey
	}
	return nil
}

// MaskAPIKey hides all but the prefix and the last four characters of a key.
func MaskAPIKey(key string) string {
	if len(key) <= len(apiKeyPrefix)+4 {
		return apiKeyPrefix + "****"
	}
	return apiKeyPrefix + "****" + key[len(key)-4:]
}

// SetOpenAIAPIKey validates the key and stores it encrypted with the instance secret.
func (s *Store) SetOpenAIAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if err := ValidateAPIKey(key); err != nil {
		return err
	}

	secret, err := s.instanceSecret(ctx)
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return errors.Wrap(err, "failed to generate nonce")
	}
	sealed := secretbox.Seal(nonce[:], []byte(key), &nonce, secret)

	_, err = s.UpsertInstanceSetting(ctx, &InstanceSetting{
		Name:        InstanceSettingOpenAIAPIKey,
		Value:       base64.StdEncoding.EncodeToString(sealed),
		Description: "encrypted OpenAI API key",
	})
	return errors.Wrap(err, "failed to save API key")
}

// GetOpenAIAPIKey returns the stored key, or "" when none is stored.
func (s *Store) GetOpenAIAPIKey(ctx context.Context) (string, error) {
	setting, err := s.GetInstanceSetting(ctx, InstanceSettingOpenAIAPIKey)
	if err != nil {
		return "", errors.Wrap(err, "failed to get API key")
	}
	if setting == nil || setting.Value == "" {
		return "", nil
	}

	sealed, err := base64.StdEncoding.DecodeString(setting.Value)
	if err != nil {
		return "", errors.Wrap(err, "failed to decode API key")
	}
	if len(sealed) < nonceSize+secretbox.Overhead {
		return "", errors.New("stored API key is truncated")
	}

	secret, err := s.instanceSecret(ctx)
	if err != nil {
		return "", err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])
	plain, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, secret)
	if !ok {
		return "", errors.New("failed to decrypt API key")
	}
	return string(plain), nil
}

// DeleteOpenAIAPIKey removes the stored key.
func (s *Store) DeleteOpenAIAPIKey(ctx context.Context) error {
	return s.DeleteInstanceSetting(ctx, &DeleteInstanceSetting{Name: InstanceSettingOpenAIAPIKey})
}

// instanceSecret returns the secretbox key of this instance, creating it on first use.
func (s *Store) instanceSecret(ctx context.Context) (*[32]byte, error) {
	secretMu.Lock()
	defer secretMu.Unlock()

	setting, err := s.GetInstanceSetting(ctx, InstanceSettingSecret)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get instance secret")
	}

	var key [32]byte
	if setting != nil && setting.Value != "" {
		raw, err := hex.DecodeString(setting.Value)
		if err != nil || len(raw) != len(key) {
			return nil, errors.New("instance secret is corrupted")
		}
		copy(key[:], raw)
		return &key, nil
	}

	if _, err := io.ReadFull(rand.Reader, key[:]); err != nil {
		return nil, errors.Wrap(err, "failed to generate instance secret")
	}
	if _, err := s.UpsertInstanceSetting(ctx, &InstanceSetting{
		Name:        InstanceSettingSecret,
		Value:       hex.EncodeToString(key[:]),
		Description: "instance encryption secret",
	}); err != nil {
		return nil, errors.Wrap(err, "failed to save instance secret")
	}
	return &key, nil
}

package test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/atlas/store"
)

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		key     string
		wantErr bool
	}{
		{"sk-abc123", false},
		{"  sk-proj-xyz  ", false},
		{"sk-", true},
		{"pk-abc", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			err := store.ValidateAPIKey(tt.key)
			if tt.wantErr {
				assert.ErrorIs(t, err, store.ErrInvalidAPIKey)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "sk-****wxyz", store.MaskAPIKey("sk-abcdefghijklmnopqrstuvwxyz"))
	assert.Equal(t, "sk-****", store.MaskAPIKey("sk-ab"))
}

func TestOpenAIAPIKeyStore(t *testing.T) {
	ctx := context.Background()
	ts := NewTestingStore(ctx, t)

	key, err := ts.GetOpenAIAPIKey(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)

	require.ErrorIs(t, ts.SetOpenAIAPIKey(ctx, "not-a-key"), store.ErrInvalidAPIKey)

	require.NoError(t, ts.SetOpenAIAPIKey(ctx, " sk-secret-1234 "))
	key, err = ts.GetOpenAIAPIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret-1234", key)

	setting, err := ts.GetInstanceSetting(ctx, store.InstanceSettingOpenAIAPIKey)
	require.NoError(t, err)
	require.NotNil(t, setting)
	assert.NotContains(t, setting.Value, "sk-secret", "the key is stored encrypted")

	require.NoError(t, ts.SetOpenAIAPIKey(ctx, "sk-rotated-5678"))
	key, err = ts.GetOpenAIAPIKey(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-rotated-5678", key)

	require.NoError(t, ts.DeleteOpenAIAPIKey(ctx))
	key, err = ts.GetOpenAIAPIKey(ctx)
	require.NoError(t, err)
	assert.Empty(t, key)
}

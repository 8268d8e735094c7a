package openai

import (
	"errors"
	"testing"

	backendtypes "healthchat/pkg/backend/types"
	"healthchat/pkg/config"

	osdk "github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := config.Default()
	cfg.Backend.OpenAI.Model = "gpt-5.2"

	_, err := New(cfg)
	require.Error(t, err)
}

func TestNewRequiresModel(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	_, err := New(config.Default())
	require.Error(t, err)
}

func TestNewUsesConfiguredAPIKeyEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("TEST_OPENAI_API_KEY", "sk-test")

	cfg := config.Default()
	cfg.Backend.OpenAI.APIKeyEnv = "TEST_OPENAI_API_KEY"
	cfg.Backend.OpenAI.Model = "openai/gpt-5.2"

	client, err := New(cfg)
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "gpt-5.2", client.model)
	assert.Contains(t, client.instructions, "healthcare")
}

func TestNewPrefersInstructionOverride(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")

	cfg := config.Default()
	cfg.Backend.OpenAI.Model = "gpt-5.2"
	cfg.Backend.OpenAI.Instructions = "Answer briefly."

	client, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Answer briefly.", client.instructions)
}

func TestResolveAPIKeyFallsBackToDefaultEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-default")
	t.Setenv("TEST_OPENAI_API_KEY", "")

	got := resolveAPIKey(config.OpenAIBackendConfig{APIKeyEnv: "TEST_OPENAI_API_KEY"})
	assert.Equal(t, "sk-default", got)
}

func TestNormalizeModel(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "plain model", input: "gpt-5.2", want: "gpt-5.2"},
		{name: "openai prefix", input: "openai/gpt-5.2", want: "gpt-5.2"},
		{name: "other provider", input: "anthropic/claude", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeModel(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAPIStatus(t *testing.T) {
	status, _, ok := apiStatus(&osdk.Error{StatusCode: 429})
	require.True(t, ok)
	assert.Equal(t, 429, status)

	_, _, ok = apiStatus(errors.New("dial tcp: connection refused"))
	assert.False(t, ok)
}

func TestKindsForTransportErrors(t *testing.T) {
	err := backendtypes.NetworkFailure("send", errors.New("timeout"))
	assert.Equal(t, backendtypes.KindNetworkFailure, backendtypes.KindOf(err))
}

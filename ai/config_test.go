package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, cfg.EmbeddingHost, cfg.GeneratorHost)
}

func TestConfigOptions(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://gpu-box:9100"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithGeneratorModel("gpt-4o-mini"),
		WithAPIKey("sk-test"),
	)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://gpu-box:9100/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://gpu-box:9100/v1", cfg.ExtractorHost)
	assert.Equal(t, "http://gpu-box:9100/v1", cfg.GeneratorHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.GeneratorModel)
	assert.Equal(t, "sk-test", cfg.APIKey)
}

func TestConfigNormalize(t *testing.T) {
	cfg := NewConfig(WithHost("http://localhost:11434/"))
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)

	// Already normalized hosts are left alone.
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
}

func TestConfigValidateMissingFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EmbeddingModel = ""
	assert.Error(t, cfg.Validate())
}

func TestParseProviderKind(t *testing.T) {
	kind, err := ParseProviderKind("")
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, kind)

	kind, err = ParseProviderKind("Mistral")
	require.NoError(t, err)
	assert.Equal(t, ProviderMistral, kind)

	_, err = ParseProviderKind("gemini-flash")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleSystem, NormalizeRole("system"))
	assert.Equal(t, RoleAssistant, NormalizeRole("assistant"))
	assert.Equal(t, RoleAssistant, NormalizeRole("ai"))
	assert.Equal(t, RoleUser, NormalizeRole("user"))
	assert.Equal(t, RoleUser, NormalizeRole("tool"))
	assert.Equal(t, RoleUser, NormalizeRole(""))
}

func TestValidRelationType(t *testing.T) {
	assert.True(t, ValidRelationType("treats"))
	assert.False(t, ValidRelationType("is-friends-with"))
}

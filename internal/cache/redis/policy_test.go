package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheableRequiresMinimumConfidence(t *testing.T) {
	p := DefaultPolicy()

	assert.False(t, p.Cacheable(0.59, "A altura máxima é de 52 metros."))
	assert.True(t, p.Cacheable(0.60, "A altura máxima é de 52 metros."))
	assert.True(t, p.Cacheable(0.95, "A altura máxima é de 52 metros."))
}

func TestFailureResponsesAreNeverCached(t *testing.T) {
	p := DefaultPolicy()

	failures := []string{
		"Não tenho informações sobre esse tema no momento.",
		"Desculpe, não consegui processar sua pergunta.",
		"Não encontrei dados sobre esse bairro.",
		"A plataforma ainda está em versão Beta.",
		"Ocorreu um erro interno no servidor.",
	}

	for _, response := range failures {
		assert.False(t, p.Cacheable(0.99, response), "should reject: %s", response)
	}
}

func TestTTLGrowsWithConfidence(t *testing.T) {
	p := DefaultPolicy()

	base := p.TTLFor(0.7, "general")
	high := p.TTLFor(0.85, "general")
	top := p.TTLFor(0.95, "general")

	assert.Equal(t, 30*time.Minute, base)
	assert.Equal(t, 45*time.Minute, high)
	assert.Equal(t, 60*time.Minute, top)
}

func TestTTLVariesByCategory(t *testing.T) {
	p := DefaultPolicy()

	assert.Equal(t, 60*time.Minute, p.TTLFor(0.7, "legal"))
	assert.Equal(t, 45*time.Minute, p.TTLFor(0.7, "construction"))
	assert.Equal(t, 24*time.Minute, p.TTLFor(0.7, "analysis"))
	assert.Equal(t, 15*time.Minute, p.TTLFor(0.7, "calculation"))
	// Unknown categories keep the base TTL.
	assert.Equal(t, 30*time.Minute, p.TTLFor(0.7, "unknown"))
}

func TestTTLStacksConfidenceAndCategory(t *testing.T) {
	p := DefaultPolicy()

	// 30min * 2 (confidence >= 0.9) * 2 (legal).
	assert.Equal(t, 2*time.Hour, p.TTLFor(0.92, "legal"))
}

func TestResponseKeyIgnoresCaseAndSpacing(t *testing.T) {
	a := ResponseKey("Qual a ALTURA máxima?", "ctx")
	b := ResponseKey("qual  a altura   máxima?", "ctx")
	c := ResponseKey("qual a altura máxima?", "outro ctx")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

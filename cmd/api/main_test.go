package main

import (
	"context"
	"testing"
	"time"

	"github.com/school-notify-api/internal/config"
	"github.com/school-notify-api/internal/infrastructure/push"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushConfig(env, provider string) *config.Config {
	return &config.Config{
		AppEnv: env,
		Push: config.Push{
			Provider:    provider,
			ExpoURL:     "http://127.0.0.1:1/push",
			SendTimeout: time.Second,
			MaxAttempts: 1,
		},
	}
}

func TestNewPushProvider_UnknownProviderFails(t *testing.T) {
	p, err := newPushProvider(context.Background(), pushConfig("production", "pigeon"))
	assert.Nil(t, p)
	assert.ErrorContains(t, err, `unknown push provider "pigeon"`)
}

func TestNewPushProvider_LogOnlyInDevelopment(t *testing.T) {
	p, err := newPushProvider(context.Background(), pushConfig("development", "log"))
	require.NoError(t, err)
	assert.Equal(t, push.LogProvider{}, p)

	p, err = newPushProvider(context.Background(), pushConfig("production", "log"))
	assert.Nil(t, p)
	assert.Error(t, err)
}

func TestNewPushProvider_WrapsRealProvider(t *testing.T) {
	p, err := newPushProvider(context.Background(), pushConfig("production", "expo"))
	require.NoError(t, err)
	assert.IsType(t, &push.Resilient{}, p)
	assert.Equal(t, "expo", p.Name())
}

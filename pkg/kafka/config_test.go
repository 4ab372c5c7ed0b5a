package kafka

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFollowerConfig_WithDefaults_EmptyConfig(t *testing.T) {
	cfg := FollowerConfig{}.WithDefaults()

	assert.True(t, strings.HasPrefix(cfg.GroupID, "logwindow-"), "group id should be generated")
	assert.Equal(t, "earliest", cfg.AutoOffsetReset)
	assert.Equal(t, DefaultSessionTimeout, cfg.SessionTimeout)
	assert.Equal(t, DefaultPollTimeout, cfg.PollTimeout)
}

func TestFollowerConfig_WithDefaults_UniqueGroups(t *testing.T) {
	a := FollowerConfig{}.WithDefaults()
	b := FollowerConfig{}.WithDefaults()
	assert.NotEqual(t, a.GroupID, b.GroupID, "each viewer should read the topic on its own")
}

func TestFollowerConfig_WithDefaults_KeepsCustomValues(t *testing.T) {
	cfg := FollowerConfig{
		GroupID:         "shared",
		AutoOffsetReset: "latest",
		SessionTimeout:  time.Minute,
		PollTimeout:     time.Second,
	}.WithDefaults()

	assert.Equal(t, "shared", cfg.GroupID)
	assert.Equal(t, "latest", cfg.AutoOffsetReset)
	assert.Equal(t, time.Minute, cfg.SessionTimeout)
	assert.Equal(t, time.Second, cfg.PollTimeout)
}

func TestFollowerConfig_Validate(t *testing.T) {
	valid := FollowerConfig{Topic: "t", BootstrapServers: "localhost:9092"}.WithDefaults()
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*FollowerConfig)
	}{
		{name: "empty topic", mutate: func(c *FollowerConfig) { c.Topic = "" }},
		{name: "empty servers", mutate: func(c *FollowerConfig) { c.BootstrapServers = "" }},
		{name: "bad offset reset", mutate: func(c *FollowerConfig) { c.AutoOffsetReset = "middle" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFollowerConfig_FromEnv(t *testing.T) {
	t.Setenv("KAFKA_TOPIC", "builds")
	t.Setenv("KAFKA_BOOTSTRAP_SERVERS", "broker:29092")
	t.Setenv("KAFKA_GROUP_ID", "viewer-1")
	t.Setenv("KAFKA_POLL_TIMEOUT", "250ms")

	cfg, err := LoadFollowerConfig()
	require.NoError(t, err)
	assert.Equal(t, "builds", cfg.Topic)
	assert.Equal(t, "broker:29092", cfg.BootstrapServers)
	assert.Equal(t, "viewer-1", cfg.GroupID)
	assert.Equal(t, 250*time.Millisecond, cfg.PollTimeout)
	assert.Equal(t, 45*time.Second, cfg.SessionTimeout)
}

func TestLoadFollowerConfig_InvalidDuration(t *testing.T) {
	t.Setenv("KAFKA_SESSION_TIMEOUT", "soon")

	_, err := LoadFollowerConfig()
	require.Error(t, err)
}

func TestLoadPublisherConfig_Defaults(t *testing.T) {
	cfg, err := LoadPublisherConfig()
	require.NoError(t, err)
	assert.Equal(t, "job-output", cfg.Topic)
	assert.Equal(t, DefaultFlushTimeout, cfg.FlushTimeout)

	topic := cfg.TopicConfig()
	assert.Equal(t, TopicConfig{Name: "job-output", NumPartitions: 1, ReplicationFactor: 1}, topic)
	require.NoError(t, topic.Validate())
}

func TestPublisherConfig_WithDefaults(t *testing.T) {
	cfg := PublisherConfig{Topic: "t", NumPartitions: -1}.WithDefaults()
	assert.Equal(t, 1, cfg.NumPartitions)
	assert.Equal(t, 1, cfg.ReplicationFactor)
	assert.Equal(t, DefaultFlushTimeout, cfg.FlushTimeout)
}

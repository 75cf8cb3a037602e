package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nutrigraph/nutribot/backend/internal/analysis/topic"
)

func TestAskOfflinePrintsFallback(t *testing.T) {
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs([]string{
		"ask", "--offline", "--json",
		"--env-file", filepath.Join(t.TempDir(), "missing.env"),
		"How", "many", "calories", "in", "rice?",
	})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	var got struct {
		Reply    string `json:"reply"`
		Fallback bool   `json:"fallback"`
		Kind     string `json:"kind"`
		Topic    string `json:"topic"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.True(t, got.Fallback)
	assert.Equal(t, "transport_error", got.Kind)
	assert.Equal(t, string(topic.Nutrition), got.Topic)
	assert.Equal(t, topic.Answer(topic.Nutrition), got.Reply)
}

package alertconfig

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mill-alert-service/internal/models"
)

func TestConfigCompleteness(t *testing.T) {
	require.NoError(t, Validate())

	for _, typ := range models.AllAlertTypes() {
		cfg, err := Config(typ)
		require.NoError(t, err, "type %s must be configured", typ)
		assert.Equal(t, typ, cfg.Type)
		assert.NotEmpty(t, cfg.Channels)
		assert.NotEmpty(t, cfg.ActionRequired)

		require.NotEmpty(t, cfg.Levels)
		for i, lvl := range cfg.Levels {
			assert.Equal(t, i+1, lvl.Level, "type %s levels must be numbered 1..N contiguously", typ)
			assert.Greater(t, lvl.TimeoutMinutes, 0)
			assert.NotEmpty(t, lvl.Roles)
		}
	}
}

func TestConfigUnknownType(t *testing.T) {
	_, err := Config(models.AlertType("VOLCANO_ERUPTION"))
	assert.ErrorIs(t, err, ErrUnknownAlertType)
}

func TestAllCoversEveryType(t *testing.T) {
	assert.Len(t, All(), len(models.AllAlertTypes()))
}

func TestTitle(t *testing.T) {
	title := Title(models.AlertQCFailure, models.AlertContext{})
	assert.Equal(t, "[CRITICAL] QC Failure", title)
}

func TestMessageSMSTruncation(t *testing.T) {
	ctx := models.AlertContext{
		Summary: strings.Repeat("fortification sample out of range ", 10),
		Link:    "https://mills.example.org/alerts/abc",
	}
	msg := Message(models.AlertQCFailure, ctx, models.ChannelSMS)
	assert.LessOrEqual(t, utf8.RuneCountInString(msg), 160)
	assert.True(t, strings.HasPrefix(msg, "CRITICAL QC Failure:"))
}

func TestMessageSMSTruncationKeepsRunesIntact(t *testing.T) {
	ctx := models.AlertContext{
		Summary: strings.Repeat("échantillon hors norme ", 12),
	}
	msg := Message(models.AlertQCFailure, ctx, models.ChannelSMS)
	assert.LessOrEqual(t, utf8.RuneCountInString(msg), 160)
	assert.True(t, utf8.ValidString(msg), "truncation must not split a rune")
	assert.True(t, strings.HasSuffix(msg, "..."))
}

func TestMessageSMSShortKeepsLink(t *testing.T) {
	ctx := models.AlertContext{Summary: "iron below spec", Link: "https://m.example/a/1"}
	msg := Message(models.AlertQCFailure, ctx, models.ChannelSMS)
	assert.Contains(t, msg, "iron below spec")
	assert.Contains(t, msg, "https://m.example/a/1")
}

func TestMessagePushIsTitleOnly(t *testing.T) {
	ctx := models.AlertContext{Message: "long detail\nwith more lines"}
	msg := Message(models.AlertEquipmentFailure, ctx, models.ChannelPush)
	assert.Equal(t, Title(models.AlertEquipmentFailure, ctx), msg)
	assert.NotContains(t, msg, "long detail")
}

func TestMessageEmailFullDetail(t *testing.T) {
	deadline := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ctx := models.AlertContext{
		MillID:   7,
		BatchID:  "B-1042",
		Message:  "Vitamin A premix dosing drifted below target",
		Deadline: &deadline,
		Link:     "https://mills.example.org/batches/B-1042",
	}
	msg := Message(models.AlertQCFailure, ctx, models.ChannelEmail)
	assert.Contains(t, msg, "Vitamin A premix dosing drifted below target")
	assert.Contains(t, msg, "Batch: B-1042")
	assert.Contains(t, msg, "Mill: 7")
	assert.Contains(t, msg, "Action required:")
	assert.Contains(t, msg, "Deadline: 2025-06-01 12:00")
	assert.Contains(t, msg, ctx.Link)
}

func TestMessageFallbackWithoutContext(t *testing.T) {
	msg := Message(models.AlertTrainingExpired, models.AlertContext{}, models.ChannelInApp)
	assert.Contains(t, msg, "Training Expired")

	sms := Message(models.AlertRFPDeadline, models.AlertContext{}, models.ChannelSMS)
	assert.Contains(t, sms, "RFP Deadline")
}

// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package delivery

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/models"
)

// Telegram delivery policy.
const (
	TelegramTimeout         = 15 * time.Second
	TelegramFallbackTimeout = 10 * time.Second
	TelegramMaxAttempts     = 3
	TelegramBackoff         = 2 * time.Second // multiplied by the attempt number

	// telegramFallbackAttempt is the attempt whose photo failure switches
	// the recipient to a text-only send.
	telegramFallbackAttempt = TelegramMaxAttempts - 1

	telegramTextLimit    = 4096
	telegramCaptionLimit = 1024
)

// TelegramChannel implements Telegram Bot API delivery.
type TelegramChannel struct {
	cfg  config.TelegramConfig
	opts options
}

// NewTelegramChannel creates a channel for one configuration snapshot.
func NewTelegramChannel(cfg config.TelegramConfig, opts ...Option) *TelegramChannel {
	return &TelegramChannel{cfg: cfg, opts: buildOptions(TelegramTimeout, opts)}
}

// Name returns the channel identifier.
func (c *TelegramChannel) Name() string { return ChannelTelegram }

// Validate requires a bot token and at least one chat id.
func (c *TelegramChannel) Validate() error {
	if err := c.cfg.Status().Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return nil
}

// telegramPhotoRequest is the sendPhoto body.
type telegramPhotoRequest struct {
	ChatID              string `json:"chat_id"`
	Photo               string `json:"photo"`
	Caption             string `json:"caption"`
	ParseMode           string `json:"parse_mode"`
	DisableNotification bool   `json:"disable_notification"`
}

// telegramMessageRequest is the sendMessage body.
type telegramMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// telegramAPIResponse is the common Bot API envelope.
type telegramAPIResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Send delivers msg to every admin and user chat. Each recipient is retried
// independently; one exhausted recipient does not stop the others.
func (c *TelegramChannel) Send(ctx context.Context, msg *models.RenderedMessage) ([]DeliveryResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("<b>%s</b>\n%s", msg.Title, msg.Body)
	recipients := c.cfg.Recipients()
	results := make([]DeliveryResult, 0, len(recipients))
	for _, chatID := range recipients {
		res := c.deliver(ctx, chatID, text, msg.ImageURL)
		if res.Success {
			logging.Ctx(ctx).Info().Str("chat_id", chatID).Int("attempts", res.Attempts).
				Bool("fallback", res.Fallback).Msg("Telegram notification sent")
		} else {
			logging.CtxWarn(ctx).Str("chat_id", chatID).Int("attempts", res.Attempts).
				Str("error_code", res.ErrorCode).Str("error", res.ErrorMessage).Msg("Telegram delivery exhausted")
		}
		results = append(results, res)
	}
	return results, nil
}

// deliver runs the attempt loop for one chat:
//
//	attempting -(ok)-> succeeded
//	attempting -(fail, attempts left)-> backoff -> attempting
//	attempting -(photo fail on attempt 2)-> fallback (one text send) -> done
//	attempting -(fail, no attempts left)-> exhausted
func (c *TelegramChannel) deliver(ctx context.Context, chatID, text, imageURL string) DeliveryResult {
	res := DeliveryResult{Channel: ChannelTelegram, Recipient: chatID, State: StateAttempting}

	for attempt := 1; attempt <= TelegramMaxAttempts; attempt++ {
		res.Attempts = attempt
		metrics.RecordDeliveryAttempt(ChannelTelegram)

		var err error
		if imageURL != "" {
			err = c.sendPhoto(ctx, chatID, imageURL, text)
		} else {
			err = c.sendMessage(ctx, chatID, text, TelegramTimeout)
		}
		if err == nil {
			res.succeed()
			return res
		}
		res.fail(asFailure(err))
		logging.CtxWarn(ctx).Str("chat_id", chatID).Int("attempt", attempt).
			Str("error", res.ErrorMessage).Msg("Telegram send failed")

		if imageURL != "" && attempt == telegramFallbackAttempt {
			return c.fallback(ctx, res, chatID, text)
		}
		if attempt < TelegramMaxAttempts {
			if err := c.opts.sleep(ctx, TelegramBackoff*time.Duration(attempt)); err != nil {
				res.fail(&failure{code: ErrorCodeTimeout, message: err.Error()})
				break
			}
		}
	}

	res.State = StateExhausted
	return res
}

// fallback sends the text without the image once. Its outcome is final.
func (c *TelegramChannel) fallback(ctx context.Context, res DeliveryResult, chatID, text string) DeliveryResult {
	res.State = StateFallback
	res.Fallback = true
	res.Attempts++
	metrics.RecordDeliveryAttempt(ChannelTelegram)

	if err := c.sendMessage(ctx, chatID, text, TelegramFallbackTimeout); err != nil {
		res.fail(asFailure(err))
		return res
	}
	res.succeed()
	return res
}

func (c *TelegramChannel) sendPhoto(ctx context.Context, chatID, photo, caption string) error {
	return c.call(ctx, "sendPhoto", TelegramTimeout, telegramPhotoRequest{
		ChatID:    chatID,
		Photo:     photo,
		Caption:   TruncateRunes(caption, telegramCaptionLimit),
		ParseMode: "HTML",
	})
}

func (c *TelegramChannel) sendMessage(ctx context.Context, chatID, text string, timeout time.Duration) error {
	return c.call(ctx, "sendMessage", timeout, telegramMessageRequest{
		ChatID:                chatID,
		Text:                  TruncateRunes(text, telegramTextLimit),
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
}

// call posts to a Bot API method. Success needs HTTP 200 and "ok": true.
func (c *TelegramChannel) call(ctx context.Context, method string, timeout time.Duration, body any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/bot%s/%s", c.cfg.APIURL, c.cfg.Token, method)
	var resp telegramAPIResponse
	status, err := doJSON(ctx, c.opts.client, http.MethodPost, endpoint, body, &resp)
	if err != nil {
		return err
	}
	if status == http.StatusOK && resp.OK {
		return nil
	}

	code := classifyHTTPStatusCode(status)
	if resp.ErrorCode != 0 {
		code = classifyTelegramError(resp.ErrorCode)
	}
	desc := resp.Description
	if desc == "" {
		desc = fmt.Sprintf("HTTP %d without ok acknowledgment", status)
	}
	return &failure{code: code, message: desc, status: status}
}

// classifyTelegramError maps a Bot API error_code to an error code.
func classifyTelegramError(code int) string {
	switch {
	case code == 401 || code == 403:
		return ErrorCodeAuthFailed
	case code == 429:
		return ErrorCodeRateLimited
	case code >= 500:
		return ErrorCodeServerError
	case code >= 400:
		return ErrorCodeAPIError
	default:
		return ErrorCodeUnknown
	}
}

// Emby Notify - Emby webhook notification relay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embynotify

package delivery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/embynotify/internal/config"
	"github.com/tomtom215/embynotify/internal/logging"
	"github.com/tomtom215/embynotify/internal/metrics"
	"github.com/tomtom215/embynotify/internal/models"
)

// WeCom delivery policy.
const (
	WeComTimeout     = 10 * time.Second
	WeComMaxAttempts = 2

	wecomDefaultCardURL = "https://example.com"
	wecomButtonText     = "详情"
)

// Event types that get lock markers on the WeCom title.
const (
	eventAuthenticated        = "user.authenticated"
	eventAuthenticationFailed = "user.authenticationfailed"
)

// WeComChannel implements enterprise WeChat application messages.
type WeComChannel struct {
	cfg      config.WeComConfig
	fallback string // card link when card_url is unset
	opts     options
}

// NewWeComChannel creates a channel for one configuration snapshot.
// embyURL is used as the text card link when no card_url is configured.
func NewWeComChannel(cfg config.WeComConfig, embyURL string, opts ...Option) *WeComChannel {
	return &WeComChannel{cfg: cfg, fallback: embyURL, opts: buildOptions(WeComTimeout, opts)}
}

// Name returns the channel identifier.
func (c *WeComChannel) Name() string { return ChannelWeCom }

// Validate requires corp id, secret, agent id and a target.
func (c *WeComChannel) Validate() error {
	if err := c.cfg.Status().Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	return nil
}

type wecomTokenResponse struct {
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
	AccessToken string `json:"access_token"`
}

type wecomSendResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type wecomArticle struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PicURL      string `json:"picurl"`
}

type wecomNews struct {
	Articles []wecomArticle `json:"articles"`
}

type wecomTextCard struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	BtnTxt      string `json:"btntxt"`
}

type wecomMessage struct {
	ToUser   string         `json:"touser"`
	MsgType  string         `json:"msgtype"`
	AgentID  any            `json:"agentid"`
	News     *wecomNews     `json:"news,omitempty"`
	TextCard *wecomTextCard `json:"textcard,omitempty"`
}

// Send exchanges credentials for an access token and sends one message to
// the configured target. Both calls are repeated on each attempt.
func (c *WeComChannel) Send(ctx context.Context, msg *models.RenderedMessage) ([]DeliveryResult, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	payload := c.buildMessage(msg)
	res := DeliveryResult{Channel: ChannelWeCom, Recipient: c.cfg.ToUser, State: StateAttempting}

	for attempt := 1; attempt <= WeComMaxAttempts; attempt++ {
		res.Attempts = attempt
		metrics.RecordDeliveryAttempt(ChannelWeCom)

		err := c.attempt(ctx, payload)
		if err == nil {
			res.succeed()
			logging.Ctx(ctx).Info().Str("msgtype", payload.MsgType).Int("attempts", attempt).Msg("WeCom notification sent")
			return []DeliveryResult{res}, nil
		}
		res.fail(asFailure(err))
		logging.CtxWarn(ctx).Int("attempt", attempt).Int("max_attempts", WeComMaxAttempts).
			Str("error_code", res.ErrorCode).Str("error", res.ErrorMessage).Msg("WeCom send failed")
	}

	res.State = StateExhausted
	logging.CtxWarn(ctx).Str("error", res.ErrorMessage).Msg("WeCom delivery exhausted")
	return []DeliveryResult{res}, nil
}

func (c *WeComChannel) attempt(ctx context.Context, payload wecomMessage) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, WeComTimeout)
	defer cancel()

	endpoint := c.cfg.ProxyURL + "/cgi-bin/message/send?" + url.Values{"access_token": {token}}.Encode()
	var resp wecomSendResponse
	status, err := doJSON(ctx, c.opts.client, http.MethodPost, endpoint, payload, &resp)
	if err != nil {
		return err
	}
	if resp.ErrCode != 0 || status != http.StatusOK {
		return wecomFailure("message/send", status, resp.ErrCode, resp.ErrMsg)
	}
	return nil
}

func (c *WeComChannel) accessToken(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, WeComTimeout)
	defer cancel()

	q := url.Values{"corpid": {c.cfg.CorpID}, "corpsecret": {c.cfg.Secret}}
	var resp wecomTokenResponse
	status, err := doJSON(ctx, c.opts.client, http.MethodGet, c.cfg.ProxyURL+"/cgi-bin/gettoken?"+q.Encode(), nil, &resp)
	if err != nil {
		return "", err
	}
	if resp.ErrCode != 0 || status != http.StatusOK || resp.AccessToken == "" {
		return "", wecomFailure("gettoken", status, resp.ErrCode, resp.ErrMsg)
	}
	return resp.AccessToken, nil
}

func wecomFailure(call string, status, errcode int, errmsg string) *failure {
	code := ErrorCodeAPIError
	switch {
	case status >= 400:
		code = classifyHTTPStatusCode(status)
	case errcode == 45009:
		code = ErrorCodeRateLimited
	case errcode == 40001 || errcode == 40013 || errcode == 40014 || errcode == 42001:
		code = ErrorCodeAuthFailed
	}
	return &failure{code: code, message: fmt.Sprintf("%s: errcode %d: %s", call, errcode, errmsg), status: status}
}

// buildMessage picks a news article when there is an image and a text card
// otherwise.
func (c *WeComChannel) buildMessage(msg *models.RenderedMessage) wecomMessage {
	out := wecomMessage{
		ToUser:  c.cfg.ToUser,
		AgentID: agentID(c.cfg.AgentID),
	}
	title := LoginTitle(msg.EventType, msg.Title)

	if msg.ImageURL != "" {
		out.MsgType = "news"
		out.News = &wecomNews{Articles: []wecomArticle{{
			Title:       title,
			Description: msg.Body,
			URL:         msg.ImageURL,
			PicURL:      msg.ImageURL,
		}}}
		return out
	}

	out.MsgType = "textcard"
	out.TextCard = &wecomTextCard{
		Title:       title,
		Description: strings.ReplaceAll(msg.Body, "\n", "<br>"),
		URL:         c.cardURL(),
		BtnTxt:      wecomButtonText,
	}
	return out
}

func (c *WeComChannel) cardURL() string {
	switch {
	case c.cfg.CardURL != "":
		return c.cfg.CardURL
	case c.fallback != "":
		return c.fallback
	default:
		return wecomDefaultCardURL
	}
}

// LoginTitle prefixes login event titles with lock markers unless the
// title already carries one.
func LoginTitle(eventType, title string) string {
	switch eventType {
	case eventAuthenticated:
		if !strings.ContainsAny(title, "🔑✅") {
			return "🔑+🔓 " + title
		}
	case eventAuthenticationFailed:
		if !strings.ContainsAny(title, "🔑❌") {
			return "🔑🔒 " + title
		}
	}
	return title
}

// agentID sends numeric agent ids as JSON numbers.
func agentID(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return s
}

package feishu

import (
	"context"
	"net/http"
)

const botInfoPath = "/open-apis/bot/v3/info"

// Bot is the bot identity returned by the bot info API
type Bot struct {
	BotName        string   `json:"bot_name"`
	OpenID         string   `json:"open_id"`
	AppName        string   `json:"app_name,omitempty"`
	AvatarURL      string   `json:"avatar_url,omitempty"`
	ActivateStatus int      `json:"activate_status,omitempty"`
	IPWhiteList    []string `json:"ip_white_list,omitempty"`
}

// BotInfoData is the nested payload shape of the bot info API
type BotInfoData struct {
	Bot *Bot `json:"bot,omitempty"`
}

// BotInfoResponse is the body of GET /open-apis/bot/v3/info. The API has
// been observed to return the bot either at the top level or under data.
type BotInfoResponse struct {
	Code    int          `json:"code"`
	Msg     string       `json:"msg"`
	RootBot *Bot         `json:"bot,omitempty"`
	Data    *BotInfoData `json:"data,omitempty"`
}

// Bot returns the top-level bot if present, else data.bot, else nil
func (r *BotInfoResponse) Bot() *Bot {
	if r == nil {
		return nil
	}
	if r.RootBot != nil {
		return r.RootBot
	}
	if r.Data != nil {
		return r.Data.Bot
	}
	return nil
}

// BotInfo fetches the bot identity of the app
func (c *Client) BotInfo(ctx context.Context) (*BotInfoResponse, error) {
	token, err := c.TenantAccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var resp BotInfoResponse
	if err := c.do(ctx, http.MethodGet, botInfoPath, nil, token, &resp); err != nil {
		return nil, err
	}

	return &resp, nil
}

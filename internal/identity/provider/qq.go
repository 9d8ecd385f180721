// Package provider holds the third-party identity providers used by the
// external login strategies.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"nexus-auth/backend/internal/identity/domain"
)

// DefaultQQBaseURL is the QQ Connect API host.
const DefaultQQBaseURL = "https://graph.qq.com"

const defaultTimeout = 15 * time.Second

// QQ exchanges QQ Connect authorization codes for the user's open id and profile.
type QQ struct {
	conf       *oauth2.Config
	baseURL    string
	httpClient *http.Client
}

// NewQQ returns a QQ provider. baseURL may be empty for the public API.
func NewQQ(clientID, clientSecret, redirectURL, baseURL string) *QQ {
	if baseURL == "" {
		baseURL = DefaultQQBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &QQ{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/oauth2.0/authorize",
				TokenURL:  baseURL + "/oauth2.0/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"get_user_info"},
		},
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

// AuthCodeURL returns the URL the browser is sent to for consent.
func (q *QQ) AuthCodeURL(state string) string {
	return q.conf.AuthCodeURL(state)
}

type openIDResponse struct {
	ClientID string `json:"client_id"`
	OpenID   string `json:"openid"`
	Error    int    `json:"error"`
	Desc     string `json:"error_description"`
}

type userInfoResponse struct {
	Ret         int    `json:"ret"`
	Msg         string `json:"msg"`
	Nickname    string `json:"nickname"`
	FigureURLQQ string `json:"figureurl_qq"`
	FigureURL2  string `json:"figureurl_qq_2"`
}

// ExchangeCode implements the identity provider used by the QQ login strategy.
func (q *QQ) ExchangeCode(ctx context.Context, code string) (*domain.ExternalIdentity, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, q.httpClient)
	tok, err := q.conf.Exchange(ctx, code, oauth2.SetAuthURLParam("fmt", "json"))
	if err != nil {
		return nil, fmt.Errorf("qq: exchange code: %w", err)
	}

	var me openIDResponse
	if err := q.getJSON(ctx, "/oauth2.0/me", url.Values{
		"access_token": {tok.AccessToken},
		"fmt":          {"json"},
	}, &me); err != nil {
		return nil, err
	}
	if me.Error != 0 || me.OpenID == "" {
		return nil, fmt.Errorf("qq: resolve openid: %d %s", me.Error, me.Desc)
	}

	var info userInfoResponse
	if err := q.getJSON(ctx, "/user/get_user_info", url.Values{
		"access_token":       {tok.AccessToken},
		"oauth_consumer_key": {q.conf.ClientID},
		"openid":             {me.OpenID},
	}, &info); err != nil {
		return nil, err
	}
	if info.Ret != 0 {
		return nil, fmt.Errorf("qq: get user info: %d %s", info.Ret, info.Msg)
	}
	avatar := info.FigureURLQQ
	if avatar == "" {
		avatar = info.FigureURL2
	}
	return &domain.ExternalIdentity{
		ExternalID:  me.OpenID,
		DisplayName: info.Nickname,
		AvatarURL:   avatar,
	}, nil
}

func (q *QQ) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := q.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qq: %s: %w", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("qq: %s: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	if len(body) == 0 {
		return errors.New("qq: " + path + ": empty response")
	}
	return json.Unmarshal(body, out)
}

// Package oauth resolves social provider access tokens to e-mail addresses.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authcore"
)

// DefaultKakaoUserInfoURL is Kakao's user-info endpoint.
const DefaultKakaoUserInfoURL = "https://kapi.kakao.com/v2/user/me"

// ErrEmailUnavailable is returned when the account has no e-mail or the
// user did not consent to sharing it.
var ErrEmailUnavailable = errors.New("oauth: account e-mail unavailable")

var _ authcore.SocialEmailResolver = (*KakaoResolver)(nil)

// KakaoResolver reads the account e-mail from Kakao's user-info API.
type KakaoResolver struct {
	userInfoURL string
	httpClient  *http.Client
}

// NewKakaoResolver returns a resolver for userInfoURL, or the default
// endpoint when it is empty.
func NewKakaoResolver(userInfoURL string, client *http.Client) *KakaoResolver {
	if strings.TrimSpace(userInfoURL) == "" {
		userInfoURL = DefaultKakaoUserInfoURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &KakaoResolver{userInfoURL: userInfoURL, httpClient: client}
}

type kakaoUserInfo struct {
	KakaoAccount *struct {
		HasEmail bool   `json:"has_email"`
		Email    string `json:"email"`
	} `json:"kakao_account"`
}

func (r *KakaoResolver) ResolveEmail(ctx context.Context, accessToken string) (string, error) {
	if strings.TrimSpace(accessToken) == "" {
		return "", errors.New("oauth: access token missing")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.userInfoURL, nil)
	if err != nil {
		return "", fmt.Errorf("oauth: build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth: userinfo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("oauth: read userinfo: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("oauth: userinfo failed: status=%d", resp.StatusCode)
	}

	var info kakaoUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return "", fmt.Errorf("oauth: decode userinfo: %w", err)
	}
	if info.KakaoAccount == nil || !info.KakaoAccount.HasEmail || strings.TrimSpace(info.KakaoAccount.Email) == "" {
		return "", ErrEmailUnavailable
	}
	return info.KakaoAccount.Email, nil
}

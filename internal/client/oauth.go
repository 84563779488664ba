package client

import (
	"context"

	"golang.org/x/oauth2"
)

// Gmail 的 OAuth 端点
var GoogleEndpoint = oauth2.Endpoint{
	AuthURL:   "https://accounts.google.com/o/oauth2/auth",
	TokenURL:  "https://oauth2.googleapis.com/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

// 读取邮件所需的 scope
const GmailScope = "https://mail.google.com/"

// NewTokenSource 用 refresh token 换取并自动续期 access token
func NewTokenSource(ctx context.Context, clientID, clientSecret, refreshToken string, endpoint oauth2.Endpoint) oauth2.TokenSource {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{GmailScope},
	}
	return conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

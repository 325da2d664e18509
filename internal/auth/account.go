package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// Account identifies a signed-in user
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// claims is the subset of OIDC claims used to identify a user
type claims struct {
	Subject           string `json:"sub"`
	Name              string `json:"name"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
}

func (c claims) account() (Account, error) {
	email := c.Email
	if email == "" && strings.Contains(c.PreferredUsername, "@") {
		email = c.PreferredUsername
	}
	acc := Account{Name: c.Name, Email: email}
	switch {
	case email != "":
		acc.ID = strings.ToLower(email)
	case c.Subject != "":
		acc.ID = c.Subject
	default:
		return Account{}, fmt.Errorf("identity claims carry neither email nor subject")
	}
	if acc.Name == "" {
		acc.Name = email
	}
	return acc, nil
}

// accountFromIDToken reads identity claims from the id_token returned with
// the token response. The signature is not checked: the token arrived
// directly from the token endpoint over TLS.
func accountFromIDToken(tok *oauth2.Token) (Account, bool) {
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return Account{}, false
	}

	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, mc); err != nil {
		return Account{}, false
	}

	var c claims
	c.Subject, _ = mc["sub"].(string)
	c.Name, _ = mc["name"].(string)
	c.Email, _ = mc["email"].(string)
	c.PreferredUsername, _ = mc["preferred_username"].(string)

	acc, err := c.account()
	if err != nil {
		return Account{}, false
	}
	return acc, true
}

// fetchUserInfo queries the OIDC userinfo endpoint with the access token
func fetchUserInfo(ctx context.Context, client *http.Client, url string, tok *oauth2.Token) (Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Account{}, fmt.Errorf("failed to create userinfo request: %w", err)
	}
	tok.SetAuthHeader(req)

	resp, err := client.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("failed to fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Account{}, fmt.Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var c claims
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&c); err != nil {
		return Account{}, fmt.Errorf("failed to decode user info: %w", err)
	}
	return c.account()
}

package common

import (
	"context"
	"strings"

	"github.com/teemow/calview/internal/auth"
	"github.com/teemow/calview/internal/calendar"
	"github.com/teemow/calview/internal/server"
)

// AccountArg is the optional tool argument selecting a signed-in account
const AccountArg = "account"

// GetAccountFromArgs returns the account named by the request arguments,
// or "" when the call should act for the current account.
func GetAccountFromArgs(args map[string]interface{}) string {
	if accountVal, ok := args[AccountArg].(string); ok {
		return strings.ToLower(strings.TrimSpace(accountVal))
	}
	return ""
}

// BackendForArgs returns the calendar backend a tool call acts on.
//
// Priority order:
//  1. The account named by the "account" argument
//  2. The current account of the auth service
func BackendForArgs(ctx context.Context, sc *server.ServerContext, args map[string]interface{}) (calendar.Backend, auth.Account, error) {
	id := GetAccountFromArgs(args)
	if id == "" {
		return sc.CurrentBackend(ctx)
	}

	account, err := sc.AccountByID(ctx, id)
	if err != nil {
		return nil, auth.Account{}, err
	}
	backend, err := sc.BackendForAccount(ctx, id)
	if err != nil {
		return nil, auth.Account{}, err
	}
	return backend, account, nil
}

// auditAccount returns the e-mail recorded in audit logs for a call
func auditAccount(ctx context.Context, sc *server.ServerContext, args map[string]interface{}) string {
	if id := GetAccountFromArgs(args); id != "" {
		return id
	}
	if account, err := sc.Auth().CurrentAccount(ctx); err == nil {
		return account.Email
	}
	return ""
}

package app_test

import (
	"context"
	"testing"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
	"tenant-quiz-service/internal/infra/memory"
)

func TestClientCredentialsFlow(t *testing.T) {
	ctx := context.Background()
	clock := &manualClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	store := memory.NewClientStore()
	clients := app.NewClientServiceWithClock(store, clock.Now)
	auth := app.NewAuthenticatorWithClock(store, "test-secret", time.Hour, clock.Now)

	client, creds, err := clients.Create(ctx, "acme")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	if len(creds.ClientID) != 40 || len(creds.ClientSecret) != 40 {
		t.Fatalf("expected 40-char hex credentials, got %q / %q", creds.ClientID, creds.ClientSecret)
	}
	if client.SecretHash == creds.ClientSecret {
		t.Fatalf("expected the secret to be stored hashed")
	}

	_, err = auth.IssueToken(ctx, "password", creds.ClientID, creds.ClientSecret)
	expectKind(t, err, domain.KindInvalid, `Invalid or unsupported "grant_type".`)
	_, err = auth.IssueToken(ctx, app.GrantClientCredentials, creds.ClientID, "wrong")
	expectKind(t, err, domain.KindUnauthorized, `Invalid "client_id" or "client_secret".`)

	token, err := auth.IssueToken(ctx, app.GrantClientCredentials, creds.ClientID, creds.ClientSecret)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if token.TokenType != "Bearer" || token.ExpiresIn != time.Hour {
		t.Fatalf("unexpected token: %+v", token)
	}

	got, err := auth.Authenticate(ctx, token.AccessToken)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != client.ID {
		t.Fatalf("expected tenant %s, got %s", client.ID, got.ID)
	}

	clock.Advance(2 * time.Hour)
	_, err = auth.Authenticate(ctx, token.AccessToken)
	expectKind(t, err, domain.KindUnauthorized, `Invalid or expired "access_token".`)
}

func TestDeactivatedAndRotatedClientsLoseAccess(t *testing.T) {
	ctx := context.Background()
	store := memory.NewClientStore()
	clients := app.NewClientService(store)
	auth := app.NewAuthenticator(store, "test-secret", time.Hour)

	client, creds, err := clients.Create(ctx, "acme")
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	token, err := auth.IssueToken(ctx, app.GrantClientCredentials, creds.ClientID, creds.ClientSecret)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	if _, err := clients.Deactivate(ctx, client.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err = clients.Deactivate(ctx, client.ID)
	expectKind(t, err, domain.KindInvalid, "This client is already inactive.")
	_, err = auth.Authenticate(ctx, token.AccessToken)
	expectKind(t, err, domain.KindUnauthorized, "")
	_, err = auth.IssueToken(ctx, app.GrantClientCredentials, creds.ClientID, creds.ClientSecret)
	expectKind(t, err, domain.KindUnauthorized, "")

	if _, err := clients.Activate(ctx, client.ID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	rotated, err := clients.RegenerateCredentials(ctx, client.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	_, err = auth.Authenticate(ctx, token.AccessToken)
	expectKind(t, err, domain.KindUnauthorized, "")

	fresh, err := auth.IssueToken(ctx, app.GrantClientCredentials, rotated.ClientID, rotated.ClientSecret)
	if err != nil {
		t.Fatalf("issue token after rotation: %v", err)
	}
	got, err := auth.Authenticate(ctx, fresh.AccessToken)
	if err != nil {
		t.Fatalf("authenticate after rotation: %v", err)
	}
	if got.ID != client.ID {
		t.Fatalf("expected the tenant to survive rotation")
	}
}

func TestClientServiceValidation(t *testing.T) {
	ctx := context.Background()
	clients := app.NewClientService(memory.NewClientStore())

	_, _, err := clients.Create(ctx, "")
	expectKind(t, err, domain.KindInvalid, `Invalid "name": It must be a string between 1 and 50 characters.`)
	_, err = clients.Get(ctx, "00000000-0000-4000-8000-000000000000")
	expectKind(t, err, domain.KindNotFound, "There is no client with this id.")
}

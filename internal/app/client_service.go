package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"tenant-quiz-service/internal/domain"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// ClientService manages API clients. Every client is a tenant: its record ID is the
// tenant identifier, which survives credential rotation.
type ClientService struct {
	clients ClientStore
	now     func() time.Time
	newID   func() string
	cost    int
}

func NewClientService(clients ClientStore) *ClientService {
	return NewClientServiceWithClock(clients, time.Now)
}

// NewClientServiceWithClock allows deterministic timestamps in tests.
func NewClientServiceWithClock(clients ClientStore, now func() time.Time) *ClientService {
	return &ClientService{clients: clients, now: now, newID: uuid.NewString, cost: bcrypt.DefaultCost}
}

// Create registers a client and returns its credentials. The secret is not stored
// and cannot be recovered later.
func (s *ClientService) Create(ctx context.Context, name string) (domain.Client, domain.ClientCredentials, error) {
	if err := validateClientName(name); err != nil {
		return domain.Client{}, domain.ClientCredentials{}, err
	}
	creds, hash, err := s.generateCredentials()
	if err != nil {
		return domain.Client{}, domain.ClientCredentials{}, domain.Internal("generate credentials", err)
	}

	now := stamp(s.now())
	client := domain.Client{
		ID:         s.newID(),
		Name:       name,
		ClientID:   creds.ClientID,
		SecretHash: hash,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.clients.Insert(ctx, client); err != nil {
		return domain.Client{}, domain.ClientCredentials{}, domain.Internal("create client", err)
	}
	return client, creds, nil
}

func (s *ClientService) Rename(ctx context.Context, id, name string) (domain.Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}
	if err := validateClientName(name); err != nil {
		return domain.Client{}, err
	}
	client.Name = name
	return s.save(ctx, client)
}

// RegenerateCredentials replaces both the client id and the secret.
func (s *ClientService) RegenerateCredentials(ctx context.Context, id string) (domain.ClientCredentials, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return domain.ClientCredentials{}, err
	}
	creds, hash, err := s.generateCredentials()
	if err != nil {
		return domain.ClientCredentials{}, domain.Internal("generate credentials", err)
	}
	client.ClientID = creds.ClientID
	client.SecretHash = hash
	if _, err := s.save(ctx, client); err != nil {
		return domain.ClientCredentials{}, err
	}
	return creds, nil
}

func (s *ClientService) Activate(ctx context.Context, id string) (domain.Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}
	if client.Active {
		return domain.Client{}, domain.Invalid("This client is already active.")
	}
	client.Active = true
	return s.save(ctx, client)
}

func (s *ClientService) Deactivate(ctx context.Context, id string) (domain.Client, error) {
	client, err := s.Get(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}
	if !client.Active {
		return domain.Client{}, domain.Invalid("This client is already inactive.")
	}
	client.Active = false
	return s.save(ctx, client)
}

func (s *ClientService) Get(ctx context.Context, id string) (domain.Client, error) {
	client, err := s.clients.Get(ctx, id)
	if errors.Is(err, domain.ErrClientNotFound) {
		return domain.Client{}, domain.NotFound("There is no client with this id.")
	}
	if err != nil {
		return domain.Client{}, domain.Internal("load client", err)
	}
	return client, nil
}

// List pages through clients, newest first.
func (s *ClientService) List(ctx context.Context, page domain.PageRequest) (domain.Page[domain.Client], error) {
	page, err := validatePage(page)
	if err != nil {
		return domain.Page[domain.Client]{}, err
	}
	clients, total, err := s.clients.List(ctx, page)
	if err != nil {
		return domain.Page[domain.Client]{}, domain.Internal("list clients", err)
	}
	return domain.NewPage(page, clients, total), nil
}

func (s *ClientService) save(ctx context.Context, client domain.Client) (domain.Client, error) {
	client.UpdatedAt = stamp(s.now())
	if err := s.clients.Update(ctx, client); err != nil {
		return domain.Client{}, domain.Internal("update client", err)
	}
	return client, nil
}

func (s *ClientService) generateCredentials() (domain.ClientCredentials, string, error) {
	clientID, err := randomHex(20)
	if err != nil {
		return domain.ClientCredentials{}, "", err
	}
	secret, err := randomHex(20)
	if err != nil {
		return domain.ClientCredentials{}, "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), s.cost)
	if err != nil {
		return domain.ClientCredentials{}, "", fmt.Errorf("hash secret: %w", err)
	}
	return domain.ClientCredentials{ClientID: clientID, ClientSecret: secret}, string(hash), nil
}

func validateClientName(name string) error {
	if !lengthBetween(name, "min=1,max=50") {
		return domain.Invalid(`Invalid "name": It must be a string between 1 and 50 characters.`)
	}
	return nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

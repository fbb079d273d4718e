package memory

import (
	"context"
	"sort"
	"sync"

	"tenant-quiz-service/internal/domain"
)

// ClientStore keeps API clients in a map.
type ClientStore struct {
	mu      sync.RWMutex
	clients map[string]domain.Client
}

func NewClientStore() *ClientStore {
	return &ClientStore{clients: make(map[string]domain.Client)}
}

func (s *ClientStore) Insert(_ context.Context, client domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.ID] = client
	return nil
}

func (s *ClientStore) Update(_ context.Context, client domain.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[client.ID]; !ok {
		return domain.ErrClientNotFound
	}
	s.clients[client.ID] = client
	return nil
}

func (s *ClientStore) Get(_ context.Context, id string) (domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[id]
	if !ok {
		return domain.Client{}, domain.ErrClientNotFound
	}
	return client, nil
}

func (s *ClientStore) GetByClientID(_ context.Context, clientID string) (domain.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, client := range s.clients {
		if client.ClientID == clientID {
			return client, nil
		}
	}
	return domain.Client{}, domain.ErrClientNotFound
}

func (s *ClientStore) List(_ context.Context, page domain.PageRequest) ([]domain.Client, int, error) {
	s.mu.RLock()
	all := make([]domain.Client, 0, len(s.clients))
	for _, client := range s.clients {
		all = append(all, client)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return newer(all[i].CreatedAt, all[j].CreatedAt, all[i].ID, all[j].ID)
	})
	items, total := paginate(all, page)
	return items, total, nil
}

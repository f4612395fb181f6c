package tutor

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/park285/cheese-chess-tutor/internal/domain"
)

// memrepo backs the service when DATABASE_URL is unset, and the tests.
type memrepo struct {
	mu     sync.RWMutex
	nextID int64

	games     []*domain.TutorGame
	bySession map[string]*domain.TutorGame
	profiles  map[string]domain.TutorProfile
}

func NewMemoryRepository() Repository {
	return &memrepo{
		bySession: make(map[string]*domain.TutorGame),
		profiles:  make(map[string]domain.TutorProfile),
	}
}

func (m *memrepo) InsertGame(_ context.Context, game *domain.TutorGame) (int64, error) {
	if game == nil {
		return 0, ErrDuplicateGame
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimSpace(game.SessionUUID)
	if _, exists := m.bySession[key]; exists {
		return 0, ErrDuplicateGame
	}
	m.nextID++
	stored := cloneGame(game)
	stored.ID = m.nextID
	m.games = append(m.games, stored)
	m.bySession[key] = stored
	return stored.ID, nil
}

func (m *memrepo) GetRecentGames(_ context.Context, playerHash string, limit int) ([]*domain.TutorGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	items := make([]*domain.TutorGame, 0)
	for _, g := range m.games {
		if g.PlayerHash == playerHash {
			items = append(items, cloneGame(g))
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].EndedAt.Equal(items[j].EndedAt) {
			return items[i].EndedAt.After(items[j].EndedAt)
		}
		return items[i].ID > items[j].ID
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *memrepo) GetGame(_ context.Context, id int64, playerHash string) (*domain.TutorGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, g := range m.games {
		if g.ID == id && g.PlayerHash == playerHash {
			return cloneGame(g), nil
		}
	}
	return nil, nil
}

func (m *memrepo) GetGameBySession(_ context.Context, sessionUUID string, playerHash string) (*domain.TutorGame, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.bySession[strings.TrimSpace(sessionUUID)]
	if !ok || g.PlayerHash != playerHash {
		return nil, nil
	}
	return cloneGame(g), nil
}

func (m *memrepo) GetProfile(_ context.Context, playerHash string, roomHash string) (*domain.TutorProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[playerHash+"|"+roomHash]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *memrepo) UpsertProfile(_ context.Context, profile *domain.TutorProfile) error {
	if profile == nil {
		return nil
	}
	m.mu.Lock()
	m.profiles[profile.PlayerHash+"|"+profile.RoomHash] = *profile
	m.mu.Unlock()
	return nil
}

func cloneGame(g *domain.TutorGame) *domain.TutorGame {
	c := *g
	c.MovesUCI = append([]string(nil), g.MovesUCI...)
	c.MovesSAN = append([]string(nil), g.MovesSAN...)
	return &c
}

package app

import (
	"fmt"

	"github.com/shrimpsizemoose/poseshaemost/internal/attendance"
	"github.com/shrimpsizemoose/poseshaemost/internal/calendar"
	"github.com/shrimpsizemoose/poseshaemost/internal/stats"
	"github.com/shrimpsizemoose/poseshaemost/internal/store"
)

type Service struct {
	Config   *Config
	Store    store.Store
	Sessions SessionStore
	Calendar *calendar.Calendar
	Engine   *attendance.Engine
	Stats    *stats.Aggregator
	Tokens   *TokenManager
	Users    *Users
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config.Database.DSN, config.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	sessions, err := NewAuth(config)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to init auth: %w", err)
	}

	return NewServiceWith(config, store, sessions), nil
}

// NewServiceWith wires the domain services around already opened backends.
func NewServiceWith(config *Config, s store.Store, sessions SessionStore) *Service {
	cal := calendar.New(config.Calendar.Holidays, config.Location())
	return &Service{
		Config:   config,
		Store:    s,
		Sessions: sessions,
		Calendar: cal,
		Engine:   attendance.NewEngine(s, cal, config.EditWindow()),
		Stats:    stats.NewAggregator(s, cal),
		Tokens:   NewTokenManager(s),
		Users:    NewUsers(s),
	}
}

func (s *Service) Close() error {
	var errs []error

	if err := s.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if s.Sessions != nil {
		if err := s.Sessions.Close(); err != nil {
			errs = append(errs, fmt.Errorf("auth: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing: %v", errs)
	}
	return nil
}

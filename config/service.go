package config

import (
	"context"
	"errors"
)

var (
	// ErrInvalidFeeRate signals a fee rate above 10,000 basis points.
	ErrInvalidFeeRate = errors.New("config: fee basis points exceed 10000")
	// ErrMissingKey signals an empty authority or treasury key.
	ErrMissingKey = errors.New("config: authority and treasury keys are required")
)

// Service handles marketplace configuration bootstrap and lookup.
type Service struct {
	repo Repository
}

// NewService creates a configuration service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Initialize creates the global configuration record. It may succeed at
// most once per deployment; later attempts fail with ErrAlreadyInitialized.
func (s *Service) Initialize(ctx context.Context, params InitializeParams) (*Config, error) {
	if params.AuthorityKey == "" || params.TreasuryKey == "" {
		return nil, ErrMissingKey
	}
	if params.FeeBasisPoints > MaxFeeBasisPoints {
		return nil, ErrInvalidFeeRate
	}

	cfg, err := s.repo.Insert(ctx, params)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Get returns the current configuration.
func (s *Service) Get(ctx context.Context) (Config, error) {
	return s.repo.Get(ctx)
}

// AuthorityKey reports the configured administrative key. It satisfies
// the authority-gate dependency of the identity and reputation services.
func (s *Service) AuthorityKey(ctx context.Context) (string, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	return cfg.AuthorityKey, nil
}

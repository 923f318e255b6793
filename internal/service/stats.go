package service

import (
	"context"

	"codeshare/internal/apperr"
	"codeshare/internal/models"
	"codeshare/internal/repository"
)

type StatsService struct {
	users  repository.UserRepository
	shares repository.ShareRepository
}

func NewStatsService(users repository.UserRepository, shares repository.ShareRepository) *StatsService {
	return &StatsService{users: users, shares: shares}
}

func (s *StatsService) Stats(ctx context.Context, requester *models.User) (*models.Stats, error) {
	if !requester.IsAdmin() {
		return nil, apperr.E(apperr.Forbidden, "admin role required")
	}

	users, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not count users")
	}
	counts, err := s.shares.CountShares(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "could not count shares")
	}

	return &models.Stats{
		Users:          users,
		TotalShares:    counts.Total,
		FileShares:     counts.Files,
		TextShares:     counts.Texts,
		TotalFileBytes: counts.TotalFileBytes,
	}, nil
}

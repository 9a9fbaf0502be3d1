package service

import (
	"context"

	"xclone/internal/model"
	"xclone/internal/repository"
)

const (
	SuggestionSampleSize   = 10
	SuggestionDefaultLimit = 4
	SuggestionMaxLimit     = 10
)

type SuggestionService struct {
	userRepo repository.UserRepository
}

func NewSuggestionService(userRepo repository.UserRepository) *SuggestionService {
	return &SuggestionService{userRepo: userRepo}
}

// SuggestUsers draws a random sample of other accounts and drops the ones the
// caller already follows. The result may be shorter than limit.
func (s *SuggestionService) SuggestUsers(ctx context.Context, auth model.AuthContext, limit int) ([]model.User, error) {
	limit = clampLimit(limit, SuggestionDefaultLimit, SuggestionMaxLimit)

	me, err := s.userRepo.GetByID(ctx, auth.UserID)
	if err != nil {
		return nil, err
	}

	sample, err := s.userRepo.Sample(ctx, auth.UserID, SuggestionSampleSize)
	if err != nil {
		return nil, err
	}

	users := make([]model.User, 0, limit)
	for i := range sample {
		if me.IsFollowing(sample[i].ID) {
			continue
		}
		users = append(users, *sample[i].Sanitize())
		if len(users) == limit {
			break
		}
	}
	return users, nil
}

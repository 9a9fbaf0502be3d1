package service

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"xclone/internal/model"
	"xclone/internal/repository"
)

// attachAuthors fills Author on every post and comment with one summary lookup.
func attachAuthors(ctx context.Context, userRepo repository.UserRepository, posts []model.Post) error {
	if len(posts) == 0 {
		return nil
	}

	ids := make([]primitive.ObjectID, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.UserID)
		for _, c := range p.Comments {
			ids = append(ids, c.UserID)
		}
	}

	summaries, err := userRepo.GetSummaries(ctx, uniqueIDs(ids))
	if err != nil {
		return fmt.Errorf("load authors: %w", err)
	}

	for i := range posts {
		if u, ok := summaries[posts[i].UserID]; ok {
			posts[i].Author = &u
		}
		for j := range posts[i].Comments {
			if u, ok := summaries[posts[i].Comments[j].UserID]; ok {
				posts[i].Comments[j].Author = &u
			}
		}
	}
	return nil
}

// clampLimit applies the page-size default and ceiling.
func clampLimit(limit, def, ceiling int) int {
	if limit <= 0 {
		return def
	}
	if limit > ceiling {
		return ceiling
	}
	return limit
}

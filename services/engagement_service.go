package services

import (
	"context"
	"errors"

	"balaka-tickets/internal/ledger"
	"balaka-tickets/internal/status"
	"balaka-tickets/models"
	"balaka-tickets/monitoring"
)

// EngagementService flips the like relation between a user and an event.
// The event's likedBy set, its likes counter and the user's mirrored
// likedEvents set are written in one transaction so the three can never
// disagree, no matter how many toggles race.
type EngagementService struct {
	store ledger.Store
}

func NewEngagementService(store ledger.Store) *EngagementService {
	return &EngagementService{store: store}
}

// ToggleLike flips membership once per call. A user unknown to the ledger
// gets an engagement document created on first like.
func (s *EngagementService) ToggleLike(ctx context.Context, eventID, userID string) (*models.LikeState, error) {
	var state models.LikeState

	err := s.store.RunTransaction(ctx, func(tx ledger.Txn) error {
		var event models.Event
		if err := tx.Get(ledger.CollectionEvents, eventID, &event); err != nil {
			return err
		}

		var user models.User
		if err := tx.Get(ledger.CollectionUsers, userID, &user); err != nil {
			if !errors.Is(err, status.ErrNotFound) {
				return err
			}
			user = models.User{ID: userID}
		}

		if event.Liked(userID) {
			event.LikedBy = removeString(event.LikedBy, userID)
			user.LikedEvents = removeString(user.LikedEvents, eventID)
		} else {
			event.LikedBy = append(event.LikedBy, userID)
			user.LikedEvents = append(user.LikedEvents, eventID)
		}

		// The counter is recomputed from the set, not incremented, so it
		// can never drift even if an older document had them out of sync.
		event.Likes = len(event.LikedBy)

		if err := tx.Set(ledger.CollectionEvents, eventID, event); err != nil {
			return err
		}
		if err := tx.Set(ledger.CollectionUsers, userID, user); err != nil {
			return err
		}

		state = models.LikeState{
			EventID: eventID,
			Liked:   event.Liked(userID),
			Likes:   event.Likes,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackLikeToggle(state.Liked)
	return &state, nil
}

func removeString(list []string, s string) []string {
	out := list[:0]
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

package models

// User carries the engagement side of the like relation. LikedEvents mirrors
// every event whose likedBy set contains this user; both sides are written
// in the same ledger transaction so they cannot diverge.
type User struct {
	ID          string   `json:"id"`
	Phone       string   `json:"phone"`
	LikedEvents []string `json:"liked_events"`
}

// HasLiked reports whether eventID is in the mirrored set.
func (u *User) HasLiked(eventID string) bool {
	for _, id := range u.LikedEvents {
		if id == eventID {
			return true
		}
	}
	return false
}

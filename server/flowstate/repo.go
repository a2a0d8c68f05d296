package flowstate

import "time"

// MagicLinkFlow is a magic link that has been sent but not yet followed
type MagicLinkFlow struct {
	Email        string
	CodeVerifier string
	ReturnURL    string
	CreatedAt    time.Time
}

func (f *MagicLinkFlow) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(f.CreatedAt) > ttl
}

type Repo interface {
	Upsert(flowID string, flow *MagicLinkFlow) error
	Get(flowID string) (*MagicLinkFlow, error)
	Delete(flowID string) error
	DeleteExpired(cutoff time.Time) int
}

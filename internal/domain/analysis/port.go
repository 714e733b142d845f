package analysis

import "context"

// Repository port for persisting and querying analysis outcomes
type Repository interface {
	Save(ctx context.Context, o *Outcome) error
	Paginate(ctx context.Context, owner string, documentID string, page, pageSize int) ([]*Outcome, error)
	LatestByDocument(ctx context.Context, owner string, documentID string) (*Outcome, error)
}

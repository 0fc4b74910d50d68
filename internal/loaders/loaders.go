package loaders

import (
	"context"
	"net/http"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/localservices/internal/domain/entities"
	"github.com/zatekoja/localservices/internal/domain/repositories"
	apperrors "github.com/zatekoja/localservices/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the request-scoped dataloaders
type Loaders struct {
	UserLoader *dataloader.Loader[string, *entities.UserProfile]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(userRepo repositories.UserRepository) *Loaders {
	return &Loaders{
		UserLoader: dataloader.NewBatchedLoader(func(ctx context.Context, keys []string) []*dataloader.Result[*entities.UserProfile] {
			results := make([]*dataloader.Result[*entities.UserProfile], len(keys))
			users, err := userRepo.GetByIDs(ctx, keys)

			userMap := make(map[string]*entities.UserProfile)
			if err == nil {
				for _, u := range users {
					userMap[u.ID] = u
				}
			}

			for i, key := range keys {
				if err != nil {
					results[i] = &dataloader.Result[*entities.UserProfile]{Error: err}
				} else if u, ok := userMap[key]; ok {
					results[i] = &dataloader.Result[*entities.UserProfile]{Data: u}
				} else {
					results[i] = &dataloader.Result[*entities.UserProfile]{Error: apperrors.NewNotFoundError("user " + key + " not found")}
				}
			}
			return results
		}),
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// Middleware attaches a fresh set of loaders to every request
func Middleware(userRepo repositories.UserRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithLoaders(r.Context(), NewLoaders(userRepo))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoadUsers resolves profiles through the request loader when one is
// attached, batching concurrent lookups, and through the repository otherwise.
// Unknown ids are left out of the result.
func LoadUsers(ctx context.Context, userRepo repositories.UserRepository, ids []string) (map[string]*entities.UserProfile, error) {
	found := make(map[string]*entities.UserProfile, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	if l := For(ctx); l != nil {
		users, errs := l.UserLoader.LoadMany(ctx, ids)()
		for i, u := range users {
			if i < len(errs) && errs[i] != nil {
				if apperrors.IsType(errs[i], apperrors.ErrorTypeNotFound) {
					continue
				}
				return nil, errs[i]
			}
			if u != nil {
				found[u.ID] = u
			}
		}
		return found, nil
	}

	users, err := userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, u := range users {
		found[u.ID] = u
	}
	return found, nil
}

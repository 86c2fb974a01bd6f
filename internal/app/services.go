package app

import (
	"time"

	"roomshare/internal/domain"
)

// Services is everything the presentation layer calls.
type Services struct {
	Accounts      *AccountService
	Properties    *PropertyQueries
	Favorites     *FavoriteService
	Conversations *Conversations
}

// NewServices wires the services over one set of repositories. notifier and
// mc may be nil.
func NewServices(repos *Repositories, notifier domain.Notifier, mc domain.MapsClient, notifyTimeout time.Duration) *Services {
	return &Services{
		Accounts:      NewAccountService(repos.Users),
		Properties:    NewPropertyQueries(repos, mc),
		Favorites:     NewFavoriteService(repos.Favorites, repos.Properties),
		Conversations: NewConversations(repos.Chat, repos.Ratings, repos.Properties, notifier, notifyTimeout),
	}
}

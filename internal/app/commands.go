package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"roomshare/internal/domain"
)

// TimestampLayout is how chat and rating rows are stamped.
const TimestampLayout = "2006-01-02 15:04:05"

// HashPassword is the unsalted SHA-256 hex digest stored in the users tab.
func HashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

/********** accounts **********/

type AccountService struct {
	users UserRepository
}

func NewAccountService(users UserRepository) *AccountService {
	return &AccountService{users: users}
}

func (s *AccountService) Signup(ctx context.Context, username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: username and password are required", domain.ErrInvalidInput)
	}
	if err := s.users.EnsureSchema(ctx); err != nil {
		return domain.User{}, err
	}
	taken, err := s.users.Exists(ctx, username)
	if err != nil {
		return domain.User{}, err
	}
	if taken {
		return domain.User{}, domain.ErrUsernameTaken
	}
	u := domain.User{Username: username, PasswordHash: HashPassword(password)}
	if err := s.users.Create(ctx, u.Username, u.PasswordHash); err != nil {
		return domain.User{}, err
	}
	log.Info().Str("username", username).Msg("user registered")
	return u, nil
}

func (s *AccountService) Login(ctx context.Context, username, password string) (domain.User, error) {
	u, ok, err := s.users.Authenticate(ctx, strings.TrimSpace(username), HashPassword(password))
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return u, nil
}

/********** favorites **********/

type FavoriteService struct {
	favs  FavoriteRepository
	props PropertyRepository
}

func NewFavoriteService(favs FavoriteRepository, props PropertyRepository) *FavoriteService {
	return &FavoriteService{favs: favs, props: props}
}

// Add records a favorite for an existing property. Adding the same one twice
// stores it twice.
func (s *FavoriteService) Add(ctx context.Context, username, propertyID string) error {
	if _, ok, err := s.props.FindByID(ctx, propertyID); err != nil {
		return err
	} else if !ok {
		return domain.ErrNotFound
	}
	return s.favs.Add(ctx, username, propertyID)
}

func (s *FavoriteService) Remove(ctx context.Context, username, propertyID string) (int, error) {
	n, err := s.favs.Remove(ctx, username, propertyID)
	if err != nil {
		log.Error().Err(err).Str("username", username).Str("property_id", propertyID).
			Msg("favorite removal failed; tab may be partially rewritten")
		return 0, err
	}
	return n, nil
}

func (s *FavoriteService) List(ctx context.Context, username string) ([]string, error) {
	return s.favs.ListFor(ctx, username)
}

/********** conversations **********/

type Conversations struct {
	chat     ChatRepository
	ratings  RatingRepository
	props    PropertyRepository
	notifier domain.Notifier
	timeout  time.Duration
	now      func() time.Time
}

// NewConversations wires chat and ratings. notifier may be nil; timeout
// bounds each webhook call.
func NewConversations(chat ChatRepository, ratings RatingRepository, props PropertyRepository, n domain.Notifier, timeout time.Duration) *Conversations {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Conversations{chat: chat, ratings: ratings, props: props, notifier: n, timeout: timeout, now: time.Now}
}

// WithClock replaces the time source (tests).
func (s *Conversations) WithClock(now func() time.Time) *Conversations {
	s.now = now
	return s
}

// SendMessage stores the message and then notifies the webhook. Delivery
// problems are logged; they never fail the call once the row is written.
func (s *Conversations) SendMessage(ctx context.Context, sender, text, propertyID string) (domain.ChatMessage, error) {
	sender, text = strings.TrimSpace(sender), strings.TrimSpace(text)
	if sender == "" || text == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: sender and text are required", domain.ErrInvalidInput)
	}
	msg := domain.ChatMessage{
		Timestamp:  s.now().Format(TimestampLayout),
		Sender:     sender,
		Text:       text,
		PropertyID: propertyID,
	}
	if err := s.chat.Append(ctx, msg); err != nil {
		return domain.ChatMessage{}, err
	}
	s.notify(ctx, msg)
	return msg, nil
}

func (s *Conversations) notify(ctx context.Context, msg domain.ChatMessage) {
	if s.notifier == nil {
		return
	}
	// the write already happened; a client disconnect must not cancel delivery
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	name := "unknown property"
	if p, ok, err := s.props.FindByID(ctx, msg.PropertyID); err != nil {
		log.Warn().Err(err).Str("property_id", msg.PropertyID).Msg("property lookup for notification failed")
	} else if ok && p.Name != "" {
		name = p.Name
	}

	res, err := s.notifier.Notify(ctx, msg.Sender, msg.Text, name)
	if err != nil {
		log.Warn().Err(err).Str("property_id", msg.PropertyID).Msg("chat notification not delivered")
		return
	}
	ev := log.Debug()
	if !res.OK() {
		ev = log.Warn()
	}
	ev.Int("status", res.Status).Str("body", res.Body).Str("property_id", msg.PropertyID).Msg("chat notification sent")
}

func (s *Conversations) Messages(ctx context.Context, propertyID string) ([]domain.ChatMessage, error) {
	return s.chat.ListFor(ctx, propertyID)
}

// ValidScore reports whether score is within 1.0..5.0 in steps of 0.5.
func ValidScore(score float64) bool {
	if math.IsNaN(score) || score < 1 || score > 5 {
		return false
	}
	return score*2 == math.Trunc(score*2)
}

func (s *Conversations) Rate(ctx context.Context, rater string, score float64, propertyID string) (domain.Rating, error) {
	rater = strings.TrimSpace(rater)
	if rater == "" {
		return domain.Rating{}, fmt.Errorf("%w: rater is required", domain.ErrInvalidInput)
	}
	if !ValidScore(score) {
		return domain.Rating{}, domain.ErrInvalidRating
	}
	r := domain.Rating{
		Timestamp:  s.now().Format(TimestampLayout),
		Rater:      rater,
		Score:      score,
		PropertyID: propertyID,
	}
	if err := s.ratings.Append(ctx, r); err != nil {
		return domain.Rating{}, err
	}
	return r, nil
}

func (s *Conversations) LatestRatings(ctx context.Context, propertyID string) ([]domain.Rating, error) {
	return s.ratings.LatestRatings(ctx, propertyID)
}

// AverageRating averages the latest rating of each rater. n is 0 when
// nobody has rated the property.
func (s *Conversations) AverageRating(ctx context.Context, propertyID string) (avg float64, n int, err error) {
	latest, err := s.ratings.LatestRatings(ctx, propertyID)
	if err != nil || len(latest) == 0 {
		return 0, 0, err
	}
	return Average(latest), len(latest), nil
}

func Average(rs []domain.Rating) float64 {
	if len(rs) == 0 {
		return 0
	}
	var sum float64
	for _, r := range rs {
		sum += r.Score
	}
	return sum / float64(len(rs))
}

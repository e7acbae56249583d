package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carecoins/internal/accrual"
	"carecoins/internal/events"
	"carecoins/internal/identity"
	"carecoins/internal/metrics"
	"carecoins/internal/models"
	"carecoins/internal/validation"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const defaultSearchLimit = 20

// FamilyStore persists families
type FamilyStore interface {
	Create(ctx context.Context, family *models.Family) error
	GetByID(ctx context.Context, familyID int64) (*models.Family, error)
	Search(ctx context.Context, query string, limit int) ([]models.FamilySummary, error)
}

// ActorStore persists a family's dependents
type ActorStore interface {
	CreateBatch(ctx context.Context, actors []*models.Actor) error
	ListByFamily(ctx context.Context, familyID int64) ([]models.Actor, error)
	GetByID(ctx context.Context, actorID int64) (*models.Actor, error)
}

// UserStore persists user profiles
type UserStore interface {
	Upsert(ctx context.Context, user *models.User) error
	LinkFamily(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, userID string) (*models.User, error)
}

// Notifier sends the welcome message for a new family
type Notifier interface {
	SendFamilyWelcome(ctx context.Context, toEmail, toName, familyName, pin string) error
}

// ActorInput describes one dependent in a provisioning request
type ActorInput struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ProvisionRequest is the input of Provision. A nil Actors slice means the field was missing.
type ProvisionRequest struct {
	FamilyName string       `json:"family_name"`
	Role       string       `json:"role"`
	PIN        string       `json:"pin"`
	Actors     []ActorInput `json:"actors"`
}

// ProvisionResult is the outcome of a successful Provision
type ProvisionResult struct {
	Family *models.Family
	Actors []*models.Actor
}

// Profile is the caller's user profile with its family, when linked
type Profile struct {
	User   *models.User
	Family *models.FamilySummary
	Actors []models.Actor
}

// FamilyService handles family provisioning, joining and lookup
type FamilyService struct {
	families    FamilyStore
	actors      ActorStore
	users       UserStore
	calculator  *accrual.Calculator
	publisher   events.Publisher
	notifier    Notifier
	log         logrus.FieldLogger
	now         func() time.Time
	searchLimit int
}

// FamilyOption configures a FamilyService
type FamilyOption func(*FamilyService)

// WithClock replaces the time source used as the accrual reference
func WithClock(now func() time.Time) FamilyOption {
	return func(s *FamilyService) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(log logrus.FieldLogger) FamilyOption {
	return func(s *FamilyService) { s.log = log }
}

// WithPublisher sets the event publisher
func WithPublisher(p events.Publisher) FamilyOption {
	return func(s *FamilyService) { s.publisher = p }
}

// WithNotifier sets the welcome email sender
func WithNotifier(n Notifier) FamilyOption {
	return func(s *FamilyService) { s.notifier = n }
}

// WithSearchLimit caps the number of search results
func WithSearchLimit(limit int) FamilyOption {
	return func(s *FamilyService) {
		if limit > 0 {
			s.searchLimit = limit
		}
	}
}

// NewFamilyService creates a new family service
func NewFamilyService(families FamilyStore, actors ActorStore, users UserStore, calculator *accrual.Calculator, opts ...FamilyOption) *FamilyService {
	s := &FamilyService{
		families:    families,
		actors:      actors,
		users:       users,
		calculator:  calculator,
		publisher:   events.NopPublisher{},
		log:         logrus.StandardLogger(),
		now:         time.Now,
		searchLimit: defaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provision creates a family with its actors and links the caller to it.
//
// The three writes run in order: family, actors, user. A failure after the
// family write leaves the family in place and is reported as a PersistenceError.
func (s *FamilyService) Provision(ctx context.Context, principal *identity.Principal, req ProvisionRequest) (*ProvisionResult, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrUnauthorized
	}

	inputs, err := validateProvisionRequest(req)
	if err != nil {
		return nil, err
	}

	now := s.now()
	coins, err := s.startingCoins(ctx, now, len(inputs))
	if err != nil {
		return nil, err
	}

	total := 0
	for _, c := range coins {
		total += c
	}

	created := now.UTC()
	family := &models.Family{
		Name:            strings.TrimSpace(req.FamilyName),
		PIN:             req.PIN,
		CoinsStartMonth: total,
		CoinsPending:    total,
		CoinsPaid:       0,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	if err := s.families.Create(ctx, family); err != nil {
		metrics.RecordProvisioningFailure(OpCreateFamily)
		return nil, persistenceError(OpCreateFamily, err)
	}

	log := s.log.WithFields(logrus.Fields{"family_id": family.ID, "user_id": principal.ID})

	actors := make([]*models.Actor, len(inputs))
	for i, in := range inputs {
		actors[i] = &models.Actor{
			FamilyID:        family.ID,
			Name:            strings.TrimSpace(in.Name),
			Type:            models.ActorType(in.Type),
			CoinsStartMonth: coins[i],
			CreatedAt:       created,
		}
	}
	if err := s.actors.CreateBatch(ctx, actors); err != nil {
		metrics.RecordProvisioningFailure(OpCreateActors)
		log.WithError(err).Error("actor write failed after family was created")
		return nil, persistenceError(OpCreateActors, err)
	}

	user := &models.User{
		ID:          principal.ID,
		Email:       principal.Email,
		FullName:    displayName(principal),
		Role:        strings.TrimSpace(req.Role),
		FamilyID:    &family.ID,
		CoinBalance: 0,
		CreatedAt:   created,
		UpdatedAt:   created,
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		metrics.RecordProvisioningFailure(OpUpsertUser)
		log.WithError(err).Error("user write failed after family was created")
		return nil, persistenceError(OpUpsertUser, err)
	}

	types := make([]string, len(actors))
	for i, a := range actors {
		types[i] = string(a.Type)
	}
	metrics.RecordProvisioned(types, coins)

	log.WithFields(logrus.Fields{
		"actors":      len(actors),
		"start_coins": total,
	}).Info("family provisioned")

	s.publish(ctx, events.New(events.FamilyCreated, family.ID, principal.ID, map[string]interface{}{
		"name":              family.Name,
		"actors":            len(actors),
		"coins_start_month": total,
	}))
	s.sendWelcome(ctx, principal, family)

	return &ProvisionResult{Family: family, Actors: actors}, nil
}

// startingCoins computes each actor's accrual concurrently and waits for all of them
func (s *FamilyService) startingCoins(ctx context.Context, ref time.Time, n int) ([]int, error) {
	coins := make([]int, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			coins[i] = s.calculator.AccrueFromNow(ref)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to compute starting coins: %w", err)
	}
	return coins, nil
}

// JoinByPIN links the caller to a family after checking its PIN
func (s *FamilyService) JoinByPIN(ctx context.Context, principal *identity.Principal, familyID int64, pin string) (*models.Family, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrUnauthorized
	}
	if familyID <= 0 {
		return nil, validation.ValidationError{Field: "family_id", Message: "family_id is required"}
	}
	if err := validation.ValidatePIN(pin); err != nil {
		return nil, err
	}

	family, err := s.families.GetByID(ctx, familyID)
	if err != nil {
		return nil, persistenceError("get family", err)
	}
	if family == nil {
		metrics.RecordJoin("not_found")
		return nil, ErrFamilyNotFound
	}
	if family.PIN != pin {
		metrics.RecordJoin("incorrect_pin")
		s.log.WithFields(logrus.Fields{"family_id": familyID, "user_id": principal.ID}).Warn("join rejected: incorrect PIN")
		return nil, ErrIncorrectPIN
	}

	now := s.now().UTC()
	user := &models.User{
		ID:        principal.ID,
		Email:     principal.Email,
		FullName:  displayName(principal),
		Role:      models.RoleMember,
		FamilyID:  &family.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.LinkFamily(ctx, user); err != nil {
		return nil, persistenceError(OpUpsertUser, err)
	}

	metrics.RecordJoin("joined")
	s.publish(ctx, events.New(events.FamilyJoined, family.ID, principal.ID, nil))
	return family, nil
}

// Search returns families whose name contains query
func (s *FamilyService) Search(ctx context.Context, principal *identity.Principal, query string) ([]models.FamilySummary, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrUnauthorized
	}
	if err := validation.ValidateSearchQuery(query); err != nil {
		return nil, err
	}

	families, err := s.families.Search(ctx, query, s.searchLimit)
	if err != nil {
		return nil, persistenceError("search families", err)
	}
	return families, nil
}

// Profile returns the caller's profile and, when linked, its family and actors
func (s *FamilyService) Profile(ctx context.Context, principal *identity.Principal) (*Profile, error) {
	if principal == nil || principal.ID == "" {
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		return nil, persistenceError("get user", err)
	}
	if user == nil {
		return nil, ErrProfileNotFound
	}

	profile := &Profile{User: user, Actors: []models.Actor{}}
	if !user.HasFamily() {
		return profile, nil
	}

	family, err := s.families.GetByID(ctx, *user.FamilyID)
	if err != nil {
		return nil, persistenceError("get family", err)
	}
	if family == nil {
		return profile, nil
	}
	summary := family.Summary()
	profile.Family = &summary

	actors, err := s.actors.ListByFamily(ctx, family.ID)
	if err != nil {
		return nil, persistenceError("list actors", err)
	}
	profile.Actors = actors
	return profile, nil
}

func (s *FamilyService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.log.WithError(err).WithField("event", event.Type).Warn("failed to publish event")
	}
}

func (s *FamilyService) sendWelcome(ctx context.Context, principal *identity.Principal, family *models.Family) {
	if s.notifier == nil || principal.Email == "" {
		return
	}
	if err := s.notifier.SendFamilyWelcome(ctx, principal.Email, displayName(principal), family.Name, family.PIN); err != nil {
		s.log.WithError(err).WithField("family_id", family.ID).Warn("failed to send welcome email")
	}
}

// validateProvisionRequest checks the structural fields and returns the actors with a name
func validateProvisionRequest(req ProvisionRequest) ([]ActorInput, error) {
	if err := validation.ValidateFamilyName(req.FamilyName); err != nil {
		return nil, err
	}
	if err := validation.ValidateRole(req.Role); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PIN) == "" {
		return nil, validation.ValidationError{Field: "pin", Message: "pin is required"}
	}
	if req.Actors == nil {
		return nil, validation.ValidationError{Field: "actors", Message: "actors is required"}
	}

	inputs := make([]ActorInput, 0, len(req.Actors))
	for i, a := range req.Actors {
		if strings.TrimSpace(a.Name) == "" {
			continue
		}
		field := fmt.Sprintf("actors[%d]", i)
		if err := validation.ValidateActorName(field+".name", a.Name); err != nil {
			return nil, err
		}
		if err := validation.ValidateActorType(field+".type", a.Type); err != nil {
			return nil, err
		}
		inputs = append(inputs, a)
	}
	return inputs, nil
}

func displayName(p *identity.Principal) string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	return models.DefaultFullName
}

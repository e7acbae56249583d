package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"carecoins/internal/accrual"
	"carecoins/internal/events"
	"carecoins/internal/identity"
	"carecoins/internal/models"
	"carecoins/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Saturday 22:15 UTC: each actor accrues 127 coins for the rest of June 2025.
var provisionNow = time.Date(2025, 6, 28, 22, 15, 0, 0, time.UTC)

const coinsPerActor = 127

type familyFixture struct {
	families  *fakeFamilies
	actors    *fakeActors
	users     *fakeUsers
	publisher *recordingPublisher
	notifier  *recordingNotifier
	service   *FamilyService
}

func newFamilyFixture(opts ...FamilyOption) *familyFixture {
	f := &familyFixture{
		families:  newFakeFamilies(),
		actors:    &fakeActors{},
		users:     newFakeUsers(),
		publisher: &recordingPublisher{},
		notifier:  &recordingNotifier{},
	}
	base := []FamilyOption{
		WithClock(func() time.Time { return provisionNow }),
		WithLogger(quietLogger()),
		WithPublisher(f.publisher),
		WithNotifier(f.notifier),
	}
	calc := accrual.NewCalculator(accrual.DefaultRateTable(), time.UTC)
	f.service = NewFamilyService(f.families, f.actors, f.users, calc, append(base, opts...)...)
	return f
}

func ann() *identity.Principal {
	return &identity.Principal{ID: "user-ann", Email: "ann@example.com", FullName: "Ann Rossi"}
}

func validRequest() ProvisionRequest {
	return ProvisionRequest{
		FamilyName: "Rossi",
		Role:       "parent",
		PIN:        "1234",
		Actors: []ActorInput{
			{Name: "Max", Type: "pet"},
			{Name: "Nonna", Type: "elderly"},
		},
	}
}

func TestProvisionAggregateInvariant(t *testing.T) {
	f := newFamilyFixture()

	result, err := f.service.Provision(context.Background(), ann(), validRequest())
	require.NoError(t, err)

	family := f.families.rows[result.Family.ID]
	require.NotNil(t, family)

	sum := 0
	stored, _ := f.actors.ListByFamily(context.Background(), family.ID)
	require.Len(t, stored, 2)
	for _, a := range stored {
		assert.Equal(t, coinsPerActor, a.CoinsStartMonth)
		sum += a.CoinsStartMonth
	}

	assert.Equal(t, sum, family.CoinsStartMonth)
	assert.Equal(t, family.CoinsStartMonth, family.CoinsPending)
	assert.Equal(t, 0, family.CoinsPaid)
	assert.Equal(t, "1234", family.PIN)

	user := f.users.rows["user-ann"]
	require.NotNil(t, user)
	require.NotNil(t, user.FamilyID)
	assert.Equal(t, family.ID, *user.FamilyID)
	assert.Equal(t, 0, user.CoinBalance)
	assert.Equal(t, "parent", user.Role)
	assert.Equal(t, "Ann Rossi", user.FullName)

	assert.Equal(t, []string{events.FamilyCreated}, f.publisher.types())
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, welcome{"ann@example.com", "Ann Rossi", "Rossi", "1234"}, f.notifier.sent[0])
}

func TestProvisionDropsActorsWithoutName(t *testing.T) {
	f := newFamilyFixture()
	req := validRequest()
	req.Actors = []ActorInput{{Name: "Max", Type: "pet"}, {Name: "", Type: "child"}, {Name: "   ", Type: "robot"}}

	result, err := f.service.Provision(context.Background(), ann(), req)
	require.NoError(t, err)

	require.Len(t, result.Actors, 1)
	assert.Equal(t, "Max", result.Actors[0].Name)
	assert.Equal(t, models.ActorTypePet, result.Actors[0].Type)
	assert.NotZero(t, result.Actors[0].ID)
	assert.Equal(t, result.Actors[0].CoinsStartMonth, result.Family.CoinsStartMonth)
	assert.Len(t, f.actors.rows, 1)
}

func TestProvisionWithNoActors(t *testing.T) {
	f := newFamilyFixture()
	req := validRequest()
	req.Actors = []ActorInput{}

	result, err := f.service.Provision(context.Background(), ann(), req)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Family.CoinsStartMonth)
	assert.Empty(t, result.Actors)
	assert.Contains(t, f.users.rows, "user-ann")
}

func TestProvisionValidation(t *testing.T) {
	tests := []struct {
		name  string
		mut   func(*ProvisionRequest)
		field string
	}{
		{name: "missing family name", mut: func(r *ProvisionRequest) { r.FamilyName = "" }, field: "family_name"},
		{name: "blank family name", mut: func(r *ProvisionRequest) { r.FamilyName = "  " }, field: "family_name"},
		{name: "missing role", mut: func(r *ProvisionRequest) { r.Role = "" }, field: "role"},
		{name: "missing pin", mut: func(r *ProvisionRequest) { r.PIN = "" }, field: "pin"},
		{name: "missing actors", mut: func(r *ProvisionRequest) { r.Actors = nil }, field: "actors"},
		{name: "unknown actor type", mut: func(r *ProvisionRequest) { r.Actors[1].Type = "robot" }, field: "actors[1].type"},
		{name: "missing actor type", mut: func(r *ProvisionRequest) { r.Actors[0].Type = "" }, field: "actors[0].type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFamilyFixture()
			req := validRequest()
			tt.mut(&req)

			_, err := f.service.Provision(context.Background(), ann(), req)

			var vErr validation.ValidationError
			require.True(t, errors.As(err, &vErr), "expected ValidationError, got %v", err)
			assert.Equal(t, tt.field, vErr.Field)
			assert.Zero(t, f.families.calls, "no family write")
			assert.Zero(t, f.actors.calls, "no actor write")
			assert.Zero(t, f.users.calls, "no user write")
		})
	}
}

func TestProvisionUnauthorized(t *testing.T) {
	f := newFamilyFixture()

	_, err := f.service.Provision(context.Background(), nil, validRequest())
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.service.Provision(context.Background(), &identity.Principal{}, validRequest())
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.families.calls)
}

func TestProvisionFamilyWriteFailure(t *testing.T) {
	f := newFamilyFixture()
	f.families.createErr = errStore

	_, err := f.service.Provision(context.Background(), ann(), validRequest())

	var pErr *PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, OpCreateFamily, pErr.Op)
	assert.ErrorIs(t, err, errStore)
	assert.Zero(t, f.actors.calls)
	assert.Zero(t, f.users.calls)
	assert.Empty(t, f.publisher.types())
}

func TestProvisionActorWriteFailureLeavesFamily(t *testing.T) {
	f := newFamilyFixture()
	f.actors.createErr = errStore

	_, err := f.service.Provision(context.Background(), ann(), validRequest())

	var pErr *PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, OpCreateActors, pErr.Op)

	// the family write is not undone
	require.Len(t, f.families.rows, 1)
	assert.Equal(t, 2*coinsPerActor, f.families.rows[1].CoinsStartMonth)
	assert.Empty(t, f.actors.rows)
	assert.Zero(t, f.users.calls)
	assert.Empty(t, f.notifier.sent)
}

func TestProvisionUserWriteFailure(t *testing.T) {
	f := newFamilyFixture()
	f.users.upsertErr = errStore

	_, err := f.service.Provision(context.Background(), ann(), validRequest())

	var pErr *PersistenceError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, OpUpsertUser, pErr.Op)
	assert.Len(t, f.families.rows, 1)
	assert.Len(t, f.actors.rows, 2)
}

func TestProvisionSideEffectFailuresDoNotFail(t *testing.T) {
	f := newFamilyFixture()
	f.publisher.err = errors.New("broker down")
	f.notifier.err = errors.New("ses throttled")

	result, err := f.service.Provision(context.Background(), ann(), validRequest())
	require.NoError(t, err)
	assert.NotZero(t, result.Family.ID)
}

func TestProvisionDefaultsDisplayName(t *testing.T) {
	f := newFamilyFixture()
	principal := &identity.Principal{ID: "user-x"}

	_, err := f.service.Provision(context.Background(), principal, validRequest())
	require.NoError(t, err)

	assert.Equal(t, models.DefaultFullName, f.users.rows["user-x"].FullName)
	assert.Empty(t, f.notifier.sent, "no email without an address")
}

func TestProvisionCancelledContext(t *testing.T) {
	f := newFamilyFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.service.Provision(ctx, ann(), validRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.families.calls)
}

func TestJoinByPIN(t *testing.T) {
	f := newFamilyFixture()
	created, err := f.service.Provision(context.Background(), ann(), validRequest())
	require.NoError(t, err)
	familyID := created.Family.ID

	bob := &identity.Principal{ID: "user-bob", Email: "bob@example.com"}

	t.Run("invalid pin format", func(t *testing.T) {
		_, err := f.service.JoinByPIN(context.Background(), bob, familyID, "12a4")
		var vErr validation.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "pin", vErr.Field)
	})

	t.Run("missing family id", func(t *testing.T) {
		_, err := f.service.JoinByPIN(context.Background(), bob, 0, "1234")
		var vErr validation.ValidationError
		require.True(t, errors.As(err, &vErr))
		assert.Equal(t, "family_id", vErr.Field)
	})

	t.Run("unknown family", func(t *testing.T) {
		_, err := f.service.JoinByPIN(context.Background(), bob, familyID+100, "1234")
		assert.ErrorIs(t, err, ErrFamilyNotFound)
	})

	t.Run("incorrect pin", func(t *testing.T) {
		_, err := f.service.JoinByPIN(context.Background(), bob, familyID, "4321")
		assert.ErrorIs(t, err, ErrIncorrectPIN)
		assert.NotContains(t, f.users.rows, "user-bob")
	})

	t.Run("unauthorized", func(t *testing.T) {
		_, err := f.service.JoinByPIN(context.Background(), nil, familyID, "1234")
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("joins", func(t *testing.T) {
		family, err := f.service.JoinByPIN(context.Background(), bob, familyID, "1234")
		require.NoError(t, err)
		assert.Equal(t, familyID, family.ID)

		user := f.users.rows["user-bob"]
		require.NotNil(t, user)
		assert.Equal(t, familyID, *user.FamilyID)
		assert.Equal(t, models.RoleMember, user.Role)
		assert.Contains(t, f.publisher.types(), events.FamilyJoined)
	})

	t.Run("existing profile keeps its role", func(t *testing.T) {
		_, err := f.service.JoinByPIN(context.Background(), ann(), familyID, "1234")
		require.NoError(t, err)
		assert.Equal(t, "parent", f.users.rows["user-ann"].Role)
	})
}

func TestSearch(t *testing.T) {
	f := newFamilyFixture(WithSearchLimit(2))
	for _, name := range []string{"Rossi", "Rossini", "Bianchi", "Russo"} {
		req := validRequest()
		req.FamilyName = name
		_, err := f.service.Provision(context.Background(), ann(), req)
		require.NoError(t, err)
	}

	results, err := f.service.Search(context.Background(), ann(), "  ROSS ")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Rossi", results[0].Name)
	assert.Equal(t, "Rossini", results[1].Name)

	_, err = f.service.Search(context.Background(), ann(), "   ")
	var vErr validation.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = f.service.Search(context.Background(), nil, "Ross")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestProfile(t *testing.T) {
	f := newFamilyFixture()

	_, err := f.service.Profile(context.Background(), ann())
	assert.ErrorIs(t, err, ErrProfileNotFound)

	created, err := f.service.Provision(context.Background(), ann(), validRequest())
	require.NoError(t, err)

	profile, err := f.service.Profile(context.Background(), ann())
	require.NoError(t, err)
	assert.Equal(t, "user-ann", profile.User.ID)
	require.NotNil(t, profile.Family)
	assert.Equal(t, created.Family.ID, profile.Family.ID)
	assert.Equal(t, "Rossi", profile.Family.Name)
	assert.Len(t, profile.Actors, 2)
}

func TestProfileWithoutFamily(t *testing.T) {
	f := newFamilyFixture()
	f.users.rows["user-ann"] = &models.User{ID: "user-ann", Role: models.RoleMember}

	profile, err := f.service.Profile(context.Background(), ann())
	require.NoError(t, err)
	assert.Nil(t, profile.Family)
	assert.Empty(t, profile.Actors)
}

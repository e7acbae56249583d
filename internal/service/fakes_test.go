package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"carecoins/internal/events"
	"carecoins/internal/models"

	"github.com/sirupsen/logrus"
)

var errStore = errors.New("store unavailable")

type fakeFamilies struct {
	mu        sync.Mutex
	next      int64
	rows      map[int64]*models.Family
	createErr error
	calls     int
}

func newFakeFamilies() *fakeFamilies {
	return &fakeFamilies{rows: map[int64]*models.Family{}}
}

func (f *fakeFamilies) Create(ctx context.Context, family *models.Family) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	f.next++
	family.ID = f.next
	stored := *family
	f.rows[family.ID] = &stored
	return nil
}

func (f *fakeFamilies) GetByID(ctx context.Context, id int64) (*models.Family, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if family, ok := f.rows[id]; ok {
		copied := *family
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeFamilies) Search(ctx context.Context, query string, limit int) ([]models.FamilySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(strings.TrimSpace(query))
	out := []models.FamilySummary{}
	for _, family := range f.rows {
		if strings.Contains(strings.ToLower(family.Name), q) {
			out = append(out, family.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeActors struct {
	mu        sync.Mutex
	next      int64
	rows      []models.Actor
	createErr error
	calls     int
}

func (f *fakeActors) CreateBatch(ctx context.Context, actors []*models.Actor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.createErr != nil {
		return f.createErr
	}
	for _, a := range actors {
		f.next++
		a.ID = f.next
		f.rows = append(f.rows, *a)
	}
	return nil
}

func (f *fakeActors) ListByFamily(ctx context.Context, familyID int64) ([]models.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Actor{}
	for _, a := range f.rows {
		if a.FamilyID == familyID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeActors) GetByID(ctx context.Context, id int64) (*models.Actor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.rows {
		if a.ID == id {
			copied := a
			return &copied, nil
		}
	}
	return nil, nil
}

type fakeUsers struct {
	mu        sync.Mutex
	rows      map[string]*models.User
	upsertErr error
	calls     int
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{rows: map[string]*models.User{}}
}

func (f *fakeUsers) Upsert(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	stored := *user
	f.rows[user.ID] = &stored
	return nil
}

func (f *fakeUsers) LinkFamily(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.upsertErr != nil {
		return f.upsertErr
	}
	if existing, ok := f.rows[user.ID]; ok {
		existing.FamilyID = user.FamilyID
		existing.UpdatedAt = user.UpdatedAt
		return nil
	}
	stored := *user
	f.rows[user.ID] = &stored
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.rows[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, nil
}

type fakeActivities struct {
	mu   sync.Mutex
	next int64
	rows []models.Activity
}

func (f *fakeActivities) Create(ctx context.Context, a *models.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	a.ID = f.next
	f.rows = append(f.rows, *a)
	return nil
}

func (f *fakeActivities) ListByFamily(ctx context.Context, familyID int64, limit int) ([]models.Activity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Activity{}
	for _, a := range f.rows {
		if a.FamilyID == familyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type welcome struct {
	to, name, family, pin string
}

type recordingNotifier struct {
	sent []welcome
	err  error
}

func (n *recordingNotifier) SendFamilyWelcome(ctx context.Context, to, name, family, pin string) error {
	n.sent = append(n.sent, welcome{to, name, family, pin})
	return n.err
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

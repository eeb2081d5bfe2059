package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/dentalcare/clinic-visits/internal/core/domain"
	"github.com/dentalcare/clinic-visits/internal/core/ports"
)

var discardLogger = zerolog.Nop()

// ---------------------------------------------------------------------------
// In-memory user repository
// ---------------------------------------------------------------------------

type stubUserRepo struct {
	users     map[int64]*domain.User
	nextID    int64
	deleted   []int64
	updateErr error // if set, Update returns this error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{users: make(map[int64]*domain.User), nextID: 1000}
}

func cloneUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	clone := *u
	if u.ClinicID != nil {
		id := *u.ClinicID
		clone.ClinicID = &id
	}
	return &clone
}

// put stores a user with a fixed id, bypassing Create.
func (r *stubUserRepo) put(u *domain.User) *domain.User {
	r.users[u.ID] = cloneUser(u)
	return u
}

func (r *stubUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
	}
	return cloneUser(u), nil
}

func (r *stubUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, domain.ErrNotFound)
}

func (r *stubUserRepo) List(_ context.Context, f ports.UserFilter) ([]*domain.User, error) {
	var out []*domain.User
	for _, u := range r.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.ClinicID != nil && (u.ClinicID == nil || *u.ClinicID != *f.ClinicID) {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubUserRepo) Create(_ context.Context, u *domain.User) error {
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	r.nextID++
	u.ID = r.nextID
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *stubUserRepo) Update(_ context.Context, u *domain.User) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	if _, ok := r.users[u.ID]; !ok {
		return fmt.Errorf("user %d: %w", u.ID, domain.ErrNotFound)
	}
	r.users[u.ID] = cloneUser(u)
	return nil
}

func (r *stubUserRepo) Delete(_ context.Context, id int64) error {
	delete(r.users, id)
	r.deleted = append(r.deleted, id)
	return nil
}

// ---------------------------------------------------------------------------
// In-memory visit repository
// ---------------------------------------------------------------------------

type stubVisitRepo struct {
	mu           sync.Mutex
	visits       map[int64]*domain.Visit
	users        *stubUserRepo
	nextID       int64
	overlapCalls int
	createErr    error
	lastFilter   ports.VisitFilter
}

func newStubVisitRepo(users *stubUserRepo) *stubVisitRepo {
	return &stubVisitRepo{visits: make(map[int64]*domain.Visit), users: users}
}

// withParties mirrors the eager loading done by the real stores.
func (r *stubVisitRepo) withParties(v *domain.Visit) *domain.Visit {
	clone := *v
	if p, ok := r.users.users[v.PatientID]; ok {
		clone.Patient = p.Party()
	}
	if c, ok := r.users.users[v.ClinicID]; ok {
		clone.Clinic = c.Party()
	}
	return &clone
}

func (r *stubVisitRepo) FindByID(_ context.Context, id int64) (*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.visits[id]
	if !ok {
		return nil, fmt.Errorf("visit %d: %w", id, domain.ErrNotFound)
	}
	return r.withParties(v), nil
}

func (r *stubVisitRepo) List(_ context.Context, f ports.VisitFilter) ([]*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastFilter = f
	var out []*domain.Visit
	for _, v := range r.visits {
		if f.ClinicID != nil && v.ClinicID != *f.ClinicID {
			continue
		}
		if f.PatientID != nil && v.PatientID != *f.PatientID {
			continue
		}
		if f.StartFrom != nil && v.StartTime.Before(*f.StartFrom) {
			continue
		}
		if f.EndTo != nil && v.EndTime.After(*f.EndTo) {
			continue
		}
		out = append(out, r.withParties(v))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (r *stubVisitRepo) FindOverlapping(_ context.Context, clinicID int64, iv domain.Interval, excludeID int64) ([]*domain.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.overlapCalls++
	var out []*domain.Visit
	for _, v := range r.visits {
		if v.ClinicID != clinicID || v.ID == excludeID {
			continue
		}
		if v.StartTime.Before(iv.End) && iv.Start.Before(v.EndTime) {
			clone := *v
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (r *stubVisitRepo) Create(_ context.Context, v *domain.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	v.ID = r.nextID
	clone := *v
	clone.Patient, clone.Clinic = nil, nil
	r.visits[v.ID] = &clone
	return nil
}

func (r *stubVisitRepo) Update(_ context.Context, v *domain.Visit, fields []ports.VisitField) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.visits[v.ID]
	if !ok {
		return fmt.Errorf("visit %d: %w", v.ID, domain.ErrNotFound)
	}
	next := *stored
	for _, f := range fields {
		switch f {
		case ports.VisitFieldTitle:
			next.Title = v.Title
		case ports.VisitFieldSchedule:
			next.StartTime, next.EndTime = v.StartTime, v.EndTime
		case ports.VisitFieldType:
			next.Type = v.Type
		case ports.VisitFieldStatus:
			next.Status = v.Status
		case ports.VisitFieldNotes:
			next.Notes = v.Notes
		case ports.VisitFieldPatient:
			next.PatientID = v.PatientID
		case ports.VisitFieldClinic:
			next.ClinicID = v.ClinicID
		default:
			return fmt.Errorf("unknown field %q", f)
		}
	}
	next.UpdatedAt = v.UpdatedAt
	r.visits[v.ID] = &next
	return nil
}

// interleavingRepo runs before once, ahead of the first Update reaching the
// store, to simulate a concurrent writer landing in that gap.
type interleavingRepo struct {
	*stubVisitRepo
	before func(ctx context.Context)
}

func (r *interleavingRepo) Update(ctx context.Context, v *domain.Visit, fields []ports.VisitField) error {
	if before := r.before; before != nil {
		r.before = nil
		before(ctx)
	}
	return r.stubVisitRepo.Update(ctx, v, fields)
}

func (r *stubVisitRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.visits[id]; !ok {
		return fmt.Errorf("visit %d: %w", id, domain.ErrNotFound)
	}
	delete(r.visits, id)
	return nil
}

// insert stores a visit directly, skipping validation.
func (r *stubVisitRepo) insert(v domain.Visit) *domain.Visit {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v.ID == 0 {
		r.nextID++
		v.ID = r.nextID
	}
	r.visits[v.ID] = &v
	return &v
}

// ---------------------------------------------------------------------------
// Locker, notifier and queue doubles
// ---------------------------------------------------------------------------

type stubLocker struct {
	mu        sync.Mutex
	locks     map[string]*sync.Mutex
	acquired  []string
	err       error
	onAcquire func()
}

func newStubLocker() *stubLocker {
	return &stubLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *stubLocker) Acquire(_ context.Context, key string) (func(context.Context), error) {
	if l.err != nil {
		return nil, l.err
	}
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.acquired = append(l.acquired, key)
	hook := l.onAcquire
	l.mu.Unlock()

	if hook != nil {
		hook()
	}
	m.Lock()
	return func(context.Context) { m.Unlock() }, nil
}

type notification struct {
	event domain.VisitEvent
	visit domain.Visit
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notification
}

func (n *recordingNotifier) Notify(_ context.Context, event domain.VisitEvent, v *domain.Visit) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notification{event: event, visit: *v})
}

type recordingQueue struct {
	msgs []domain.MailMessage
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, msg domain.MailMessage) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

// Package feed keeps the paginated announcement and assignment feeds of each class.
package feed

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/model"
	"github.com/stemsi/classroom-client/internal/validator"
)

// Session is the part of the session manager the feeds depend on.
type Session interface {
	CheckSession() bool
	User() (*model.User, bool)
}

// Documents hands out the document store once it is available.
type Documents interface {
	Documents(ctx context.Context) (docstore.Store, error)
}

// Options sets the fixed page size of each feed kind.
type Options struct {
	AnnouncementPageSize int
	AssignmentPageSize   int
}

// Synchronizer owns every feed of the process.
type Synchronizer struct {
	session Session
	docs    Documents
	log     zerolog.Logger
	now     func() time.Time

	announcements *pager[model.Announcement]
	assignments   *pager[model.Assignment]
}

// NewSynchronizer creates a Synchronizer with empty feeds.
func NewSynchronizer(opts Options, session Session, docs Documents, m *metrics.Metrics, log zerolog.Logger) *Synchronizer {
	log = log.With().Str("component", "feed").Logger()
	if opts.AnnouncementPageSize <= 0 {
		opts.AnnouncementPageSize = 10
	}
	if opts.AssignmentPageSize <= 0 {
		opts.AssignmentPageSize = 10
	}

	return &Synchronizer{
		session: session,
		docs:    docs,
		log:     log,
		now:     time.Now,
		announcements: newPager(kind[model.Announcement]{
			name:     "announcements",
			path:     docstore.AnnouncementsPath,
			order:    docstore.OrderBy{Field: docstore.CreateTimeField, Desc: true},
			pageSize: opts.AnnouncementPageSize,
			decode:   announcementFromRecord,
			merge:    prependAnnouncement,
			id:       func(a model.Announcement) string { return a.ID },
		}, m, log),
		assignments: newPager(kind[model.Assignment]{
			name:     "assignments",
			path:     docstore.AssignmentsPath,
			order:    docstore.OrderBy{Field: "due_date"},
			pageSize: opts.AssignmentPageSize,
			decode:   assignmentFromRecord,
			merge:    insertByDueDate,
			id:       func(a model.Assignment) string { return a.ID },
			follows:  func(last, a model.Assignment) bool { return dueBefore(last, a) },
		}, m, log),
	}
}

func prependAnnouncement(items []model.Announcement, a model.Announcement) []model.Announcement {
	return append([]model.Announcement{a}, items...)
}

func insertByDueDate(items []model.Assignment, a model.Assignment) []model.Assignment {
	items = append(items, a)
	sort.SliceStable(items, func(i, j int) bool { return dueBefore(items[i], items[j]) })
	return items
}

// dueBefore is the store's assignment order: due date, then id.
func dueBefore(a, b model.Assignment) bool {
	if !a.DueDate.Equal(b.DueDate) {
		return a.DueDate.Before(b.DueDate)
	}
	return a.ID < b.ID
}

// ─── Announcements ─────────────────────────────────────────────────────────

// LoadAnnouncements resets the class announcement feed and loads its newest page.
func (s *Synchronizer) LoadAnnouncements(ctx context.Context, classID string) (View[model.Announcement], error) {
	store, err := s.classStore(ctx, "feed.load_announcements", classID)
	if err != nil {
		return s.announcements.view(classID), err
	}
	return s.announcements.loadFirst(ctx, store, classID)
}

// MoreAnnouncements appends the next page of older announcements.
func (s *Synchronizer) MoreAnnouncements(ctx context.Context, classID string) (View[model.Announcement], error) {
	store, err := s.store(ctx, "feed.more_announcements")
	if err != nil {
		return s.announcements.view(classID), err
	}
	return s.announcements.more(ctx, store, classID)
}

// CreateAnnouncement posts to the class and prepends the stored item locally.
func (s *Synchronizer) CreateAnnouncement(ctx context.Context, classID string, req model.CreateAnnouncementRequest) (*model.Announcement, error) {
	const op = "feed.create_announcement"
	req.Content = strings.TrimSpace(req.Content)
	if err := validator.Struct(op, &req); err != nil {
		return nil, err
	}
	user, store, err := s.author(ctx, op)
	if err != nil {
		return nil, err
	}

	epoch := s.announcements.mark(classID)
	draft := &model.Announcement{ClassID: classID, AuthorID: user.ID, Content: req.Content}
	r, err := s.write(ctx, store, docstore.AnnouncementsPath(classID), announcementFields(draft))
	if err != nil {
		return nil, err
	}
	created := announcementFromRecord(classID, r)
	s.announcements.add(classID, created, epoch)
	s.log.Info().Str("class_id", classID).Str("id", created.ID).Msg("Announcement created")
	return &created, nil
}

// Announcements returns the current announcement feed of a class.
func (s *Synchronizer) Announcements(classID string) View[model.Announcement] {
	return s.announcements.view(classID)
}

// ─── Assignments ───────────────────────────────────────────────────────────

// LoadAssignments resets the class assignment feed and loads the earliest-due page.
func (s *Synchronizer) LoadAssignments(ctx context.Context, classID string) (View[model.Assignment], error) {
	store, err := s.classStore(ctx, "feed.load_assignments", classID)
	if err != nil {
		return s.assignments.view(classID), err
	}
	return s.assignments.loadFirst(ctx, store, classID)
}

// MoreAssignments appends the next page of assignments.
func (s *Synchronizer) MoreAssignments(ctx context.Context, classID string) (View[model.Assignment], error) {
	store, err := s.store(ctx, "feed.more_assignments")
	if err != nil {
		return s.assignments.view(classID), err
	}
	return s.assignments.more(ctx, store, classID)
}

// CreateAssignment stores a new assignment and inserts it in due-date order
// when it falls within the loaded pages.
// Points default to 100 when omitted.
func (s *Synchronizer) CreateAssignment(ctx context.Context, classID string, req model.CreateAssignmentRequest) (*model.Assignment, error) {
	const op = "feed.create_assignment"
	req.Title = strings.TrimSpace(req.Title)
	if err := validator.Struct(op, &req); err != nil {
		return nil, err
	}
	if req.Points == 0 {
		req.Points = model.DefaultAssignmentPoints
	}
	_, store, err := s.author(ctx, op)
	if err != nil {
		return nil, err
	}

	epoch := s.assignments.mark(classID)
	draft := &model.Assignment{
		ClassID:     classID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate.UTC().Truncate(time.Millisecond),
		Points:      req.Points,
	}
	r, err := s.write(ctx, store, docstore.AssignmentsPath(classID), assignmentFields(draft))
	if err != nil {
		return nil, err
	}
	created := assignmentFromRecord(classID, r)
	s.assignments.add(classID, created, epoch)
	s.log.Info().Str("class_id", classID).Str("id", created.ID).Msg("Assignment created")
	return &created, nil
}

// Assignments returns the current assignment feed of a class.
func (s *Synchronizer) Assignments(classID string) View[model.Assignment] {
	return s.assignments.view(classID)
}

// Reset drops every feed, e.g. after logout. Pages still in flight are discarded.
func (s *Synchronizer) Reset() {
	s.announcements.reset()
	s.assignments.reset()
}

// ─── Internals ─────────────────────────────────────────────────────────────

// store requires an active session and a ready document store.
func (s *Synchronizer) store(ctx context.Context, op string) (docstore.Store, error) {
	if !s.session.CheckSession() {
		return nil, apperr.New(apperr.CodeUnauthenticated, op, nil)
	}
	return s.docs.Documents(ctx)
}

// classStore is store plus a check that the class exists.
func (s *Synchronizer) classStore(ctx context.Context, op, classID string) (docstore.Store, error) {
	store, err := s.store(ctx, op)
	if err != nil {
		return nil, err
	}
	if classID == "" {
		return nil, apperr.New(apperr.CodeClassNotFound, op, nil)
	}
	r, err := store.GetDocument(ctx, docstore.ClassesPath, classID)
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	if r == nil {
		return nil, apperr.New(apperr.CodeClassNotFound, op, fmt.Errorf("class %s", classID))
	}
	return store, nil
}

func (s *Synchronizer) author(ctx context.Context, op string) (*model.User, docstore.Store, error) {
	user, ok := s.session.User()
	if !ok {
		return nil, nil, apperr.New(apperr.CodeUnauthenticated, op, nil)
	}
	store, err := s.docs.Documents(ctx)
	if err != nil {
		return nil, nil, err
	}
	return user, store, nil
}

// write creates the document and reads it back for the server timestamps.
// When the read-back fails the write still counts and local stamps are used.
func (s *Synchronizer) write(ctx context.Context, store docstore.Store, path string, fields map[string]any) (*docstore.Record, error) {
	id, err := store.CreateDocument(ctx, path, fields)
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	r, err := store.GetDocument(ctx, path, id)
	if err == nil && r != nil {
		return r, nil
	}
	s.log.Warn().Err(err).Str("path", path).Str("id", id).Msg("Read-back after create failed, using local timestamps")
	now := s.now().UTC()
	return &docstore.Record{ID: id, Fields: fields, CreateTime: now, UpdateTime: now}, nil
}

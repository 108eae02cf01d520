package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/stemsi/classroom-client/internal/apperr"
	"github.com/stemsi/classroom-client/internal/docstore"
	"github.com/stemsi/classroom-client/internal/metrics"
	"github.com/stemsi/classroom-client/internal/model"
)

type fakeSession struct {
	valid bool
	user  *model.User
}

func (f *fakeSession) CheckSession() bool { return f.valid }

func (f *fakeSession) User() (*model.User, bool) {
	if !f.valid {
		return nil, false
	}
	return f.user, true
}

// countingStore counts page queries and can hold or fail follow-up pages.
type countingStore struct {
	*docstore.MemoryStore

	mu      sync.Mutex
	queries int
	entered chan struct{}
	release chan struct{}
	moreErr error

	// onCreate runs before a document is written.
	onCreate func()
}

func (s *countingStore) CreateDocument(ctx context.Context, path string, fields map[string]any) (string, error) {
	s.mu.Lock()
	hook := s.onCreate
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return s.MemoryStore.CreateDocument(ctx, path, fields)
}

func (s *countingStore) QueryPage(ctx context.Context, path string, order docstore.OrderBy, after *docstore.Cursor, pageSize int) (docstore.Page, error) {
	s.mu.Lock()
	s.queries++
	entered, release, moreErr := s.entered, s.release, s.moreErr
	s.mu.Unlock()

	if after != nil {
		if release != nil {
			entered <- struct{}{}
			<-release
		}
		if moreErr != nil {
			return docstore.Page{}, moreErr
		}
	}
	return s.MemoryStore.QueryPage(ctx, path, order, after, pageSize)
}

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries
}

// hold makes the next follow-up page block until the returned func is called.
func (s *countingStore) hold() (entered <-chan struct{}, release func()) {
	in := make(chan struct{}, 1)
	out := make(chan struct{})
	s.mu.Lock()
	s.entered, s.release = in, out
	s.mu.Unlock()
	return in, func() {
		s.mu.Lock()
		s.entered, s.release = nil, nil
		s.mu.Unlock()
		close(out)
	}
}

type fakeDocs struct {
	store docstore.Store
	err   error
}

func (f *fakeDocs) Documents(context.Context) (docstore.Store, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.store, nil
}

const classID = "c1"

func newTestSync(t *testing.T) (*Synchronizer, *countingStore, *fakeSession, *fakeDocs) {
	t.Helper()
	store := &countingStore{MemoryStore: docstore.NewMemoryStore()}
	if err := store.SetDocument(context.Background(), docstore.ClassesPath, classID, map[string]any{"name": "Física", "teacher_id": "t1"}); err != nil {
		t.Fatalf("seed class: %v", err)
	}
	session := &fakeSession{valid: true, user: &model.User{ID: "t1", Role: model.RoleTeacher}}
	docs := &fakeDocs{store: store}
	s := NewSynchronizer(Options{AnnouncementPageSize: 10, AssignmentPageSize: 10}, session, docs, metrics.NewNop(), zerolog.Nop())
	return s, store, session, docs
}

func seedAnnouncements(t *testing.T, store *countingStore, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := store.CreateDocument(context.Background(), docstore.AnnouncementsPath(classID), map[string]any{
			"author_id": "t1",
			"content":   fmt.Sprintf("aviso %02d", i),
		})
		if err != nil {
			t.Fatalf("seed announcement: %v", err)
		}
	}
}

func TestPagingUntilExhausted(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 14)

	v, err := s.LoadAnnouncements(ctx, classID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(v.Items) != 10 || !v.HasMore || v.Items[0].Content != "aviso 13" {
		t.Fatalf("expected newest 10 with more to come, got %d items hasMore=%v", len(v.Items), v.HasMore)
	}

	v, err = s.MoreAnnouncements(ctx, classID)
	if err != nil {
		t.Fatalf("more: %v", err)
	}
	if len(v.Items) != 14 || v.HasMore || v.Items[13].Content != "aviso 00" {
		t.Fatalf("expected 14 items and exhaustion, got %d hasMore=%v", len(v.Items), v.HasMore)
	}

	v, _ = s.MoreAnnouncements(ctx, classID)
	if len(v.Items) != 14 || store.count() != 2 {
		t.Fatalf("expected exhausted feed to issue no request, got %d items after %d queries", len(v.Items), store.count())
	}
}

func TestFullPageWithoutCursorIsExhausted(t *testing.T) {
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 10)

	v, err := s.LoadAnnouncements(context.Background(), classID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(v.Items) != 10 || v.HasMore {
		t.Fatalf("expected exhaustion without a cursor, got hasMore=%v", v.HasMore)
	}
}

func TestFetchMoreWhileLoadingIsNoop(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 14)
	if _, err := s.LoadAnnouncements(ctx, classID); err != nil {
		t.Fatalf("load: %v", err)
	}

	entered, release := store.hold()
	done := make(chan View[model.Announcement], 1)
	go func() {
		v, _ := s.MoreAnnouncements(ctx, classID)
		done <- v
	}()
	<-entered

	second, err := s.MoreAnnouncements(ctx, classID)
	if err != nil {
		t.Fatalf("second more: %v", err)
	}
	if !second.Loading || len(second.Items) != 10 {
		t.Fatalf("expected the second call to see the in-flight page, got %+v", second)
	}

	release()
	first := <-done
	if len(first.Items) != 14 || store.count() != 2 {
		t.Fatalf("expected one follow-up request and 14 items, got %d items after %d queries", len(first.Items), store.count())
	}
}

func TestLatePageAfterResetIsDiscarded(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 14)
	if _, err := s.LoadAnnouncements(ctx, classID); err != nil {
		t.Fatalf("load: %v", err)
	}

	entered, release := store.hold()
	done := make(chan struct{})
	go func() {
		_, _ = s.MoreAnnouncements(ctx, classID)
		close(done)
	}()
	<-entered

	if _, err := s.LoadAnnouncements(ctx, classID); err != nil {
		t.Fatalf("reload: %v", err)
	}
	release()
	<-done

	v := s.Announcements(classID)
	if len(v.Items) != 10 || !v.HasMore || v.Loading {
		t.Fatalf("expected only the reloaded first page, got %d items loading=%v", len(v.Items), v.Loading)
	}
}

func TestFailedPageLeavesItems(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 14)
	if _, err := s.LoadAnnouncements(ctx, classID); err != nil {
		t.Fatalf("load: %v", err)
	}

	store.moreErr = apperr.New(apperr.CodeStorageUnavailable, "test.query", errors.New("connection reset"))
	v, err := s.MoreAnnouncements(ctx, classID)
	if !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("expected typed storage error, got %v", err)
	}
	if len(v.Items) != 10 || !v.HasMore || v.Loading {
		t.Fatalf("expected prior items intact and feed retryable, got %+v", v)
	}

	store.moreErr = nil
	if v, err = s.MoreAnnouncements(ctx, classID); err != nil || len(v.Items) != 14 {
		t.Fatalf("expected retry to succeed, got %d items %v", len(v.Items), err)
	}
}

func TestCreateAnnouncementPrepends(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 1)
	if _, err := s.LoadAnnouncements(ctx, classID); err != nil {
		t.Fatalf("load: %v", err)
	}

	created, err := s.CreateAnnouncement(ctx, classID, model.CreateAnnouncementRequest{Content: "  Examen el viernes  "})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.AuthorID != "t1" || created.Content != "Examen el viernes" || created.CreatedAt.IsZero() {
		t.Fatalf("unexpected created announcement %+v", created)
	}

	v := s.Announcements(classID)
	if len(v.Items) != 2 || v.Items[0].ID != created.ID {
		t.Fatalf("expected new announcement at index 0, got %+v", v.Items)
	}
	if store.count() != 1 {
		t.Fatalf("expected no refetch after create, got %d queries", store.count())
	}
}

func TestCreateAnnouncementValidates(t *testing.T) {
	s, _, _, _ := newTestSync(t)
	_, err := s.CreateAnnouncement(context.Background(), classID, model.CreateAnnouncementRequest{Content: "   "})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateAssignmentKeepsDueDateOrder(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	base := time.Date(2026, 5, 1, 23, 59, 0, 0, time.UTC)
	for _, day := range []int{5, 1, 3} {
		_, err := store.CreateDocument(ctx, docstore.AssignmentsPath(classID), map[string]any{
			"title":    fmt.Sprintf("tarea día %d", day),
			"due_date": base.AddDate(0, 0, day).UnixMilli(),
			"points":   50,
		})
		if err != nil {
			t.Fatalf("seed assignment: %v", err)
		}
	}

	v, err := s.LoadAssignments(ctx, classID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(v.Items) != 3 || v.Items[0].Title != "tarea día 1" || v.Items[2].Title != "tarea día 5" {
		t.Fatalf("expected due-date order, got %+v", v.Items)
	}

	created, err := s.CreateAssignment(ctx, classID, model.CreateAssignmentRequest{
		Title:   "Ensayo",
		DueDate: base.AddDate(0, 0, 2),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Points != model.DefaultAssignmentPoints || !created.DueDate.Equal(base.AddDate(0, 0, 2)) {
		t.Fatalf("unexpected created assignment %+v", created)
	}

	same, err := s.CreateAssignment(ctx, classID, model.CreateAssignmentRequest{Title: "Lectura", DueDate: base.AddDate(0, 0, 4), Points: 20})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var titles []string
	for _, a := range s.Assignments(classID).Items {
		titles = append(titles, a.Title)
	}
	want := []string{"tarea día 1", "Ensayo", "tarea día 3", same.Title, "tarea día 5"}
	if fmt.Sprint(titles) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, titles)
	}
}

func TestCreateAssignmentBeyondLoadedPagesArrivesByPaging(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for day := 1; day <= 20; day++ {
		_, err := store.CreateDocument(ctx, docstore.AssignmentsPath(classID), map[string]any{
			"title":    fmt.Sprintf("d%02d", day),
			"due_date": base.AddDate(0, 0, day).UnixMilli(),
		})
		if err != nil {
			t.Fatalf("seed assignment: %v", err)
		}
	}

	v, err := s.LoadAssignments(ctx, classID)
	if err != nil || len(v.Items) != 10 || !v.HasMore {
		t.Fatalf("expected a full first page, got %d items more=%v err=%v", len(v.Items), v.HasMore, err)
	}

	// Within the loaded pages: merged at once.
	early, err := s.CreateAssignment(ctx, classID, model.CreateAssignmentRequest{Title: "early", DueDate: base.AddDate(0, 0, 5).Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v := s.Assignments(classID); len(v.Items) != 11 || v.Items[5].ID != early.ID {
		t.Fatalf("expected early at index 5 of 11, got %+v", v.Items)
	}

	// Past the loaded tail: left to paging.
	late, err := s.CreateAssignment(ctx, classID, model.CreateAssignmentRequest{Title: "late", DueDate: base.AddDate(0, 0, 15).Add(time.Hour)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v := s.Assignments(classID); len(v.Items) != 11 {
		t.Fatalf("expected late to wait for paging, got %d items", len(v.Items))
	}

	for v.HasMore {
		if v, err = s.MoreAssignments(ctx, classID); err != nil {
			t.Fatalf("more: %v", err)
		}
	}
	if len(v.Items) != 22 {
		t.Fatalf("expected 22 assignments, got %d", len(v.Items))
	}
	seen := make(map[string]int)
	for i, a := range v.Items {
		seen[a.ID]++
		if i > 0 && a.DueDate.Before(v.Items[i-1].DueDate) {
			t.Fatalf("due-date order broken at %d: %s before %s", i, v.Items[i-1].Title, a.Title)
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("assignment %s listed %d times", id, n)
		}
	}
	if seen[late.ID] != 1 {
		t.Fatalf("expected late in the feed")
	}
}

func TestCreateOnUnloadedFeedWaitsForLoad(t *testing.T) {
	ctx := context.Background()
	s, _, _, _ := newTestSync(t)

	created, err := s.CreateAnnouncement(ctx, classID, model.CreateAnnouncementRequest{Content: "Primer aviso"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if v := s.Announcements(classID); len(v.Items) != 0 {
		t.Fatalf("expected an unloaded feed to stay empty, got %+v", v.Items)
	}

	v, err := s.LoadAnnouncements(ctx, classID)
	if err != nil || len(v.Items) != 1 || v.Items[0].ID != created.ID {
		t.Fatalf("expected the load to bring the new item, got %+v err=%v", v.Items, err)
	}
}

func TestCreateResolvingAfterResetIsNotMerged(t *testing.T) {
	ctx := context.Background()
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 2)
	if _, err := s.LoadAnnouncements(ctx, classID); err != nil {
		t.Fatalf("load: %v", err)
	}

	store.mu.Lock()
	store.onCreate = s.Reset
	store.mu.Unlock()

	if _, err := s.CreateAnnouncement(ctx, classID, model.CreateAnnouncementRequest{Content: "tarde"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if v := s.Announcements(classID); len(v.Items) != 0 || v.HasMore {
		t.Fatalf("expected the reset feed to stay empty, got %+v", v)
	}
}

func TestCreateAssignmentRequiresTitle(t *testing.T) {
	s, _, _, _ := newTestSync(t)
	_, err := s.CreateAssignment(context.Background(), classID, model.CreateAssignmentRequest{DueDate: time.Now()})
	if apperr.FieldsOf(err)["title"] == "" {
		t.Fatalf("expected title validation error, got %v", err)
	}
}

func TestLoadRequiresSession(t *testing.T) {
	s, _, session, _ := newTestSync(t)
	session.valid = false
	if _, err := s.LoadAnnouncements(context.Background(), classID); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected UNAUTHENTICATED, got %v", err)
	}
	if _, err := s.CreateAnnouncement(context.Background(), classID, model.CreateAnnouncementRequest{Content: "hola"}); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("expected UNAUTHENTICATED on create, got %v", err)
	}
}

func TestLoadUnknownClass(t *testing.T) {
	s, _, _, _ := newTestSync(t)
	if _, err := s.LoadAssignments(context.Background(), "missing"); !errors.Is(err, apperr.ErrClassNotFound) {
		t.Fatalf("expected CLASS_NOT_FOUND, got %v", err)
	}
}

func TestLoadWithStorageDegraded(t *testing.T) {
	s, _, _, docs := newTestSync(t)
	docs.err = apperr.New(apperr.CodeStorageUnavailable, "test.documents", nil)
	if _, err := s.LoadAnnouncements(context.Background(), classID); !errors.Is(err, apperr.ErrStorageUnavailable) {
		t.Fatalf("expected STORAGE_UNAVAILABLE, got %v", err)
	}
}

func TestResetDropsFeeds(t *testing.T) {
	s, store, _, _ := newTestSync(t)
	seedAnnouncements(t, store, 3)
	if _, err := s.LoadAnnouncements(context.Background(), classID); err != nil {
		t.Fatalf("load: %v", err)
	}
	s.Reset()
	if v := s.Announcements(classID); len(v.Items) != 0 || v.HasMore {
		t.Fatalf("expected empty feed after reset, got %+v", v)
	}
}

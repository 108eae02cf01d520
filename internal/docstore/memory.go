package docstore

import (
	"cmp"
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/classroom-client/internal/apperr"
)

// MemoryStore keeps documents in process memory with the same ordering and
// cursor semantics as PostgresStore.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Record
	now         func() time.Time
	last        time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]Record),
		now:         time.Now,
	}
}

// stamp returns a strictly increasing server time at microsecond precision.
func (s *MemoryStore) stamp() time.Time {
	t := s.now().UTC().Truncate(time.Microsecond)
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

func (s *MemoryStore) GetDocument(_ context.Context, path, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.collections[path][id]
	if !ok {
		return nil, nil
	}
	cp, err := copyRecord(r)
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "docstore.get", err)
	}
	return &cp, nil
}

func (s *MemoryStore) QueryPage(_ context.Context, path string, order OrderBy, after *Cursor, pageSize int) (Page, error) {
	if pageSize <= 0 {
		return Page{}, apperr.Validation("docstore.query_page", map[string]string{"page_size": "page_size must be positive"})
	}

	s.mu.RLock()
	records := s.sorted(path, order)
	s.mu.RUnlock()

	start := 0
	if after != nil {
		anchor := keyOf(after, order)
		start = len(records)
		for i, r := range records {
			if compareKeys(keyOfRecord(r, order), anchor, order.Desc) > 0 {
				start = i
				break
			}
		}
	}

	end := start + pageSize
	var page Page
	if end < len(records) {
		page.Records = records[start:end]
		page.Next = cursorFor(page.Records[len(page.Records)-1], order)
	} else {
		page.Records = records[start:]
	}
	return page, nil
}

func (s *MemoryStore) QueryWhere(_ context.Context, path string, filter Filter, order OrderBy) ([]Record, error) {
	want, err := normalize(map[string]any{"v": filter.Value})
	if err != nil {
		return nil, apperr.New(apperr.CodeValidation, "docstore.query_where", err)
	}

	s.mu.RLock()
	records := s.sorted(path, order)
	s.mu.RUnlock()

	out := make([]Record, 0)
	for _, r := range records {
		if matches(r.Fields[filter.Field], filter.Op, want["v"]) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateDocument(_ context.Context, path string, fields map[string]any) (string, error) {
	norm, err := normalize(fields)
	if err != nil {
		return "", apperr.New(apperr.CodeValidation, "docstore.create", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	now := s.stamp()
	s.collection(path)[id] = Record{ID: id, Fields: norm, CreateTime: now, UpdateTime: now}
	return id, nil
}

func (s *MemoryStore) SetDocument(_ context.Context, path, id string, fields map[string]any) error {
	norm, err := normalize(fields)
	if err != nil {
		return apperr.New(apperr.CodeValidation, "docstore.set", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.stamp()
	col := s.collection(path)
	created := now
	if existing, ok := col[id]; ok {
		created = existing.CreateTime
	}
	col[id] = Record{ID: id, Fields: norm, CreateTime: created, UpdateTime: now}
	return nil
}

func (s *MemoryStore) UpdateDocument(_ context.Context, path, id string, fields map[string]any) error {
	norm, err := normalize(fields)
	if err != nil {
		return apperr.New(apperr.CodeValidation, "docstore.update", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.collections[path][id]
	if !ok {
		return apperr.New(apperr.CodeNotFound, "docstore.update", nil)
	}
	merged := make(map[string]any, len(r.Fields)+len(norm))
	for k, v := range r.Fields {
		merged[k] = v
	}
	for k, v := range norm {
		merged[k] = v
	}
	r.Fields = merged
	r.UpdateTime = s.stamp()
	s.collections[path][id] = r
	return nil
}

func (s *MemoryStore) collection(path string) map[string]Record {
	col, ok := s.collections[path]
	if !ok {
		col = make(map[string]Record)
		s.collections[path] = col
	}
	return col
}

// sorted returns copies of the collection's records in query order. Caller holds the read lock.
func (s *MemoryStore) sorted(path string, order OrderBy) []Record {
	col := s.collections[path]
	out := make([]Record, 0, len(col))
	for _, r := range col {
		cp, err := copyRecord(r)
		if err != nil {
			continue
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return compareKeys(keyOfRecord(out[i], order), keyOfRecord(out[j], order), order.Desc) < 0
	})
	return out
}

func copyRecord(r Record) (Record, error) {
	fields, err := normalize(r.Fields)
	if err != nil {
		return Record{}, err
	}
	r.Fields = fields
	return r, nil
}

// sortKey is the (order value, id) keyset pair.
type sortKey struct {
	value any
	id    string
}

func keyOfRecord(r Record, order OrderBy) sortKey {
	if order.Field == CreateTimeField {
		return sortKey{value: r.CreateTime, id: r.ID}
	}
	return sortKey{value: r.Fields[order.Field], id: r.ID}
}

func keyOf(c *Cursor, order OrderBy) sortKey {
	if order.Field == CreateTimeField {
		s, _ := c.Value.(string)
		t, _ := time.Parse(time.RFC3339Nano, s)
		return sortKey{value: t, id: c.ID}
	}
	return sortKey{value: c.Value, id: c.ID}
}

// compareKeys orders a before b (<0) in query order; the id breaks ties in the same direction.
func compareKeys(a, b sortKey, desc bool) int {
	c := compareValues(a.value, b.value)
	if c == 0 {
		c = strings.Compare(a.id, b.id)
	}
	if desc {
		return -c
	}
	return c
}

// rank follows jsonb ordering: null < string < number < boolean < array < object.
// Missing fields compare as null. Server timestamps only meet each other.
func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case string:
		return 1
	case float64:
		return 2
	case bool:
		return 3
	case []any:
		return 4
	case map[string]any:
		return 5
	case time.Time:
		return 6
	}
	return 7
}

func compareValues(a, b any) int {
	if ra, rb := rank(a), rank(b); ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch x := a.(type) {
	case string:
		return strings.Compare(x, b.(string))
	case float64:
		return cmp.Compare(x, b.(float64))
	case time.Time:
		return x.Compare(b.(time.Time))
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	}
	return 0
}

func matches(got any, op FilterOp, want any) bool {
	switch op {
	case OpArrayContains:
		list, ok := got.([]any)
		if !ok {
			return false
		}
		for _, v := range list {
			if reflect.DeepEqual(v, want) {
				return true
			}
		}
		return false
	default:
		return reflect.DeepEqual(got, want)
	}
}

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"tenant-quiz-service/internal/app"
	"tenant-quiz-service/internal/domain"
)

// SchemaFactory hands out isolated in-memory store bundles, one per tenant.
type SchemaFactory struct {
	mu      sync.Mutex
	tenants map[string]*tenantDB
}

func NewSchemaFactory() *SchemaFactory {
	return &SchemaFactory{tenants: make(map[string]*tenantDB)}
}

func (f *SchemaFactory) Materialize(_ context.Context, tenantID string) (app.Stores, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	db, ok := f.tenants[tenantID]
	if !ok {
		db = &tenantDB{data: newTenantData()}
		f.tenants[tenantID] = db
	}
	return db.stores(false), nil
}

// tenantDB guards the records of one tenant. A transaction holds the lock for its
// whole duration and restores a snapshot when it fails.
type tenantDB struct {
	mu   sync.Mutex
	data *tenantData
}

type tenantData struct {
	users     map[string]domain.User
	quizzes   map[string]domain.Quiz
	versions  map[string]domain.QuizVersion
	questions map[string]domain.Question
	attempts  map[string]domain.Attempt
	responses map[string]domain.Response
}

func newTenantData() *tenantData {
	return &tenantData{
		users:     make(map[string]domain.User),
		quizzes:   make(map[string]domain.Quiz),
		versions:  make(map[string]domain.QuizVersion),
		questions: make(map[string]domain.Question),
		attempts:  make(map[string]domain.Attempt),
		responses: make(map[string]domain.Response),
	}
}

// clone copies the maps. Stored records are values whose slices are never mutated
// in place, so a shallow copy of each map is a consistent snapshot.
func (d *tenantData) clone() *tenantData {
	c := newTenantData()
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.quizzes {
		c.quizzes[k] = v
	}
	for k, v := range d.versions {
		c.versions[k] = v
	}
	for k, v := range d.questions {
		c.questions[k] = v
	}
	for k, v := range d.attempts {
		c.attempts[k] = v
	}
	for k, v := range d.responses {
		c.responses[k] = v
	}
	return c
}

func (db *tenantDB) stores(inTx bool) app.Stores {
	s := store{db: db, inTx: inTx}
	var tx app.TxRunner
	if !inTx {
		tx = db
	}
	return app.NewStores(userStore{s}, quizStore{s}, versionStore{s}, questionStore{s},
		attemptStore{s}, responseStore{s}, tx)
}

func (db *tenantDB) RunInTx(ctx context.Context, fn func(ctx context.Context, tx app.Stores) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	snapshot := db.data.clone()
	if err := fn(ctx, db.stores(true)); err != nil {
		db.data = snapshot
		return err
	}
	return nil
}

type store struct {
	db   *tenantDB
	inTx bool
}

// with runs fn against the tenant data, taking the lock unless a transaction holds it.
func (s store) with(fn func(d *tenantData) error) error {
	if !s.inTx {
		s.db.mu.Lock()
		defer s.db.mu.Unlock()
	}
	return fn(s.db.data)
}

type userStore struct{ store }

func (s userStore) Upsert(_ context.Context, userID string, now time.Time) (domain.User, error) {
	var user domain.User
	err := s.with(func(d *tenantData) error {
		u, ok := d.users[userID]
		if !ok {
			u = domain.User{ID: userID, CreatedAt: now}
		}
		u.UpdatedAt = now
		d.users[userID] = u
		user = u
		return nil
	})
	return user, err
}

func (s userStore) Exists(_ context.Context, userID string) (bool, error) {
	var ok bool
	err := s.with(func(d *tenantData) error {
		_, ok = d.users[userID]
		return nil
	})
	return ok, err
}

type quizStore struct{ store }

func (s quizStore) Insert(_ context.Context, quiz domain.Quiz) error {
	return s.with(func(d *tenantData) error {
		d.quizzes[quiz.ID] = quiz
		return nil
	})
}

func (s quizStore) Get(_ context.Context, quizID string) (domain.Quiz, error) {
	var quiz domain.Quiz
	err := s.with(func(d *tenantData) error {
		q, ok := d.quizzes[quizID]
		if !ok {
			return domain.ErrQuizNotFound
		}
		quiz = q
		return nil
	})
	return quiz, err
}

func (s quizStore) SetStatus(_ context.Context, quizID string, from, to domain.QuizStatus, at time.Time) error {
	return s.with(func(d *tenantData) error {
		quiz, ok := d.quizzes[quizID]
		if !ok {
			return domain.ErrQuizNotFound
		}
		if quiz.Status != from {
			return domain.ErrQuizStatusChanged
		}
		quiz.Status = to
		quiz.UpdatedAt = at
		d.quizzes[quizID] = quiz
		return nil
	})
}

func (s quizStore) Exists(_ context.Context, quizID string) (bool, error) {
	var ok bool
	err := s.with(func(d *tenantData) error {
		_, ok = d.quizzes[quizID]
		return nil
	})
	return ok, err
}

type versionStore struct{ store }

func (s versionStore) Insert(_ context.Context, version domain.QuizVersion) error {
	return s.with(func(d *tenantData) error {
		if version.Active && d.hasActiveVersion(version.QuizID, version.ID) {
			return domain.ErrActiveVersionExists
		}
		d.versions[version.ID] = version
		return nil
	})
}

func (s versionStore) Update(_ context.Context, version domain.QuizVersion) error {
	return s.with(func(d *tenantData) error {
		if _, ok := d.versions[version.ID]; !ok {
			return domain.ErrVersionNotFound
		}
		if version.Active && d.hasActiveVersion(version.QuizID, version.ID) {
			return domain.ErrActiveVersionExists
		}
		d.versions[version.ID] = version
		return nil
	})
}

func (s versionStore) Get(_ context.Context, versionID string) (domain.QuizVersion, error) {
	var version domain.QuizVersion
	err := s.with(func(d *tenantData) error {
		v, ok := d.versions[versionID]
		if !ok {
			return domain.ErrVersionNotFound
		}
		version = v
		return nil
	})
	return version, err
}

func (s versionStore) GetActive(_ context.Context, quizID string) (domain.QuizVersion, error) {
	var version domain.QuizVersion
	err := s.with(func(d *tenantData) error {
		for _, v := range d.versions {
			if v.QuizID == quizID && v.Active {
				version = v
				return nil
			}
		}
		if _, ok := d.quizzes[quizID]; !ok {
			return domain.ErrQuizNotFound
		}
		return domain.ErrVersionNotFound
	})
	return version, err
}

func (s versionStore) Count(_ context.Context, quizID string) (int, error) {
	var n int
	err := s.with(func(d *tenantData) error {
		for _, v := range d.versions {
			if v.QuizID == quizID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (s versionStore) ListActive(_ context.Context, page domain.PageRequest) ([]domain.QuizVersion, int, error) {
	return s.list(page, func(v domain.QuizVersion) bool { return v.Active })
}

func (s versionStore) ListByQuiz(_ context.Context, quizID string, page domain.PageRequest) ([]domain.QuizVersion, int, error) {
	return s.list(page, func(v domain.QuizVersion) bool { return v.QuizID == quizID })
}

func (s versionStore) list(page domain.PageRequest, match func(domain.QuizVersion) bool) ([]domain.QuizVersion, int, error) {
	var matched []domain.QuizVersion
	err := s.with(func(d *tenantData) error {
		for _, v := range d.versions {
			if match(v) {
				matched = append(matched, v)
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool {
		return newer(matched[i].CreatedAt, matched[j].CreatedAt, matched[i].ID, matched[j].ID)
	})
	items, total := paginate(matched, page)
	return items, total, nil
}

func (d *tenantData) hasActiveVersion(quizID, exceptID string) bool {
	for _, v := range d.versions {
		if v.QuizID == quizID && v.Active && v.ID != exceptID {
			return true
		}
	}
	return false
}

type questionStore struct{ store }

func (s questionStore) Insert(_ context.Context, questions ...domain.Question) error {
	return s.with(func(d *tenantData) error {
		for _, q := range questions {
			q.Options = cloneStrings(q.Options)
			d.questions[q.ID] = q
		}
		return nil
	})
}

func (s questionStore) Update(_ context.Context, question domain.Question) error {
	return s.with(func(d *tenantData) error {
		if cur, ok := d.questions[question.ID]; !ok || cur.VersionID != question.VersionID {
			return domain.ErrQuestionNotFound
		}
		question.Options = cloneStrings(question.Options)
		d.questions[question.ID] = question
		return nil
	})
}

func (s questionStore) Delete(_ context.Context, versionID, questionID string) error {
	return s.with(func(d *tenantData) error {
		if cur, ok := d.questions[questionID]; !ok || cur.VersionID != versionID {
			return domain.ErrQuestionNotFound
		}
		delete(d.questions, questionID)
		return nil
	})
}

func (s questionStore) Get(_ context.Context, versionID, questionID string) (domain.Question, error) {
	var question domain.Question
	err := s.with(func(d *tenantData) error {
		q, ok := d.questions[questionID]
		if !ok || q.VersionID != versionID {
			return domain.ErrQuestionNotFound
		}
		question = q
		question.Options = cloneStrings(q.Options)
		return nil
	})
	return question, err
}

func (s questionStore) List(ctx context.Context, versionID string, page domain.PageRequest) ([]domain.Question, int, error) {
	all, err := s.All(ctx, versionID)
	if err != nil {
		return nil, 0, err
	}
	items, total := paginate(all, page)
	return items, total, nil
}

// All returns the questions of a version, newest first.
func (s questionStore) All(_ context.Context, versionID string) ([]domain.Question, error) {
	var out []domain.Question
	err := s.with(func(d *tenantData) error {
		for _, q := range d.questions {
			if q.VersionID == versionID {
				q.Options = cloneStrings(q.Options)
				out = append(out, q)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out, err
}

type attemptStore struct{ store }

func (s attemptStore) Insert(_ context.Context, attempt domain.Attempt) error {
	return s.with(func(d *tenantData) error {
		if attempt.Active {
			for _, a := range d.attempts {
				if a.UserID == attempt.UserID && a.Active {
					return domain.ErrActiveAttemptExists
				}
			}
		}
		d.attempts[attempt.ID] = attempt
		return nil
	})
}

func (s attemptStore) Get(_ context.Context, attemptID string) (domain.Attempt, error) {
	var attempt domain.Attempt
	err := s.with(func(d *tenantData) error {
		a, ok := d.attempts[attemptID]
		if !ok {
			return domain.ErrAttemptNotFound
		}
		attempt = a
		return nil
	})
	return attempt, err
}

func (s attemptStore) FindActive(_ context.Context, userID string) (domain.Attempt, bool, error) {
	var (
		attempt domain.Attempt
		found   bool
	)
	err := s.with(func(d *tenantData) error {
		for _, a := range d.attempts {
			if a.UserID == userID && a.Active {
				attempt, found = a, true
				return nil
			}
		}
		return nil
	})
	return attempt, found, err
}

func (s attemptStore) End(_ context.Context, attemptID string, endTime time.Time) (bool, error) {
	var ended bool
	err := s.with(func(d *tenantData) error {
		a, ok := d.attempts[attemptID]
		if !ok {
			return domain.ErrAttemptNotFound
		}
		if !a.Active {
			return nil
		}
		a.Active = false
		a.EndTime = endTime
		d.attempts[attemptID] = a
		ended = true
		return nil
	})
	return ended, err
}

func (s attemptStore) List(_ context.Context, filter app.AttemptFilter, page domain.PageRequest) ([]domain.Attempt, int, error) {
	var matched []domain.Attempt
	err := s.with(func(d *tenantData) error {
		for _, a := range d.attempts {
			if filter.UserID != "" && a.UserID != filter.UserID {
				continue
			}
			if filter.QuizID != "" && a.QuizID != filter.QuizID {
				continue
			}
			matched = append(matched, a)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	sort.Slice(matched, func(i, j int) bool {
		return newer(matched[i].StartTime, matched[j].StartTime, matched[i].ID, matched[j].ID)
	})
	items, total := paginate(matched, page)
	return items, total, nil
}

type responseStore struct{ store }

func (s responseStore) Insert(_ context.Context, response domain.Response) error {
	return s.with(func(d *tenantData) error {
		for _, r := range d.responses {
			if r.AttemptID == response.AttemptID && r.QuestionID == response.QuestionID {
				return domain.ErrDuplicateResponse
			}
		}
		d.responses[response.ID] = response
		return nil
	})
}

func (s responseStore) Exists(_ context.Context, attemptID, questionID string) (bool, error) {
	var found bool
	err := s.with(func(d *tenantData) error {
		for _, r := range d.responses {
			if r.AttemptID == attemptID && r.QuestionID == questionID {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (s responseStore) Get(_ context.Context, attemptID, responseID string) (domain.Response, error) {
	var response domain.Response
	err := s.with(func(d *tenantData) error {
		r, ok := d.responses[responseID]
		if !ok || r.AttemptID != attemptID {
			return domain.ErrResponseNotFound
		}
		response = r
		return nil
	})
	return response, err
}

func (s responseStore) List(ctx context.Context, attemptID string, page domain.PageRequest) ([]domain.Response, int, error) {
	all, err := s.All(ctx, attemptID)
	if err != nil {
		return nil, 0, err
	}
	items, total := paginate(all, page)
	return items, total, nil
}

// All returns the responses of an attempt, latest submission first.
func (s responseStore) All(_ context.Context, attemptID string) ([]domain.Response, error) {
	var out []domain.Response
	err := s.with(func(d *tenantData) error {
		for _, r := range d.responses {
			if r.AttemptID == attemptID {
				out = append(out, r)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		return newer(out[i].SubmitTime, out[j].SubmitTime, out[i].ID, out[j].ID)
	})
	return out, err
}

// newer orders records newest first, falling back to the id for a stable order.
func newer(a, b time.Time, aID, bID string) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID > bID
}

func paginate[T any](items []T, page domain.PageRequest) ([]T, int) {
	total := len(items)
	start := page.Offset()
	if start >= total || start < 0 {
		return []T{}, total
	}
	end := start + page.Limit
	if end > total {
		end = total
	}
	return items[start:end], total
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

package ledger

import (
	"context"
	"sync"

	"github.com/abhisek/gradekit/internal/model"
)

// Repo loads and stores the single live mistake per (student, question).
// Save must upsert on that pair. store.MistakeRepo is the persistent
// implementation.
type Repo interface {
	Get(ctx context.Context, studentID, questionID string) (*model.Mistake, error)
	Save(ctx context.Context, m *model.Mistake) error
}

// MemoryRepo is an in-process Repo, used when no database is configured
// and in tests.
type MemoryRepo struct {
	mu       sync.Mutex
	mistakes map[key]model.Mistake
}

// NewMemoryRepo returns an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{mistakes: make(map[key]model.Mistake)}
}

func (r *MemoryRepo) Get(_ context.Context, studentID, questionID string) (*model.Mistake, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.mistakes[key{studentID, questionID}]
	if !ok {
		return nil, nil
	}
	return cloneMistake(&m), nil
}

func (r *MemoryRepo) Save(_ context.Context, m *model.Mistake) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{m.StudentID, m.QuestionID}
	saved := *cloneMistake(m)
	if prev, ok := r.mistakes[k]; ok {
		saved.ID = prev.ID
		saved.CreatedAt = prev.CreatedAt
	}
	r.mistakes[k] = saved
	return nil
}

// Len returns the number of stored mistakes.
func (r *MemoryRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mistakes)
}

func cloneMistake(m *model.Mistake) *model.Mistake {
	out := *m
	out.KnowledgeTags = append([]string(nil), m.KnowledgeTags...)
	if m.RootCause != nil {
		cause := *m.RootCause
		out.RootCause = &cause
	}
	return &out
}

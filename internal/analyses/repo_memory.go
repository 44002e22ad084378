package analyses

import (
	"context"
	"sort"
	"sync"
)

type MemoryRepo struct {
	mu       sync.RWMutex
	analyses map[string]Analysis
	defects  map[string]Defect
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		analyses: make(map[string]Analysis),
		defects:  make(map[string]Defect),
	}
}

func (r *MemoryRepo) SaveAnalysis(ctx context.Context, analysis Analysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.analyses[analysis.ID]; ok {
		return nil
	}
	r.analyses[analysis.ID] = analysis
	return nil
}

func (r *MemoryRepo) SaveDefects(ctx context.Context, defects []Defect) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range defects {
		if _, ok := r.defects[d.ID]; ok {
			continue
		}
		r.defects[d.ID] = d
	}
	return nil
}

func (r *MemoryRepo) GetAnalysis(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if err := ctx.Err(); err != nil {
		return Analysis{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	analysis, ok := r.analyses[analysisID]
	if !ok || analysis.UserID != userID {
		return Analysis{}, ErrNotFound
	}
	return analysis, nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Analysis, 0)
	for _, a := range r.analyses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return []Analysis{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) SetMessageRef(ctx context.Context, userID, analysisID, messageRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	analysis, ok := r.analyses[analysisID]
	if !ok || analysis.UserID != userID {
		return ErrNotFound
	}
	analysis.MessageRef = messageRef
	r.analyses[analysisID] = analysis
	return nil
}

func (r *MemoryRepo) ListDefects(ctx context.Context, analysisID string) ([]Defect, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Defect, 0)
	for _, d := range r.defects {
		if d.AnalysisID == analysisID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Idx < out[j].Idx })
	return out, nil
}

func (r *MemoryRepo) GetDefect(ctx context.Context, defectID string) (Defect, error) {
	if err := ctx.Err(); err != nil {
		return Defect{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	defect, ok := r.defects[defectID]
	if !ok {
		return Defect{}, ErrNotFound
	}
	return defect, nil
}

func (r *MemoryRepo) UpdateDefectStatus(ctx context.Context, defectID, from, to string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	defect, ok := r.defects[defectID]
	if !ok {
		return ErrNotFound
	}
	if defect.Status != from {
		return ErrInvalidTransition
	}
	defect.Status = to
	r.defects[defectID] = defect
	return nil
}

func (r *MemoryRepo) DeleteByUser(ctx context.Context, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, a := range r.analyses {
		if a.UserID == userID {
			delete(r.analyses, id)
		}
	}
	for id, d := range r.defects {
		if d.UserID == userID {
			delete(r.defects, id)
		}
	}
	return nil
}

var _ Repo = (*MemoryRepo)(nil)

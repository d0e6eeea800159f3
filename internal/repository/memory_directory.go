package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"whois/internal/domain"

	"github.com/google/uuid"
)

// MemoryDirectoryRepository 内存版目录存储（STORE_BACKEND=memory 及单元测试使用）
// 进程退出即丢失数据
type MemoryDirectoryRepository struct {
	mu sync.RWMutex

	accounts map[string]struct{}   // login_account
	bindings map[string][]string   // login -> user_id（按创建顺序）
	persons  map[string]*memPerson // user_id -> 人员

	positions *memReferences
	locations *memReferences
	phones    map[string]struct{}
	emails    map[string]struct{}

	newID func() string
}

type memPerson struct {
	surname    *string
	title      *string
	locationID int64 // 0 表示未设置
	forenames  []string
	positions  []int64
	phones     []string
	emails     []string
}

type memReferences struct {
	byName map[string]int64
	names  map[int64]string
	nextID int64
}

func newMemReferences() *memReferences {
	return &memReferences{byName: map[string]int64{}, names: map[int64]string{}}
}

func (r *memReferences) getOrCreate(name string) int64 {
	if id, ok := r.byName[name]; ok {
		return id
	}
	r.nextID++
	r.byName[name] = r.nextID
	r.names[r.nextID] = name
	return r.nextID
}

// NewMemoryDirectoryRepository 创建内存目录存储
func NewMemoryDirectoryRepository() *MemoryDirectoryRepository {
	return &MemoryDirectoryRepository{
		accounts:  map[string]struct{}{},
		bindings:  map[string][]string{},
		persons:   map[string]*memPerson{},
		positions: newMemReferences(),
		locations: newMemReferences(),
		phones:    map[string]struct{}{},
		emails:    map[string]struct{}{},
		newID:     uuid.NewString,
	}
}

// 确保实现了接口
var _ DirectoryRepository = (*MemoryDirectoryRepository)(nil)

func (r *MemoryDirectoryRepository) findLocked(login string) (string, *memPerson, error) {
	for _, id := range r.bindings[login] {
		if p, ok := r.persons[id]; ok {
			return id, p, nil
		}
	}
	return "", nil, ErrNotFound
}

func (r *MemoryDirectoryRepository) personLocked(personID string) (*memPerson, error) {
	p, ok := r.persons[personID]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", personID, ErrNotFound)
	}
	return p, nil
}

func (r *MemoryDirectoryRepository) FindPersonID(_ context.Context, login string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, _, err := r.findLocked(login)
	return id, err
}

func (r *MemoryDirectoryRepository) EnsurePerson(_ context.Context, login string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, _, err := r.findLocked(login); err == nil {
		return id, nil
	}

	r.accounts[login] = struct{}{}
	id := r.newID()
	r.persons[id] = &memPerson{}
	r.bindings[login] = append(r.bindings[login], id)
	return id, nil
}

func (r *MemoryDirectoryRepository) ReadScalar(_ context.Context, personID string, s domain.Scalar) (*string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return nil, err
	}
	switch s {
	case domain.ScalarSurname:
		return copyString(p.surname), nil
	case domain.ScalarTitle:
		return copyString(p.title), nil
	}
	return nil, fmt.Errorf("unsupported scalar %v", s)
}

func (r *MemoryDirectoryRepository) WriteScalar(_ context.Context, personID string, s domain.Scalar, value *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return err
	}
	switch s {
	case domain.ScalarSurname:
		p.surname = copyString(value)
	case domain.ScalarTitle:
		p.title = copyString(value)
	default:
		return fmt.Errorf("unsupported scalar %v", s)
	}
	return nil
}

func (r *MemoryDirectoryRepository) ReadForenames(_ context.Context, personID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), p.forenames...), nil
}

func (r *MemoryDirectoryRepository) ReplaceForenames(_ context.Context, personID string, names []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return err
	}
	p.forenames = append([]string(nil), names...)
	return nil
}

func (r *MemoryDirectoryRepository) ReadSet(_ context.Context, personID string, rel domain.Relation) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return nil, err
	}

	var out []string
	switch rel {
	case domain.RelationPosition:
		for _, id := range p.positions {
			out = append(out, r.positions.names[id])
		}
	case domain.RelationPhone:
		out = append(out, p.phones...)
	case domain.RelationEmail:
		out = append(out, p.emails...)
	default:
		return nil, fmt.Errorf("unsupported relation %v", rel)
	}
	sort.Strings(out)
	return out, nil
}

func (r *MemoryDirectoryRepository) ReplaceSet(_ context.Context, personID string, rel domain.Relation, values []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return err
	}

	var pool map[string]struct{}
	switch rel {
	case domain.RelationPhone:
		pool = r.phones
	case domain.RelationEmail:
		pool = r.emails
	default:
		return fmt.Errorf("relation %v is not a pooled set", rel)
	}

	linked := dedupe(values)
	for _, v := range linked {
		pool[v] = struct{}{}
	}
	if rel == domain.RelationPhone {
		p.phones = linked
	} else {
		p.emails = linked
	}
	return nil
}

func (r *MemoryDirectoryRepository) GetOrCreateReference(_ context.Context, kind domain.ReferenceKind, name string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch kind {
	case domain.ReferencePosition:
		return r.positions.getOrCreate(name), nil
	case domain.ReferenceLocation:
		return r.locations.getOrCreate(name), nil
	}
	return 0, fmt.Errorf("unsupported reference kind %v", kind)
}

func (r *MemoryDirectoryRepository) ReplacePositions(_ context.Context, personID string, positionIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return err
	}
	seen := map[int64]struct{}{}
	ids := make([]int64, 0, len(positionIDs))
	for _, id := range positionIDs {
		if _, ok := r.positions.names[id]; !ok {
			return fmt.Errorf("position %d: %w", id, ErrNotFound)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	p.positions = ids
	return nil
}

func (r *MemoryDirectoryRepository) ReadLocation(_ context.Context, personID string) (*string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return nil, err
	}
	if p.locationID == 0 {
		return nil, nil
	}
	name := r.locations.names[p.locationID]
	return &name, nil
}

func (r *MemoryDirectoryRepository) AssignLocation(_ context.Context, personID string, locationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, err := r.personLocked(personID)
	if err != nil {
		return err
	}
	if _, ok := r.locations.names[locationID]; !ok {
		return fmt.Errorf("location %d: %w", locationID, ErrNotFound)
	}
	p.locationID = locationID
	return nil
}

// DeleteLogin 在同一把锁内删除登记、人员与绑定
func (r *MemoryDirectoryRepository) DeleteLogin(_ context.Context, login string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.accounts, login)

	personID, _, err := r.findLocked(login)
	if err != nil {
		return false, nil
	}

	delete(r.persons, personID)
	for l, ids := range r.bindings {
		kept := ids[:0]
		for _, id := range ids {
			if id != personID {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(r.bindings, l)
		} else {
			r.bindings[l] = kept
		}
	}
	return true, nil
}

// RegisterAccount 只登记登录名，不创建人员
func (r *MemoryDirectoryRepository) RegisterAccount(login string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.accounts[login] = struct{}{}
}

// MemoryStats 内存存储的行数统计（测试与诊断用）
type MemoryStats struct {
	Accounts  int
	Bindings  int
	Persons   int
	Positions int
	Locations int
	Phones    int
	Emails    int
}

// Stats 返回当前各表行数
func (r *MemoryDirectoryRepository) Stats() MemoryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := MemoryStats{
		Accounts:  len(r.accounts),
		Persons:   len(r.persons),
		Positions: len(r.positions.names),
		Locations: len(r.locations.names),
		Phones:    len(r.phones),
		Emails:    len(r.emails),
	}
	for _, ids := range r.bindings {
		s.Bindings += len(ids)
	}
	return s
}

// HasAccount 登录名是否已登记
func (r *MemoryDirectoryRepository) HasAccount(login string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.accounts[login]
	return ok
}

// LocationIDOf 返回人员引用的地点 ID
func (r *MemoryDirectoryRepository) LocationIDOf(personID string) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.persons[personID]
	if !ok || p.locationID == 0 {
		return 0, false
	}
	return p.locationID, true
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

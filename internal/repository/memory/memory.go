// Package memory - хранилище в памяти с теми же гарантиями, что и Postgres.
// Используется в тестах и для локального запуска без базы.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/lesson_booking/internal/model"
	"github.com/Freeeeeet/lesson_booking/internal/repository"
)

type data struct {
	nextID   int64
	slots    map[int64]model.Slot
	lessons  map[int64]model.Lesson
	payments map[int64]model.PackagePayment
	changes  []model.LessonChange
	recon    map[int64]model.ReconciliationItem
	users    map[int64]model.User
	subjects map[int64]model.Subject
}

func newData() *data {
	return &data{
		slots:    make(map[int64]model.Slot),
		lessons:  make(map[int64]model.Lesson),
		payments: make(map[int64]model.PackagePayment),
		recon:    make(map[int64]model.ReconciliationItem),
		users:    make(map[int64]model.User),
		subjects: make(map[int64]model.Subject),
	}
}

func (d *data) clone() *data {
	c := &data{
		nextID:   d.nextID,
		slots:    make(map[int64]model.Slot, len(d.slots)),
		lessons:  make(map[int64]model.Lesson, len(d.lessons)),
		payments: make(map[int64]model.PackagePayment, len(d.payments)),
		changes:  append([]model.LessonChange(nil), d.changes...),
		recon:    make(map[int64]model.ReconciliationItem, len(d.recon)),
		users:    make(map[int64]model.User, len(d.users)),
		subjects: make(map[int64]model.Subject, len(d.subjects)),
	}
	for k, v := range d.slots {
		c.slots[k] = v
	}
	for k, v := range d.lessons {
		c.lessons[k] = v
	}
	for k, v := range d.payments {
		v.SelectedSlots = append([]int64(nil), v.SelectedSlots...)
		c.payments[k] = v
	}
	for k, v := range d.recon {
		c.recon[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.subjects {
		c.subjects[k] = v
	}
	return c
}

func (d *data) id() int64 {
	d.nextID++
	return d.nextID
}

type state struct {
	mu sync.Mutex
	d  *data
}

// Store реализует repository.Store. Транзакции сериализуются одной блокировкой,
// откат восстанавливает снимок данных.
type Store struct {
	st   *state
	inTx bool
}

// New создаёт пустое хранилище
func New() *Store {
	return &Store{st: &state{d: newData()}}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.st.mu.Lock()
	return s.st.mu.Unlock
}

func (s *Store) Slots() repository.SlotStore                    { return slotStore{s} }
func (s *Store) Lessons() repository.LessonStore                { return lessonStore{s} }
func (s *Store) Payments() repository.PackagePaymentStore       { return paymentStore{s} }
func (s *Store) Changes() repository.LessonChangeStore          { return changeStore{s} }
func (s *Store) Reconciliation() repository.ReconciliationStore { return reconStore{s} }
func (s *Store) Users() repository.UserStore                    { return userStore{s} }
func (s *Store) Subjects() repository.SubjectStore              { return subjectStore{s} }

// WithinTx выполняет fn под блокировкой хранилища; при ошибке данные откатываются
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	unlock := s.lock()
	defer unlock()

	snapshot := s.st.d.clone()
	if err := fn(&Store{st: s.st, inTx: true}); err != nil {
		s.st.d = snapshot
		return err
	}
	return nil
}

// AddUser добавляет пользователя (для тестов и локального запуска)
func (s *Store) AddUser(u model.User) *model.User {
	defer s.lock()()
	if u.ID == 0 {
		u.ID = s.st.d.id()
	}
	s.st.d.users[u.ID] = u
	return &u
}

// AddSubject добавляет предмет (для тестов и локального запуска)
func (s *Store) AddSubject(subj model.Subject) *model.Subject {
	defer s.lock()()
	if subj.ID == 0 {
		subj.ID = s.st.d.id()
	}
	s.st.d.subjects[subj.ID] = subj
	return &subj
}

// LessonCount возвращает общее число уроков
func (s *Store) LessonCount() int {
	defer s.lock()()
	return len(s.st.d.lessons)
}

// ============ Slots ============

type slotStore struct{ s *Store }

func (r slotStore) Create(_ context.Context, slot *model.Slot) error {
	defer r.s.lock()()
	d := r.s.st.d
	slot.ID = d.id()
	slot.CreatedAt = time.Now()
	d.slots[slot.ID] = *slot
	return nil
}

func (r slotStore) GetByID(_ context.Context, id int64) (*model.Slot, error) {
	defer r.s.lock()()
	slot, ok := r.s.st.d.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (r slotStore) ListFree(_ context.Context, teacherID int64, from time.Time) ([]*model.Slot, error) {
	defer r.s.lock()()
	slots := []*model.Slot{}
	for _, slot := range r.s.st.d.slots {
		if slot.TeacherID != teacherID || slot.IsBooked || !slot.IsActive || slot.StartTime.Before(from) {
			continue
		}
		slot := slot
		slots = append(slots, &slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartTime.Equal(slots[j].StartTime) {
			return slots[i].ID < slots[j].ID
		}
		return slots[i].StartTime.Before(slots[j].StartTime)
	})
	return slots, nil
}

func (r slotStore) TryReserve(_ context.Context, id int64) (*model.Slot, error) {
	defer r.s.lock()()
	d := r.s.st.d
	slot, ok := d.slots[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	if slot.IsBooked || !slot.IsActive {
		return nil, model.ErrSlotUnavailable
	}
	slot.IsBooked = true
	d.slots[id] = slot
	return &slot, nil
}

func (r slotStore) Release(_ context.Context, id int64) error {
	defer r.s.lock()()
	d := r.s.st.d
	slot, ok := d.slots[id]
	if !ok {
		return model.ErrNotFound
	}
	slot.IsBooked = false
	d.slots[id] = slot
	return nil
}

func (r slotStore) Deactivate(_ context.Context, teacherID, id int64) error {
	defer r.s.lock()()
	d := r.s.st.d
	slot, ok := d.slots[id]
	if !ok || slot.TeacherID != teacherID {
		return model.ErrNotFound
	}
	if slot.IsBooked {
		return model.ErrSlotUnavailable
	}
	slot.IsActive = false
	d.slots[id] = slot
	return nil
}

// ============ Lessons ============

type lessonStore struct{ s *Store }

func (r lessonStore) Create(_ context.Context, lesson *model.Lesson) error {
	defer r.s.lock()()
	d := r.s.st.d
	if lesson.PackagePaymentID != nil {
		for _, existing := range d.lessons {
			if existing.PackagePaymentID != nil && *existing.PackagePaymentID == *lesson.PackagePaymentID &&
				existing.SlotID == lesson.SlotID {
				return model.ErrSlotUnavailable
			}
		}
	}
	now := time.Now()
	lesson.ID = d.id()
	lesson.CreatedAt = now
	lesson.UpdatedAt = now
	d.lessons[lesson.ID] = *lesson
	return nil
}

func (r lessonStore) GetByID(_ context.Context, id int64) (*model.Lesson, error) {
	defer r.s.lock()()
	lesson, ok := r.s.st.d.lessons[id]
	if !ok {
		return nil, nil
	}
	return &lesson, nil
}

func (r lessonStore) GetForUpdate(ctx context.Context, id int64) (*model.Lesson, error) {
	return r.GetByID(ctx, id)
}

func (r lessonStore) UpdateStatus(_ context.Context, id int64, status model.LessonStatus) error {
	defer r.s.lock()()
	d := r.s.st.d
	lesson, ok := d.lessons[id]
	if !ok {
		return model.ErrNotFound
	}
	lesson.Status = status
	lesson.UpdatedAt = time.Now()
	d.lessons[id] = lesson
	return nil
}

func (r lessonStore) MoveToSlot(_ context.Context, id, slotID int64, scheduledAt time.Time, countChange bool) error {
	defer r.s.lock()()
	d := r.s.st.d
	lesson, ok := d.lessons[id]
	if !ok {
		return model.ErrNotFound
	}
	lesson.SlotID = slotID
	lesson.ScheduledAt = scheduledAt
	if countChange {
		lesson.RescheduleCount++
	}
	lesson.UpdatedAt = time.Now()
	d.lessons[id] = lesson
	return nil
}

func (r lessonStore) filter(keep func(model.Lesson) bool) []*model.Lesson {
	lessons := []*model.Lesson{}
	for _, lesson := range r.s.st.d.lessons {
		if keep(lesson) {
			lesson := lesson
			lessons = append(lessons, &lesson)
		}
	}
	sort.Slice(lessons, func(i, j int) bool {
		if lessons[i].ScheduledAt.Equal(lessons[j].ScheduledAt) {
			return lessons[i].ID < lessons[j].ID
		}
		return lessons[i].ScheduledAt.Before(lessons[j].ScheduledAt)
	})
	return lessons
}

func (r lessonStore) ListByPackagePayment(_ context.Context, packagePaymentID int64) ([]*model.Lesson, error) {
	defer r.s.lock()()
	return r.filter(func(l model.Lesson) bool {
		return l.PackagePaymentID != nil && *l.PackagePaymentID == packagePaymentID
	}), nil
}

func (r lessonStore) ListCompletedByTeacher(_ context.Context, teacherID int64) ([]*model.Lesson, error) {
	defer r.s.lock()()
	return r.filter(func(l model.Lesson) bool {
		return l.TeacherID == teacherID && l.Status == model.LessonStatusCompleted
	}), nil
}

func (r lessonStore) CountCompletedByTeacher(ctx context.Context, teacherID int64) (int, error) {
	lessons, err := r.ListCompletedByTeacher(ctx, teacherID)
	return len(lessons), err
}

// ============ Package payments ============

type paymentStore struct{ s *Store }

func (r paymentStore) Create(_ context.Context, payment *model.PackagePayment) error {
	defer r.s.lock()()
	d := r.s.st.d
	payment.ID = d.id()
	payment.CreatedAt = time.Now()
	stored := *payment
	stored.SelectedSlots = append([]int64(nil), payment.SelectedSlots...)
	d.payments[payment.ID] = stored
	return nil
}

func (r paymentStore) GetByOrderID(_ context.Context, orderID string) (*model.PackagePayment, error) {
	defer r.s.lock()()
	for _, p := range r.s.st.d.payments {
		if p.OrderID == orderID {
			p.SelectedSlots = append([]int64(nil), p.SelectedSlots...)
			return &p, nil
		}
	}
	return nil, nil
}

// LockByOrderID внутри WithinTx уже защищён блокировкой хранилища
func (r paymentStore) LockByOrderID(ctx context.Context, orderID string) (*model.PackagePayment, error) {
	return r.GetByOrderID(ctx, orderID)
}

func (r paymentStore) MarkCompleted(_ context.Context, id int64, completedAt time.Time, expiresAt *time.Time) error {
	defer r.s.lock()()
	d := r.s.st.d
	p, ok := d.payments[id]
	if !ok {
		return model.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return model.ErrOrderClosed
	}
	p.Status = model.PaymentStatusCompleted
	p.CompletedAt = &completedAt
	p.ExpiresAt = expiresAt
	d.payments[id] = p
	return nil
}

func (r paymentStore) MarkFailed(_ context.Context, id int64) error {
	defer r.s.lock()()
	d := r.s.st.d
	p, ok := d.payments[id]
	if !ok {
		return model.ErrNotFound
	}
	if p.Status != model.PaymentStatusPending {
		return model.ErrOrderClosed
	}
	p.Status = model.PaymentStatusFailed
	d.payments[id] = p
	return nil
}

// ============ Lesson changes ============

type changeStore struct{ s *Store }

func (r changeStore) Append(_ context.Context, change *model.LessonChange) error {
	defer r.s.lock()()
	d := r.s.st.d
	change.ID = d.id()
	change.CreatedAt = time.Now()
	d.changes = append(d.changes, *change)
	return nil
}

func (r changeStore) ListByLesson(_ context.Context, lessonID int64) ([]*model.LessonChange, error) {
	defer r.s.lock()()
	changes := []*model.LessonChange{}
	for _, c := range r.s.st.d.changes {
		if c.LessonID == lessonID {
			c := c
			changes = append(changes, &c)
		}
	}
	return changes, nil
}

// ============ Reconciliation ============

type reconStore struct{ s *Store }

func (r reconStore) Flag(_ context.Context, item *model.ReconciliationItem) error {
	defer r.s.lock()()
	d := r.s.st.d
	item.ID = d.id()
	item.CreatedAt = time.Now()
	d.recon[item.ID] = *item
	return nil
}

func (r reconStore) HasOpen(_ context.Context, packagePaymentID int64, reason model.ReconciliationReason) (bool, error) {
	defer r.s.lock()()
	for _, item := range r.s.st.d.recon {
		if item.PackagePaymentID == packagePaymentID && item.Reason == reason && item.ResolvedAt == nil {
			return true, nil
		}
	}
	return false, nil
}

func (r reconStore) ListOpen(_ context.Context) ([]*model.ReconciliationItem, error) {
	defer r.s.lock()()
	items := []*model.ReconciliationItem{}
	for _, item := range r.s.st.d.recon {
		if item.ResolvedAt == nil {
			item := item
			items = append(items, &item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (r reconStore) CountOpen(ctx context.Context) (int, error) {
	items, err := r.ListOpen(ctx)
	return len(items), err
}

func (r reconStore) Resolve(_ context.Context, id int64, resolvedAt time.Time) error {
	defer r.s.lock()()
	d := r.s.st.d
	item, ok := d.recon[id]
	if !ok || item.ResolvedAt != nil {
		return model.ErrNotFound
	}
	item.ResolvedAt = &resolvedAt
	d.recon[id] = item
	return nil
}

// ============ Users & subjects ============

type userStore struct{ s *Store }

func (r userStore) GetByID(_ context.Context, id int64) (*model.User, error) {
	defer r.s.lock()()
	u, ok := r.s.st.d.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r userStore) GetByIDs(_ context.Context, ids []int64) ([]*model.User, error) {
	defer r.s.lock()()
	users := []*model.User{}
	for _, id := range ids {
		if u, ok := r.s.st.d.users[id]; ok {
			u := u
			users = append(users, &u)
		}
	}
	return users, nil
}

type subjectStore struct{ s *Store }

func (r subjectStore) GetByID(_ context.Context, id int64) (*model.Subject, error) {
	defer r.s.lock()()
	subj, ok := r.s.st.d.subjects[id]
	if !ok {
		return nil, nil
	}
	return &subj, nil
}

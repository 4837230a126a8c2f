package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mmeshcher/coursemart/internal/gateway"
	"github.com/mmeshcher/coursemart/internal/model"
	"github.com/mmeshcher/coursemart/internal/repository"
)

type pair struct {
	userID   int64
	courseID int64
}

// fakeRepo хранит состояние в памяти. Транзакции выполняются под общим мьютексом
// и откатываются при ошибке.
type fakeRepo struct {
	mu sync.Mutex

	nextID      int64
	users       map[int64]model.User
	courses     map[int64]model.Course
	enrollments map[pair]bool
	ratings     map[int64]map[int64]int
	purchases   map[uuid.UUID]model.Purchase
	progress    map[pair][]string

	// enrollCalls считает реально добавленные записи на курс.
	enrollCalls int
	storeErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID:      100,
		users:       make(map[int64]model.User),
		courses:     make(map[int64]model.Course),
		enrollments: make(map[pair]bool),
		ratings:     make(map[int64]map[int64]int),
		purchases:   make(map[uuid.UUID]model.Purchase),
		progress:    make(map[pair][]string),
	}
}

func (f *fakeRepo) addUser(u model.User) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == 0 {
		f.nextID++
		u.ID = f.nextID
	}
	if u.Role == "" {
		u.Role = model.RoleStudent
	}
	f.users[u.ID] = u
	return u.ID
}

func (f *fakeRepo) addCourse(c model.Course) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.ID == 0 {
		f.nextID++
		c.ID = f.nextID
	}
	f.courses[c.ID] = c
	return c.ID
}

func (f *fakeRepo) enroll(userID, courseID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enrollments[pair{userID, courseID}] = true
}

func (f *fakeRepo) purchase(id uuid.UUID) model.Purchase {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.purchases[id]
}

func (f *fakeRepo) purchaseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.purchases)
}

func (f *fakeRepo) isEnrolled(userID, courseID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enrollments[pair{userID, courseID}]
}

func (f *fakeRepo) ratingsOf(courseID int64) map[int64]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return maps.Clone(f.ratings[courseID])
}

func (f *fakeRepo) Close() error { return nil }

func (f *fakeRepo) CreateUser(ctx context.Context, u *model.User) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return 0, fmt.Errorf("%w: %s", repository.ErrEmailTaken, u.Email)
		}
	}
	f.nextID++
	stored := *u
	stored.ID = f.nextID
	f.users[stored.ID] = stored
	return stored.ID, nil
}

func (f *fakeRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (f *fakeRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.EnrolledCourses = nil
	for p := range f.enrollments {
		if p.userID == id {
			u.EnrolledCourses = append(u.EnrolledCourses, p.courseID)
		}
	}
	slices.Sort(u.EnrolledCourses)
	return &u, nil
}

func (f *fakeRepo) UpdateUserProfile(ctx context.Context, id int64, name, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	if name != "" {
		u.Name = name
	}
	if imageURL != "" {
		u.ImageURL = imageURL
	}
	f.users[id] = u
	return nil
}

func (f *fakeRepo) UpdateUserPassword(ctx context.Context, id int64, passwordHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	f.users[id] = u
	return nil
}

func (f *fakeRepo) UpdateUserRole(ctx context.Context, id int64, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Role = role
	f.users[id] = u
	return nil
}

func (f *fakeRepo) IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error) {
	return f.isEnrolled(userID, courseID), nil
}

func (f *fakeRepo) CreateCourse(ctx context.Context, c *model.Course) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	stored := *c
	stored.ID = f.nextID
	f.courses[stored.ID] = stored
	return stored.ID, nil
}

func (f *fakeRepo) GetCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.courses[id]
	if !ok {
		return nil, repository.ErrCourseNotFound
	}
	c.Content = cloneContent(c.Content)
	c.EnrolledStudents = nil
	for p := range f.enrollments {
		if p.courseID == id {
			c.EnrolledStudents = append(c.EnrolledStudents, p.userID)
		}
	}
	slices.Sort(c.EnrolledStudents)
	c.Ratings = nil
	for userID, rating := range f.ratings[id] {
		c.Ratings = append(c.Ratings, model.Rating{UserID: userID, Rating: rating})
	}
	slices.SortFunc(c.Ratings, func(a, b model.Rating) int { return int(a.UserID - b.UserID) })
	return &c, nil
}

func cloneContent(content []model.Chapter) []model.Chapter {
	out := slices.Clone(content)
	for i := range out {
		out[i].Lectures = slices.Clone(out[i].Lectures)
	}
	return out
}

func (f *fakeRepo) ListPublishedCourses(ctx context.Context) ([]model.CourseSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []model.CourseSummary
	for _, c := range f.courses {
		if c.IsPublished {
			res = append(res, model.CourseSummary{ID: c.ID, Title: c.Title, PriceCents: c.PriceCents, Discount: c.Discount})
		}
	}
	return res, nil
}

func (f *fakeRepo) UpdateCourse(ctx context.Context, c *model.Course) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[c.ID]; !ok {
		return repository.ErrCourseNotFound
	}
	f.courses[c.ID] = *c
	return nil
}

func (f *fakeRepo) DeleteCourse(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[id]; !ok {
		return repository.ErrCourseNotFound
	}
	delete(f.courses, id)
	for p := range f.enrollments {
		if p.courseID == id {
			delete(f.enrollments, p)
		}
	}
	return nil
}

func (f *fakeRepo) GetCoursesByEducator(ctx context.Context, educatorID int64) ([]model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []model.Course
	for _, c := range f.courses {
		if c.EducatorID == educatorID {
			res = append(res, c)
		}
	}
	return res, nil
}

func (f *fakeRepo) GetEnrolledCourses(ctx context.Context, userID int64) ([]model.Course, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []model.Course
	for p := range f.enrollments {
		if p.userID == userID {
			res = append(res, f.courses[p.courseID])
		}
	}
	return res, nil
}

func (f *fakeRepo) GetEducatorEarnings(ctx context.Context, educatorID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total int64
	for _, p := range f.purchases {
		if c, ok := f.courses[p.CourseID]; ok && c.EducatorID == educatorID && p.Status == model.PaymentStatusCompleted {
			total += p.AmountCents
		}
	}
	return total, nil
}

func (f *fakeRepo) GetEnrolledStudents(ctx context.Context, educatorID int64) ([]model.EnrolledStudent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []model.EnrolledStudent
	for p := range f.enrollments {
		c := f.courses[p.courseID]
		if c.EducatorID != educatorID {
			continue
		}
		res = append(res, model.EnrolledStudent{
			StudentID:   p.userID,
			StudentName: f.users[p.userID].Name,
			CourseID:    c.ID,
			CourseTitle: c.Title,
		})
	}
	return res, nil
}

func (f *fakeRepo) UpsertRating(ctx context.Context, courseID, userID int64, rating int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ratings[courseID] == nil {
		f.ratings[courseID] = make(map[int64]int)
	}
	f.ratings[courseID][userID] = rating
	return nil
}

func (f *fakeRepo) AddCompletedLecture(ctx context.Context, userID, courseID int64, lectureID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := pair{userID, courseID}
	if slices.Contains(f.progress[key], lectureID) {
		return false, nil
	}
	f.progress[key] = append(f.progress[key], lectureID)
	return true, nil
}

func (f *fakeRepo) GetCompletedLectures(ctx context.Context, userID, courseID int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.progress[pair{userID, courseID}]), nil
}

func (f *fakeRepo) CreatePendingPurchase(ctx context.Context, p *model.Purchase) (*model.Purchase, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.purchases {
		if existing.UserID == p.UserID && existing.CourseID == p.CourseID && existing.Status == model.PaymentStatusPending {
			return &existing, false, nil
		}
	}
	stored := *p
	stored.Status = model.PaymentStatusPending
	f.purchases[stored.ID] = stored
	return &stored, true, nil
}

func (f *fakeRepo) AttachGatewayOrder(ctx context.Context, purchaseID uuid.UUID, orderID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[purchaseID]
	if !ok {
		return "", repository.ErrPurchaseNotFound
	}
	if p.GatewayOrderID == "" {
		p.GatewayOrderID = orderID
		f.purchases[purchaseID] = p
	}
	return p.GatewayOrderID, nil
}

func (f *fakeRepo) ReconcileEnrollments(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var added int64
	for _, p := range f.purchases {
		if p.Status != model.PaymentStatusCompleted {
			continue
		}
		_, userOK := f.users[p.UserID]
		_, courseOK := f.courses[p.CourseID]
		key := pair{p.UserID, p.CourseID}
		if userOK && courseOK && !f.enrollments[key] {
			f.enrollments[key] = true
			added++
		}
	}
	return added, nil
}

func (f *fakeRepo) InTx(ctx context.Context, fn func(repository.LedgerTx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	purchases := maps.Clone(f.purchases)
	enrollments := maps.Clone(f.enrollments)
	enrollCalls := f.enrollCalls

	if err := fn(&fakeLedger{f: f}); err != nil {
		f.purchases = purchases
		f.enrollments = enrollments
		f.enrollCalls = enrollCalls
		return err
	}
	return nil
}

// fakeLedger работает с состоянием fakeRepo, мьютекс уже захвачен InTx.
type fakeLedger struct {
	f *fakeRepo
}

func (l *fakeLedger) GetPurchaseForUpdate(ctx context.Context, id uuid.UUID) (*model.Purchase, error) {
	p, ok := l.f.purchases[id]
	if !ok {
		return nil, repository.ErrPurchaseNotFound
	}
	return &p, nil
}

func (l *fakeLedger) GetPurchaseByOrderForUpdate(ctx context.Context, orderID string) (*model.Purchase, error) {
	for _, p := range l.f.purchases {
		if p.GatewayOrderID == orderID {
			return &p, nil
		}
	}
	return nil, repository.ErrPurchaseNotFound
}

func (l *fakeLedger) InsertPurchase(ctx context.Context, p *model.Purchase) error {
	if _, ok := l.f.purchases[p.ID]; ok {
		return errors.New("duplicate purchase id")
	}
	l.f.purchases[p.ID] = *p
	return nil
}

func (l *fakeLedger) CompletePurchase(ctx context.Context, id uuid.UUID, paymentID, signature string) (bool, error) {
	p, ok := l.f.purchases[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusCompleted
	p.GatewayPaymentID = paymentID
	if signature != "" {
		p.GatewaySignature = signature
	}
	l.f.purchases[id] = p
	return true, nil
}

func (l *fakeLedger) FailPurchase(ctx context.Context, id uuid.UUID) (bool, error) {
	p, ok := l.f.purchases[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	p.Status = model.PaymentStatusFailed
	l.f.purchases[id] = p
	return true, nil
}

func (l *fakeLedger) UserExists(ctx context.Context, id int64) (bool, error) {
	_, ok := l.f.users[id]
	return ok, nil
}

func (l *fakeLedger) CourseExists(ctx context.Context, id int64) (bool, error) {
	_, ok := l.f.courses[id]
	return ok, nil
}

func (l *fakeLedger) Enroll(ctx context.Context, userID, courseID int64) (bool, error) {
	key := pair{userID, courseID}
	if l.f.enrollments[key] {
		return false, nil
	}
	l.f.enrollments[key] = true
	l.f.enrollCalls++
	return true, nil
}

// stubGateway выдаёт заказы с последовательными идентификаторами.
type stubGateway struct {
	mu       sync.Mutex
	err      error
	requests []gateway.OrderRequest
}

func (g *stubGateway) CreateOrder(ctx context.Context, req gateway.OrderRequest) (*gateway.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &gateway.Order{
		ID:       fmt.Sprintf("order_%d", len(g.requests)),
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.requests)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Enrollment
	err    error
}

func (p *recordingPublisher) PublishEnrollment(ctx context.Context, e model.Enrollment) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

type memoryDeduper struct {
	mu       sync.Mutex
	seen     map[string]bool
	released []string
}

func (d *memoryDeduper) Claim(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memoryDeduper) Release(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, id)
	d.released = append(d.released, id)
	return nil
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/dmitrijs2005/taskio/internal/common"
	"github.com/dmitrijs2005/taskio/internal/dbx"
	"github.com/dmitrijs2005/taskio/internal/server/access"
	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/assignments"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/categories"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/memberships"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/projects"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/tasks"
	"github.com/dmitrijs2005/taskio/internal/server/repositories/users"
)

// --- in-memory store ---

type pair struct{ a, b string }

// memDB is a tiny relational store with the same cascade rules as the schema.
type memDB struct {
	users      map[string]models.User
	projects   map[string]models.Project
	members    map[pair]models.Membership // (project, user)
	categories map[string]models.Category
	tasks      map[string]models.Task
	assignees  map[pair]bool // (task, user)
	tokens     map[string]models.RefreshToken

	seq    int
	writes int
	failOn string
	// onLock runs once, on the next category lock, standing in for a
	// writer that commits just before the lock is granted.
	onLock func(categoryID string)
}

func newMemDB() *memDB {
	return &memDB{
		users:      map[string]models.User{},
		projects:   map[string]models.Project{},
		members:    map[pair]models.Membership{},
		categories: map[string]models.Category{},
		tasks:      map[string]models.Task{},
		assignees:  map[pair]bool{},
		tokens:     map[string]models.RefreshToken{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *memDB) clone() *memDB {
	return &memDB{
		users:      cloneMap(m.users),
		projects:   cloneMap(m.projects),
		members:    cloneMap(m.members),
		categories: cloneMap(m.categories),
		tasks:      cloneMap(m.tasks),
		assignees:  cloneMap(m.assignees),
		tokens:     cloneMap(m.tokens),
		seq:        m.seq,
		writes:     m.writes,
		failOn:     m.failOn,
		onLock:     m.onLock,
	}
}

var errInjected = errors.New("injected failure")

func (m *memDB) check(op string) error {
	if m.failOn == op {
		return fmt.Errorf("%s: %w", op, errInjected)
	}
	return nil
}

func (m *memDB) nextID(prefix string) (string, time.Time) {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq), time.Date(2024, 1, 1, 0, 0, m.seq, 0, time.UTC)
}

func (m *memDB) write() { m.writes++ }

func (m *memDB) deleteTask(id string) {
	delete(m.tasks, id)
	for k := range m.assignees {
		if k.a == id {
			delete(m.assignees, k)
		}
	}
}

func (m *memDB) deleteCategory(id string) {
	delete(m.categories, id)
	for tid, t := range m.tasks {
		if t.CategoryID == id {
			m.deleteTask(tid)
		}
	}
}

func (m *memDB) assigneesOf(taskID string) []string {
	var out []string
	for k := range m.assignees {
		if k.a == taskID {
			out = append(out, k.b)
		}
	}
	sort.Strings(out)
	return out
}

func sortByOrder[T any](xs []*T, order func(*T) int, id func(*T) string) {
	sort.Slice(xs, func(i, j int) bool {
		if order(xs[i]) != order(xs[j]) {
			return order(xs[i]) < order(xs[j])
		}
		return id(xs[i]) < id(xs[j])
	})
}

// --- transactor ---

// fakeTx snapshots the store before each unit of work and restores it when
// the unit of work fails.
type fakeTx struct {
	db        *memDB
	commits   int
	rollbacks int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn dbx.TxFunc) error {
	snap := f.db.clone()
	if err := fn(ctx, nil); err != nil {
		*f.db = *snap
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

// --- repositories ---

type fakeUsers struct{ m *memDB }

func (r fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	if err := r.m.check("users.Create"); err != nil {
		return nil, err
	}
	for _, x := range r.m.users {
		if x.Email == u.Email {
			return nil, common.ErrorAlreadyExists
		}
	}
	c := *u
	c.ID, c.CreatedAt = r.m.nextID("u")
	c.UpdatedAt = c.CreatedAt
	r.m.users[c.ID] = c
	r.m.write()
	return &c, nil
}

func (r fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	if err := r.m.check("users.GetByID"); err != nil {
		return nil, err
	}
	u, ok := r.m.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &u, nil
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r fakeUsers) Update(_ context.Context, u *models.User) error {
	if _, ok := r.m.users[u.ID]; !ok {
		return common.ErrorNotFound
	}
	for _, x := range r.m.users {
		if x.ID != u.ID && x.Email == u.Email {
			return common.ErrorAlreadyExists
		}
	}
	r.m.users[u.ID] = *u
	r.m.write()
	return nil
}

func (r fakeUsers) Delete(_ context.Context, id string) error {
	if _, ok := r.m.users[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.users, id)
	r.m.write()
	return nil
}

func (r fakeUsers) List(context.Context) ([]*models.User, error) {
	var out []*models.User
	for _, u := range r.m.users {
		u := u // per-iteration copy; go.mod predates Go 1.22 loop semantics
		out = append(out, &u)
	}
	sortByOrder(out, func(u *models.User) int { return u.CreatedAt.Second() }, func(u *models.User) string { return u.ID })
	return out, nil
}

type fakeProjects struct{ m *memDB }

func (r fakeProjects) Create(_ context.Context, p *models.Project) (*models.Project, error) {
	c := *p
	c.ID, c.CreatedAt = r.m.nextID("p")
	c.UpdatedAt = c.CreatedAt
	r.m.projects[c.ID] = c
	r.m.write()
	return &c, nil
}

func (r fakeProjects) GetByID(_ context.Context, id string) (*models.Project, error) {
	p, ok := r.m.projects[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &p, nil
}

func (r fakeProjects) Update(_ context.Context, p *models.Project) error {
	if _, ok := r.m.projects[p.ID]; !ok {
		return common.ErrorNotFound
	}
	r.m.projects[p.ID] = *p
	r.m.write()
	return nil
}

func (r fakeProjects) Delete(_ context.Context, id string) error {
	if _, ok := r.m.projects[id]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.projects, id)
	for k := range r.m.members {
		if k.a == id {
			delete(r.m.members, k)
		}
	}
	for cid, c := range r.m.categories {
		if c.ProjectID == id {
			r.m.deleteCategory(cid)
		}
	}
	r.m.write()
	return nil
}

func (r fakeProjects) List(context.Context) ([]*models.Project, error) {
	var out []*models.Project
	for _, p := range r.m.projects {
		p := p
		out = append(out, &p)
	}
	sortByOrder(out, func(p *models.Project) int { return p.CreatedAt.Second() }, func(p *models.Project) string { return p.ID })
	return out, nil
}

func (r fakeProjects) ListForUser(ctx context.Context, userID string) ([]*models.Project, error) {
	all, _ := r.List(ctx)
	var out []*models.Project
	for _, p := range all {
		if _, ok := r.m.members[pair{p.ID, userID}]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r fakeProjects) LockForUpdate(_ context.Context, id string) error {
	if _, ok := r.m.projects[id]; !ok {
		return common.ErrorNotFound
	}
	return nil
}

type fakeMemberships struct{ m *memDB }

var _ access.FactsLoader = fakeMemberships{}

func (r fakeMemberships) LoadFacts(_ context.Context, projectID, userID string) (access.Facts, error) {
	if err := r.m.check("memberships.LoadFacts"); err != nil {
		return access.Facts{}, err
	}
	if _, ok := r.m.projects[projectID]; !ok {
		return access.Facts{}, nil
	}
	f := access.Facts{ProjectExists: true}
	if ms, ok := r.m.members[pair{projectID, userID}]; ok {
		f.Membership = &ms
	}
	return f, nil
}

func (r fakeMemberships) Add(_ context.Context, ms *models.Membership) error {
	k := pair{ms.ProjectID, ms.UserID}
	if _, ok := r.m.members[k]; ok {
		return common.ErrorAlreadyExists
	}
	r.m.members[k] = *ms
	r.m.write()
	return nil
}

func (r fakeMemberships) Get(_ context.Context, projectID, userID string) (*models.Membership, error) {
	ms, ok := r.m.members[pair{projectID, userID}]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &ms, nil
}

func (r fakeMemberships) Remove(_ context.Context, projectID, userID string) error {
	k := pair{projectID, userID}
	if _, ok := r.m.members[k]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.members, k)
	r.m.write()
	return nil
}

func (r fakeMemberships) SetAdmin(_ context.Context, projectID, userID string, isAdmin bool) error {
	k := pair{projectID, userID}
	ms, ok := r.m.members[k]
	if !ok {
		return common.ErrorNotFound
	}
	ms.IsAdmin = isAdmin
	r.m.members[k] = ms
	r.m.write()
	return nil
}

func (r fakeMemberships) ListByProject(_ context.Context, projectID string) ([]*models.Membership, error) {
	var out []*models.Membership
	for k, ms := range r.m.members {
		ms := ms
		if k.a == projectID {
			out = append(out, &ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (r fakeMemberships) ListMembers(ctx context.Context, projectID string) ([]*models.Member, error) {
	ms, _ := r.ListByProject(ctx, projectID)
	out := make([]*models.Member, 0, len(ms))
	for _, x := range ms {
		u := r.m.users[x.UserID]
		out = append(out, &models.Member{UserID: x.UserID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, IsAdmin: x.IsAdmin})
	}
	return out, nil
}

func (r fakeMemberships) CountAdmins(_ context.Context, projectID string) (int, error) {
	n := 0
	for k, ms := range r.m.members {
		if k.a == projectID && ms.IsAdmin {
			n++
		}
	}
	return n, nil
}

type fakeCategories struct{ m *memDB }

func (r fakeCategories) Create(_ context.Context, c *models.Category) (*models.Category, error) {
	if err := r.m.check("categories.Create"); err != nil {
		return nil, err
	}
	x := *c
	x.ID, x.CreatedAt = r.m.nextID("c")
	x.UpdatedAt = x.CreatedAt
	r.m.categories[x.ID] = x
	r.m.write()
	return &x, nil
}

func (r fakeCategories) GetByID(_ context.Context, id string) (*models.Category, error) {
	c, ok := r.m.categories[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &c, nil
}

func (r fakeCategories) Update(_ context.Context, c *models.Category) error {
	if _, ok := r.m.categories[c.ID]; !ok {
		return common.ErrorNotFound
	}
	r.m.categories[c.ID] = *c
	r.m.write()
	return nil
}

func (r fakeCategories) Delete(_ context.Context, id string) error {
	if _, ok := r.m.categories[id]; !ok {
		return common.ErrorNotFound
	}
	r.m.deleteCategory(id)
	r.m.write()
	return nil
}

func (r fakeCategories) List(context.Context) ([]*models.Category, error) {
	var out []*models.Category
	for _, c := range r.m.categories {
		c := c
		out = append(out, &c)
	}
	sortByOrder(out, func(c *models.Category) int { return c.SortOrder }, func(c *models.Category) string { return c.ID })
	return out, nil
}

func (r fakeCategories) ListByProject(ctx context.Context, projectID string) ([]*models.Category, error) {
	all, _ := r.List(ctx)
	var out []*models.Category
	for _, c := range all {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r fakeCategories) CountByProject(ctx context.Context, projectID string) (int, error) {
	cs, _ := r.ListByProject(ctx, projectID)
	return len(cs), nil
}

func (r fakeCategories) SetSortOrder(_ context.Context, id string, sortOrder int) error {
	c, ok := r.m.categories[id]
	if !ok {
		return common.ErrorNotFound
	}
	c.SortOrder = sortOrder
	r.m.categories[id] = c
	r.m.write()
	return nil
}

func (r fakeCategories) LockForUpdate(_ context.Context, id string) error {
	if _, ok := r.m.categories[id]; !ok {
		return common.ErrorNotFound
	}
	if hook := r.m.onLock; hook != nil {
		r.m.onLock = nil
		hook(id)
	}
	return nil
}

type fakeTasks struct{ m *memDB }

func (r fakeTasks) Create(_ context.Context, t *models.Task) (*models.Task, error) {
	x := *t
	x.ID, x.CreatedAt = r.m.nextID("t")
	x.UpdatedAt = x.CreatedAt
	r.m.tasks[x.ID] = x
	r.m.write()
	return &x, nil
}

func (r fakeTasks) GetByID(_ context.Context, id string) (*models.Task, error) {
	t, ok := r.m.tasks[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r fakeTasks) Update(_ context.Context, t *models.Task) error {
	if _, ok := r.m.tasks[t.ID]; !ok {
		return common.ErrorNotFound
	}
	r.m.tasks[t.ID] = *t
	r.m.write()
	return nil
}

func (r fakeTasks) Delete(_ context.Context, id string) error {
	if _, ok := r.m.tasks[id]; !ok {
		return common.ErrorNotFound
	}
	r.m.deleteTask(id)
	r.m.write()
	return nil
}

func (r fakeTasks) List(context.Context) ([]*models.Task, error) {
	var out []*models.Task
	for _, t := range r.m.tasks {
		t := t
		out = append(out, &t)
	}
	sortByOrder(out, func(t *models.Task) int { return t.SortOrder }, func(t *models.Task) string { return t.ID })
	return out, nil
}

func (r fakeTasks) ListByProject(ctx context.Context, projectID string) ([]*models.Task, error) {
	all, _ := r.List(ctx)
	var out []*models.Task
	for _, t := range all {
		if t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r fakeTasks) ListByCategory(ctx context.Context, categoryID string) ([]*models.Task, error) {
	all, _ := r.List(ctx)
	var out []*models.Task
	for _, t := range all {
		if t.CategoryID == categoryID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r fakeTasks) CountByCategory(ctx context.Context, categoryID string) (int, error) {
	ts, _ := r.ListByCategory(ctx, categoryID)
	return len(ts), nil
}

func (r fakeTasks) SetSortOrder(_ context.Context, id string, sortOrder int) error {
	if err := r.m.check("tasks.SetSortOrder"); err != nil {
		return err
	}
	t, ok := r.m.tasks[id]
	if !ok {
		return common.ErrorNotFound
	}
	t.SortOrder = sortOrder
	r.m.tasks[id] = t
	r.m.write()
	return nil
}

func (r fakeTasks) MoveTo(_ context.Context, id, categoryID string, sortOrder int) error {
	t, ok := r.m.tasks[id]
	if !ok {
		return common.ErrorNotFound
	}
	t.CategoryID = categoryID
	t.SortOrder = sortOrder
	r.m.tasks[id] = t
	r.m.write()
	return nil
}

type fakeAssignments struct{ m *memDB }

func (r fakeAssignments) ListUserIDs(_ context.Context, taskID string) ([]string, error) {
	return r.m.assigneesOf(taskID), nil
}

func (r fakeAssignments) ListByProject(_ context.Context, projectID string) ([]models.Assignment, error) {
	var out []models.Assignment
	for k := range r.m.assignees {
		if r.m.tasks[k.a].ProjectID == projectID {
			out = append(out, models.Assignment{TaskID: k.a, UserID: k.b})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TaskID != out[j].TaskID {
			return out[i].TaskID < out[j].TaskID
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (r fakeAssignments) Add(_ context.Context, taskID, userID string) error {
	if err := r.m.check("assignments.Add"); err != nil {
		return err
	}
	k := pair{taskID, userID}
	if r.m.assignees[k] {
		return common.ErrorAlreadyExists
	}
	r.m.assignees[k] = true
	r.m.write()
	return nil
}

func (r fakeAssignments) Remove(_ context.Context, taskID, userID string) error {
	k := pair{taskID, userID}
	if !r.m.assignees[k] {
		return common.ErrorNotFound
	}
	delete(r.m.assignees, k)
	r.m.write()
	return nil
}

func (r fakeAssignments) RemoveUserFromProject(_ context.Context, projectID, userID string) error {
	for k := range r.m.assignees {
		if k.b == userID && r.m.tasks[k.a].ProjectID == projectID {
			delete(r.m.assignees, k)
			r.m.write()
		}
	}
	return nil
}

type fakeTokens struct{ m *memDB }

func (r fakeTokens) Create(_ context.Context, rt *models.RefreshToken) error {
	rt.ID, rt.CreatedAt = r.m.nextID("rt")
	r.m.tokens[rt.Token] = *rt
	r.m.write()
	return nil
}

func (r fakeTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	rt, ok := r.m.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &rt, nil
}

func (r fakeTokens) Delete(_ context.Context, token string) error {
	if _, ok := r.m.tokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(r.m.tokens, token)
	r.m.write()
	return nil
}

func (r fakeTokens) DeleteByUser(_ context.Context, userID string) error {
	for k, rt := range r.m.tokens {
		if rt.UserID == userID {
			delete(r.m.tokens, k)
			r.m.write()
		}
	}
	return nil
}

// --- manager ---

type fakeManager struct{ m *memDB }

func (f *fakeManager) RunMigrations(context.Context, *sql.DB) error    { return nil }
func (f *fakeManager) Users(dbx.DBTX) users.Repository                 { return fakeUsers{f.m} }
func (f *fakeManager) Projects(dbx.DBTX) projects.Repository           { return fakeProjects{f.m} }
func (f *fakeManager) Memberships(dbx.DBTX) memberships.Repository     { return fakeMemberships{f.m} }
func (f *fakeManager) Categories(dbx.DBTX) categories.Repository       { return fakeCategories{f.m} }
func (f *fakeManager) Tasks(dbx.DBTX) tasks.Repository                 { return fakeTasks{f.m} }
func (f *fakeManager) Assignments(dbx.DBTX) assignments.Repository     { return fakeAssignments{f.m} }
func (f *fakeManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return fakeTokens{f.m} }

// --- fixture ---

type fixture struct {
	db       *memDB
	tx       *fakeTx
	rm       *fakeManager
	projects *ProjectService
	cats     *CategoryService
	tasks    *TaskService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	m := newMemDB()
	tx := &fakeTx{db: m}
	rm := &fakeManager{m: m}
	return &fixture{
		db:       m,
		tx:       tx,
		rm:       rm,
		projects: NewProjectService(tx, rm, nil),
		cats:     NewCategoryService(tx, rm, nil),
		tasks:    NewTaskService(tx, rm, nil),
	}
}

func (f *fixture) user(t *testing.T, email string) models.Actor {
	t.Helper()
	u, err := fakeUsers{f.db}.Create(context.Background(), &models.User{Email: email, FirstName: "F", LastName: "L"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return models.Actor{ID: u.ID, Email: u.Email}
}

func (f *fixture) project(t *testing.T, admin models.Actor, members ...models.Actor) string {
	t.Helper()
	r := f.projects.Create(context.Background(), admin, ProjectCreate{Name: "Proj"})
	if !r.Success {
		t.Fatalf("create project: %s", r.ErrorMessage)
	}
	for _, m := range members {
		f.db.members[pair{r.Data.ID, m.ID}] = models.Membership{ProjectID: r.Data.ID, UserID: m.ID}
	}
	return r.Data.ID
}

func (f *fixture) category(t *testing.T, actor models.Actor, projectID, name string) string {
	t.Helper()
	r := f.cats.Insert(context.Background(), actor, CategoryCreate{ProjectID: projectID, Name: name})
	if !r.Success {
		t.Fatalf("create category: %s", r.ErrorMessage)
	}
	return r.Data.ID
}

func (f *fixture) task(t *testing.T, actor models.Actor, projectID, categoryID, name string) string {
	t.Helper()
	r := f.tasks.Insert(context.Background(), actor, TaskCreate{ProjectID: projectID, CategoryID: categoryID, Name: name})
	if !r.Success {
		t.Fatalf("create task: %s", r.ErrorMessage)
	}
	return r.Data.ID
}

// orders returns the task ids of a category in display order with their sort orders.
func (f *fixture) orders(categoryID string) ([]string, []int) {
	ts, _ := fakeTasks{f.db}.ListByCategory(context.Background(), categoryID)
	ids := make([]string, len(ts))
	ords := make([]int, len(ts))
	for i, t := range ts {
		ids[i], ords[i] = t.ID, t.SortOrder
	}
	return ids, ords
}

func dense(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

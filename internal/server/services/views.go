package services

import (
	"time"

	"github.com/dmitrijs2005/taskio/internal/server/models"
)

// Read representations returned to callers. Credentials never appear here.

type UserView struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MemberView struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	IsAdmin   bool   `json:"is_admin"`
}

type ProjectView struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Members   []MemberView `json:"members"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

type CategoryView struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type TaskView struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	CategoryID  string     `json:"category_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	SortOrder   int        `json:"sort_order"`
	AssigneeIDs []string   `json:"assignee_ids"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string   `json:"access_token"`
	RefreshToken string   `json:"refresh_token"`
	User         UserView `json:"user"`
}

// Commands.

type ProjectCreate struct {
	Name string `json:"name"`
}

// ProjectUpdate renames a project. When MemberIDs is non-nil the project's
// member set is reconciled to exactly those users; new members join as
// non-admins.
type ProjectUpdate struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	MemberIDs []string `json:"member_ids"`
}

type CategoryCreate struct {
	ProjectID string `json:"project_id"`
	Name      string `json:"name"`
}

type CategoryUpdate struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type TaskCreate struct {
	ProjectID   string     `json:"project_id"`
	CategoryID  string     `json:"category_id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

// TaskUpdate replaces the editable fields of a task. When AssigneeIDs is
// non-nil the assignee set is reconciled to exactly those users.
type TaskUpdate struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description *string    `json:"description,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssigneeIDs []string   `json:"assignee_ids"`
}

// TaskMove places a task in TargetCategoryID at Position, or at the end
// when Position is nil.
type TaskMove struct {
	TaskID           string `json:"task_id"`
	TargetCategoryID string `json:"target_category_id"`
	Position         *int   `json:"position"`
}

type UserCreate struct {
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
}

// UserUpdate changes the non-empty fields only.
type UserUpdate struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type RegisterCommand struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func userView(u *models.User) UserView {
	return UserView{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func memberViews(ms []*models.Member) []MemberView {
	out := make([]MemberView, 0, len(ms))
	for _, m := range ms {
		out = append(out, MemberView{UserID: m.UserID, Email: m.Email, FirstName: m.FirstName, LastName: m.LastName, IsAdmin: m.IsAdmin})
	}
	return out
}

func categoryView(c *models.Category) CategoryView {
	return CategoryView{
		ID:        c.ID,
		ProjectID: c.ProjectID,
		Name:      c.Name,
		SortOrder: c.SortOrder,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func taskView(t *models.Task, assignees []string) TaskView {
	if assignees == nil {
		assignees = []string{}
	}
	return TaskView{
		ID:          t.ID,
		ProjectID:   t.ProjectID,
		CategoryID:  t.CategoryID,
		Name:        t.Name,
		Description: t.Description,
		DueDate:     t.DueDate,
		SortOrder:   t.SortOrder,
		AssigneeIDs: assignees,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

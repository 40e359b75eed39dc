// Package access answers whether a user may act on project-scoped data.
//
// The predicates are pure and work on membership facts that were already
// read from storage. Gate performs exactly one lookup per check and feeds the
// facts to the predicates.
package access

import (
	"context"

	"github.com/dmitrijs2005/taskio/internal/server/models"
	"github.com/dmitrijs2005/taskio/internal/server/result"
)

const (
	MsgProjectNotFound = "Project not found."
	MsgNotMember       = "You are not a member of this project."
	MsgNotAdmin        = "Only project admins can perform this action."
)

// Facts is what the predicates need to know about one (project, user) pair.
// Membership is nil when the user has no membership row.
type Facts struct {
	ProjectExists bool
	Membership    *models.Membership
}

// Member requires the project to exist and the user to belong to it.
func Member(f Facts) result.Result[result.Unit] {
	if !f.ProjectExists {
		return result.NotFound[result.Unit](MsgProjectNotFound)
	}
	if f.Membership == nil {
		return result.Unauthorized[result.Unit](MsgNotMember)
	}
	return result.Ok(result.Unit{})
}

// Admin is Member plus the admin flag.
func Admin(f Facts) result.Result[result.Unit] {
	if r := Member(f); !r.Success {
		return r
	}
	if !f.Membership.IsAdmin {
		return result.Forbidden[result.Unit](MsgNotAdmin)
	}
	return result.Ok(result.Unit{})
}

// FactsLoader reads the facts for one (project, user) pair in a single round trip.
type FactsLoader interface {
	LoadFacts(ctx context.Context, projectID, userID string) (Facts, error)
}

// Owned is anything that lives inside a project.
type Owned interface {
	OwningProjectID() string
}

// Gate runs the predicates against facts from a FactsLoader. Denials are
// returned as *result.Failure; storage errors are returned unchanged.
type Gate struct {
	facts FactsLoader
}

func NewGate(facts FactsLoader) *Gate {
	return &Gate{facts: facts}
}

func (g *Gate) check(ctx context.Context, projectID, userID string, pred func(Facts) result.Result[result.Unit]) (*models.Membership, error) {
	f, err := g.facts.LoadFacts(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if err := pred(f).Err(); err != nil {
		return nil, err
	}
	return f.Membership, nil
}

// RequireMember returns the actor's membership when the actor belongs to the project.
func (g *Gate) RequireMember(ctx context.Context, projectID, userID string) (*models.Membership, error) {
	return g.check(ctx, projectID, userID, Member)
}

// RequireAdmin returns the actor's membership when the actor administers the project.
func (g *Gate) RequireAdmin(ctx context.Context, projectID, userID string) (*models.Membership, error) {
	return g.check(ctx, projectID, userID, Admin)
}

// RequireEntityOwnerMember checks membership in the project that owns entity.
// The entity must already be loaded; a missing entity is the caller's NotFound.
func (g *Gate) RequireEntityOwnerMember(ctx context.Context, entity Owned, userID string) (*models.Membership, error) {
	return g.RequireMember(ctx, entity.OwningProjectID(), userID)
}

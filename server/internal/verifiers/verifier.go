package verifiers

import (
	"context"

	"tasmil/server/internal/models"
)

// Result is what a provider check produces. Detail is stored as proof on
// the user's task row.
type Result struct {
	Verified bool
	Detail   map[string]any
}

// Account is the linked social identity needed for a check.
type Account struct {
	Provider    models.SocialProvider
	ExternalID  string
	Username    string
	AccessToken string
}

// Verifier checks one family of task types against its provider API.
type Verifier interface {
	Supports(taskType models.TaskType) bool
	Verify(ctx context.Context, task *models.Task, account *Account) (*Result, error)
}

// Registry routes a task type to its verifier. The set is closed at
// construction; unknown types return no verifier.
type Registry struct {
	verifiers []Verifier
}

func NewRegistry(verifiers ...Verifier) *Registry {
	return &Registry{verifiers: verifiers}
}

func (r *Registry) For(taskType models.TaskType) Verifier {
	for _, v := range r.verifiers {
		if v.Supports(taskType) {
			return v
		}
	}
	return nil
}

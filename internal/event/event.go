// Package event models the trigger that starts a workflow run. A push event
// is ephemeral: it is constructed once per invocation, consumed by the run,
// and never persisted.
package event

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zclconf/go-cty/cty"
)

// Push carries the commit reference that triggered a run.
type Push struct {
	// RunID uniquely identifies this run of the workflow.
	RunID string
	// Repo is the URL or path of the repository that was pushed to.
	Repo string
	// Ref is the full git ref, e.g. "refs/heads/main".
	Ref string
	// SHA is the commit the push points at. May be empty when the caller
	// only knows the branch; checkout then resolves the branch head.
	SHA string
	// ReceivedAt records when the runner accepted the event.
	ReceivedAt time.Time
}

// NewPush builds a push event with a fresh run ID.
func NewPush(repo, ref, sha string) *Push {
	return &Push{
		RunID:      uuid.NewString(),
		Repo:       repo,
		Ref:        ref,
		SHA:        sha,
		ReceivedAt: time.Now(),
	}
}

// Branch strips the refs/heads/ prefix from the event's ref.
func (p *Push) Branch() string {
	return strings.TrimPrefix(p.Ref, "refs/heads/")
}

// ToCty exposes the event to workflow expressions as `event.<attr>`.
func (p *Push) ToCty() cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"run_id": cty.StringVal(p.RunID),
		"repo":   cty.StringVal(p.Repo),
		"ref":    cty.StringVal(p.Ref),
		"branch": cty.StringVal(p.Branch()),
		"sha":    cty.StringVal(p.SHA),
	})
}

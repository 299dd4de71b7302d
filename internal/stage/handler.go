package stage

import (
	"context"

	"sideline/internal/session"
)

// Handler describes the contract the workflow manager needs from each
// pipeline stage.
type Handler interface {
	Prepare(context.Context, *session.Session) error
	Execute(context.Context, *session.Session) error
	HealthCheck(context.Context) Health
}

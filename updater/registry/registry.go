// Package registry defines the tag listing contract the
// planner consumes. Implementations own authentication,
// pagination, timeouts, and retries; the planner only
// sees a flat list of tags or a failure.
package registry

import "context"

// Pattern: Strategy -- swap registry backend without
// changing plan computation.

// Client lists the available tags of an image
// repository.
type Client interface {
	ListTags(
		ctx context.Context,
		repository string,
	) ([]string, error)
}

// ClientFunc adapts a plain function to the Client
// interface.
type ClientFunc func(
	ctx context.Context,
	repository string,
) ([]string, error)

// ListTags delegates to the wrapped function.
func (f ClientFunc) ListTags(
	ctx context.Context,
	repository string,
) ([]string, error) {
	return f(ctx, repository)
}

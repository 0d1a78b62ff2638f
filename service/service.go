package service

import (
	"fmt"

	"github.com/hupe1980/agencyhub/core"
	"github.com/hupe1980/agencyhub/logging"
)

// Options are shared by the service constructors.
type Options struct {
	Logger *logging.HubLogger
}

func buildOptions(component string, optFns []func(o *Options)) Options {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	opts.Logger = opts.Logger.WithComponent(component)
	return opts
}

// canRead reports whether user may read a record owned by owner. Templates
// have no owner and are readable by everyone.
func canRead(user core.User, owner string) bool {
	return owner == "" || owner == user.ID
}

func denied(kind, id string, user core.User) error {
	return fmt.Errorf("%s %s for user %s: %w", kind, id, user.ID, core.ErrPermissionDenied)
}

func notApproved(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotApproved)
}

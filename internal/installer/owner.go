package installer

import (
	"os/user"
	"strconv"

	"setup-capabilities/internal/errors"
)

// IDResolver maps user and group names to numeric IDs.
type IDResolver interface {
	LookupUser(name string) (int, error)
	LookupGroup(name string) (int, error)
}

// SystemResolver resolves names through the host user database
// (/etc/passwd, /etc/group and NSS when cgo is enabled).
type SystemResolver struct{}

// LookupUser returns the uid of the named user. Unknown users are
// OWNER_LOOKUP errors.
func (SystemResolver) LookupUser(name string) (int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrOwnerLookup, "unknown user %q", name)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrOwnerLookup, "user %q has non-numeric uid %q", name, u.Uid)
	}
	return uid, nil
}

// LookupGroup returns the gid of the named group. Unknown groups are
// OWNER_LOOKUP errors.
func (SystemResolver) LookupGroup(name string) (int, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrOwnerLookup, "unknown group %q", name)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, errors.Wrapf(err, errors.ErrOwnerLookup, "group %q has non-numeric gid %q", name, g.Gid)
	}
	return gid, nil
}

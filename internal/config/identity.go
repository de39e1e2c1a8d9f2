/* *****************************************************************************
 * Nehonix XyWatch Process Supervisor
 * (see ../watch/types.go for the full license header)
 ***************************************************************************** */

package config

import (
	"fmt"
	"os/user"
	"strconv"
)

// resolveIdentity turns the textual user/group names a config file
// carries into the numeric ids the supervisor consumes. Either may be
// empty, meaning "don't drop that privilege".
func resolveIdentity(userName, groupName string) (uid, gid *uint32, err error) {
	if userName != "" {
		u, err := user.Lookup(userName)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup user %q: %w", userName, err)
		}
		n, err := strconv.ParseUint(u.Uid, 10, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("parse uid for %q: %w", userName, err)
		}
		v := uint32(n)
		uid = &v
	}
	if groupName != "" {
		g, err := user.LookupGroup(groupName)
		if err != nil {
			return nil, nil, fmt.Errorf("lookup group %q: %w", groupName, err)
		}
		n, err := strconv.ParseUint(g.Gid, 10, 32)
		if err != nil {
			return nil, nil, fmt.Errorf("parse gid for %q: %w", groupName, err)
		}
		v := uint32(n)
		gid = &v
	}
	return uid, gid, nil
}

package shell

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Account is one uid/gid entry from id(1) output: a numeric id and its name.
type Account struct {
	ID   int
	Name string
}

// Identity is the parsed output of id(1).
type Identity struct {
	UID    Account
	GID    Account
	Groups []Account
}

// Root reports whether the identity is uid 0.
func (id *Identity) Root() bool {
	return id.UID.ID == 0
}

// entry matches one "123(name)" element. The name may be empty; context
// strings like SELinux labels after a trailing space are not consumed.
var entry = regexp.MustCompile(`^(\d+)\(([^)]*)\)$`)

// ParseID parses id(1) output of the form
// "uid=1000(alice) gid=1000(alice) groups=1000(alice),10(wheel)".
// Unknown fields (context=...) are ignored. The groups list is walked with a
// bounded loop over its comma-separated entries.
func ParseID(s string) (*Identity, error) {
	id := &Identity{}
	seenUID, seenGID := false, false

	for _, field := range strings.Fields(s) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		switch key {
		case "uid":
			acct, err := parseAccount(value)
			if err != nil {
				return nil, fmt.Errorf("parse id: uid: %w", err)
			}
			id.UID = acct
			seenUID = true
		case "gid":
			acct, err := parseAccount(value)
			if err != nil {
				return nil, fmt.Errorf("parse id: gid: %w", err)
			}
			id.GID = acct
			seenGID = true
		case "groups":
			for _, g := range strings.Split(value, ",") {
				acct, err := parseAccount(g)
				if err != nil {
					return nil, fmt.Errorf("parse id: groups: %w", err)
				}
				id.Groups = append(id.Groups, acct)
			}
		}
	}

	if !seenUID || !seenGID {
		return nil, fmt.Errorf("parse id: missing uid/gid in %q", strings.TrimSpace(s))
	}
	return id, nil
}

func parseAccount(s string) (Account, error) {
	m := entry.FindStringSubmatch(s)
	if m == nil {
		// Some systems print bare numeric ids without a name.
		n, err := strconv.Atoi(s)
		if err != nil {
			return Account{}, fmt.Errorf("malformed entry %q", s)
		}
		return Account{ID: n}, nil
	}
	n, _ := strconv.Atoi(m[1])
	return Account{ID: n, Name: m[2]}, nil
}

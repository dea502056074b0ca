// Package access holds the single administrator identity.
package access

import "errors"

// ErrUnauthorized is returned when a non-administrator invokes an admin operation.
var ErrUnauthorized = errors.New("access: unauthorized")

// Admin is the static administrator gate. The zero id matches nobody.
type Admin struct {
	id int64
}

func NewAdmin(id int64) *Admin { return &Admin{id: id} }

func (a *Admin) ID() int64 {
	if a == nil {
		return 0
	}
	return a.id
}

func (a *Admin) Is(userID int64) bool {
	id := a.ID()
	return id != 0 && userID == id
}

// Check returns ErrUnauthorized unless userID is the administrator.
func (a *Admin) Check(userID int64) error {
	if a.Is(userID) {
		return nil
	}
	return ErrUnauthorized
}

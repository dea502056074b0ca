package registry

import (
	"errors"
	"fmt"
	"time"
)

// ActiveWindow is the trailing period in which a user counts as active.
const ActiveWindow = 30 * 24 * time.Hour

var (
	// ErrStorage matches every *StorageError.
	ErrStorage = errors.New("registry: storage failure")
	// ErrNotFound is returned for operations on an unknown user id.
	ErrNotFound = errors.New("registry: user not found")
)

// StorageError wraps a failure of the underlying database.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("registry %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Config configures the store.
type Config struct {
	Path          string
	BusyTimeout   time.Duration // 0 means 5s
	DefaultLocale string

	// Now is the clock used for first_seen, last_active and upload dates.
	Now func() time.Time
}

// Profile is the identity data known from an inbound event.
type Profile struct {
	ID        int64
	Username  string
	FirstName string
	LastName  string
}

// User is a stored user record.
type User struct {
	Profile
	Locale      string
	ImagesCount int64
	FirstSeen   time.Time
	LastActive  time.Time
}

// Image is one hosted upload.
type Image struct {
	ID         int64
	UserID     int64
	URL        string
	UploadedAt time.Time
}

// Stats is a point-in-time aggregate.
type Stats struct {
	TotalUsers  int64
	TotalImages int64
	ActiveUsers int64
}

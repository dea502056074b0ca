package broadcast

import (
	"context"
	"errors"
	"fmt"
	"time"

	kit "imgbot/internal/transport"
)

var (
	// ErrEmptyMessage is returned when the broadcast body is blank.
	ErrEmptyMessage = errors.New("broadcast: empty message")
	// ErrBusy is returned while another broadcast is running and single-flight is on.
	ErrBusy = errors.New("broadcast: already running")
)

// maxFailedIDs bounds Result.FailedIDs.
const maxFailedIDs = 200

type Config struct {
	SendDelay     time.Duration // pause after each attempt before the next; 0 disables
	ProgressEvery int           // edit the progress message every N attempts; <= 0 disables
	Localize      bool          // render the header in each recipient's locale
	SingleFlight  bool          // reject a run while another is in progress
}

// DefaultConfig mirrors the shipped configuration defaults.
func DefaultConfig() Config {
	return Config{
		SendDelay:     100 * time.Millisecond,
		ProgressEvery: 25,
		Localize:      true,
		SingleFlight:  true,
	}
}

// Directory is the part of the registry a broadcast reads.
type Directory interface {
	ListAllUserIDs(ctx context.Context) ([]int64, error)
	GetUserLocale(ctx context.Context, id int64) (string, error)
}

// Request is one /all invocation.
type Request struct {
	RequesterID int64
	Chat        kit.ChatTarget // where progress and the report go
	Text        string
	Locale      string // requester's locale for progress and report
}

// Result is the accounting of one finished run.
type Result struct {
	ID         string
	Total      int
	Successful int
	Failed     int
	FailedIDs  []int64 // first maxFailedIDs failures, in attempt order
	StartedAt  time.Time
	Duration   time.Duration
	Canceled   bool // stopped early; untried recipients are counted as failed
}

// DeliveryError is one failed send. It never aborts the run.
type DeliveryError struct {
	Recipient int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %d: %v", e.Recipient, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

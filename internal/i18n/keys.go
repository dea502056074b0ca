package i18n

// Key names one user-facing text. The set is closed: adding a text means
// adding a constant here, a name in keyNames and an entry in every table.
type Key int

const (
	KeyWelcome Key = iota
	KeySendPhotoHint
	KeyGenericError

	KeyAdminOnly

	KeyStatsReport // total users, total images, active users
	KeyStatsError
	KeyStatsDigestTitle

	KeyBroadcastUsage
	KeyBroadcastHeader   // message body
	KeyBroadcastStarted  // total
	KeyBroadcastProgress // done, total
	KeyBroadcastReport   // total, successful, failed
	KeyBroadcastBusy
	KeyBroadcastError

	KeyUploadDone // url
	KeyUploadFailed
	KeyPhotoError

	KeyLangPrompt
	KeyLangChanged // locale label
	KeyLangUnknown // supported codes

	keyCount
)

var keyNames = [keyCount]string{
	KeyWelcome:           "welcome",
	KeySendPhotoHint:     "send_photo_hint",
	KeyGenericError:      "generic_error",
	KeyAdminOnly:         "admin_only",
	KeyStatsReport:       "stats_report",
	KeyStatsError:        "stats_error",
	KeyStatsDigestTitle:  "stats_digest_title",
	KeyBroadcastUsage:    "broadcast_usage",
	KeyBroadcastHeader:   "broadcast_header",
	KeyBroadcastStarted:  "broadcast_started",
	KeyBroadcastProgress: "broadcast_progress",
	KeyBroadcastReport:   "broadcast_report",
	KeyBroadcastBusy:     "broadcast_busy",
	KeyBroadcastError:    "broadcast_error",
	KeyUploadDone:        "upload_done",
	KeyUploadFailed:      "upload_failed",
	KeyPhotoError:        "photo_error",
	KeyLangPrompt:        "lang_prompt",
	KeyLangChanged:       "lang_changed",
	KeyLangUnknown:       "lang_unknown",
}

// String returns the symbolic name, which is also the last-resort rendering.
func (k Key) String() string {
	if k < 0 || k >= keyCount {
		return "unknown_key"
	}
	if n := keyNames[k]; n != "" {
		return n
	}
	return "unknown_key"
}

// table holds one locale's templates indexed by Key.
type table [keyCount]string

package output

import "time"

// Step identifies the onboarding stage a repository was in when it failed.
type Step string

const (
	StepEnsureProject Step = "ensure-project"
	StepClone         Step = "clone"
	StepScan          Step = "scan"
)

// ErrKind classifies why a repository failed to onboard. Kinds are coarse on
// purpose: they feed the summary breakdown and the report, not remediation
// logic. The full error text lives in Outcome.Err.
type ErrKind string

const (
	// KindNone marks a successful outcome.
	KindNone ErrKind = ""
	// KindServerUnreachable covers network errors and 5xx responses that
	// survived the client's retries.
	KindServerUnreachable ErrKind = "server-unreachable"
	// KindAuth means the analysis server rejected the configured token.
	KindAuth        ErrKind = "auth"
	KindCloneFailed ErrKind = "clone-failed"
	KindScanFailed  ErrKind = "scan-failed"
	KindScanTimeout ErrKind = "scan-timeout"
	// KindAborted marks repositories that were skipped because an earlier
	// repository already proved the credentials bad.
	KindAborted ErrKind = "aborted"
)

// Outcome is the per-repository record of an onboarding attempt. Exactly one
// Outcome is produced per mapping entry that enters the run; sinks render
// them and the summary folds them.
type Outcome struct {
	ProjectKey  string `json:"project_key"`
	DisplayName string `json:"display_name"`
	Location    string `json:"location"`
	// Line is the 1-based mapping-file line the repository came from.
	Line int `json:"line,omitempty"`

	Created   bool   `json:"created,omitempty"`
	Existed   bool   `json:"existed,omitempty"`
	Cloned    bool   `json:"cloned,omitempty"`
	Toolchain string `json:"toolchain,omitempty"`
	Scanned   bool   `json:"scanned,omitempty"`

	FailedStep Step    `json:"failed_step,omitempty"`
	ErrKind    ErrKind `json:"error_kind,omitempty"`
	Err        string  `json:"error,omitempty"`

	Duration   time.Duration `json:"-"`
	DurationMS int64         `json:"duration_ms"`
}

func (o Outcome) Failed() bool { return o.ErrKind != KindNone }

package cache

import (
	"encoding/json"
	"fmt"
	"sort"
)

// State is the processing state of a user record
type State int

const (
	// Pending records have never been captured and must be processed
	Pending State = iota
	// Captured records carry the result of their last capture attempt
	Captured
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Captured:
		return "captured"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// CaptureResult holds the fields derived from the last capture attempt
type CaptureResult struct {
	Fingerprint string
	IsDefault   bool
	HasError    bool
}

// UserRecord is the cached state of one user's page
type UserRecord struct {
	Username          string
	ActivityTimestamp int64

	// Result is nil while the record is Pending
	Result *CaptureResult
}

// State reports whether the record has been captured
func (r *UserRecord) State() State {
	if r.Result == nil {
		return Pending
	}
	return Captured
}

// Complete reports whether every derived field is present
func (r *UserRecord) Complete() bool {
	return r.State() == Captured
}

// Fingerprint returns the capture fingerprint, empty if pending or failed
func (r *UserRecord) Fingerprint() string {
	if r.Result == nil {
		return ""
	}
	return r.Result.Fingerprint
}

// IsDefault reports whether the captured page is a known placeholder
func (r *UserRecord) IsDefault() bool {
	return r.Result != nil && r.Result.IsDefault
}

// HasError reports whether the last capture attempt failed
func (r *UserRecord) HasError() bool {
	return r.Result != nil && r.Result.HasError
}

// recordJSON is the persisted shape of a UserRecord; the derived fields are
// optional and a record is only complete when all three are present.
type recordJSON struct {
	Username          string  `json:"username"`
	ActivityTimestamp int64   `json:"activityTimestamp"`
	Fingerprint       *string `json:"fingerprint,omitempty"`
	IsDefault         *bool   `json:"isDefault,omitempty"`
	HasError          *bool   `json:"hasError,omitempty"`
}

// MarshalJSON implements json.Marshaler
func (r *UserRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Username:          r.Username,
		ActivityTimestamp: r.ActivityTimestamp,
	}
	if r.Result != nil {
		fp, def, hasErr := r.Result.Fingerprint, r.Result.IsDefault, r.Result.HasError
		out.Fingerprint = &fp
		out.IsDefault = &def
		out.HasError = &hasErr
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler
func (r *UserRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Username = in.Username
	r.ActivityTimestamp = in.ActivityTimestamp
	r.Result = nil
	if in.Fingerprint != nil && in.IsDefault != nil && in.HasError != nil {
		r.Result = &CaptureResult{
			Fingerprint: *in.Fingerprint,
			IsDefault:   *in.IsDefault,
			HasError:    *in.HasError,
		}
	}
	return nil
}

// Document is the whole cache: the watermark, the known placeholder
// fingerprints and one record per username.
type Document struct {
	GenerationTimestamp int64
	DefaultFingerprints FingerprintSet
	Users               map[string]*UserRecord
}

// NewDocument returns an empty cache document
func NewDocument() *Document {
	return &Document{
		GenerationTimestamp: 0,
		DefaultFingerprints: NewFingerprintSet(),
		Users:               make(map[string]*UserRecord),
	}
}

// SortedUsers returns the records newest activity first, ties by username
func (d *Document) SortedUsers() []*UserRecord {
	users := make([]*UserRecord, 0, len(d.Users))
	for _, u := range d.Users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		if users[i].ActivityTimestamp != users[j].ActivityTimestamp {
			return users[i].ActivityTimestamp > users[j].ActivityTimestamp
		}
		return users[i].Username < users[j].Username
	})
	return users
}

type documentJSON struct {
	GenerationTimestamp int64         `json:"generationTimestamp"`
	DefaultFingerprints []string      `json:"defaultFingerprints"`
	Users               []*UserRecord `json:"users"`
}

// MarshalJSON writes users as an array, ordered as SortedUsers
func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(documentJSON{
		GenerationTimestamp: d.GenerationTimestamp,
		DefaultFingerprints: d.DefaultFingerprints.Sorted(),
		Users:               d.SortedUsers(),
	})
}

// UnmarshalJSON reads the persisted document; a repeated username keeps the
// last occurrence.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	d.GenerationTimestamp = in.GenerationTimestamp
	d.DefaultFingerprints = NewFingerprintSet(in.DefaultFingerprints...)
	d.Users = make(map[string]*UserRecord, len(in.Users))
	for _, u := range in.Users {
		if u == nil || u.Username == "" {
			continue
		}
		d.Users[u.Username] = u
	}
	return nil
}

// Package audit holds the bookkeeping timestamps shared by persisted records.
package audit

import "time"

// Fields is embedded by records that track when they were created and last written.
type Fields struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Touch stamps a write at now, setting CreatedAt on the first write only.
func (f *Fields) Touch(now time.Time) {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
}

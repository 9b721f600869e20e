package journal

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates the snapshot union.
type Kind string

// Snapshot kinds.
const (
	KindAbsent  Kind = "absent"
	KindInt     Kind = "int"
	KindString  Kind = "string"
	KindService Kind = "service"
)

// Snapshot is a tagged union capturing the state of one key at one moment.
// KindAbsent means the key did not exist, so rollback must delete rather
// than restore.
type Snapshot struct {
	Kind    Kind          `json:"kind" yaml:"kind"`
	Int     int64         `json:"int,omitempty" yaml:"int,omitempty"`
	String  string        `json:"string,omitempty" yaml:"string,omitempty"`
	Service *ServiceState `json:"service,omitempty" yaml:"service,omitempty"`
}

// Absent returns the snapshot for a key that does not exist.
func Absent() Snapshot {
	return Snapshot{Kind: KindAbsent}
}

// Int returns a numeric snapshot.
func Int(v int64) Snapshot {
	return Snapshot{Kind: KindInt, Int: v}
}

// String returns a string snapshot.
func String(v string) Snapshot {
	return Snapshot{Kind: KindString, String: v}
}

// Service returns a composite service-state snapshot.
func Service(s ServiceState) Snapshot {
	return Snapshot{Kind: KindService, Service: &s}
}

// IsAbsent reports whether the snapshot records a missing key.
func (s Snapshot) IsAbsent() bool {
	return s.Kind == KindAbsent || s.Kind == ""
}

// Equal reports whether two snapshots record the same state.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.IsAbsent() && o.IsAbsent() {
		return true
	}
	if s.Kind != o.Kind {
		return false
	}
	switch s.Kind {
	case KindInt:
		return s.Int == o.Int
	case KindString:
		return s.String == o.String
	case KindService:
		if s.Service == nil || o.Service == nil {
			return s.Service == o.Service
		}
		return *s.Service == *o.Service
	}
	return true
}

// Display returns a short human-readable rendering for logs and tables.
func (s Snapshot) Display() string {
	switch s.Kind {
	case KindInt:
		return fmt.Sprintf("%d", s.Int)
	case KindString:
		return s.String
	case KindService:
		if s.Service == nil {
			return "<service>"
		}
		return fmt.Sprintf("%s/%s", s.Service.StartupType, s.Service.Status)
	default:
		return "<absent>"
	}
}

// UnmarshalJSON validates the kind discriminator on load so a journal
// written by a different version fails loudly instead of decoding into a
// silently empty snapshot.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	type raw Snapshot
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	switch r.Kind {
	case KindAbsent, KindInt, KindString, KindService, "":
	default:
		return fmt.Errorf("unknown snapshot kind %q", r.Kind)
	}
	if r.Kind == KindService && r.Service == nil {
		return fmt.Errorf("service snapshot missing payload")
	}
	*s = Snapshot(r)
	return nil
}

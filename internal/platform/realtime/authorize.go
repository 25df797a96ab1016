package realtime

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Subject is the authenticated subscriber.
type Subject struct {
	UserID uuid.UUID
	Admin  bool
}

// PatientLookup resolves the patient profile id owned by a user, if any.
type PatientLookup interface {
	PatientIDForUser(ctx context.Context, userID uuid.UUID) (uuid.UUID, bool, error)
}

// Authorizer decides which topics a subscriber may join. Admins may join any
// topic; everyone else only filtered topics whose value is their own user id
// or their patient id.
type Authorizer struct {
	patients PatientLookup
}

func NewAuthorizer(patients PatientLookup) *Authorizer {
	return &Authorizer{patients: patients}
}

// Allowed returns the subset of topics the subject may subscribe to and an
// error describing the first rejected topic, if any.
func (a *Authorizer) Allowed(ctx context.Context, subj Subject, topics []string) ([]string, error) {
	var (
		allowed  []string
		firstErr error
		ownIDs   map[string]bool
	)

	for _, raw := range topics {
		t, err := ParseTopic(raw)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if subj.Admin {
			allowed = append(allowed, raw)
			continue
		}
		if t.Column == "" {
			if firstErr == nil {
				firstErr = fmt.Errorf("topic %q requires a filter on your own id", raw)
			}
			continue
		}
		if ownIDs == nil {
			ownIDs, err = a.ownIDs(ctx, subj.UserID)
			if err != nil {
				return nil, err
			}
		}
		if !ownIDs[t.Value] {
			if firstErr == nil {
				firstErr = fmt.Errorf("topic %q is not yours", raw)
			}
			continue
		}
		allowed = append(allowed, raw)
	}
	return allowed, firstErr
}

func (a *Authorizer) ownIDs(ctx context.Context, userID uuid.UUID) (map[string]bool, error) {
	ids := map[string]bool{userID.String(): true}
	if a.patients == nil {
		return ids, nil
	}
	pid, ok, err := a.patients.PatientIDForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve patient for subscriber: %w", err)
	}
	if ok {
		ids[pid.String()] = true
	}
	return ids, nil
}

package session

import (
	"testing"
	"time"

	"github.com/hitoshi/rxnote/internal/model"
)

func TestDecide(t *testing.T) {
	now := time.Now()
	identity := &model.Identity{ID: "acc-1", Email: "user@example.com", IssuedAt: now}
	doctor := &model.Profile{ID: "acc-1", Role: model.RoleDoctor}
	patient := &model.Profile{ID: "acc-1", Role: model.RolePatient}

	tests := []struct {
		name     string
		identity *model.Identity
		profile  *model.Profile
		want     RouteDecision
	}{
		{"anonymous", nil, nil, GoToLogin},
		{"anonymous ignores stray profile", nil, patient, GoToLogin},
		{"identity without profile", identity, nil, Stay},
		{"doctor", identity, doctor, GoToDoctorHome},
		{"patient", identity, patient, GoToPatientHome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.identity, tt.profile); got != tt.want {
				t.Errorf("Decide() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDecide_IsPure(t *testing.T) {
	identity := &model.Identity{ID: "acc-1", Email: "user@example.com"}
	profile := &model.Profile{ID: "acc-1", Role: model.RoleDoctor}

	// 同じ入力に対して常に同じ判定を返すこと。
	first := Decide(identity, profile)
	for i := 0; i < 10; i++ {
		if got := Decide(identity, profile); got != first {
			t.Fatalf("Decide() is not deterministic: %q != %q", got, first)
		}
	}
}

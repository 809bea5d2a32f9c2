package signing

import (
	"testing"

	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

func signerAt(id string, index int, status constant.SignerStatus) model.Signer {
	s := model.Signer{OrderIndex: index, Status: status}
	s.ID = id
	return s
}

func TestIsEligible(t *testing.T) {
	tests := []struct {
		name      string
		signers   []model.Signer
		candidate string
		ordered   bool
		want      bool
	}{
		{
			name: "first in line",
			signers: []model.Signer{
				signerAt("a", 0, constant.SignerStatusPending),
				signerAt("b", 1, constant.SignerStatusPending),
			},
			candidate: "a",
			ordered:   true,
			want:      true,
		},
		{
			name: "waiting on a pending predecessor",
			signers: []model.Signer{
				signerAt("a", 0, constant.SignerStatusPending),
				signerAt("b", 1, constant.SignerStatusPending),
			},
			candidate: "b",
			ordered:   true,
			want:      false,
		},
		{
			name: "viewed predecessor still blocks",
			signers: []model.Signer{
				signerAt("a", 0, constant.SignerStatusViewed),
				signerAt("b", 1, constant.SignerStatusPending),
			},
			candidate: "b",
			ordered:   true,
			want:      false,
		},
		{
			name: "predecessor signed",
			signers: []model.Signer{
				signerAt("a", 0, constant.SignerStatusSigned),
				signerAt("b", 1, constant.SignerStatusPending),
			},
			candidate: "b",
			ordered:   true,
			want:      true,
		},
		{
			name: "tie does not block",
			signers: []model.Signer{
				signerAt("a", 3, constant.SignerStatusPending),
				signerAt("b", 3, constant.SignerStatusPending),
			},
			candidate: "b",
			ordered:   true,
			want:      true,
		},
		{
			name: "gaps in indexes",
			signers: []model.Signer{
				signerAt("a", 0, constant.SignerStatusSigned),
				signerAt("b", 10, constant.SignerStatusPending),
				signerAt("c", 20, constant.SignerStatusPending),
			},
			candidate: "c",
			ordered:   true,
			want:      false,
		},
		{
			name: "unordered ignores indexes",
			signers: []model.Signer{
				signerAt("a", 0, constant.SignerStatusPending),
				signerAt("b", 1, constant.SignerStatusPending),
			},
			candidate: "b",
			ordered:   false,
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var candidate model.Signer
			for _, s := range tt.signers {
				if s.ID == tt.candidate {
					candidate = s
				}
			}
			if got := IsEligible(tt.signers, candidate, tt.ordered); got != tt.want {
				t.Errorf("IsEligible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEligibleSignersSkipsActedSigners(t *testing.T) {
	signers := []model.Signer{
		signerAt("a", 0, constant.SignerStatusSigned),
		signerAt("b", 1, constant.SignerStatusViewed),
		signerAt("c", 1, constant.SignerStatusPending),
		signerAt("d", 2, constant.SignerStatusPending),
	}

	got := EligibleSigners(signers, true)
	if len(got) != 1 || got[0].ID != "c" {
		t.Errorf("EligibleSigners() = %v, want [c]", ids(got))
	}
}

func TestNewlyEligible(t *testing.T) {
	before := []model.Signer{
		signerAt("a", 0, constant.SignerStatusViewed),
		signerAt("b", 1, constant.SignerStatusPending),
		signerAt("c", 1, constant.SignerStatusPending),
		signerAt("d", 2, constant.SignerStatusPending),
	}
	after := []model.Signer{
		signerAt("a", 0, constant.SignerStatusSigned),
		signerAt("b", 1, constant.SignerStatusPending),
		signerAt("c", 1, constant.SignerStatusPending),
		signerAt("d", 2, constant.SignerStatusPending),
	}

	got := ids(newlyEligible(before, after, true))
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("newlyEligible() = %v, want [b c]", got)
	}

	if got := newlyEligible(before, after, false); len(got) != 0 {
		t.Errorf("newlyEligible() unordered = %v, want none", ids(got))
	}
}

func TestAllSigned(t *testing.T) {
	if allSigned(nil) {
		t.Errorf("allSigned(nil) = true")
	}
	if allSigned([]model.Signer{signerAt("a", 0, constant.SignerStatusSigned), signerAt("b", 0, constant.SignerStatusViewed)}) {
		t.Errorf("allSigned() with a viewed signer = true")
	}
	if !allSigned([]model.Signer{signerAt("a", 0, constant.SignerStatusSigned)}) {
		t.Errorf("allSigned() = false")
	}
}

func ids(signers []model.Signer) []string {
	out := make([]string, 0, len(signers))
	for _, s := range signers {
		out = append(out, s.ID)
	}
	return out
}

package signing

import (
	"github.com/SeakMengs/AutoSign/internal/constant"
	"github.com/SeakMengs/AutoSign/internal/model"
)

// IsEligible reports whether candidate may act now: every signer with a strictly
// smaller order index must be signed. Signers sharing an index never block each other.
// When ordered is false every signer is eligible.
func IsEligible(signers []model.Signer, candidate model.Signer, ordered bool) bool {
	if !ordered {
		return true
	}

	for _, s := range signers {
		if s.ID == candidate.ID {
			continue
		}
		if s.OrderIndex < candidate.OrderIndex && s.Status != constant.SignerStatusSigned {
			return false
		}
	}

	return true
}

// EligibleSigners returns the pending signers that may act now, in list order.
func EligibleSigners(signers []model.Signer, ordered bool) []model.Signer {
	var eligible []model.Signer
	for _, s := range signers {
		if s.Status != constant.SignerStatusPending {
			continue
		}
		if IsEligible(signers, s, ordered) {
			eligible = append(eligible, s)
		}
	}
	return eligible
}

// newlyEligible returns signers eligible in after that were not in before.
func newlyEligible(before, after []model.Signer, ordered bool) []model.Signer {
	seen := make(map[string]bool)
	for _, s := range EligibleSigners(before, ordered) {
		seen[s.ID] = true
	}

	var fresh []model.Signer
	for _, s := range EligibleSigners(after, ordered) {
		if !seen[s.ID] {
			fresh = append(fresh, s)
		}
	}
	return fresh
}

func allSigned(signers []model.Signer) bool {
	if len(signers) == 0 {
		return false
	}
	for _, s := range signers {
		if s.Status != constant.SignerStatusSigned {
			return false
		}
	}
	return true
}

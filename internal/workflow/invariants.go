package workflow

import (
	"github.com/prefeiturasp/SME-GIPE-MS-Intercorrencia/internal/models"
)

// ComputeInvariants resolves a proposal against the current report. It returns
// the writes that survive the conditional schema and the fields that must be
// emptied once the writes are applied. Only final effective values count:
// flipping the branch twice inside one proposal is decided by the value sent.
func ComputeInvariants(current *models.Incident, proposed Changes) (Changes, []Field) {
	writes := proposed.clone()
	var clears []Field

	if effectiveBranch(current, proposed) == models.BranchTheft {
		strip(writes, BranchBFields...)
		strip(writes, DossierFields...)
		clears = append(clears, BranchBFields...)
		clears = append(clears, DossierFields...)
	} else {
		strip(writes, BranchAFields...)
		clears = append(clears, BranchAFields...)

		if effectiveAggressorInfo(current, proposed) != models.AggressorInfoYes {
			strip(writes, DossierFields...)
			clears = append(clears, DossierFields...)
		}
	}

	for _, pair := range DistrictFlags {
		if !effectiveFlag(current, proposed, pair.Flag) {
			strip(writes, pair.Info)
			clears = append(clears, pair.Info)
		}
	}

	return writes, clears
}

// Apply writes first and clears second on a copy of current.
func Apply(current *models.Incident, writes Changes, clears []Field) (*models.Incident, error) {
	post := current.Clone()
	for _, f := range writes.Fields() {
		if err := Set(post, f, writes[f]); err != nil {
			return nil, err
		}
	}
	for _, f := range clears {
		Clear(post, f)
	}
	return post, nil
}

func strip(c Changes, fields ...Field) {
	for _, f := range fields {
		delete(c, f)
	}
}

func effectiveBranch(current *models.Incident, proposed Changes) models.IncidentBranch {
	if v, ok := proposed[FieldIsTheftCategory]; ok {
		switch b := v.(type) {
		case bool:
			return branchOf(b)
		case *bool:
			if b != nil {
				return branchOf(*b)
			}
		}
	}
	return current.Branch()
}

func branchOf(theft bool) models.IncidentBranch {
	if theft {
		return models.BranchTheft
	}
	return models.BranchNonTheft
}

func effectiveAggressorInfo(current *models.Incident, proposed Changes) models.AggressorInfoState {
	if v, ok := proposed[FieldHasAggressorInfo]; ok {
		switch s := v.(type) {
		case models.AggressorInfoState:
			return s
		case string:
			return models.AggressorInfoState(s)
		case nil:
			return models.AggressorInfoUnset
		}
	}
	return current.HasAggressorInfo
}

func effectiveFlag(current *models.Incident, proposed Changes, f Field) bool {
	v, ok := proposed[f]
	if !ok {
		v = Get(current, f)
	}
	switch b := v.(type) {
	case bool:
		return b
	case *bool:
		return b != nil && *b
	}
	return false
}

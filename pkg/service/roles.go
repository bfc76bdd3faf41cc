package service

import "github.com/ignatij/taskflow/pkg/models"

// RoleHierarchy maps each role to the roles it may delegate work to.
type RoleHierarchy map[models.Role]map[models.Role]struct{}

func delegates(roles ...models.Role) map[models.Role]struct{} {
	set := make(map[models.Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// DefaultHierarchy is the organization's fixed delegation table. Leaf roles
// delegate to nobody.
var DefaultHierarchy = RoleHierarchy{
	models.CEORole:        delegates(models.PMRole, models.LeadRole, models.EmployeeRole, models.InternRole, models.ContractorRole),
	models.PMRole:         delegates(models.LeadRole, models.EmployeeRole, models.InternRole, models.ContractorRole),
	models.LeadRole:       delegates(models.EmployeeRole, models.InternRole, models.ContractorRole),
	models.EmployeeRole:   delegates(),
	models.InternRole:     delegates(),
	models.ContractorRole: delegates(),
}

// CanDelegate reports whether source may hand work to a user holding target.
func (h RoleHierarchy) CanDelegate(source, target models.Role) bool {
	_, ok := h[source][target]
	return ok
}

// FilterDelegable keeps only the users whose role source may delegate to.
func (h RoleHierarchy) FilterDelegable(users []models.User, source models.Role) []models.User {
	out := make([]models.User, 0, len(users))
	for _, u := range users {
		if h.CanDelegate(source, u.Role) {
			out = append(out, u)
		}
	}
	return out
}

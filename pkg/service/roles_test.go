package service_test

import (
	"testing"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/service"
	"github.com/stretchr/testify/assert"
)

func TestDefaultHierarchy(t *testing.T) {
	h := service.DefaultHierarchy
	all := []models.Role{
		models.CEORole, models.PMRole, models.LeadRole,
		models.EmployeeRole, models.InternRole, models.ContractorRole,
	}
	allowed := map[models.Role][]models.Role{
		models.CEORole:  {models.PMRole, models.LeadRole, models.EmployeeRole, models.InternRole, models.ContractorRole},
		models.PMRole:   {models.LeadRole, models.EmployeeRole, models.InternRole, models.ContractorRole},
		models.LeadRole: {models.EmployeeRole, models.InternRole, models.ContractorRole},
	}

	for _, source := range all {
		for _, target := range all {
			want := false
			for _, r := range allowed[source] {
				if r == target {
					want = true
				}
			}
			assert.Equal(t, want, h.CanDelegate(source, target), "%s -> %s", source, target)
		}
		assert.False(t, h.CanDelegate(source, source), "%s must not delegate to itself", source)
	}
	assert.False(t, h.CanDelegate("Janitor", models.EmployeeRole))
}

func TestFilterDelegable(t *testing.T) {
	users := []models.User{
		{ID: "a", Role: models.PMRole},
		{ID: "b", Role: models.EmployeeRole},
		{ID: "c", Role: models.CEORole},
		{ID: "d", Role: models.InternRole},
	}

	got := service.DefaultHierarchy.FilterDelegable(users, models.LeadRole)
	assert.Equal(t, []string{"b", "d"}, userIDs(got))
	assert.Empty(t, service.DefaultHierarchy.FilterDelegable(users, models.ContractorRole))

	custom := service.RoleHierarchy{models.EmployeeRole: {models.InternRole: {}}}
	assert.Equal(t, []string{"d"}, userIDs(custom.FilterDelegable(users, models.EmployeeRole)))
}

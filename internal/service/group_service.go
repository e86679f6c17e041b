package service

import (
	"simpkl/internal/availability"
	"simpkl/internal/domain"
	"simpkl/internal/models"
)

// GroupService answers resource-group questions from the cached config
// snapshot; groups are not stored in the database.
type GroupService struct {
	repo   domain.Repository
	quotas availability.QuotaTable
}

func NewGroupService(repo domain.Repository, quotas availability.QuotaTable) *GroupService {
	return &GroupService{repo: repo, quotas: quotas}
}

func (s *GroupService) ActiveGroups() []models.ResourceGroup {
	var active []models.ResourceGroup
	for _, g := range s.repo.GetGroups() {
		if g.IsActive {
			active = append(active, g)
		}
	}
	return active
}

func (s *GroupService) GroupByName(name string) (models.ResourceGroup, bool) {
	return s.repo.GetGroupByName(name)
}

func (s *GroupService) Quota(name string) int {
	return s.quotas.For(name)
}

package service

import (
	"context"
	"fmt"
	"slices"

	"github.com/ignatij/taskflow/pkg/models"
	"github.com/ignatij/taskflow/pkg/storage"
	"github.com/pkg/errors"
)

// AssigneeScope selects the candidate pool for AvailableAssignees.
type AssigneeScope string

const (
	// DepartmentScope lists users of the task's department (reassignment pool).
	DepartmentScope AssigneeScope = "department"
	// GroupScope lists members of the task's assigned groups.
	GroupScope AssigneeScope = "group"
)

// Claim lets a user take a task that is open for claims. A failed claim
// leaves the task untouched.
func (s *TaskService) Claim(ctx context.Context, taskID, actorID string) (models.Task, error) {
	actor, err := s.resolveUser(ctx, actorID)
	if err != nil {
		return models.Task{}, err
	}
	t, err := s.mutate(ctx, taskID, func(_ storage.Store, t *models.Task) error {
		if t.IsClaimed {
			return ErrAlreadyClaimed.withMsg("task %s was already claimed by %s", t.ID, t.ClaimedBy)
		}
		if !t.IsOpenForClaims {
			return ErrNotClaimable.withMsg("task %s is not open for claims", t.ID)
		}
		now := s.now()
		t.IsClaimed = true
		t.ClaimedBy = actor.ID
		t.ClaimedAt = &now
		if !t.IsAssigned(actor.ID) {
			t.AssignedTo = append(t.AssignedTo, actor.ID)
		}
		s.appendActivity(t, models.SelfAssignedActivity, actor.ID, fmt.Sprintf("%s claimed the task", actor.Name),
			map[string]any{"via": "claim"})
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Task %s claimed by %s", taskID, actorID)
	s.notify(ctx, t.CreatedBy, actor.ID, models.TaskClaimedNotification, t.ID,
		fmt.Sprintf("%s claimed %q", actor.Name, t.Title))
	return t, nil
}

// SelfAssign adds the actor to the assignees of a group-assigned task the
// actor is a member of.
func (s *TaskService) SelfAssign(ctx context.Context, taskID, actorID string) (models.Task, error) {
	actor, err := s.resolveUser(ctx, actorID)
	if err != nil {
		return models.Task{}, err
	}
	t, err := s.mutate(ctx, taskID, func(_ storage.Store, t *models.Task) error {
		if len(t.AssignedGroups) == 0 {
			return ErrNoGroupAssignment.withMsg("task %s has no assigned groups", t.ID)
		}
		member, err := s.memberOfAny(ctx, t.AssignedGroups, actor.ID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotGroupMember.withMsg("user %s is not a member of the task's groups", actor.ID)
		}
		if t.IsAssigned(actor.ID) {
			return ErrAlreadyAssigned.withMsg("user %s is already assigned to task %s", actor.ID, t.ID)
		}
		t.AssignedTo = append(t.AssignedTo, actor.ID)
		s.appendActivity(t, models.SelfAssignedActivity, actor.ID, fmt.Sprintf("%s assigned themselves", actor.Name), nil)
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("User %s self-assigned task %s", actorID, taskID)
	s.notify(ctx, t.CreatedBy, actor.ID, models.TaskAssignedNotification, t.ID,
		fmt.Sprintf("%s assigned themselves to %q", actor.Name, t.Title))
	return t, nil
}

// AssignOther adds targetID to the assignees. Both actor and target must
// belong to one of the task's groups.
func (s *TaskService) AssignOther(ctx context.Context, taskID, actorID, targetID string) (models.Task, error) {
	actor, err := s.resolveUser(ctx, actorID)
	if err != nil {
		return models.Task{}, err
	}
	target, err := s.resolveUser(ctx, targetID)
	if err != nil {
		return models.Task{}, err
	}
	t, err := s.mutate(ctx, taskID, func(_ storage.Store, t *models.Task) error {
		if len(t.AssignedGroups) == 0 {
			return ErrNoGroupAssignment.withMsg("task %s has no assigned groups", t.ID)
		}
		member, err := s.memberOfAny(ctx, t.AssignedGroups, actor.ID)
		if err != nil {
			return err
		}
		if !member {
			return ErrNotGroupMember.withMsg("user %s is not a member of the task's groups", actor.ID)
		}
		member, err = s.memberOfAny(ctx, t.AssignedGroups, target.ID)
		if err != nil {
			return err
		}
		if !member {
			return ErrTargetNotInGroup.withMsg("user %s is not a member of the task's groups", target.ID)
		}
		if t.IsAssigned(target.ID) {
			return ErrAlreadyAssigned.withMsg("user %s is already assigned to task %s", target.ID, t.ID)
		}
		t.AssignedTo = append(t.AssignedTo, target.ID)
		s.appendActivity(t, models.AssignedActivity, actor.ID, fmt.Sprintf("assigned %s", target.Name),
			map[string]any{"assignee": target.ID})
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("User %s assigned %s to task %s", actorID, targetID, taskID)
	s.notify(ctx, target.ID, actor.ID, models.TaskAssignedNotification, t.ID,
		fmt.Sprintf("%s assigned you to %q", actor.Name, t.Title))
	return t, nil
}

// Reassign replaces the whole assignee set with targetID. At most
// models.MaxReassignments reassignments are allowed per task and the target
// must work in the task's department. The actor's role is not checked here;
// role filtering happens when candidates are listed.
func (s *TaskService) Reassign(ctx context.Context, taskID, actorID, targetID, reason string) (models.Task, error) {
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}
	target, err := s.resolveUser(ctx, targetID)
	if err != nil {
		return models.Task{}, err
	}
	t, err := s.mutate(ctx, taskID, func(_ storage.Store, t *models.Task) error {
		if t.ReassignCount >= models.MaxReassignments {
			return ErrReassignLimitReached.withMsg("task %s has already been reassigned %d times", t.ID, t.ReassignCount)
		}
		if target.Department != t.Department {
			return ErrDepartmentMismatch.withMsg("user %s works in %s, task %s belongs to %s",
				target.ID, target.Department, t.ID, t.Department)
		}
		if t.IsAssigned(target.ID) {
			return ErrAlreadyAssigned.withMsg("user %s is already assigned to task %s", target.ID, t.ID)
		}
		previous := slices.Clone(t.AssignedTo)
		now := s.now()
		t.AssignedTo = []string{target.ID}
		t.ReassignHistory = append(t.ReassignHistory, models.ReassignRecord{
			ReassignedBy: actorID,
			ReassignedTo: target.ID,
			ReassignedAt: now,
			Reason:       reason,
		})
		t.ReassignCount++
		s.appendActivity(t, models.ReassignedActivity, actorID, fmt.Sprintf("reassigned the task to %s", target.Name),
			map[string]any{
				"from":          previous,
				"to":            target.ID,
				"reason":        reason,
				"reassignCount": t.ReassignCount,
			})
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("Task %s reassigned to %s by %s (%d/%d)", taskID, targetID, actorID, t.ReassignCount, models.MaxReassignments)
	s.notify(ctx, target.ID, actorID, models.TaskReassignedNotification, t.ID,
		fmt.Sprintf("%q has been reassigned to you", t.Title))
	return t, nil
}

// Unassign removes a single user from the assignees.
func (s *TaskService) Unassign(ctx context.Context, taskID, actorID, userID string) (models.Task, error) {
	if _, err := s.resolveUser(ctx, actorID); err != nil {
		return models.Task{}, err
	}
	t, err := s.mutate(ctx, taskID, func(_ storage.Store, t *models.Task) error {
		if !t.IsAssigned(userID) {
			return ErrNotAssigned.withMsg("user %s is not assigned to task %s", userID, t.ID)
		}
		t.AssignedTo = slices.DeleteFunc(t.AssignedTo, func(id string) bool { return id == userID })
		s.appendActivity(t, models.UnassignedActivity, actorID, fmt.Sprintf("unassigned %s", userID),
			map[string]any{"assignee": userID})
		return nil
	})
	if err != nil {
		return models.Task{}, err
	}
	s.logger.Infof("User %s unassigned from task %s by %s", userID, taskID, actorID)
	return t, nil
}

// AvailableAssignees lists the users the actor may hand the task to within
// scope: not already assigned, not the actor, and holding a role the actor
// may delegate to.
func (s *TaskService) AvailableAssignees(ctx context.Context, taskID, actorID string, scope AssigneeScope) ([]models.User, error) {
	actor, err := s.resolveUser(ctx, actorID)
	if err != nil {
		return nil, err
	}
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	var filter models.UserFilter
	switch scope {
	case DepartmentScope, "":
		filter.Department = t.Department
	case GroupScope:
		members := []string{}
		for _, gid := range t.AssignedGroups {
			g, err := s.dir.GetGroup(ctx, gid)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, errors.Wrapf(err, "failed to resolve group %s", gid)
			}
			members = append(members, g.Members...)
		}
		filter.IDs = members
	default:
		return nil, invalidf("unknown assignee scope %q", scope)
	}

	users, err := s.dir.ListUsers(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list users")
	}
	users = slices.DeleteFunc(users, func(u models.User) bool {
		return u.ID == actor.ID || t.IsAssigned(u.ID)
	})
	return s.roles.FilterDelegable(users, actor.Role), nil
}

// memberOfAny reports whether userID belongs to one of groupIDs. Groups that
// no longer exist count as empty.
func (s *TaskService) memberOfAny(ctx context.Context, groupIDs []string, userID string) (bool, error) {
	for _, gid := range groupIDs {
		g, err := s.dir.GetGroup(ctx, gid)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return false, errors.Wrapf(err, "failed to resolve group %s", gid)
		}
		if slices.Contains(g.Members, userID) {
			return true, nil
		}
	}
	return false, nil
}

package models

import (
	"testing"
	"time"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"admin role", RoleAdmin, true},
		{"dispatcher role", RoleDispatcher, true},
		{"viewer role", RoleViewer, true},
		{"invalid role", "invalid", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestUser_HasPermission(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	dispatcher := &User{Role: RoleDispatcher}
	viewer := &User{Role: RoleViewer}
	unknown := &User{Role: "ghost"}

	tests := []struct {
		name     string
		user     *User
		action   string
		expected bool
	}{
		// Admin permissions - should have all permissions
		{"admin can delete user", admin, PermDeleteUser, true},
		{"admin can manage users", admin, PermManageUsers, true},
		{"admin can create assignment", admin, PermCreateAssignment, true},

		// Dispatcher runs day-to-day assignments
		{"dispatcher cannot delete user", dispatcher, PermDeleteUser, false},
		{"dispatcher cannot manage users", dispatcher, PermManageUsers, false},
		{"dispatcher can create assignment", dispatcher, PermCreateAssignment, true},
		{"dispatcher can update assignment", dispatcher, PermUpdateAssignment, true},
		{"dispatcher can deactivate assignment", dispatcher, PermDeactivateAssignment, true},
		{"dispatcher can manage fleet", dispatcher, PermManageFleet, true},
		{"dispatcher can invite users", dispatcher, PermInviteUsers, true},

		// Viewer permissions - read-only access
		{"viewer can view assignments", viewer, PermViewAssignments, true},
		{"viewer can view fleet", viewer, PermViewFleet, true},
		{"viewer can view metrics", viewer, PermViewMetrics, true},
		{"viewer cannot create assignment", viewer, PermCreateAssignment, false},
		{"viewer cannot invite users", viewer, PermInviteUsers, false},
		{"viewer cannot deactivate assignment", viewer, PermDeactivateAssignment, false},
		{"viewer cannot manage fleet", viewer, PermManageFleet, false},

		{"unknown role has nothing", unknown, PermViewAssignments, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.user.HasPermission(tt.action)
			if result != tt.expected {
				t.Errorf("User with role %s HasPermission(%s) = %v, want %v",
					tt.user.Role, tt.action, result, tt.expected)
			}
		})
	}
}

func TestUser_StructFields(t *testing.T) {
	now := time.Now()
	user := &User{
		Username:     "testuser",
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Role:         RoleDispatcher,
		IsActive:     true,
		LastLogin:    &now,
		CreatedAt:    now,
	}

	if user.Username != "testuser" {
		t.Errorf("Expected Username to be 'testuser', got %s", user.Username)
	}
	if user.Role != RoleDispatcher {
		t.Errorf("Expected Role to be RoleDispatcher, got %s", user.Role)
	}
	if !user.IsActive {
		t.Errorf("Expected IsActive to be true, got %v", user.IsActive)
	}
	if user.LastLogin == nil {
		t.Errorf("Expected LastLogin to be set, got nil")
	}
}

package service

import (
	"context"
	"strings"

	"github.com/eddyoasis/procurement-workflow/internal/application/port"
	domainwf "github.com/eddyoasis/procurement-workflow/internal/domain/workflow"
)

type staticRoleDirectory struct {
	roles map[string]port.Approver
}

// NewStaticRoleDirectory creates a RoleDirectory backed by configured role holders
func NewStaticRoleDirectory(roles map[string]port.Approver) port.RoleDirectory {
	normalized := make(map[string]port.Approver, len(roles))
	for role, approver := range roles {
		normalized[strings.ToUpper(strings.TrimSpace(role))] = port.Approver{
			Name:  strings.TrimSpace(approver.Name),
			Email: strings.TrimSpace(approver.Email),
		}
	}
	return &staticRoleDirectory{roles: normalized}
}

// Resolve fails for roles with no holder or no email address.
func (d *staticRoleDirectory) Resolve(ctx context.Context, role string) (port.Approver, error) {
	approver, ok := d.roles[strings.ToUpper(strings.TrimSpace(role))]
	if !ok || approver.Email == "" {
		return port.Approver{}, domainwf.ConfigurationMissingError("roles." + role)
	}
	if approver.Name == "" {
		approver.Name = approver.Email
	}
	return approver, nil
}

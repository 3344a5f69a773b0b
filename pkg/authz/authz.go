package authz

import (
	"fmt"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
	pkgerrors "github.com/paperhouse/warehouse-backend/pkg/errors"
)

// Capability names a guarded operation on the API surface.
type Capability string

const (
	CapUsersManage        Capability = "users:manage"
	CapWarehousesManage   Capability = "warehouses:manage"
	CapMaterialsManage    Capability = "materials:manage"
	CapMaterialsView      Capability = "materials:view"
	CapStockMove          Capability = "stock:move"
	CapCountsRecord       Capability = "counts:record"
	CapCountsApprove      Capability = "counts:approve"
	CapOrdersManage       Capability = "orders:manage"
	CapOrdersView         Capability = "orders:view"
	CapInvoicesManage     Capability = "invoices:manage"
	CapInvoicesApprove    Capability = "invoices:approve"
	CapInvoicesView       Capability = "invoices:view"
	CapMaintenanceManage  Capability = "maintenance:manage"
	CapMaintenanceRequest Capability = "maintenance:request"
	CapStatsView          Capability = "stats:view"
)

var roleCapabilities = map[enums.UserRole]map[Capability]struct{}{
	enums.UserRoleAdmin: allCapabilities(),
	enums.UserRoleManager: capabilitySet(
		CapWarehousesManage,
		CapMaterialsManage,
		CapMaterialsView,
		CapStockMove,
		CapCountsRecord,
		CapCountsApprove,
		CapOrdersManage,
		CapOrdersView,
		CapInvoicesManage,
		CapInvoicesApprove,
		CapInvoicesView,
		CapMaintenanceManage,
		CapMaintenanceRequest,
		CapStatsView,
	),
	enums.UserRoleWarehouseKeeper: capabilitySet(
		CapMaterialsManage,
		CapMaterialsView,
		CapStockMove,
		CapCountsRecord,
		CapOrdersView,
		CapMaintenanceRequest,
	),
	enums.UserRoleAccountant: capabilitySet(
		CapMaterialsView,
		CapOrdersView,
		CapInvoicesManage,
		CapInvoicesApprove,
		CapInvoicesView,
		CapStatsView,
	),
	enums.UserRoleSales: capabilitySet(
		CapMaterialsView,
		CapOrdersManage,
		CapOrdersView,
		CapInvoicesView,
		CapStatsView,
	),
}

func capabilitySet(caps ...Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

func allCapabilities() map[Capability]struct{} {
	return capabilitySet(
		CapUsersManage,
		CapWarehousesManage,
		CapMaterialsManage,
		CapMaterialsView,
		CapStockMove,
		CapCountsRecord,
		CapCountsApprove,
		CapOrdersManage,
		CapOrdersView,
		CapInvoicesManage,
		CapInvoicesApprove,
		CapInvoicesView,
		CapMaintenanceManage,
		CapMaintenanceRequest,
		CapStatsView,
	)
}

// Can reports whether the role grants the capability.
func Can(role enums.UserRole, cap Capability) bool {
	caps, ok := roleCapabilities[role]
	if !ok {
		return false
	}
	_, ok = caps[cap]
	return ok
}

// RolesWith lists every role granted the capability. Used to fan events out
// to the users who are allowed to act on them.
func RolesWith(cap Capability) []enums.UserRole {
	var roles []enums.UserRole
	for _, role := range enums.ValidUserRoles() {
		if Can(role, cap) {
			roles = append(roles, role)
		}
	}
	return roles
}

// Require returns a coded forbidden error when the role lacks the capability.
func Require(role enums.UserRole, cap Capability) error {
	if !role.IsValid() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "unknown role")
	}
	if !Can(role, cap) {
		return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("role %s lacks %s", role, cap))
	}
	return nil
}

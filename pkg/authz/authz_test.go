package authz

import (
	"testing"

	"github.com/paperhouse/warehouse-backend/pkg/enums"
	"github.com/paperhouse/warehouse-backend/pkg/errors"
)

func TestAdminHasEverything(t *testing.T) {
	caps := []Capability{
		CapUsersManage,
		CapWarehousesManage,
		CapMaterialsManage,
		CapStockMove,
		CapCountsApprove,
		CapOrdersManage,
		CapInvoicesApprove,
		CapMaintenanceManage,
		CapStatsView,
	}
	for _, cap := range caps {
		if !Can(enums.UserRoleAdmin, cap) {
			t.Fatalf("admin should hold %s", cap)
		}
	}
}

func TestRoleBoundaries(t *testing.T) {
	if Can(enums.UserRoleWarehouseKeeper, CapUsersManage) {
		t.Fatal("warehouse keeper must not manage users")
	}
	if Can(enums.UserRoleWarehouseKeeper, CapCountsApprove) {
		t.Fatal("warehouse keeper records counts but cannot approve them")
	}
	if !Can(enums.UserRoleWarehouseKeeper, CapCountsRecord) {
		t.Fatal("warehouse keeper should record counts")
	}
	if Can(enums.UserRoleSales, CapInvoicesApprove) {
		t.Fatal("sales must not approve invoices")
	}
	if !Can(enums.UserRoleSales, CapOrdersManage) {
		t.Fatal("sales should manage orders")
	}
	if !Can(enums.UserRoleAccountant, CapInvoicesApprove) {
		t.Fatal("accountant should approve invoices")
	}
	if Can(enums.UserRoleAccountant, CapStockMove) {
		t.Fatal("accountant must not move stock")
	}
}

func TestRequire(t *testing.T) {
	if err := Require(enums.UserRoleManager, CapOrdersManage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Require(enums.UserRoleSales, CapUsersManage)
	if err == nil {
		t.Fatal("expected forbidden error")
	}
	if errors.As(err).Code() != errors.CodeForbidden {
		t.Fatalf("expected forbidden code, got %s", errors.As(err).Code())
	}

	err = Require("ghost", CapOrdersView)
	if err == nil {
		t.Fatal("expected unauthorized error for unknown role")
	}
	if errors.As(err).Code() != errors.CodeUnauthorized {
		t.Fatalf("expected unauthorized code, got %s", errors.As(err).Code())
	}
}

package policy

import (
	"testing"

	"siglo-backend/internal/constants"
	roles "siglo-backend/internal/pkg/constants"

	"github.com/stretchr/testify/assert"
)

func TestAuthorize_RequiresActor(t *testing.T) {
	assert.Equal(t, ErrUnauthenticated, Authorize(nil, constants.BuyLot, nil))
	assert.Equal(t, ErrUnauthenticated, Authorize(&Actor{Role: roles.Client}, constants.BuyLot, nil))
}

func TestAuthorize_UnknownAction(t *testing.T) {
	assert.Equal(t, ErrUnknownAction, Authorize(&Actor{UserID: 1, Role: roles.Admin}, "launch_rockets", nil))
}

func TestAuthorize_RoleTable(t *testing.T) {
	client := &Actor{UserID: 2, Role: roles.Client}
	admin := &Actor{UserID: 1, Role: roles.Admin}

	for _, action := range []string{constants.BuyLot, constants.ViewPurchase, constants.RecordPayment} {
		assert.NoError(t, Authorize(client, action, nil), action)
		assert.NoError(t, Authorize(admin, action, nil), action)
	}
	for _, action := range []string{constants.ManagePurchases, constants.ManagePayments, constants.SyncLots} {
		assert.Equal(t, ErrForbidden, Authorize(client, action, nil), action)
		assert.NoError(t, Authorize(admin, action, nil), action)
	}
	assert.Equal(t, ErrForbidden, Authorize(&Actor{UserID: 3, Role: "GUEST"}, constants.BuyLot, nil))
}

func TestAuthorize_OwnerScoping(t *testing.T) {
	owner := &Actor{UserID: 2, Role: roles.Client}
	other := &Actor{UserID: 3, Role: roles.Client}
	admin := &Actor{UserID: 1, Role: roles.Admin}
	res := &Resource{OwnerID: 2}

	assert.NoError(t, Authorize(owner, constants.ViewPurchase, res))
	assert.Equal(t, ErrForbidden, Authorize(other, constants.ViewPurchase, res))
	assert.Equal(t, ErrForbidden, Authorize(other, constants.RecordPayment, res))
	assert.NoError(t, Authorize(admin, constants.RecordPayment, res))
	assert.NoError(t, Authorize(other, constants.ViewPurchase, &Resource{}))
}

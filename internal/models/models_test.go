package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusValidation(t *testing.T) {
	assert.True(t, AdminStatusAvailable.Valid())
	assert.True(t, AdminStatusWithdrawn.Valid())
	assert.False(t, AdminStatus("washing").Valid())
	assert.False(t, AdminStatus("").Valid())

	assert.True(t, BookingActive.Valid())
	assert.True(t, BookingCompleted.Valid())
	assert.True(t, BookingCancelled.Valid())
	assert.False(t, BookingStatus("pending").Valid())
}

func TestUserIsAdmin(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.IsAdmin())
	assert.False(t, (&User{Role: RoleCustomer}).IsAdmin())
	assert.True(t, (&User{Role: RoleAdmin}).IsAdmin())
}

func TestItemViewJSONFlattensItem(t *testing.T) {
	view := ItemView{
		Item:          Item{ID: "product-1", Name: "Silk dress", Code: "SD-1", DailyPrice: 25.5},
		DynamicStatus: DynamicBooked,
	}

	raw, err := json.Marshal(view)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "product-1", decoded["id"])
	assert.Equal(t, "SD-1", decoded["code"])
	assert.Equal(t, 25.5, decoded["dailyPrice"])
	assert.Equal(t, "booked", decoded["dynamicStatus"])
}

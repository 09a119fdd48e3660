package services

import (
	"context"
	"testing"

	"mesa/internal/models"
	apperrors "mesa/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignup_CreatesTenantOwnerAndTrial(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result := env.signup(t, "bistro")
	assert.Equal(t, "bistro", result.Restaurant.Code)
	assert.Equal(t, result.Restaurant.ID, result.Owner.RestaurantID)

	sub := env.subscription(t, result.Subscription.ID)
	assert.Equal(t, models.SubscriptionTrialing, sub.Status)
	assert.Equal(t, "basic", sub.Plan.Slug)
	assert.InDelta(t, 79.90, sub.Amount, 0.001)
	require.NotNil(t, sub.TrialEndsAt)
	assert.True(t, sub.TrialEndsAt.Equal(env.clock.Now().AddDate(0, 0, 14)))

	assignments, err := env.c.Assignments.ListForUser(ctx, result.Restaurant.ID, result.Owner.ID)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, models.RoleOwner, assignments[0].Role.Slug)
}

func TestSignup_RejectsDuplicatesWithoutPartialWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.signup(t, "bistro")

	_, err := env.c.Restaurants.Signup(ctx, SignupInput{
		RestaurantName:  "Another Bistro",
		RestaurantCode:  "bistro",
		RestaurantEmail: "another@example.com",
		OwnerName:       "Another Owner",
		Username:        "another_owner",
		Password:        "password123",
	})
	assertKind(t, err, apperrors.KindValidation)
	appErr, _ := apperrors.As(err)
	assert.Contains(t, appErr.Fields, "restaurant_code")

	_, err = env.c.Restaurants.Signup(ctx, SignupInput{
		RestaurantName:  "Another Bistro",
		RestaurantCode:  "another",
		RestaurantEmail: "another@example.com",
		OwnerName:       "Another Owner",
		Username:        "bistro_owner",
		Password:        "password123",
	})
	assertKind(t, err, apperrors.KindValidation)

	_, err = env.c.Repos.Restaurants.FindByCode(ctx, "another")
	assert.Error(t, err)
}

func TestSignup_FieldValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.c.Restaurants.Signup(context.Background(), SignupInput{
		RestaurantName: "B",
		RestaurantCode: "Bad Code!",
		OwnerName:      "O",
		Username:       "ok_user",
		Password:       "password123",
		PlanSlug:       "basic",
	})
	assertKind(t, err, apperrors.KindValidation)
	appErr, _ := apperrors.As(err)
	assert.Contains(t, appErr.Fields, "restaurant_name")
	assert.Contains(t, appErr.Fields, "restaurant_code")
	assert.Contains(t, appErr.Fields, "owner_name")
	assert.Contains(t, appErr.Fields, "email")

	_, err = env.c.Restaurants.Signup(context.Background(), SignupInput{
		RestaurantName:  "Bistro",
		RestaurantCode:  "bistro",
		RestaurantEmail: "bistro@example.com",
		OwnerName:       "Owner",
		Username:        "bistro_owner",
		Password:        "password123",
		PlanSlug:        "platinum",
	})
	assertKind(t, err, apperrors.KindValidation)
}

func TestRestaurantUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rid := env.signup(t, "bistro").Restaurant.ID

	name := "Bistro Deluxe"
	email := "Billing@Bistro.Example"
	updated, err := env.c.Restaurants.Update(ctx, rid, &name, &email)
	require.NoError(t, err)
	assert.Equal(t, "Bistro Deluxe", updated.Name)
	assert.Equal(t, "billing@bistro.example", updated.Email)
	assert.Equal(t, "bistro", updated.Code)

	bad := "nope"
	_, err = env.c.Restaurants.Update(ctx, rid, nil, &bad)
	assertKind(t, err, apperrors.KindValidation)
}

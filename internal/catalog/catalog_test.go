package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()
	ctx := context.Background()

	restaurants, dishes := c.Len()
	require.Equal(t, 7, restaurants)
	require.Greater(t, dishes, 20)

	r, err := c.FindRestaurant(ctx, "dominos-pizza")
	require.NoError(t, err)
	require.Equal(t, "Domino's Pizza", r.Name)
	require.NotNil(t, r.Location)

	noLoc, err := c.FindRestaurant(ctx, "santosh-pav-bhaji")
	require.NoError(t, err)
	require.Nil(t, noLoc.Location)

	d, err := c.FindDish(ctx, "dominos-margherita")
	require.NoError(t, err)
	require.Equal(t, "299", d.Price.String())
	require.Equal(t, "dominos-pizza", d.RestaurantID)
	require.True(t, d.Available)

	tea, err := c.FindDish(ctx, "momos-hut-hot-tea")
	require.NoError(t, err)
	require.False(t, tea.Available)
}

func TestCatalogNotFound(t *testing.T) {
	c := Default()
	ctx := context.Background()

	_, err := c.FindRestaurant(ctx, "nope")
	require.True(t, errors.Is(err, domain.ErrRestaurantNotFound))

	_, err = c.FindDish(ctx, "nope")
	require.True(t, errors.Is(err, domain.ErrDishNotFound))
	require.Contains(t, err.Error(), "nope")
}

func TestCatalogCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Default().FindDish(ctx, "dominos-margherita")
	require.ErrorIs(t, err, domain.ErrTransient)
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := Parse([]byte(`
restaurants:
  - id: a
    dishes:
      - {id: x, price: "10"}
  - id: b
    dishes:
      - {id: x, price: "20"}
`))
	require.ErrorContains(t, err, "duplicate dish")

	_, err = Parse([]byte(`
restaurants:
  - id: a
    dishes:
      - {id: x, price: "-1"}
`))
	require.ErrorContains(t, err, "negative price")
}

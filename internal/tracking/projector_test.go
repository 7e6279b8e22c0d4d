package tracking

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/foodtrack/internal/domain"
	"github.com/vladislavdragonenkov/foodtrack/internal/eta"
)

func newProjector(t *testing.T, maxPath int) *Projector {
	t.Helper()
	cfg := eta.DefaultConfig()
	cfg.Timezone = ""
	e, err := eta.New(cfg)
	require.NoError(t, err)
	return NewProjector(e, maxPath)
}

func outForDelivery(t *testing.T) *domain.Order {
	t.Helper()
	o := &domain.Order{
		OrderID:      "ORD1",
		RestaurantID: "1",
		Status:       domain.OrderStatusOutForDelivery,
		DeliveryAddress: domain.Address{
			Street:      "Race Course Road",
			City:        "Vadodara",
			State:       "Gujarat",
			ZipCode:     "390007",
			Coordinates: domain.Coordinates{Latitude: 22.2950, Longitude: 73.2020},
		},
		Driver: &domain.Driver{Name: "Ravi", Phone: "9876543210", VehicleNumber: "GJ06AB1234", Rating: 4.5},
	}
	require.NoError(t, o.UpdateDriverLocation(22.3072, 73.1812, "Alkapuri", offPeak()))
	return o
}

func offPeak() time.Time {
	return time.Date(2024, 3, 5, 4, 30, 0, 0, time.UTC) // 10:00 IST
}

func TestProjectOutForDelivery(t *testing.T) {
	p := newProjector(t, 0)
	o := outForDelivery(t)
	before := o.Clone()

	view := p.Project(o, offPeak())
	require.NotNil(t, view.DistanceRemainingKm)
	require.InDelta(t, 2.53, *view.DistanceRemainingKm, 0.05)
	require.NotNil(t, view.EstimatedTimeRemaining)
	require.Equal(t, 6*time.Minute, *view.EstimatedTimeRemaining)
	require.False(t, view.IsPeakHour)
	require.Len(t, view.DeliveryPath, 1)
	require.True(t, reflect.DeepEqual(before, o), "projection must not mutate the order")
}

func TestProjectWithoutDriverLocation(t *testing.T) {
	p := newProjector(t, 0)
	o := &domain.Order{OrderID: "ORD2", Status: domain.OrderStatusConfirmed}

	view := p.Project(o, offPeak())
	require.Nil(t, view.DistanceRemainingKm)
	require.Nil(t, view.EstimatedTimeRemaining)
	require.Nil(t, view.CurrentLocation)
}

func TestProjectBeforePickupHasNoRemaining(t *testing.T) {
	p := newProjector(t, 0)
	o := &domain.Order{OrderID: "ORD3", Status: domain.OrderStatusReady}
	require.NoError(t, o.UpdateDriverLocation(22.3072, 73.1812, "Alkapuri", offPeak()))

	view := p.Project(o, offPeak())
	require.NotNil(t, view.CurrentLocation)
	require.Len(t, view.DeliveryPath, 1)
	require.Nil(t, view.DistanceRemainingKm)
	require.Nil(t, view.EstimatedTimeRemaining)
}

func TestProjectDeliveredHasNoRemaining(t *testing.T) {
	p := newProjector(t, 0)
	o := outForDelivery(t)
	require.NoError(t, o.ApplyStatus(domain.OrderStatusDelivered, offPeak(), nil))

	view := p.Project(o, offPeak())
	require.Nil(t, view.DistanceRemainingKm)
	require.NotNil(t, view.ActualDeliveryTime)
}

func TestProjectTruncatesPath(t *testing.T) {
	p := newProjector(t, 2)
	o := outForDelivery(t)
	for i := 1; i <= 4; i++ {
		require.NoError(t, o.UpdateDriverLocation(22.30, 73.18+float64(i)*0.001, "", offPeak().Add(time.Duration(i)*time.Minute)))
	}

	view := p.Project(o, offPeak())
	require.Len(t, view.DeliveryPath, 2)
	require.Equal(t, o.Tracking.DeliveryPath[4], view.DeliveryPath[1])
	require.Len(t, o.Tracking.DeliveryPath, 5)
}

func TestLocationUpdate(t *testing.T) {
	p := newProjector(t, 0)
	o := outForDelivery(t)
	now := offPeak()

	upd := p.LocationUpdate(o, now)
	require.Equal(t, "Alkapuri", upd.CurrentLocation.Address)
	require.Equal(t, 6*time.Minute, upd.RemainingTime)
	require.Equal(t, now.Add(6*time.Minute), upd.UpdatedETA)
	require.Equal(t, now, upd.LastUpdate)
}

func TestPublicViewHidesFullAddress(t *testing.T) {
	p := newProjector(t, 0)
	o := outForDelivery(t)

	pub := p.Public(o, offPeak())
	require.Equal(t, "Race Course Road", pub.Street)
	require.Equal(t, "Vadodara", pub.City)
	require.Equal(t, "Ravi", pub.Driver.Name)

	pub.Driver.Name = "changed"
	require.Equal(t, "Ravi", o.Driver.Name)
}

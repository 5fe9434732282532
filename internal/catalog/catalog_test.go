package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCropNormalizesDefaults(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	c := &Crop{FarmerID: "f1", Price: 5000}
	require.NoError(t, s.CreateCrop(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := s.GetCrop(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Unnamed", got.Name)
	assert.Equal(t, "-", got.Type)
	assert.Equal(t, "-", got.Quality)
	assert.Equal(t, "Not specified", got.Location)
	assert.Equal(t, StatusAvailable, got.Status)
	assert.False(t, got.Sold)
	require.Len(t, got.Images, 1)
	assert.Equal(t, got.Images[0], got.Image)
	assert.False(t, got.ListedAt.IsZero())
}

func TestCloseCropIsOneWay(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	c := &Crop{FarmerID: "f1", Name: "Wheat", Price: 5000}
	require.NoError(t, s.CreateCrop(ctx, c))

	require.NoError(t, s.CloseCrop(ctx, c.ID, "b1", "b1@example.com", 9000))

	got, err := s.GetCrop(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, got.Status)
	assert.True(t, got.Sold)
	assert.Equal(t, "b1", got.WinnerID)
	assert.Equal(t, int64(9000), got.SoldPrice)

	err = s.CloseCrop(ctx, c.ID, "b2", "b2@example.com", 9500)
	assert.ErrorIs(t, err, ErrAlreadyClosed)

	got, err = s.GetCrop(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "b1", got.WinnerID, "closed crop must keep its winner")
}

func TestUpdateCropPartial(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	c := &Crop{FarmerID: "f1", Name: "Rice", Price: 4000, Location: "Pune"}
	require.NoError(t, s.CreateCrop(ctx, c))

	name := "Basmati Rice"
	got, err := s.UpdateCrop(ctx, c.ID, Update{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Basmati Rice", got.Name)
	assert.Equal(t, "Pune", got.Location, "unset fields stay untouched")
}

func TestSetCurrentPriceAndNotFound(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	c := &Crop{FarmerID: "f1", Name: "Corn", Price: 1000}
	require.NoError(t, s.CreateCrop(ctx, c))
	require.NoError(t, s.SetCurrentPrice(ctx, c.ID, 2000, "b7"))

	got, err := s.GetCrop(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), got.Price)
	assert.Equal(t, "b7", got.HighestBidderID)

	assert.ErrorIs(t, s.SetCurrentPrice(ctx, "missing", 10, "x"), ErrNotFound)
	_, err = s.GetCrop(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListCropsByFarmer(t *testing.T) {
	s := NewInMemory()
	ctx := context.Background()

	require.NoError(t, s.CreateCrop(ctx, &Crop{FarmerID: "f1", Name: "A"}))
	require.NoError(t, s.CreateCrop(ctx, &Crop{FarmerID: "f2", Name: "B"}))
	require.NoError(t, s.CreateCrop(ctx, &Crop{FarmerID: "f1", Name: "C"}))

	mine, err := s.ListCropsByFarmer(ctx, "f1")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := s.ListCrops(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

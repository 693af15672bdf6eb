package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/models"
	"kanzlei/insolvenzpanel/internal/utils"
)

func setupTestDBInquiry(t *testing.T, dbName string) *mongo.Database {
	return utils.SetupTestDB(t, dbName, "inquiries", "vehicles", "amtsgericht_status_history")
}

func newInquiryTestServices(db *mongo.Database) (IInquiryService, IVehicleService) {
	cfg := &config.Config{}
	vehicleSvc := NewVehicleService(db, cfg, nil)
	inquirySvc := NewInquiryService(db, cfg, vehicleSvc, nil)
	return inquirySvc, vehicleSvc
}

func testCustomer() models.Customer {
	return models.Customer{
		Type:       models.CustomerPrivate,
		Salutation: "Herr",
		FirstName:  "Max",
		LastName:   "Mustermann",
		Street:     "Musterstr. 1",
		PostalCode: "10115",
		City:       "Berlin",
		Email:      "max@example.com",
		Phone:      "+49 30 123456",
	}
}

func TestInquiryService_CreateComputesTotal(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_create")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)
	_, err = vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH2", "Audi", "A4", 11500))
	require.NoError(t, err)

	// An unknown chassis in the submission is dropped, not an error.
	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1", "CH2", "UNKNOWN"}, nil, nil)
	require.NoError(t, err)
	require.NotNil(t, inquiry)

	assert.Len(t, inquiry.SelectedVehicles, 2)
	assert.Equal(t, 20000.0, inquiry.TotalPrice)
	assert.Equal(t, models.StatusNeu, inquiry.Status)
	assert.False(t, inquiry.StatusUpdatedAt.IsZero())
	assert.Equal(t, models.SumVehiclePrices(inquiry.SelectedVehicles), inquiry.TotalPrice)
}

func TestInquiryService_CreateRejectsEmptySelection(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_create_empty")
	inquirySvc, _ := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"UNKNOWN"}, nil, nil)
	assert.Error(t, err)

	_, err = inquirySvc.CreateInquiry(ctx, testCustomer(), nil, nil, nil)
	assert.Error(t, err)
}

func TestInquiryService_SnapshotIsByValue(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_snapshot")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)

	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, nil, nil)
	require.NoError(t, err)

	// A later catalog price change must not touch the stored snapshot.
	vehicle, err := vehicleSvc.FindByChassis(ctx, "CH1")
	require.NoError(t, err)
	_, err = vehicleSvc.UpdateVehicle(ctx, vehicle.ID, map[string]interface{}{"price": 9999.0})
	require.NoError(t, err)

	reloaded, err := inquirySvc.FindInquiryByID(ctx, inquiry.ID)
	require.NoError(t, err)
	assert.Equal(t, 8500.0, reloaded.SelectedVehicles[0].Price)
	assert.Equal(t, 8500.0, reloaded.TotalPrice)
}

func TestInquiryService_UpdateStatus(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_status")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)
	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, nil, nil)
	require.NoError(t, err)

	// Unknown status is rejected before any write.
	_, err = inquirySvc.UpdateStatus(ctx, inquiry.ID, models.InquiryStatus("Erledigt"), "staff@kanzlei.de")
	assert.Error(t, err)

	// Plain transition: stamped, but no history row.
	updated, err := inquirySvc.UpdateStatus(ctx, inquiry.ID, models.StatusMoechteRGKV, "staff@kanzlei.de")
	require.NoError(t, err)
	assert.Equal(t, models.StatusMoechteRGKV, updated.Status)
	assert.True(t, !updated.StatusUpdatedAt.Before(inquiry.StatusUpdatedAt))

	history, err := inquirySvc.ListStatusHistory(ctx, inquiry.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// Entering the Amtsgericht family appends exactly one row.
	updated, err = inquirySvc.UpdateStatus(ctx, inquiry.ID, models.StatusAmtsgericht, "staff@kanzlei.de")
	require.NoError(t, err)

	history, err = inquirySvc.ListStatusHistory(ctx, inquiry.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.StatusMoechteRGKV, history[0].OldStatus)
	assert.Equal(t, models.StatusAmtsgericht, history[0].NewStatus)
	assert.Equal(t, "staff@kanzlei.de", history[0].Actor)
	assert.Equal(t, "Max Mustermann", history[0].InquiryName)

	// Movement within the family is audited too.
	_, err = inquirySvc.UpdateStatus(ctx, inquiry.ID, models.StatusAmtsgerichtReady, "staff@kanzlei.de")
	require.NoError(t, err)

	// Leaving the family is audited.
	_, err = inquirySvc.UpdateStatus(ctx, inquiry.ID, models.StatusRGKVGesendet, "staff@kanzlei.de")
	require.NoError(t, err)

	history, err = inquirySvc.ListStatusHistory(ctx, inquiry.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	// A repeat write of the same status appends nothing.
	before := len(history)
	_, err = inquirySvc.UpdateStatus(ctx, inquiry.ID, models.StatusRGKVGesendet, "staff@kanzlei.de")
	require.NoError(t, err)
	history, err = inquirySvc.ListStatusHistory(ctx, inquiry.ID)
	require.NoError(t, err)
	assert.Len(t, history, before)
}

func TestInquiryService_SetDiscount(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_discount")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)
	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, nil, nil)
	require.NoError(t, err)

	_, err = inquirySvc.SetDiscount(ctx, inquiry.ID, -0.1, "staff@kanzlei.de")
	assert.Error(t, err)
	_, err = inquirySvc.SetDiscount(ctx, inquiry.ID, 100.1, "staff@kanzlei.de")
	assert.Error(t, err)

	updated, err := inquirySvc.SetDiscount(ctx, inquiry.ID, 15.26, "staff@kanzlei.de")
	require.NoError(t, err)
	require.NotNil(t, updated.DiscountPercentage)
	assert.Equal(t, 15.3, *updated.DiscountPercentage)
	assert.Equal(t, "staff@kanzlei.de", updated.DiscountGrantedBy)
	require.NotNil(t, updated.DiscountGrantedAt)

	// The discount is metadata only, total stays the vehicle sum.
	assert.Equal(t, 8500.0, updated.TotalPrice)

	// Boundary values are accepted.
	updated, err = inquirySvc.SetDiscount(ctx, inquiry.ID, 0, "staff@kanzlei.de")
	require.NoError(t, err)
	assert.Equal(t, 0.0, *updated.DiscountPercentage)
	updated, err = inquirySvc.SetDiscount(ctx, inquiry.ID, 100, "staff@kanzlei.de")
	require.NoError(t, err)
	assert.Equal(t, 100.0, *updated.DiscountPercentage)
}

func TestInquiryService_UpdateVehicleSelection(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_reselect")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)
	_, err = vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH2", "Audi", "A4", 11500))
	require.NoError(t, err)

	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, nil, nil)
	require.NoError(t, err)

	// Reselect both vehicles: snapshots rebuilt from the current catalog.
	updated, err := inquirySvc.UpdateVehicleSelection(ctx, inquiry.ID, []string{"CH1", "CH2"})
	require.NoError(t, err)
	assert.Len(t, updated.SelectedVehicles, 2)
	assert.Equal(t, 20000.0, updated.TotalPrice)

	// A catalog price edit flows into the next reselection.
	vehicle, err := vehicleSvc.FindByChassis(ctx, "CH1")
	require.NoError(t, err)
	_, err = vehicleSvc.UpdateVehicle(ctx, vehicle.ID, map[string]interface{}{"price": 8000.0})
	require.NoError(t, err)

	updated, err = inquirySvc.UpdateVehicleSelection(ctx, inquiry.ID, []string{"CH1", "CH2"})
	require.NoError(t, err)
	assert.Equal(t, 19500.0, updated.TotalPrice)
	assert.Equal(t, models.SumVehiclePrices(updated.SelectedVehicles), updated.TotalPrice)

	// Saving the same set again changes nothing.
	again, err := inquirySvc.UpdateVehicleSelection(ctx, inquiry.ID, []string{"CH1", "CH2"})
	require.NoError(t, err)
	assert.Equal(t, updated.TotalPrice, again.TotalPrice)
	assert.Equal(t, updated.SelectedVehicles, again.SelectedVehicles)

	// A chassis deleted from the catalog is dropped from the rebuilt set.
	err = vehicleSvc.DeleteVehicle(ctx, vehicle.ID)
	require.NoError(t, err)
	updated, err = inquirySvc.UpdateVehicleSelection(ctx, inquiry.ID, []string{"CH1", "CH2"})
	require.NoError(t, err)
	assert.Len(t, updated.SelectedVehicles, 1)
	assert.Equal(t, 11500.0, updated.TotalPrice)

	// A selection resolving to nothing is rejected.
	_, err = inquirySvc.UpdateVehicleSelection(ctx, inquiry.ID, []string{"CH1"})
	assert.Error(t, err)
	_, err = inquirySvc.UpdateVehicleSelection(ctx, inquiry.ID, nil)
	assert.Error(t, err)
}

func TestInquiryService_UpdateCustomerAndFlags(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_customer")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)
	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, nil, nil)
	require.NoError(t, err)

	customer := testCustomer()
	customer.LastName = "Meier"
	updated, err := inquirySvc.UpdateCustomer(ctx, inquiry.ID, customer)
	require.NoError(t, err)
	assert.Equal(t, "Meier", updated.Customer.LastName)

	err = inquirySvc.SetCallPriority(ctx, inquiry.ID, true)
	require.NoError(t, err)
	err = inquirySvc.SetCaseNumber(ctx, inquiry.ID, "IN 123/26")
	require.NoError(t, err)

	reloaded, err := inquirySvc.FindInquiryByID(ctx, inquiry.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CallPriority)
	assert.Equal(t, "IN 123/26", reloaded.CaseNumber)

	err = inquirySvc.SetCallPriority(ctx, utils.NewSixID(), true)
	assert.Error(t, err)
}

func TestInquiryService_ListByBrandingAndStatus(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_inquiry_list")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)

	brandingA := utils.NewSixID()
	brandingB := utils.NewSixID()

	first, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, &brandingA, nil)
	require.NoError(t, err)
	_, err = inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, &brandingB, nil)
	require.NoError(t, err)

	_, err = inquirySvc.UpdateStatus(ctx, first.ID, models.StatusBezahlt, "staff@kanzlei.de")
	require.NoError(t, err)

	all, err := inquirySvc.ListInquiries(ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scopedA, err := inquirySvc.ListInquiries(ctx, &brandingA, nil)
	require.NoError(t, err)
	require.Len(t, scopedA, 1)
	assert.Equal(t, first.ID, scopedA[0].ID)

	paid := models.StatusBezahlt
	byStatus, err := inquirySvc.ListInquiries(ctx, nil, &paid)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, first.ID, byStatus[0].ID)
}

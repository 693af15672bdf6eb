package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanzlei/insolvenzpanel/internal/config"
	"kanzlei/insolvenzpanel/internal/utils"
)

func TestTransferService_Success(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_transfer_success")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)
	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, nil, nil)
	require.NoError(t, err)
	_, err = inquirySvc.SetDiscount(ctx, inquiry.ID, 10, "staff@kanzlei.de")
	require.NoError(t, err)

	var received transferPayload
	var gotApiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotApiKey = r.Header.Get("X-Api-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := &config.Config{BestellungApiURL: server.URL, BestellungApiKey: "secret"}
	svc := NewTransferService(cfg, inquirySvc, nil, server.Client())

	err = svc.TransferInquiry(ctx, inquiry.ID)
	require.NoError(t, err)

	assert.Equal(t, "secret", gotApiKey)
	assert.Equal(t, "Mustermann", received.LastName)
	assert.Equal(t, []string{"R-CH1"}, received.ReportNumbers)
	require.NotNil(t, received.DiscountPercentage)
	assert.Equal(t, 10.0, *received.DiscountPercentage)
}

func TestTransferService_FailureModes(t *testing.T) {
	db := setupTestDBInquiry(t, "testdb_transfer_failure")
	inquirySvc, vehicleSvc := newInquiryTestServices(db)
	ctx := context.Background()

	_, err := vehicleSvc.CreateVehicle(ctx, newTestVehicle("CH1", "VW", "Golf", 8500))
	require.NoError(t, err)
	inquiry, err := inquirySvc.CreateInquiry(ctx, testCustomer(), []string{"CH1"}, nil, nil)
	require.NoError(t, err)

	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "partner down", http.StatusBadGateway)
	}))
	defer server.Close()

	cfg := &config.Config{BestellungApiURL: server.URL}
	svc := NewTransferService(cfg, inquirySvc, nil, server.Client())

	err = svc.TransferInquiry(ctx, inquiry.ID)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "no automatic retry")

	// Unconfigured endpoint fails without touching the partner.
	unconfigured := NewTransferService(&config.Config{}, inquirySvc, nil, nil)
	err = unconfigured.TransferInquiry(ctx, inquiry.ID)
	assert.Error(t, err)

	// Unknown inquiry fails before any request.
	err = svc.TransferInquiry(ctx, utils.NewSixID())
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

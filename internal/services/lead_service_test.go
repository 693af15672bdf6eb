package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kanzlei/insolvenzpanel/internal/utils"
)

func TestLeadService_CampaignAndLeadLifecycle(t *testing.T) {
	db := utils.SetupTestDB(t, "testdb_lead_service", "lead_campaigns", "leads", "lead_reserved_vehicles")
	svc := NewLeadService(db)
	ctx := context.Background()
	brandingID := utils.NewSixID()

	campaign, err := svc.CreateCampaign(ctx, brandingID, "Herbstaktion 2026")
	require.NoError(t, err)

	_, err = svc.CreateCampaign(ctx, brandingID, "")
	assert.Error(t, err)

	lead, password, err := svc.CreateLead(ctx, campaign.ID, "Kunde@Example.COM")
	require.NoError(t, err)
	assert.NotEmpty(t, password)
	assert.Equal(t, "kunde@example.com", lead.Email, "email is normalized")
	assert.NotEqual(t, password, lead.PasswordHash, "only the hash is stored")

	// Verification succeeds with the generated password, case-insensitive email.
	verified, err := svc.VerifyLeadPassword(ctx, "KUNDE@example.com", password)
	require.NoError(t, err)
	assert.Equal(t, lead.ID, verified.ID)

	// Wrong password and unknown email fail identically.
	_, err = svc.VerifyLeadPassword(ctx, "kunde@example.com", "wrong")
	assert.ErrorIs(t, err, ErrLeadAuthFailed)
	_, err = svc.VerifyLeadPassword(ctx, "nobody@example.com", password)
	assert.ErrorIs(t, err, ErrLeadAuthFailed)

	leads, err := svc.ListLeads(ctx, campaign.ID)
	require.NoError(t, err)
	assert.Len(t, leads, 1)

	campaigns, err := svc.ListCampaigns(ctx, &brandingID)
	require.NoError(t, err)
	assert.Len(t, campaigns, 1)
}

func TestLeadService_ReservedVehicles(t *testing.T) {
	db := utils.SetupTestDB(t, "testdb_lead_service_reserved", "lead_campaigns", "leads", "lead_reserved_vehicles")
	svc := NewLeadService(db)
	ctx := context.Background()
	leadID := utils.NewSixID()

	require.NoError(t, svc.ReserveVehicle(ctx, leadID, "CH1"))
	require.NoError(t, svc.ReserveVehicle(ctx, leadID, "CH2"))
	// Reserving the same chassis twice is a no-op.
	require.NoError(t, svc.ReserveVehicle(ctx, leadID, "CH1"))

	assert.Error(t, svc.ReserveVehicle(ctx, leadID, ""))

	reserved, err := svc.ListReservedVehicles(ctx, leadID)
	require.NoError(t, err)
	assert.Len(t, reserved, 2)
}

func TestLeadService_LinkInquiry(t *testing.T) {
	db := utils.SetupTestDB(t, "testdb_lead_service_link", "lead_campaigns", "leads")
	svc := NewLeadService(db)
	ctx := context.Background()

	campaign, err := svc.CreateCampaign(ctx, utils.NewSixID(), "Kampagne")
	require.NoError(t, err)
	lead, _, err := svc.CreateLead(ctx, campaign.ID, "kunde@example.com")
	require.NoError(t, err)

	inquiryID := utils.NewSixID()
	require.NoError(t, svc.LinkInquiry(ctx, lead.ID, inquiryID))

	linked, err := svc.FindLeadByID(ctx, lead.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.InquiryID)
	assert.Equal(t, inquiryID, *linked.InquiryID)

	// Relinking to the same inquiry is tolerated, a different one is not.
	assert.NoError(t, svc.LinkInquiry(ctx, lead.ID, inquiryID))
	assert.Error(t, svc.LinkInquiry(ctx, lead.ID, utils.NewSixID()))

	assert.Error(t, svc.LinkInquiry(ctx, utils.NewSixID(), inquiryID))
}

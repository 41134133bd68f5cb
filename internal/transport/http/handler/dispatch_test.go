package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/school-notify-api/internal/application/dispatch"
	"github.com/school-notify-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockDispatchSvc struct{ mock.Mock }

func (m *mockDispatchSvc) SendToRecipients(ctx context.Context, req domain.SendRequest) (*dispatch.Report, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*dispatch.Report)
	return r, args.Error(1)
}
func (m *mockDispatchSvc) NotifyAllSchoolUsers(ctx context.Context, req domain.BroadcastRequest) (*dispatch.BroadcastReport, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*dispatch.BroadcastReport)
	return r, args.Error(1)
}
func (m *mockDispatchSvc) NotifyGuardians(ctx context.Context, req domain.GuardianRequest) (*dispatch.Report, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*dispatch.Report)
	return r, args.Error(1)
}

func TestSendHandler_Success(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("SendToRecipients", mock.Anything, mock.MatchedBy(func(r domain.SendRequest) bool {
		return len(r.IDs) == 2 && r.Data["n"] == "1"
	})).Return(&dispatch.Report{
		Resolved: 2, Delivered: 1, Failed: 1, Recorded: 2,
		Outcomes: []domain.DeliveryOutcome{
			{RecipientID: "S1", Status: domain.OutcomeSent, Address: "tok1"},
			{RecipientID: "S2", Status: domain.OutcomeFailed, Error: "boom", Address: "tok2"},
		},
	}, nil)

	rr := httptest.NewRecorder()
	NewDispatchHandler(svc).Send(rr, jsonRequest(http.MethodPost, "/v1/send-notifications",
		`{"ids":["S1","S2"],"title":"T","body":"B","data":{"n":1}}`))
	require.Equal(t, http.StatusOK, rr.Code)

	var env DispatchEnvelope
	require.NoError(t, decodeBody(rr, &env))
	assert.Equal(t, 2, env.SentTo)
	assert.Equal(t, 1, env.Delivered)
	assert.Equal(t, 1, env.Failed)
	assert.Nil(t, env.TotalSchoolUsers)
	assert.NotContains(t, rr.Body.String(), "tok1")
}

func TestSendHandler_InvalidIDs(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("SendToRecipients", mock.Anything, mock.Anything).Return(nil, &domain.InvalidRecipientsError{IDs: []string{"S999"}})

	rr := httptest.NewRecorder()
	NewDispatchHandler(svc).Send(rr, jsonRequest(http.MethodPost, "/v1/send-notifications", `{"ids":["S100","S999"],"title":"T","body":"B"}`))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	var env InvalidIDsEnvelope
	require.NoError(t, decodeBody(rr, &env))
	assert.Equal(t, []string{"S999"}, env.InvalidIDs)
}

func TestSendHandler_NonObjectData(t *testing.T) {
	rr := httptest.NewRecorder()
	NewDispatchHandler(&mockDispatchSvc{}).Send(rr, jsonRequest(http.MethodPost, "/v1/send-notifications", `{"ids":["S1"],"title":"T","body":"B","data":[1]}`))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestNotifyAllHandler(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("NotifyAllSchoolUsers", mock.Anything, domain.BroadcastRequest{Title: "T", Body: "B"}).Return(&dispatch.BroadcastReport{
		Report:               &dispatch.Report{Resolved: 2, Delivered: 2, Recorded: 2},
		TotalSchoolUsers:     10,
		TotalRegisteredUsers: 4,
	}, nil)

	rr := httptest.NewRecorder()
	NewDispatchHandler(svc).NotifyAll(rr, jsonRequest(http.MethodPost, "/v1/notify-all-school-users", `{"title":"T","body":"B"}`))
	require.Equal(t, http.StatusOK, rr.Code)

	var env DispatchEnvelope
	require.NoError(t, decodeBody(rr, &env))
	require.NotNil(t, env.TotalSchoolUsers)
	assert.Equal(t, 10, *env.TotalSchoolUsers)
	assert.Equal(t, 4, *env.TotalRegisteredUsers)
	assert.Equal(t, 2, env.SentTo)
	assert.NotNil(t, env.Outcomes)
}

func TestNotifyAllHandler_NoRecipients(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("NotifyAllSchoolUsers", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("no valid users found: %w", domain.ErrNotFound))
	rr := httptest.NewRecorder()
	NewDispatchHandler(svc).NotifyAll(rr, jsonRequest(http.MethodPost, "/v1/notify-all-school-users", `{"title":"T","body":"B"}`))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestNotifyGuardiansHandler_NoGuardian(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("NotifyGuardians", mock.Anything, mock.Anything).Return(nil, fmt.Errorf("no guardian registered for student: %w", domain.ErrNotFound))
	rr := httptest.NewRecorder()
	NewDispatchHandler(svc).NotifyGuardians(rr, jsonRequest(http.MethodPost, "/v1/notify", `{"studentId":"S1","title":"T","body":"B"}`))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

package events_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	eventdb "relief-tokens/internal/events/db"
	events "relief-tokens/internal/events/service"
	"relief-tokens/internal/models"
)

type MockEventDBLayer struct {
	mock.Mock
}

func (m *MockEventDBLayer) CreateEvent(name string) (*models.Event, error) {
	args := m.Called(name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventDBLayer) GetEventByID(id int64) (*models.Event, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventDBLayer) SetEventStatus(id int64, status string) (*models.Event, error) {
	args := m.Called(id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventDBLayer) ListEventStats() ([]models.EventStats, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.EventStats), args.Error(1)
}

func (m *MockEventDBLayer) EventStats(id int64) (*models.EventStats, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventStats), args.Error(1)
}

type MockHouseDBLayer struct {
	mock.Mock
}

func (m *MockHouseDBLayer) ListHouses() ([]models.House, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.House), args.Error(1)
}

type MockTokenIssuer struct {
	mock.Mock
}

func (m *MockTokenIssuer) Issue(eventID, houseID int64) (*models.Token, error) {
	args := m.Called(eventID, houseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Token), args.Error(1)
}

type MockTokenQueries struct {
	mock.Mock
}

func (m *MockTokenQueries) HouseIDsWithTokens(eventID int64) ([]int64, error) {
	args := m.Called(eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func (m *MockTokenQueries) EventTokenRows(eventID int64) ([]models.Token, error) {
	args := m.Called(eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Token), args.Error(1)
}

func newEventService(db *MockEventDBLayer, houses *MockHouseDBLayer, issuer *MockTokenIssuer, tokens *MockTokenQueries) *events.EventService {
	return events.NewEventService(db, houses, issuer, tokens, nil)
}

func threeHouses() []models.House {
	return []models.House{
		{ID: 1, HouseCode: "H-001", OwnerName: "Owner One"},
		{ID: 2, HouseCode: "H-002", OwnerName: "Owner Two"},
		{ID: 3, HouseCode: "H-003", OwnerName: "Owner Three"},
	}
}

func TestIssueTokensOnePerHouse(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	mockHouses := new(MockHouseDBLayer)
	mockIssuer := new(MockTokenIssuer)
	mockTokens := new(MockTokenQueries)
	svc := newEventService(mockDB, mockHouses, mockIssuer, mockTokens)

	mockDB.On("GetEventByID", int64(1)).Return(&models.Event{ID: 1, Status: models.EventActive}, nil)
	mockHouses.On("ListHouses").Return(threeHouses(), nil)
	mockTokens.On("HouseIDsWithTokens", int64(1)).Return([]int64{}, nil)
	for _, id := range []int64{1, 2, 3} {
		mockIssuer.On("Issue", int64(1), id).Return(&models.Token{EventID: 1, HouseID: id, TokenCode: "CODE"}, nil).Once()
	}

	summary, err := svc.IssueTokensForEvent(1)
	assert.NoError(t, err)
	assert.Equal(t, 3, summary.Houses)
	assert.Equal(t, 3, summary.Issued)
	assert.Equal(t, 0, summary.Skipped)
	mockIssuer.AssertExpectations(t)
}

func TestIssueTokensSkipsCoveredHouses(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	mockHouses := new(MockHouseDBLayer)
	mockIssuer := new(MockTokenIssuer)
	mockTokens := new(MockTokenQueries)
	svc := newEventService(mockDB, mockHouses, mockIssuer, mockTokens)

	mockDB.On("GetEventByID", int64(1)).Return(&models.Event{ID: 1, Status: models.EventActive}, nil)
	mockHouses.On("ListHouses").Return(threeHouses(), nil)
	mockTokens.On("HouseIDsWithTokens", int64(1)).Return([]int64{1, 3}, nil)
	mockIssuer.On("Issue", int64(1), int64(2)).Return(&models.Token{EventID: 1, HouseID: 2, TokenCode: "CODE"}, nil).Once()

	summary, err := svc.IssueTokensForEvent(1)
	assert.NoError(t, err)
	assert.Equal(t, 1, summary.Issued)
	assert.Equal(t, 2, summary.Skipped)
	// Houses already holding a live token never reach the issuer
	mockIssuer.AssertNotCalled(t, "Issue", int64(1), int64(1))
	mockIssuer.AssertNotCalled(t, "Issue", int64(1), int64(3))
}

func TestIssueTokensEventNotFound(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	svc := newEventService(mockDB, new(MockHouseDBLayer), new(MockTokenIssuer), new(MockTokenQueries))

	mockDB.On("GetEventByID", int64(42)).Return(nil, eventdb.ErrNotFound)

	_, err := svc.IssueTokensForEvent(42)
	assert.ErrorIs(t, err, eventdb.ErrNotFound)
}

func TestIssueTokensAbortsOnIssuerError(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	mockHouses := new(MockHouseDBLayer)
	mockIssuer := new(MockTokenIssuer)
	mockTokens := new(MockTokenQueries)
	svc := newEventService(mockDB, mockHouses, mockIssuer, mockTokens)

	mockDB.On("GetEventByID", int64(1)).Return(&models.Event{ID: 1, Status: models.EventActive}, nil)
	mockHouses.On("ListHouses").Return(threeHouses(), nil)
	mockTokens.On("HouseIDsWithTokens", int64(1)).Return([]int64{}, nil)
	mockIssuer.On("Issue", int64(1), int64(1)).Return(&models.Token{EventID: 1, HouseID: 1, TokenCode: "CODE"}, nil).Once()
	mockIssuer.On("Issue", int64(1), int64(2)).Return(nil, errors.New("could not allocate unique code")).Once()

	summary, err := svc.IssueTokensForEvent(1)
	assert.Error(t, err)
	// Partial summary reports how far the run got
	assert.Equal(t, 1, summary.Issued)
	mockIssuer.AssertNotCalled(t, "Issue", int64(1), int64(3))
}

func TestCreateEventIssuesTokens(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	mockHouses := new(MockHouseDBLayer)
	mockIssuer := new(MockTokenIssuer)
	mockTokens := new(MockTokenQueries)
	svc := newEventService(mockDB, mockHouses, mockIssuer, mockTokens)

	created := &models.Event{ID: 7, Name: "Round 2", Status: models.EventActive}
	mockDB.On("CreateEvent", "Round 2").Return(created, nil)
	mockDB.On("GetEventByID", int64(7)).Return(created, nil)
	mockHouses.On("ListHouses").Return(threeHouses(), nil)
	mockTokens.On("HouseIDsWithTokens", int64(7)).Return([]int64{}, nil)
	for _, id := range []int64{1, 2, 3} {
		mockIssuer.On("Issue", int64(7), id).Return(&models.Token{EventID: 7, HouseID: id, TokenCode: "CODE"}, nil).Once()
	}

	event, summary, err := svc.CreateEvent("Round 2")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), event.ID)
	assert.Equal(t, 3, summary.Issued)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	svc := newEventService(mockDB, new(MockHouseDBLayer), new(MockTokenIssuer), new(MockTokenQueries))

	_, err := svc.SetStatus(1, "archived")
	assert.ErrorIs(t, err, events.ErrInvalidStatus)
	mockDB.AssertNotCalled(t, "SetEventStatus", mock.Anything, mock.Anything)
}

func TestSetStatusClosesEvent(t *testing.T) {
	mockDB := new(MockEventDBLayer)
	svc := newEventService(mockDB, new(MockHouseDBLayer), new(MockTokenIssuer), new(MockTokenQueries))

	closed := &models.Event{ID: 1, Name: "Round 1", Status: models.EventClosed}
	mockDB.On("SetEventStatus", int64(1), models.EventClosed).Return(closed, nil)

	event, err := svc.SetStatus(1, models.EventClosed)
	assert.NoError(t, err)
	assert.Equal(t, models.EventClosed, event.Status)
}

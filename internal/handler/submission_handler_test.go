package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carddex/carddex-api/internal/dto"
	"github.com/carddex/carddex-api/internal/middleware"
	"github.com/carddex/carddex-api/internal/models"
	appErrors "github.com/carddex/carddex-api/pkg/errors"
)

type submissionServiceMock struct {
	submitResp   *dto.CreateSubmissionResponse
	submitErr    error
	getResp      *models.Submission
	getErr       error
	listResp     []models.Submission
	queueResp    []models.ReviewQueueItem
	queueErr     error
	lastQuery    dto.SubmissionQuery
	lastKind     models.EntityKind
	submitCalled bool
}

func (m *submissionServiceMock) Submit(ctx context.Context, req dto.CreateSubmissionRequest, claims *models.JWTClaims) (*dto.CreateSubmissionResponse, error) {
	m.submitCalled = true
	return m.submitResp, m.submitErr
}

func (m *submissionServiceMock) Get(ctx context.Context, id string, claims *models.JWTClaims) (*models.Submission, error) {
	return m.getResp, m.getErr
}

func (m *submissionServiceMock) List(ctx context.Context, query dto.SubmissionQuery, claims *models.JWTClaims) ([]models.Submission, error) {
	m.lastQuery = query
	return m.listResp, nil
}

func (m *submissionServiceMock) Queue(ctx context.Context, kind models.EntityKind, page int, claims *models.JWTClaims) ([]models.ReviewQueueItem, error) {
	m.lastKind = kind
	return m.queueResp, m.queueErr
}

type reviewServiceMock struct {
	approveResp *dto.ReviewResponse
	approveErr  error
	rejectResp  *dto.ReviewResponse
	rejectErr   error
	lastID      string
	lastNotes   string
}

func (m *reviewServiceMock) Approve(ctx context.Context, id string, req dto.ReviewRequest, claims *models.JWTClaims) (*dto.ReviewResponse, error) {
	m.lastID = id
	m.lastNotes = req.Notes
	return m.approveResp, m.approveErr
}

func (m *reviewServiceMock) Reject(ctx context.Context, id string, req dto.ReviewRequest, claims *models.JWTClaims) (*dto.ReviewResponse, error) {
	m.lastID = id
	m.lastNotes = req.Notes
	return m.rejectResp, m.rejectErr
}

func testContext(t *testing.T, method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req, err := http.NewRequest(method, target, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestSubmissionHandlerCreate(t *testing.T) {
	mockSvc := &submissionServiceMock{
		submitResp: &dto.CreateSubmissionResponse{
			Submission: &models.Submission{ID: "sub-1", Status: models.SubmissionStatusPending},
		},
	}
	h := NewSubmissionHandler(mockSvc, &reviewServiceMock{})

	body := `{"entityKind":"SET","fields":{"name":"Topps","year":2023,"sport":"baseball"}}`
	c, w := testContext(t, http.MethodPost, "/submissions", body, &models.JWTClaims{UserID: "member-1", Role: models.RoleMember})

	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
}

func TestSubmissionHandlerCreateInvalidBody(t *testing.T) {
	h := NewSubmissionHandler(&submissionServiceMock{}, &reviewServiceMock{})
	c, w := testContext(t, http.MethodPost, "/submissions", `{"entityKind":`, &models.JWTClaims{UserID: "member-1", Role: models.RoleMember})

	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmissionHandlerCreateDuplicateSurfacesConflict(t *testing.T) {
	mockSvc := &submissionServiceMock{submitErr: appErrors.ErrDuplicateSubmission}
	h := NewSubmissionHandler(mockSvc, &reviewServiceMock{})

	body := `{"entityKind":"SET","fields":{"name":"Topps","year":2023,"sport":"baseball"}}`
	c, w := testContext(t, http.MethodPost, "/submissions", body, &models.JWTClaims{UserID: "member-1", Role: models.RoleMember})

	h.Create(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissionHandlerListParsesQuery(t *testing.T) {
	mockSvc := &submissionServiceMock{}
	h := NewSubmissionHandler(mockSvc, &reviewServiceMock{})

	c, w := testContext(t, http.MethodGet, "/submissions?kind=card&status=pending,approved&page=2", "", &models.JWTClaims{UserID: "member-1", Role: models.RoleMember})

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindCard, mockSvc.lastQuery.Kind)
	assert.Equal(t, []models.SubmissionStatus{models.SubmissionStatusPending, models.SubmissionStatusApproved}, mockSvc.lastQuery.Status)
	assert.Equal(t, 2, mockSvc.lastQuery.Page)
}

func TestSubmissionHandlerQueue(t *testing.T) {
	mockSvc := &submissionServiceMock{
		queueResp: []models.ReviewQueueItem{{Submission: models.Submission{ID: "sub-1"}}},
	}
	h := NewSubmissionHandler(mockSvc, &reviewServiceMock{})

	c, w := testContext(t, http.MethodGet, "/submissions/queue?kind=player", "", &models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator})

	h.Queue(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindPlayer, mockSvc.lastKind)
}

func TestSubmissionHandlerApprove(t *testing.T) {
	created := int64(42)
	mockReview := &reviewServiceMock{
		approveResp: &dto.ReviewResponse{
			Submission:      &models.Submission{ID: "sub-1", Status: models.SubmissionStatusApproved},
			CreatedEntityID: &created,
		},
	}
	h := NewSubmissionHandler(&submissionServiceMock{}, mockReview)

	c, w := testContext(t, http.MethodPost, "/submissions/sub-1/approve", `{"notes":"checks out"}`, &models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator})
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	h.Approve(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "sub-1", mockReview.lastID)
	assert.Equal(t, "checks out", mockReview.lastNotes)
}

func TestSubmissionHandlerRejectConflict(t *testing.T) {
	mockReview := &reviewServiceMock{rejectErr: appErrors.ErrInvalidState}
	h := NewSubmissionHandler(&submissionServiceMock{}, mockReview)

	c, w := testContext(t, http.MethodPost, "/submissions/sub-1/reject", `{"notes":"duplicate"}`, &models.JWTClaims{UserID: "mod-1", Role: models.RoleModerator})
	c.Params = gin.Params{{Key: "id", Value: "sub-1"}}

	h.Reject(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestSubmissionHandlerGetUnauthorized(t *testing.T) {
	h := NewSubmissionHandler(&submissionServiceMock{}, &reviewServiceMock{})
	c, w := testContext(t, http.MethodGet, "/submissions/sub-1", "", nil)

	h.Get(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

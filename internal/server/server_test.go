package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"sit/internal/middleware"
	"sit/internal/models"
	"sit/internal/service"
	"sit/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*fiber.App, *testutil.UserRepoStub, *testutil.SitRepoStub) {
	t.Helper()
	userRepo := testutil.NewUserRepoStub()
	sitRepo := testutil.NewSitRepoStub()

	s := &Server{
		userRepo: userRepo,
		sitRepo:  sitRepo,
	}
	s.userService = service.NewUserService(userRepo, sitRepo)
	s.sitService = service.NewSitService(sitRepo, userRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})
	s.SetupRoutes(app)
	return app, userRepo, sitRepo
}

func doJSON(t *testing.T, app *fiber.App, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, payload
}

func createTestUser(t *testing.T, app *fiber.App, id, username string) models.User {
	t.Helper()
	resp, body := doJSON(t, app, fiber.MethodPost, "/add_user", fiber.Map{
		"id":       id,
		"username": username,
		"name":     "Test User",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var user models.User
	require.NoError(t, json.Unmarshal(body, &user))
	return user
}

func createTestSit(t *testing.T, app *fiber.App, text, createdBy string) models.Sit {
	t.Helper()
	resp, body := doJSON(t, app, fiber.MethodPost, "/add_sit", fiber.Map{
		"text":      text,
		"createdBy": createdBy,
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var sit models.Sit
	require.NoError(t, json.Unmarshal(body, &sit))
	return sit
}

func decodeError(t *testing.T, body []byte) models.ErrorResponse {
	t.Helper()
	var er models.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	return er
}

func TestAddUserEndpoint(t *testing.T) {
	app, _, _ := newTestServer(t)

	user := createTestUser(t, app, "u1", "jane_doe")
	assert.Equal(t, "jane_doe", user.Username)

	t.Run("Duplicate ID Conflicts", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPost, "/add_user", fiber.Map{
			"id":       "u1",
			"username": "other_name",
			"name":     "Other",
		})
		assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
		assert.Equal(t, string(models.KindConflict), decodeError(t, body).Kind)
	})

	t.Run("Missing Fields Rejected", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPost, "/add_user", fiber.Map{"id": "u2"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, string(models.KindValidation), decodeError(t, body).Kind)
	})
}

func TestUserLookupEndpoints(t *testing.T) {
	app, _, _ := newTestServer(t)
	createTestUser(t, app, "u1", "jane_doe")

	t.Run("Find By Username", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/find/jane_doe", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		var user models.User
		require.NoError(t, json.Unmarshal(body, &user))
		assert.Equal(t, "u1", user.UserID)
	})

	t.Run("Find By ID", func(t *testing.T) {
		resp, _ := doJSON(t, app, fiber.MethodGet, "/findById/u1", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	})

	t.Run("Missing User Is 404 Not Null", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/find/nobody", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		assert.Equal(t, string(models.KindNotFound), decodeError(t, body).Kind)
	})

	t.Run("Check Username", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/check-username/jane_doe", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "true", string(bytes.TrimSpace(body)))

		_, body = doJSON(t, app, fiber.MethodGet, "/check-username/free", nil)
		assert.Equal(t, "false", string(bytes.TrimSpace(body)))
	})

	t.Run("List Users", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/users", nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		var users []models.User
		require.NoError(t, json.Unmarshal(body, &users))
		assert.Len(t, users, 1)
	})
}

func TestUpdateUserEndpoint(t *testing.T) {
	app, _, _ := newTestServer(t)
	createTestUser(t, app, "u1", "jane_doe")

	resp, body := doJSON(t, app, fiber.MethodPatch, "/users/u1", fiber.Map{
		"bio":   "updated bio",
		"theme": "dark",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var user models.User
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Equal(t, "updated bio", user.Bio)
	assert.Equal(t, models.ThemeDark, user.Theme)

	t.Run("Unknown Field Rejected", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch, "/users/u1", fiber.Map{"password": "x"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, string(models.KindValidation), decodeError(t, body).Kind)
	})
}

// Literal route segments must win over the parameterized toggle routes.
func TestUserRoutePrecedence(t *testing.T) {
	app, _, _ := newTestServer(t)
	createTestUser(t, app, "u1", "jane_doe")

	t.Run("Theme Route Is Not A Toggle", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch, "/users/u1/theme", fiber.Map{
			"theme":  "dim",
			"accent": "green",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var user models.User
		require.NoError(t, json.Unmarshal(body, &user))
		assert.Equal(t, models.ThemeDim, user.Theme)
		assert.Equal(t, models.AccentGreen, user.Accent)
		assert.Empty(t, user.Stats.Sits)
	})

	t.Run("Username Route Is Not A Toggle", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch, "/users/u1/username", fiber.Map{
			"username": "new_name",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var user models.User
		require.NoError(t, json.Unmarshal(body, &user))
		assert.Equal(t, "new_name", user.Username)
		assert.Empty(t, user.Stats.Sits)
	})

	t.Run("Stats Sit Toggle", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch, "/users/u1/42", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var user models.User
		require.NoError(t, json.Unmarshal(body, &user))
		assert.Equal(t, models.StringList{"42"}, user.Stats.Sits)
		assert.Empty(t, user.Stats.Likes)
	})

	t.Run("Stats Like Toggle", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch, "/users/like/u1/42", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var user models.User
		require.NoError(t, json.Unmarshal(body, &user))
		assert.Equal(t, models.StringList{"42"}, user.Stats.Likes)
	})
}

func TestRenameConflictEndpoint(t *testing.T) {
	app, _, _ := newTestServer(t)
	createTestUser(t, app, "u1", "carol")
	createTestUser(t, app, "u2", "dave")

	resp, body := doJSON(t, app, fiber.MethodPatch, "/users/u2/username", fiber.Map{
		"username": "carol",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, string(models.KindConflict), decodeError(t, body).Kind)
}

func TestDeleteUserEndpoint(t *testing.T) {
	app, _, _ := newTestServer(t)
	createTestUser(t, app, "u1", "jane_doe")

	resp, body := doJSON(t, app, fiber.MethodDelete, "/delete/u1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var user models.User
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Equal(t, "u1", user.UserID)

	resp, _ = doJSON(t, app, fiber.MethodDelete, "/delete/u1", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestBookmarkEndpoints(t *testing.T) {
	app, _, _ := newTestServer(t)
	createTestUser(t, app, "u1", "jane_doe")

	resp, body := doJSON(t, app, fiber.MethodPost, "/users/bookmark/u1", fiber.Map{"id": "7"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, app, fiber.MethodGet, "/users/bookmark/u1", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var bookmarks models.BookmarkList
	require.NoError(t, json.Unmarshal(body, &bookmarks))
	require.Len(t, bookmarks, 1)
	assert.Equal(t, "7", bookmarks[0].ID)

	resp, body = doJSON(t, app, fiber.MethodPatch, "/users/bookmark/u1/clearAll", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
	var user models.User
	require.NoError(t, json.Unmarshal(body, &user))
	assert.Empty(t, user.Bookmarks)
}

func TestSitEndpoints(t *testing.T) {
	app, _, _ := newTestServer(t)
	sit := createTestSit(t, app, "hello world", "u1")

	t.Run("Get By ID", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/sits/%d", sit.ID), nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		var got models.Sit
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, sit.ID, got.ID)
	})

	t.Run("Invalid ID Is 400", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/sits/abc", nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, string(models.KindValidation), decodeError(t, body).Kind)
	})

	t.Run("Missing Sit Is 404", func(t *testing.T) {
		resp, _ := doJSON(t, app, fiber.MethodGet, "/sits/9999", nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})

	t.Run("Patch Allow List", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch, fmt.Sprintf("/sits/%d", sit.ID), fiber.Map{
			"text": "edited",
		})
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var got models.Sit
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "edited", got.Text)

		resp, _ = doJSON(t, app, fiber.MethodPatch, fmt.Sprintf("/sits/%d", sit.ID), fiber.Map{
			"createdBy": "intruder",
		})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Delete", func(t *testing.T) {
		doomed := createTestSit(t, app, "doomed", "u1")
		resp, _ := doJSON(t, app, fiber.MethodDelete, fmt.Sprintf("/sits/delete/%d", doomed.ID), nil)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/sits/%d", doomed.ID), nil)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}

// The like route carries a literal segment that must not be swallowed by the
// resit toggle's :sitId parameter.
func TestSitToggleRoutePrecedence(t *testing.T) {
	app, _, _ := newTestServer(t)
	sit := createTestSit(t, app, "toggle me", "u1")

	t.Run("Like Toggle", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch,
			fmt.Sprintf("/sits/like/%d/u2", sit.ID), nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var got models.Sit
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, models.StringList{"u2"}, got.UserLikes)
		assert.Empty(t, got.UserResits)
	})

	t.Run("Resit Toggle", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch,
			fmt.Sprintf("/sits/%d/u2", sit.ID), nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var got models.Sit
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, models.StringList{"u2"}, got.UserResits)
	})

	t.Run("Second Like Undoes First", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodPatch,
			fmt.Sprintf("/sits/like/%d/u2", sit.ID), nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))
		var got models.Sit
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Empty(t, got.UserLikes)
	})
}

func TestSitListEndpoints(t *testing.T) {
	app, _, _ := newTestServer(t)
	top := createTestSit(t, app, "top", "u1")

	resp, body := doJSON(t, app, fiber.MethodPost, "/add_sit", fiber.Map{
		"text":      "reply",
		"createdBy": "u2",
		"parent":    fiber.Map{"id": fmt.Sprint(top.ID), "username": "jane"},
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode, string(body))

	t.Run("Query By Parent", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet,
			fmt.Sprintf("/sits?parentId=%d", top.ID), nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var sits []models.Sit
		require.NoError(t, json.Unmarshal(body, &sits))
		require.Len(t, sits, 1)
		assert.Equal(t, "reply", sits[0].Text)
	})

	t.Run("Query Top Level", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/sits?parent=null", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var sits []models.Sit
		require.NoError(t, json.Unmarshal(body, &sits))
		require.Len(t, sits, 1)
		assert.Equal(t, top.ID, sits[0].ID)
	})

	t.Run("Reply Counter Visible", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, fmt.Sprintf("/sits/%d", top.ID), nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var got models.Sit
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, 1, got.UserReplies)
	})

	t.Run("Feed Excludes Author", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/sits/people/u1", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var sits []models.Sit
		require.NoError(t, json.Unmarshal(body, &sits))
		for _, s := range sits {
			assert.NotEqual(t, "u1", s.CreatedBy)
		}
	})

	t.Run("Media Listing", func(t *testing.T) {
		resp, body := doJSON(t, app, fiber.MethodGet, "/sits/media/u1", nil)
		require.Equal(t, fiber.StatusOK, resp.StatusCode)
		var sits []models.Sit
		require.NoError(t, json.Unmarshal(body, &sits))
		assert.Empty(t, sits)
	})
}

type ctxCapturingUserRepo struct {
	*testutil.UserRepoStub
	lastCtx context.Context
}

func (r *ctxCapturingUserRepo) List(ctx context.Context) ([]models.User, error) {
	r.lastCtx = ctx
	return r.UserRepoStub.List(ctx)
}

// Handlers must hand the middleware-enriched user context down to the
// repositories, so values like the request id survive the whole call chain.
func TestRequestIDReachesRepository(t *testing.T) {
	userRepo := &ctxCapturingUserRepo{UserRepoStub: testutil.NewUserRepoStub()}
	sitRepo := testutil.NewSitRepoStub()

	s := &Server{
		userRepo: userRepo,
		sitRepo:  sitRepo,
	}
	s.userService = service.NewUserService(userRepo, sitRepo)
	s.sitService = service.NewSitService(sitRepo, userRepo)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return models.RespondWithError(c, models.StatusForError(err), err)
		},
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	resp, _ := doJSON(t, app, fiber.MethodGet, "/users", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	require.NotNil(t, userRepo.lastCtx)
	reqID, ok := userRepo.lastCtx.Value(middleware.RequestIDKey).(string)
	require.True(t, ok, "request id missing from repository context")
	assert.NotEmpty(t, reqID)
}

func TestStorageErrorIs500(t *testing.T) {
	app, userRepo, _ := newTestServer(t)
	userRepo.ForcedErr = models.NewStorageError(fmt.Errorf("connection reset"))

	resp, body := doJSON(t, app, fiber.MethodGet, "/users", nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, string(models.KindStorage), decodeError(t, body).Kind)
}

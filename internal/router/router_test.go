package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/taskboard/internal/config"
	"github.com/iliyamo/taskboard/internal/database"
	"github.com/iliyamo/taskboard/internal/handler"
	"github.com/iliyamo/taskboard/internal/middleware"
	"github.com/iliyamo/taskboard/internal/repository"
	"github.com/iliyamo/taskboard/internal/service"
)

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T, extra ...echo.MiddlewareFunc) *api {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db, database.DialectSQLite))
	stores := repository.NewSQLStores(db)

	users := service.NewUserService(stores.Users, 4, nil)
	auth := service.NewAuthService(users, stores.Tokens, "test-secret", 30, 7)
	_, err = users.EnsureAdmin(context.Background(), "admin@example.com", "admin", "admin123")
	require.NoError(t, err)

	e := echo.New()
	Register(e, Handlers{
		Auth:       handler.NewAuthHandler(auth, nil),
		Users:      handler.NewUserHandler(users, nil),
		Tasks:      handler.NewTaskHandler(service.NewTaskService(stores, nil, nil), nil),
		Kanban:     handler.NewKanbanHandler(service.NewKanbanService(stores, nil, nil), nil),
		Statistics: handler.NewStatisticsHandler(service.NewStatisticsService(stores.Tasks, stores.Users, nil), nil),
	}, auth, extra...)
	return &api{t: t, e: e}
}

// do sends body as JSON and decodes the response into out when non-nil.
func (a *api) do(method, path, token, body string, out any) int {
	a.t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

type authBody struct {
	User struct {
		ID   int64  `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

func (a *api) register(name string) authBody {
	a.t.Helper()
	var out authBody
	code := a.do(http.MethodPost, "/v1/auth/register", "",
		`{"username":"`+name+`","email":"`+name+`@example.com","password":"secret1"}`, &out)
	require.Equal(a.t, http.StatusCreated, code)
	return out
}

func (a *api) login(email, password string) authBody {
	a.t.Helper()
	var out authBody
	code := a.do(http.MethodPost, "/v1/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`, &out)
	require.Equal(a.t, http.StatusOK, code)
	return out
}

type taskBody struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	Status      string  `json:"status"`
	ColumnID    int64   `json:"column_id"`
	AssignedTo  []int64 `json:"assigned_to"`
	CompletedAt *string `json:"completed_at"`
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	var out map[string]string
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", "", &out))
	assert.Equal(t, "ok", out["status"])
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	ann := a.register("ann")
	assert.Equal(t, "user", ann.User.Role)
	assert.Equal(t, "bearer", ann.TokenType)
	assert.NotEmpty(t, ann.AccessToken)

	var errBody map[string]string
	code := a.do(http.MethodPost, "/v1/auth/register", "", `{"username":"ann2","email":"ann@example.com","password":"secret1"}`, &errBody)
	assert.Equal(t, http.StatusConflict, code)
	assert.NotEmpty(t, errBody["error"])

	code = a.do(http.MethodPost, "/v1/auth/register", "", `{"username":"x","email":"nope","password":"1"}`, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, errBody["error"], "email")

	assert.Equal(t, http.StatusUnauthorized,
		a.do(http.MethodPost, "/v1/auth/login", "", `{"email":"ann@example.com","password":"wrong-one"}`, nil))

	var me struct {
		ID    int64  `json:"id"`
		Email string `json:"email"`
	}
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/auth/me", ann.AccessToken, "", &me))
	assert.Equal(t, ann.User.ID, me.ID)
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/auth/me", "", "", nil))

	var pair authBody
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+ann.RefreshToken+`"}`, &pair))
	assert.NotEqual(t, ann.RefreshToken, pair.RefreshToken)
	// the rotated token is spent
	assert.Equal(t, http.StatusUnauthorized,
		a.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+ann.RefreshToken+`"}`, nil))

	assert.Equal(t, http.StatusNoContent,
		a.do(http.MethodPost, "/v1/auth/logout", "", `{"refresh_token":"`+pair.RefreshToken+`"}`, nil))
	assert.Equal(t, http.StatusUnauthorized,
		a.do(http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+pair.RefreshToken+`"}`, nil))
}

func TestTasksAndBoard(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin@example.com", "admin123")
	ann := a.register("ann")
	bob := a.register("bob")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/tasks", "", "", nil))

	// only admins shape the board
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/v1/kanban/columns", ann.AccessToken, `{"title":"Todo","order":1}`, nil))
	var todo, done struct {
		ID int64 `json:"id"`
	}
	require.Equal(t, http.StatusCreated,
		a.do(http.MethodPost, "/v1/kanban/columns", admin.AccessToken, `{"title":"Todo","order":1}`, &todo))
	require.Equal(t, http.StatusCreated,
		a.do(http.MethodPost, "/v1/kanban/columns", admin.AccessToken, `{"title":"Done","order":2}`, &done))

	var task taskBody
	body := `{"title":"write docs","priority":"high","assigned_to":` + itoa(bob.User.ID) + `}`
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/v1/tasks", ann.AccessToken, body, &task))
	assert.Equal(t, "pending", task.Status)
	assert.Equal(t, todo.ID, task.ColumnID)
	assert.Equal(t, []int64{bob.User.ID}, task.AssignedTo)

	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPost, "/v1/tasks", ann.AccessToken, `{"title":"x","priority":"urgent"}`, nil))
	assert.Equal(t, http.StatusBadRequest,
		a.do(http.MethodPost, "/v1/tasks", ann.AccessToken, `{"title":"x","assigned_to":[999]}`, nil))

	// bob sees it as assignee and can complete it
	var list struct {
		Items []taskBody `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/tasks", bob.AccessToken, "", &list))
	require.Len(t, list.Items, 1)

	require.Equal(t, http.StatusOK,
		a.do(http.MethodPatch, "/v1/tasks/"+itoa(task.ID), bob.AccessToken, `{"status":"completed"}`, &task))
	assert.Equal(t, "completed", task.Status)
	assert.NotNil(t, task.CompletedAt)
	assert.Equal(t, "write docs", task.Title)

	// moving
	path := "/v1/kanban/tasks/" + itoa(task.ID) + "/move"
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, path+"?new_column_id="+itoa(done.ID), ann.AccessToken, "", &task))
	assert.Equal(t, done.ID, task.ColumnID)
	require.Equal(t, http.StatusOK, a.do(http.MethodPost, path, ann.AccessToken, `{"column_id":`+itoa(todo.ID)+`}`, &task))
	assert.Equal(t, todo.ID, task.ColumnID)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, path+"?new_column_id=999", ann.AccessToken, "", nil))
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, path, ann.AccessToken, "", nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodPost, "/v1/kanban/tasks/999/move?new_column_id=1", ann.AccessToken, "", nil))

	var board struct {
		Items []struct {
			ID    int64      `json:"id"`
			Title string     `json:"title"`
			Tasks []taskBody `json:"tasks"`
		} `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/kanban/columns", ann.AccessToken, "", &board))
	require.Len(t, board.Items, 2)
	assert.Equal(t, "Todo", board.Items[0].Title)
	assert.Len(t, board.Items[0].Tasks, 1)
	assert.NotNil(t, board.Items[1].Tasks)
	assert.Empty(t, board.Items[1].Tasks)

	assert.Equal(t, http.StatusConflict, a.do(http.MethodDelete, "/v1/kanban/columns/"+itoa(todo.ID), admin.AccessToken, "", nil))
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/v1/kanban/columns/"+itoa(done.ID), admin.AccessToken, "", nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodDelete, "/v1/kanban/columns/"+itoa(done.ID), admin.AccessToken, "", nil))

	// bob is not the creator
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/v1/tasks/"+itoa(task.ID), bob.AccessToken, "", nil))
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/v1/tasks/"+itoa(task.ID), ann.AccessToken, "", nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/tasks/"+itoa(task.ID), ann.AccessToken, "", nil))
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/tasks/abc", ann.AccessToken, "", nil))
}

func TestStatisticsAccess(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin@example.com", "admin123")
	ann := a.register("ann")
	bob := a.register("bob")

	require.Equal(t, http.StatusCreated,
		a.do(http.MethodPost, "/v1/tasks", ann.AccessToken, `{"title":"one","priority":"low"}`, nil))

	var st struct {
		UserID            int64          `json:"user_id"`
		TotalTasks        int            `json:"total_tasks"`
		TasksByPriority   map[string]int `json:"tasks_by_priority"`
		ProductivityScore float64        `json:"productivity_score"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/statistics/user/"+itoa(ann.User.ID), ann.AccessToken, "", &st))
	assert.Equal(t, 1, st.TotalTasks)
	assert.Equal(t, 1, st.TasksByPriority["low"])
	assert.InDelta(t, 8.0, st.ProductivityScore, 1e-9)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/statistics/user/"+itoa(ann.User.ID), bob.AccessToken, "", nil))
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/statistics/user/"+itoa(ann.User.ID), admin.AccessToken, "", nil))

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/statistics/all", ann.AccessToken, "", nil))
	var all struct {
		Items []struct {
			UserID int64 `json:"user_id"`
		} `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/statistics/all", admin.AccessToken, "", &all))
	assert.Len(t, all.Items, 3)
}

func TestUsersEndpoints(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin@example.com", "admin123")
	ann := a.register("ann")

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/users", ann.AccessToken, "", nil))
	var users struct {
		Items []map[string]any `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/users", admin.AccessToken, "", &users))
	require.Len(t, users.Items, 2)
	assert.NotContains(t, users.Items[0], "password_hash")

	// a user cannot promote themselves
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPatch, "/v1/users/"+itoa(ann.User.ID), ann.AccessToken, `{"role":"admin"}`, nil))
	var u map[string]any
	require.Equal(t, http.StatusOK,
		a.do(http.MethodPut, "/v1/users/"+itoa(ann.User.ID), ann.AccessToken, `{"phone":"555-0100"}`, &u))
	assert.Equal(t, "555-0100", u["phone"])

	require.Equal(t, http.StatusCreated,
		a.do(http.MethodPost, "/v1/users", admin.AccessToken, `{"username":"carl","email":"carl@example.com","password":"secret1","role":"admin"}`, &u))
	assert.Equal(t, "admin", u["role"])

	require.Equal(t, http.StatusOK,
		a.do(http.MethodPatch, "/v1/users/"+itoa(ann.User.ID), admin.AccessToken, `{"is_active":false}`, nil))
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/v1/auth/login", "", `{"email":"ann@example.com","password":"secret1"}`, nil))

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/v1/users/"+itoa(ann.User.ID), admin.AccessToken, "", nil))
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/users/"+itoa(ann.User.ID), admin.AccessToken, "", nil))
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestAccountChangesApplyToIssuedTokens(t *testing.T) {
	a := newAPI(t)
	admin := a.login("admin@example.com", "admin123")
	ann := a.register("ann")

	require.Equal(t, http.StatusOK,
		a.do(http.MethodPatch, "/v1/users/"+itoa(ann.User.ID), admin.AccessToken, `{"is_active":false}`, nil))
	assert.Equal(t, http.StatusForbidden,
		a.do(http.MethodPost, "/v1/tasks", ann.AccessToken, `{"title":"after deactivation"}`, nil))

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/statistics/all", admin.AccessToken, "", nil))
	require.Equal(t, http.StatusOK,
		a.do(http.MethodPatch, "/v1/users/"+itoa(admin.User.ID), admin.AccessToken, `{"role":"user"}`, nil))
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/statistics/all", admin.AccessToken, "", nil))

	require.Equal(t, http.StatusNoContent,
		a.do(http.MethodDelete, "/v1/users/"+itoa(admin.User.ID), admin.AccessToken, "", nil))
	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/tasks", admin.AccessToken, "", nil))
}

func TestCachedReadsSeeWrites(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cache := middleware.NewRedisCache(config.CacheConfig{
		Enabled:     true,
		Methods:     map[string]bool{http.MethodGet: true},
		TTL:         time.Minute,
		KeyStrategy: "path_query",
		Prefix:      "test:cache",
	}, rdb, nil)

	a := newAPI(t, cache)
	ann := a.register("ann")
	statsPath := "/v1/statistics/user/" + itoa(ann.User.ID)

	var st struct {
		TotalTasks int `json:"total_tasks"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, statsPath, ann.AccessToken, "", &st))
	assert.Zero(t, st.TotalTasks)
	var list struct {
		Items []taskBody `json:"items"`
	}
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/tasks", ann.AccessToken, "", &list))
	assert.Empty(t, list.Items)

	require.Equal(t, http.StatusCreated,
		a.do(http.MethodPost, "/v1/tasks", ann.AccessToken, `{"title":"fresh"}`, nil))

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, statsPath, ann.AccessToken, "", &st))
	assert.Equal(t, 1, st.TotalTasks)
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/tasks", ann.AccessToken, "", &list))
	assert.Len(t, list.Items, 1)
}

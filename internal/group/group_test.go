package group_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewan24/E-Learning-Lessons-Platform/common/logger"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/access"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/booking"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/group"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/metrics"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/query"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/student"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/user"
	"github.com/rewan24/E-Learning-Lessons-Platform/internal/validation"
	"github.com/rewan24/E-Learning-Lessons-Platform/testing/testdb"
)

type fixture struct {
	groups   group.Service
	students student.Service
	engine   *booking.Engine
}

func setup(t *testing.T) fixture {
	t.Helper()
	bunDB := testdb.NewSQLite(t,
		(*user.User)(nil),
		(*student.Student)(nil),
		(*group.Group)(nil),
		(*booking.Booking)(nil),
	)
	m := metrics.NewMock()
	return fixture{
		groups:   group.NewService(group.NewRepository(bunDB, m)),
		students: student.NewService(student.NewRepository(bunDB, m)),
		engine:   booking.NewEngine(bunDB, nil, m, logger.NewDiscard()),
	}
}

func (f fixture) newGroup(t *testing.T, name string, capacity *int) *group.Group {
	t.Helper()
	g, err := f.groups.CreateGroup(context.Background(), group.CreateRequest{
		Name:     name,
		Stage:    validation.StageGrade6,
		Capacity: capacity,
		Schedule: "17:00",
		Days:     "Sun, Tue",
	})
	require.NoError(t, err)
	return g
}

func (f fixture) book(t *testing.T, groupID int64, name string) *student.Student {
	t.Helper()
	s, err := f.students.CreateStudent(context.Background(), student.CreateRequest{
		FullName: name,
		Email:    name + "@example.com",
		Phone:    "01012345678",
		Stage:    validation.StageGrade6,
	})
	require.NoError(t, err)
	_, err = f.engine.CreateBooking(context.Background(), s.ID, groupID)
	require.NoError(t, err)
	return s
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestGroupService(t *testing.T) {
	ctx := context.Background()

	t.Run("Create_DefaultCapacity", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", nil)
		assert.Equal(t, group.DefaultCapacity, g.Capacity)
		assert.Equal(t, group.DefaultCapacity, g.SeatsLeft)
		assert.False(t, g.IsFull)
	})

	t.Run("Create_DuplicateName", func(t *testing.T) {
		f := setup(t)
		f.newGroup(t, "Math A", nil)

		_, err := f.groups.CreateGroup(ctx, group.CreateRequest{Name: "Math A", Stage: validation.StagePrep, Schedule: "18:00"})
		assert.ErrorIs(t, err, group.ErrNameExists)
	})

	t.Run("Get_DerivesAvailability", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", intPtr(2))
		f.book(t, g.ID, "s1")

		got, err := f.groups.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.BookedCount)
		assert.Equal(t, 1, got.SeatsLeft)
		assert.False(t, got.IsFull)

		f.book(t, g.ID, "s2")
		got, err = f.groups.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.SeatsLeft)
		assert.True(t, got.IsFull)

		_, err = f.groups.GetGroup(ctx, 999)
		assert.ErrorIs(t, err, group.ErrGroupNotFound)
	})

	t.Run("Update_CapacityBelowBooked", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", intPtr(3))
		f.book(t, g.ID, "s1")
		f.book(t, g.ID, "s2")

		_, err := f.groups.UpdateGroup(ctx, g.ID, group.UpdateRequest{Capacity: intPtr(1)})
		assert.ErrorIs(t, err, group.ErrInvalidCapacity)

		got, err := f.groups.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, got.Capacity)
	})

	t.Run("Update_CapacityEqualToBooked", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", intPtr(3))
		f.book(t, g.ID, "s1")
		f.book(t, g.ID, "s2")

		updated, err := f.groups.UpdateGroup(ctx, g.ID, group.UpdateRequest{Capacity: intPtr(2), Days: strPtr("Mon")})
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Capacity)
		assert.Equal(t, "Mon", updated.Days)
		assert.True(t, updated.IsFull)
		assert.Equal(t, "Math A", updated.Name)
	})

	t.Run("Update_NotFound", func(t *testing.T) {
		f := setup(t)
		_, err := f.groups.UpdateGroup(ctx, 999, group.UpdateRequest{Capacity: intPtr(2)})
		assert.ErrorIs(t, err, group.ErrGroupNotFound)
	})

	t.Run("List_StageFilterAndSearch", func(t *testing.T) {
		f := setup(t)
		f.newGroup(t, "Algebra", nil)
		_, err := f.groups.CreateGroup(ctx, group.CreateRequest{Name: "Geometry", Stage: validation.StagePrep, Schedule: "18:00"})
		require.NoError(t, err)

		groups, total, err := f.groups.ListGroups(ctx, listParams("stage="+validation.StagePrep))
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Geometry", groups[0].Name)

		groups, total, err = f.groups.ListGroups(ctx, listParams("search=alg"))
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "Algebra", groups[0].Name)
	})

	t.Run("Delete", func(t *testing.T) {
		f := setup(t)
		g := f.newGroup(t, "Math A", nil)
		require.NoError(t, f.groups.DeleteGroup(ctx, g.ID))
		assert.ErrorIs(t, f.groups.DeleteGroup(ctx, g.ID), group.ErrGroupNotFound)
	})
}

func listParams(rawQuery string) query.ListParams {
	r := httptest.NewRequest(http.MethodGet, "/groups?"+rawQuery, nil)
	p, err := query.Parse(r, query.Options{DefaultPageSize: 10, MaxPageSize: 100, OrderFields: []string{"name"}})
	if err != nil {
		panic(err)
	}
	return p
}

func TestGroupHandler(t *testing.T) {
	f := setup(t)

	handler := group.NewHandler(f.groups, f.engine, validation.New(), metrics.NewMock(), logger.NewDiscard(), 10, 100)
	router := chi.NewRouter()
	handler.RegisterRoutes(router)

	asAdmin := access.Caller{UserID: 1, Username: "admin", IsStaff: true}
	asUser := access.Caller{UserID: 2, Username: "ali"}

	do := func(method, target string, body interface{}, caller *access.Caller) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req := httptest.NewRequest(method, target, &buf)
		req.Header.Set("Content-Type", "application/json")
		if caller != nil {
			req = req.WithContext(access.WithCaller(req.Context(), *caller))
		}
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	var created group.Group

	t.Run("Create_AdminOnly", func(t *testing.T) {
		req := group.CreateRequest{Name: "Physics", Stage: validation.StageGrade6, Capacity: intPtr(1), Schedule: "16:00"}
		assert.Equal(t, http.StatusUnauthorized, do(http.MethodPost, "/groups", req, nil).Code)
		assert.Equal(t, http.StatusForbidden, do(http.MethodPost, "/groups", req, &asUser).Code)

		w := do(http.MethodPost, "/groups/create", req, &asAdmin)
		require.Equal(t, http.StatusCreated, w.Code)
		require.NoError(t, json.NewDecoder(w.Body).Decode(&created))
		assert.Equal(t, 1, created.SeatsLeft)
	})

	t.Run("Create_Validation", func(t *testing.T) {
		req := group.CreateRequest{Name: " ", Stage: "GRADE9", Capacity: intPtr(0)}
		w := do(http.MethodPost, "/groups", req, &asAdmin)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body struct {
			Fields map[string]string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Contains(t, body.Fields, "name")
		assert.Contains(t, body.Fields, "stage")
		assert.Contains(t, body.Fields, "capacity")
	})

	t.Run("List_Public", func(t *testing.T) {
		w := do(http.MethodGet, "/groups", nil, nil)
		require.Equal(t, http.StatusOK, w.Code)

		var page query.Page[group.Group]
		require.NoError(t, json.NewDecoder(w.Body).Decode(&page))
		assert.Equal(t, 1, page.Count)

		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/groups?ordering=password", nil, nil).Code)
	})

	t.Run("Get_AdminSeesMembers", func(t *testing.T) {
		s := f.book(t, created.ID, "member")
		target := "/groups/" + strconv.FormatInt(created.ID, 10)

		w := do(http.MethodGet, target, nil, nil)
		require.Equal(t, http.StatusOK, w.Code)
		var public map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&public))
		assert.NotContains(t, public, "students")
		assert.Equal(t, true, public["is_full"])

		w = do(http.MethodGet, target, nil, &asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		var detail struct {
			Name     string         `json:"name"`
			Students []group.Member `json:"students"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&detail))
		assert.Equal(t, "Physics", detail.Name)
		assert.Equal(t, []group.Member{{ID: s.ID, FullName: "member", Phone: "01012345678"}}, detail.Students)
	})

	t.Run("Update_Capacity", func(t *testing.T) {
		target := "/groups/" + strconv.FormatInt(created.ID, 10)
		assert.Equal(t, http.StatusForbidden, do(http.MethodPatch, target, group.UpdateRequest{Capacity: intPtr(3)}, &asUser).Code)

		w := do(http.MethodPatch, target, group.UpdateRequest{Capacity: intPtr(3)}, &asAdmin)
		require.Equal(t, http.StatusOK, w.Code)
		var updated group.Group
		require.NoError(t, json.NewDecoder(w.Body).Decode(&updated))
		assert.Equal(t, 2, updated.SeatsLeft)

		f.book(t, created.ID, "second")
		w = do(http.MethodPut, target, group.UpdateRequest{Capacity: intPtr(1)}, &asAdmin)
		require.Equal(t, http.StatusBadRequest, w.Code)

		var body struct {
			Code string `json:"code"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "INVALID_CAPACITY", body.Code)
	})

	t.Run("Delete", func(t *testing.T) {
		target := "/groups/" + strconv.FormatInt(created.ID, 10)
		assert.Equal(t, http.StatusNoContent, do(http.MethodDelete, target, nil, &asAdmin).Code)
		assert.Equal(t, http.StatusNotFound, do(http.MethodGet, target, nil, nil).Code)
		assert.Equal(t, http.StatusBadRequest, do(http.MethodGet, "/groups/abc", nil, nil).Code)
	})
}

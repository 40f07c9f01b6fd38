package repository

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-console/internal/dto"
	"github.com/noah-isme/timetable-console/internal/models"
	appErrors "github.com/noah-isme/timetable-console/pkg/errors"
)

type callRecorder struct {
	mu     sync.Mutex
	routes []string
	status []int
}

func (r *callRecorder) ObserveBackendCall(method, route string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, method+" "+route)
	r.status = append(r.status, status)
}

func newBackend(t *testing.T, handler http.HandlerFunc) (*BackendClient, *callRecorder) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	rec := &callRecorder{}
	return NewBackendClient(srv.URL+"/", time.Second, rec, nil), rec
}

func authedContext() context.Context {
	return WithRequestID(WithAuthToken(context.Background(), "tok-1"), "req-1")
}

func TestReferenceRepositoryForwardsTokenAndUnwraps(t *testing.T) {
	var gotAuth, gotReqID, gotPath string
	client, rec := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, `{"data":[{"id":1,"name":"Engineering"},{"id":"2","name":"Humanities"}]}`)
	})

	records, err := NewReferenceRepository(client).List(authedContext(), models.CollectionFaculties)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "req-1", gotReqID)
	assert.Equal(t, "/api/faculties", gotPath)
	require.Len(t, records, 2)
	assert.Equal(t, models.ID("1"), records[0].ID)
	assert.Equal(t, models.ID("2"), records[1].ID)
	assert.Equal(t, []string{"GET /api/faculties"}, rec.routes)
	assert.Equal(t, []int{http.StatusOK}, rec.status)
}

func TestReferenceRepositoryBareArrayAndNestedDepartments(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"id":5,"name":"Ivanov I.I.","departments":[{"id":10},{"id":11}]}]`)
	})
	records, err := NewReferenceRepository(client).List(context.Background(), models.CollectionUsers)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []models.ID{"10", "11"}, records[0].DepartmentIDs)
}

func TestScheduleRepositoryListDecodesMap(t *testing.T) {
	var query url.Values
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = io.WriteString(w, `{"schedules":{
			"10":{"id":10,"group_name":"B","lessons":[]},
			"2":{"group_name":"A","lessons":[{"day_name":"Monday","hour_name":"08:30-09:50","year":2024,"semester_num":1,"week_type_name":null}]}
		}}`)
	})

	list, err := NewScheduleRepository(client).List(context.Background(), url.Values{"faculty_id": {"1"}})
	require.NoError(t, err)
	assert.Equal(t, "1", query.Get("faculty_id"))
	require.Len(t, list, 2)
	assert.Equal(t, models.ID("2"), list[0].ID)
	assert.Equal(t, "A", list[0].GroupName)
	assert.Equal(t, "2024", list[0].Lessons[0].Year)
	assert.Nil(t, list[0].Lessons[0].WeekTypeName)
	assert.Equal(t, models.ID("10"), list[1].ID)
}

func TestScheduleRepositoryListEmptyShapes(t *testing.T) {
	for _, body := range []string{`{"schedules":[]}`, `{"schedules":null}`, `{}`} {
		client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		list, err := NewScheduleRepository(client).List(context.Background(), nil)
		require.NoError(t, err, body)
		assert.Empty(t, list, body)
	}
}

func TestScheduleRepositoryMutations(t *testing.T) {
	type call struct {
		method, path string
		body         map[string]interface{}
	}
	var calls []call
	client, rec := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, call{r.Method, r.URL.Path, body})
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})
	repo := NewScheduleRepository(client)
	form := dto.ScheduleEntryForm{FacultyID: "1", GroupIDs: dto.IDList{"100", "101"}, DayID: "2"}

	raw, err := repo.Create(context.Background(), form.CreatePayload())
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"ok"}`, string(raw))

	form.ID = "42"
	form.GroupIDs = dto.IDList{"100"}
	_, err = repo.Update(context.Background(), form.ID, form.UpdatePayload())
	require.NoError(t, err)
	require.NoError(t, repo.Delete(context.Background(), "42"))

	require.Len(t, calls, 3)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Equal(t, "/api/schedules", calls[0].path)
	assert.Equal(t, []interface{}{"100", "101"}, calls[0].body["group_id"])
	assert.Equal(t, http.MethodPut, calls[1].method)
	assert.Equal(t, "/api/schedules/42", calls[1].path)
	assert.Equal(t, "100", calls[1].body["group_id"])
	assert.Equal(t, "2", calls[1].body["day_id"])
	assert.Equal(t, http.MethodDelete, calls[2].method)
	assert.Contains(t, rec.routes, "PUT /api/schedules/{id}")
}

func TestScheduleRepositoryFind(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/schedules/42" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"message":"Schedule not found"}`)
			return
		}
		_, _ = io.WriteString(w, `{"schedule":{"faculty_name":"Engineering","group_name":"SE-21","room_id":30}}`)
	})
	repo := NewScheduleRepository(client)

	detail, err := repo.Find(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, models.ID("42"), detail.ID)
	assert.Equal(t, "Engineering", detail.FacultyName)
	assert.Equal(t, models.ID("30"), detail.RoomID)

	_, err = repo.Find(context.Background(), "7")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Equal(t, "Schedule not found", appErrors.FromError(err).Message)
}

func TestBackendErrorMapping(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		want    *appErrors.Error
		message string
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"message":"Unauthenticated."}`, want: appErrors.ErrUnauthorized, message: "Unauthenticated."},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":"no access"}`, want: appErrors.ErrForbidden, message: "no access"},
		{name: "rejected", status: http.StatusUnprocessableEntity, body: `{"message":"The room is already booked","errors":{"room_id":["The room is already booked"]}}`, want: appErrors.ErrUpstreamRejected, message: "The room is already booked"},
		{name: "conflict", status: http.StatusConflict, body: `not json`, want: appErrors.ErrUpstreamRejected, message: appErrors.ErrUpstreamRejected.Message},
		{name: "server", status: http.StatusInternalServerError, body: `{"message":"SQLSTATE"}`, want: appErrors.ErrUpstreamUnavailable, message: appErrors.ErrUpstreamUnavailable.Message},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, rec := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			})
			_, err := NewScheduleRepository(client).Create(context.Background(), dto.CreateSchedulePayload{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want))
			appErr := appErrors.FromError(err)
			assert.Equal(t, tc.want.Status, appErr.Status)
			assert.Equal(t, tc.message, appErr.Message)
			assert.Equal(t, []int{tc.status}, rec.status)
			if tc.name == "rejected" {
				assert.Equal(t, map[string]string{"room_id": "The room is already booked"}, appErr.Details)
			}
		})
	}
}

func TestBackendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewBackendClient(srv.URL, 200*time.Millisecond, nil, nil)

	_, err := NewProfileRepository(client).Current(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrUpstreamUnavailable))
}

func TestProfileRepositoryUnwrapsUser(t *testing.T) {
	client, _ := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"user":{"id":9,"name":"Ivanov I.I.","roles":["teacher",{"name":"super-admin"}],"permissions":[{"name":"schedule-list"}]}}`)
	})
	profile, err := NewProfileRepository(client).Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ID("9"), profile.ID)
	require.Len(t, profile.Roles, 2)
	assert.Equal(t, "super-admin", profile.Roles[1].Name)
	assert.Equal(t, "schedule-list", profile.Permissions[0].Name)
}

func TestUnwrap(t *testing.T) {
	assert.JSONEq(t, `[1]`, string(unwrap(json.RawMessage(`{"data":[1]}`), "data")))
	assert.JSONEq(t, `{"x":1}`, string(unwrap(json.RawMessage(`{"x":1}`), "data")))
	assert.JSONEq(t, `[2]`, string(unwrap(json.RawMessage(` [2] `), "data")))
}

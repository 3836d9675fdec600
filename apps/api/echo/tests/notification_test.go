package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
)

func publish(t *testing.T, nn notification.NewNotification) notification.Notification {
	t.Helper()

	n, err := notifSvc.Create(context.Background(), nn)
	if err != nil {
		t.Fatalf("publish() failed: %v", err)
	}
	return n
}

func Test_notificationApi_create(t *testing.T) {
	server := setup(t)

	admin := createUser(t, "Admin", "admin@academia.cd", "", user.RoleAdmin, true)
	student := createUser(t, "Junior Mwamba", "junior@academia.cd", "", user.RoleStudent, true)

	tests := []httpTest{
		{
			name: "auth required", body: []byte("{}"),
			wantCode: http.StatusUnauthorized, wantData: jsonObj(t, errMissingToken),
		},
		{
			name: "admin required", body: []byte("{}"), token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: jsonObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name:  "a target is required",
			body:  jsonObj(t, notification.NewNotification{Title: "Exam week", Message: "Good luck!"}),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
			wantData: jsonObj(t, map[string]string{
				"target_role":    "one of target_role or target_user_id is required",
				"target_user_id": "one of target_role or target_user_id is required",
			}),
		},
		{
			name:  "unknown type",
			body:  jsonObj(t, notification.NewNotification{Title: "Exam week", Message: "Good luck!", Type: "fyi", TargetRole: user.RoleStudent}),
			token: getToken(t, admin), wantCode: http.StatusBadRequest,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", tt.token, tt.body)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("ok", func(t *testing.T) {
		body := jsonObj(t, notification.NewNotification{Title: "Exam week", Message: "Good luck!", TargetRole: user.RoleStudent})
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications", getToken(t, admin), body)
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var n notification.Notification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
		assert.NotEmpty(t, n.ID)
		assert.Equal(t, notification.TypeInfo, n.Type) // default
		assert.Equal(t, user.RoleStudent, n.TargetRole)
		assert.False(t, n.Read)
		assert.False(t, n.CreatedAt.IsZero())
	})
}

func Test_notificationApi_list(t *testing.T) {
	server := setup(t)

	student := createUser(t, "Junior Mwamba", "junior@academia.cd", "", user.RoleStudent, true)
	other := createUser(t, "Grace Tshala", "grace@academia.cd", "", user.RoleStudent, true)

	forStudents := publish(t, notification.NewNotification{Title: "Exam week", Message: "Good luck!", TargetRole: user.RoleStudent})
	direct := publish(t, notification.NewNotification{Title: "Fees due", Message: "See the bursar.", Type: notification.TypeUrgent, TargetUserID: student.ID})
	publish(t, notification.NewNotification{Title: "Grading", Message: "Submit grades.", TargetRole: user.RoleInstructor})
	publish(t, notification.NewNotification{Title: "Library fine", Message: "Return the book.", TargetUserID: other.ID})

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: jsonObj(t, errMissingToken)},
		{
			name: "only visible ones, newest first", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: jsonList(t, direct, forStudents),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/notifications", tt.token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_notificationApi_markRead(t *testing.T) {
	server := setup(t)

	student := createUser(t, "Junior Mwamba", "junior@academia.cd", "", user.RoleStudent, true)
	other := createUser(t, "Grace Tshala", "grace@academia.cd", "", user.RoleStudent, true)
	token := getToken(t, student)

	visible := publish(t, notification.NewNotification{Title: "Exam week", Message: "Good luck!", TargetRole: user.RoleStudent})
	notMine := publish(t, notification.NewNotification{Title: "Library fine", Message: "Return the book.", TargetUserID: other.ID})

	tests := []httpTest{
		{
			name: "not found", path: "/v1/notifications/nope/read", token: token,
			wantCode: http.StatusNotFound, wantData: jsonObj(t, httpErr{Error: "notification not found"}),
		},
		{
			name: "not visible", path: "/v1/notifications/" + notMine.ID + "/read", token: token,
			wantCode: http.StatusForbidden, wantData: jsonObj(t, httpErr{Error: "notification is not visible to this user"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodPost, tt.path, tt.token)
			server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("ok and idempotent", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/"+visible.ID+"/read", token)
		server.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var n notification.Notification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &n))
		assert.True(t, n.Read)
		require.NotNil(t, n.ReadAt)

		// a second read keeps the original timestamp
		req, rec = newAuthRequest(http.MethodPost, "/v1/notifications/"+visible.ID+"/read", token)
		server.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var again notification.Notification
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &again))
		assert.True(t, n.ReadAt.Equal(*again.ReadAt))
	})
}

func Test_notificationApi_markAllRead(t *testing.T) {
	server := setup(t)

	student := createUser(t, "Junior Mwamba", "junior@academia.cd", "", user.RoleStudent, true)
	token := getToken(t, student)

	publish(t, notification.NewNotification{Title: "Exam week", Message: "Good luck!", TargetRole: user.RoleStudent})
	publish(t, notification.NewNotification{Title: "Fees due", Message: "See the bursar.", TargetUserID: student.ID})
	forInstructors := publish(t, notification.NewNotification{Title: "Grading", Message: "Submit grades.", TargetRole: user.RoleInstructor})

	req, rec := newAuthRequest(http.MethodPost, "/v1/notifications/read-all", token)
	server.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: jsonObj(t, map[string]string{"success": "All notifications marked as read."}),
	}, rec)

	req, rec = newAuthRequest(http.MethodGet, "/v1/notifications", token)
	server.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var notifs []notification.Notification
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &notifs))
	require.Len(t, notifs, 2)
	for _, n := range notifs {
		assert.True(t, n.Read, n.Title)
		assert.NotNil(t, n.ReadAt, n.Title)
	}

	// someone else's notification is untouched
	instructorNotifs, err := notifSvc.ListFor(context.Background(), user.User{ID: "i1", Role: user.RoleInstructor})
	require.NoError(t, err)
	require.Len(t, instructorNotifs, 1)
	assert.Equal(t, forInstructors.ID, instructorNotifs[0].ID)
	assert.False(t, instructorNotifs[0].Read)
}

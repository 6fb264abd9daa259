package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/user"
	"github.com/trezcool/darasa/tests"
)

var successResetRequested = SuccessResponse{
	Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password.",
}

func Test_userApi_resetPassword(t *testing.T) {
	srv, env := setup(t)
	ann := testutil.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", strongPassword, user.RoleStudent, true)
	testutil.CreateUser(t, env.UserRepo, "Bob", "bob", "bob@test.cd", strongPassword, user.RoleStudent, false)

	path := "/api/users/password-reset"
	runHTTPTests(t, srv, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: path, body: marchallObj(t, echoMap{}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, PasswordResetRequest{Email: "this field is required"}),
		},
		{
			name: "invalid email", method: http.MethodPost, path: path, body: marchallObj(t, PasswordResetRequest{Email: "lol"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", method: http.MethodPost, path: path, body: marchallObj(t, PasswordResetRequest{Email: "ghost@test.cd"}),
			wantData: marchallObj(t, successResetRequested),
		},
		{
			name: "inactive account", method: http.MethodPost, path: path, body: marchallObj(t, PasswordResetRequest{Email: "bob@test.cd"}),
			wantData: marchallObj(t, successResetRequested),
		},
	})
	assert.Empty(t, env.Mailer.Sent())

	req, rec := newRequest(http.MethodPost, path, marchallObj(t, PasswordResetRequest{Email: " ANN@test.cd "}))
	srv.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, successResetRequested)}, rec)

	sent := env.Mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, ann.Email, sent[0].To[0].Address)
	assert.Equal(t, "password_reset", sent[0].TemplateName)
	data, ok := sent[0].TemplateData.(map[string]interface{})
	require.True(t, ok)
	uid, token := data["UID"].(string), data["Token"].(string)
	assert.Equal(t, user.EncodeUID(ann.User), uid)
	assert.NotEmpty(t, token)
}

func Test_userApi_confirmPasswordReset(t *testing.T) {
	srv, env := setup(t)
	ann := testutil.CreateUser(t, env.UserRepo, "Ann", "ann", "ann@test.cd", strongPassword, user.RoleStudent, true)
	require.NoError(t, env.PasswordReset.Request(context.Background(), ann.Email))
	sent := env.Mailer.Sent()
	require.Len(t, sent, 1)
	data := sent[0].TemplateData.(map[string]interface{})
	uid, token := data["UID"].(string), data["Token"].(string)

	newPassword := "Nw9$kTr4!pQ"
	confirm := func(uid, token, pwd string) []byte {
		return marchallObj(t, user.ResetPassword{UID: uid, Token: token, Password: pwd, PasswordConfirm: pwd})
	}
	required := "this field is required"
	path := "/api/users/password-reset-confirm"

	runHTTPTests(t, srv, []httpTest{
		{
			name: "required fields", method: http.MethodPost, path: path, body: marchallObj(t, echoMap{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"uid": required, "token": required, "password": required, "password_confirm": required}),
		},
		{
			name: "unknown uid", method: http.MethodPost, path: path, body: confirm("bG9s", token, newPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "invalid or expired link"}),
		},
		{
			name: "tampered token", method: http.MethodPost, path: path, body: confirm(uid, token+"x", newPassword),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "invalid or expired link"}),
		},
		{
			name: "weak password", method: http.MethodPost, path: path, body: confirm(uid, token, "short"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"}),
		},
		{
			name: "password like username", method: http.MethodPost, path: path, body: confirm(uid, token, "Ann@test.cd1"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "password cannot be similar to user attributes"}),
		},
		{
			name: "reset", method: http.MethodPost, path: path, body: confirm(uid, token, newPassword),
			wantData: marchallObj(t, SuccessResponse{Success: "Password has been reset with the new password."}),
		},
		{
			name: "token already used", method: http.MethodPost, path: path, body: confirm(uid, token, "An0ther!Pwd"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"token": "invalid or expired link"}),
		},
	})

	usr, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: ann.ID})
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword(newPassword))
}

type echoMap map[string]interface{}

package core_test

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
)

func TestEmailTemplates(t *testing.T) {
	require.NoError(t, core.ParseEmailTemplates(&core.Config{FrontendBaseURL: "https://darasa.test", TestMode: true}))

	names := core.EmailTemplateNames()
	assert.Equal(t, []string{"announcement_posted", "password_reset", "submission_graded", "submission_received"}, names)

	data := map[string]interface{}{
		"AssignmentTitle": "HW 1",
		"Content":         "Bring a calculator",
		"CourseID":        "c1",
		"CourseTitle":     "Maths",
		"Days":            3,
		"Feedback":        "Good",
		"Grade":           85,
		"IsLate":          true,
		"MaxPoints":       100,
		"Name":            "Ann",
		"StudentName":     "Ann",
		"SubmissionID":    "s1",
		"TeacherName":     "Teacher",
		"Title":           "Exam",
		"Token":           "tok",
		"UID":             "uid",
		"Username":        "ann",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			msg := core.EmailMessage{
				To:           []mail.Address{{Address: "ann@test.cd"}},
				TemplateName: name,
				TemplateData: data,
			}
			require.NoError(t, msg.Render())
			assert.True(t, msg.HasContent())
			assert.NotEmpty(t, msg.TextContent)
			assert.NotEmpty(t, msg.HTMLContent)
			assert.Contains(t, msg.TextContent, "https://darasa.test")
			assert.Contains(t, msg.HTMLContent, "<title>Darasa</title>")
		})
	}
}

func TestEmailMessage_RenderBody(t *testing.T) {
	msg := core.EmailMessage{Subject: "Hi", BodyStr: "plain body"}
	require.NoError(t, msg.Render())
	assert.Equal(t, "plain body", msg.TextContent)
	assert.Empty(t, msg.HTMLContent)
	assert.False(t, msg.HasRecipients())
}

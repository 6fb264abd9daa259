package submission

import (
	"context"
	"net/mail"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/assignment"
	"github.com/trezcool/darasa/core/user"
)

func (svc *Service) participants(ctx context.Context, a assignment.Assignment, s Submission) (teacher, student user.User, ok bool) {
	users, err := svc.deps.Users.QueryUsersByID(ctx, a.TeacherID, s.StudentID)
	if err != nil {
		svc.warn("submission: loading notification recipients", err)
		return user.User{}, user.User{}, false
	}
	for _, u := range users {
		switch u.ID {
		case a.TeacherID:
			teacher = u
		case s.StudentID:
			student = u
		}
	}
	return teacher, student, teacher.ID != "" && student.ID != ""
}

// notifySubmitted tells the assignment's teacher about a new or updated submission.
func (svc *Service) notifySubmitted(ctx context.Context, a assignment.Assignment, s Submission) {
	if svc.deps.Mailer == nil {
		return
	}
	teacher, student, ok := svc.participants(ctx, a, s)
	if !ok {
		return
	}
	to, ok := teacher.MailAddress()
	if !ok {
		return
	}
	svc.deps.Mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "New submission: " + a.Title,
		TemplateName: "submission_received",
		TemplateData: map[string]interface{}{
			"TeacherName":     teacher.DisplayName(),
			"StudentName":     student.DisplayName(),
			"AssignmentTitle": a.Title,
			"IsLate":          s.IsLate(a),
			"SubmissionID":    s.ID,
		},
	})
}

// notifyGraded tells the student their submission was graded.
func (svc *Service) notifyGraded(ctx context.Context, a assignment.Assignment, s Submission) {
	if svc.deps.Mailer == nil || s.Grade == nil {
		return
	}
	_, student, ok := svc.participants(ctx, a, s)
	if !ok {
		return
	}
	to, ok := student.MailAddress()
	if !ok {
		return
	}
	svc.deps.Mailer.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      "Graded: " + a.Title,
		TemplateName: "submission_graded",
		TemplateData: map[string]interface{}{
			"StudentName":     student.DisplayName(),
			"AssignmentTitle": a.Title,
			"Grade":           *s.Grade,
			"MaxPoints":       a.MaxPoints,
			"Feedback":        s.Feedback,
			"SubmissionID":    s.ID,
		},
	})
}

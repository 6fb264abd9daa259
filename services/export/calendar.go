package exportsvc

import (
	"bytes"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/trezcool/darasa/core/assignment"
)

// DeadlineDuration is the length given to deadline events.
const DeadlineDuration = 30 * time.Minute

// Calendar renders the due dates of as as an iCalendar feed. Event links point at frontendURL.
func Calendar(appName, frontendURL string, as []assignment.Assignment) *bytes.Buffer {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(fmt.Sprintf("-//%s//Deadlines//EN", appName))
	cal.SetXWRCalName(appName + " deadlines")

	for _, a := range as {
		ev := cal.AddEvent(a.ID + "@" + appName)
		ev.SetCreatedTime(a.CreatedAt)
		ev.SetDtStampTime(a.UpdatedAt)
		ev.SetModifiedAt(a.UpdatedAt)
		ev.SetStartAt(a.DueDate.Add(-DeadlineDuration))
		ev.SetEndAt(a.DueDate)
		ev.SetSummary("Due: " + a.Title)
		ev.SetDescription(a.Description)
		if frontendURL != "" {
			ev.SetURL(fmt.Sprintf("%s/assignments/%s", frontendURL, a.ID))
		}
		ev.SetStatus(ics.ObjectStatusConfirmed)
	}

	buf := new(bytes.Buffer)
	buf.WriteString(cal.Serialize())
	return buf
}

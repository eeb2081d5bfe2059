package domain

// VisitEvent is a visit mutation that produces notifications.
type VisitEvent string

const (
	EventVisitScheduled VisitEvent = "scheduled"
	EventVisitUpdated   VisitEvent = "updated"
	EventVisitCanceled  VisitEvent = "canceled"
)

// MailMessage is one delivery request. Template names a body template known to
// the mail sender; Data is the template context. Key identifies the delivery
// for duplicate suppression and may be empty.
type MailMessage struct {
	Key      string         `json:"key,omitempty"`
	To       string         `json:"to"`
	Template string         `json:"template"`
	Subject  string         `json:"subject"`
	Data     map[string]any `json:"data"`
}

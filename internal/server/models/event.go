package models

// Event carries the event attributes the download pipeline needs to derive
// the package tier and the watermark policy.
type Event struct {
	ID                string
	Name              string
	IsFreebie         bool
	PaymentType       string
	FeedEnabled       bool
	PasswordProtected bool
	WatermarkEnabled  bool
}

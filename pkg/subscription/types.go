package subscription

// SubscribeRequest is the FSM input
type SubscribeRequest struct {
	SubscriberNumber string
	DeviceModel      string
}

// SubscribeResponse is the FSM output (accumulated across transitions)
type SubscribeResponse struct {
	// From ResolveGateway
	AttemptID     int64
	GatewayURL    string
	TransactionID string

	// From FetchPage
	PageHTML string

	// From ExtractLink
	SubscribeLink string

	// From AwaitConfirmation
	Status       string
	ErrorMessage string
}

// State names
const (
	StateResolveGateway    = "resolve_gateway"
	StateFetchPage         = "fetch_page"
	StateExtractLink       = "extract_link"
	StateInvokeLink        = "invoke_link"
	StateAwaitConfirmation = "await_confirmation"
	StateComplete          = "complete"
	StateFailed            = "failed"
)

package constants

// Static route constants
const (
	WebhookBillingRoute = "/webhooks/billing"
	RegisterRoute       = "/register"
	LoginRoute          = "/login"
	LogoutRoute         = "/logout"
	AdminRoute          = "/admin"
	APIRoute            = "/api"
)

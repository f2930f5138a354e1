// Package uitext holds the user-visible strings and routes of Plextera
// Studio that tests assert on. The local studio double renders the same
// values.
package uitext

// Routes
const (
	LoginURL             = "/login"
	ForgotPasswordURL    = "/forgot-password"
	CreatePasswordURL    = "/create-password"
	RegisterInviteURL    = "/register-invite"
	WorkflowsURL         = "/workflows"
	WebAutomationsURL    = "/sbb/automation/list"
	DocumentsInsightsURL = "/document-insights/documents"
	HubsURL              = "/document-insights/hubs"
	DatastoresURL        = "/datastores"
	FormsURL             = "/forms"
	AlertsURL            = "/alerts"
	SidesURL             = "/sides"
	SettingsURL          = "/settings?tab=account"
	AdminConsoleURL      = "/admin-console"
)

// Login and home
const (
	LoginPageTitle      = "Welcome to Plextera"
	HomePageUserTitle   = "Welcome back, "
	HomePageMainTitle   = "Welcome toPlextera Studio!"
	HomePageDescription = "Your All-in-One Workflow Automation Platform"

	ErrorInvalidCredentials = "Invalid credentials"
)

// Forgot and update password
const (
	ForgotPasswordPageTitle          = "Forgot password"
	ForgotPasswordErrorEmptyEmail    = "Email is required"
	ForgotPasswordErrorInvalidFormat = "Enter a valid email address"
	ForgotPasswordSuccess            = "Check your email"
	ForgotPasswordDescriptionPartOne = "We sent a password reset link to your email."
	ForgotPasswordDescriptionPartTwo = "Didn't receive the email? Resend"
	UpdatePasswordPageTitle          = "Create new password"
	ErrorPasswordLengthMin           = "Password must be at least 8 characters"
	ErrorPasswordUppercase           = "Password must contain at least one uppercase letter"
	ErrorPasswordLowercase           = "Password must contain at least one lowercase letter"
	ErrorPasswordNumber              = "Password must contain at least one number"
	ErrorPasswordSpecial             = "Password must contain at least one special character"
	ErrorPasswordDiffers             = "Passwords do not match"
	ErrorPasswordSameWithCurrent     = "New password must be different from the current password"
	CreatePasswordLinkFragment       = "create-password"
	RegisterInviteLinkFragment       = "register-invite"
	SuccessPopupTitle                = "Success!"
	RegisterSuccessDescription       = "Your account has been created. You can now log in."
	InviteSuccessDescription         = "The invitation has been sent."
)

// Documents Insights and hubs
const (
	DocumentsInsightsTitle        = "Documents"
	DocumentsInsightsProcessedTab = "Processed"
	DocumentsInsightsPendingTab   = "Pending"
	DocumentsInsightsQueuedTab    = "Queued"
	DocumentsInsightsRejectedTab  = "Rejected"
	HubsPageTitle                 = "Hubs"
	HubsPageDescription           = "Your Hubs"
	HubsCreatePopupTitle          = "Create a hub"
	HubsOutlineBasedTitle         = "Outline based"
	HubsValueBasedTitle           = "Value based"
	HubsDeletePopupPartOne        = "Are you sure you want to delete hub "
	HubsDeletePopupPartTwo        = " and all related channels and automation?"
	HubsRenamePopupTitle          = "Rename"
	HubsTagsPopupTitle            = "Tags for hub"
	HubOutlineNoFieldsText        = "There aren't any fields yet."
	HubOutlineFieldsTitle         = "Fields"
	HubOutlineTemplateName        = "Outline 1"
	HubValueNoFieldsTitle         = "No data points yet"
	HubValueFieldsTitle           = "Data Points"
	HubValueSingleFieldName       = "Testing Single"
	HubValueGroupFieldName        = "Testing Group"
	HubValueListFieldName         = "Testing List"
	HubValueNestedFieldName       = "Testing Nested"
)

// Other screens
const (
	WorkflowsTitle      = "Workflows"
	WebAutomationsTitle = "Web Automations"
	DatastoresPageTitle = "Datastores"
	FormsPageTitle      = "Available Forms"
	AlertsPageTitle     = "Alerts"
	SidesPageTitle      = "SIDES"
	SettingsPageTitle   = "Settings"
	AdminConsoleTitle   = "Admin Console"
	NoDataAvailableText = "No data available"
)

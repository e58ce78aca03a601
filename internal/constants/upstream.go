package constants

// Upstream endpoint family. The client id/secret identify the first-party
// desktop client the Code Assist backend expects; they are not secrets in the
// usual sense and must match or the token endpoint rejects the refresh grant.
const (
	UpstreamBaseURL   = "https://cloudcode-pa.googleapis.com"
	UpstreamVersion   = "v1internal"
	UpstreamEndpoint  = UpstreamBaseURL + "/" + UpstreamVersion
	OAuthTokenURL     = "https://oauth2.googleapis.com/token"
	OAuthAuthURL      = "https://accounts.google.com/o/oauth2/v2/auth"
	OAuthUserInfoURL  = "https://www.googleapis.com/oauth2/v1/userinfo"
	ProjectsListURL   = "https://cloudresourcemanager.googleapis.com/v1/projects"
	OAuthClientID     = "1071006060591-tmhssin2h21lcre235vtolojh4g403ep.apps.googleusercontent.com"
	OAuthClientSecret = "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"
)

// Upstream method suffixes, appended to UpstreamEndpoint.
const (
	MethodGenerate        = ":generateContent"
	MethodStreamGenerate  = ":streamGenerateContent"
	MethodCountTokens     = ":countTokens"
	MethodFetchModels     = ":fetchAvailableModels"
	MethodLoadCodeAssist  = ":loadCodeAssist"
	MethodOnboardUser     = ":onboardUser"
	StreamQuery           = "?alt=sse"
	DefaultOnboardTierID  = "legacy-tier"
	OnboardPollAttempts   = 5
)

// Headers the upstream expects on API calls.
const (
	UpstreamUserAgent  = "google-api-nodejs-client/9.15.1"
	UpstreamAPIClient  = "google-cloud-sdk vscode_cloudshelleditor/0.1"
	UpstreamClientName = "antigravity"
	UpstreamReqType    = "agent"
)

// OAuthScopes requested during the consent flow.
var OAuthScopes = []string{
	"https://www.googleapis.com/auth/cloud-platform",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// ClientMetadata accompanies loadCodeAssist/onboardUser calls.
const ClientMetadata = `{"ideType":"ANTIGRAVITY","platform":"PLATFORM_UNSPECIFIED","pluginType":"GEMINI"}`

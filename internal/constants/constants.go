package constants

import "time"

// File and directory permissions.
const (
	// StoreDirPerm is the permission for token store directories.
	StoreDirPerm = 0o700

	// StoreFilePerm is the permission for token store files.
	StoreFilePerm = 0o600
)

// Intuit endpoints.
const (
	// ProductionEndpoint is the accounting API base for production companies.
	ProductionEndpoint = "https://quickbooks.api.intuit.com/v3/company/"

	// SandboxEndpoint is the accounting API base for sandbox companies.
	SandboxEndpoint = "https://sandbox-quickbooks.api.intuit.com/v3/company/"

	// TokenURL is the OAuth2 bearer token endpoint.
	TokenURL = "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer"

	// RevokeURL is the OAuth2 token revocation endpoint.
	RevokeURL = "https://developer.api.intuit.com/v2/oauth2/tokens/revoke"

	// AuthorizeURL is the OAuth2 consent page.
	AuthorizeURL = "https://appcenter.intuit.com/connect/oauth2"

	// Issuer is the expected "iss" claim of OpenID id tokens.
	Issuer = "https://oauth.platform.intuit.com/op/v1"

	// JWKSURL publishes the keys id tokens are signed with.
	JWKSURL = "https://oauth.platform.intuit.com/op/v1/jwks"
)

// HTTP and network timeouts.
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// ShortHTTPTimeout is used for token and key-set requests.
	ShortHTTPTimeout = 10 * time.Second
)

// Retry and concurrency limits.
const (
	// DefaultRetryMax is zero: failed API calls are not retried unless asked.
	DefaultRetryMax = 0

	// DefaultRetryWaitMin is the minimum wait between opt-in retries.
	DefaultRetryWaitMin = 1 * time.Second

	// ExtendedRetryWaitMax is the maximum wait between opt-in retries.
	ExtendedRetryWaitMax = 30 * time.Second

	// DefaultConcurrencyLimit limits concurrent batch chunks.
	DefaultConcurrencyLimit = 3
)

// Query limits.
const (
	// MaxQueryResults is the largest page the query endpoint returns.
	MaxQueryResults = 1000

	// DefaultStartPosition is the first row of a query (1-based).
	DefaultStartPosition = 1

	// DefaultMaxQueryPages bounds fetch-all continuation.
	DefaultMaxQueryPages = 100

	// MaxBatchItems is the server-side limit of items per batch request.
	MaxBatchItems = 30
)

// Token lifecycle.
const (
	// DefaultRefreshBufferSeconds refreshes access tokens this early.
	DefaultRefreshBufferSeconds = 60

	// TokenTypeBearer is the token type issued by the token endpoint.
	TokenTypeBearer = "bearer"

	// GrantTypeAuthorizationCode exchanges an authorization code.
	GrantTypeAuthorizationCode = "authorization_code"

	// GrantTypeRefreshToken exchanges a refresh token.
	GrantTypeRefreshToken = "refresh_token"
)

// Request headers and parameters.
const (
	// HeaderAuthorization carries the bearer or basic credentials.
	HeaderAuthorization = "Authorization"

	// HeaderAccept selects the response representation.
	HeaderAccept = "Accept"

	// HeaderContentType describes the request body.
	HeaderContentType = "Content-Type"

	// HeaderUserAgent identifies the client.
	HeaderUserAgent = "User-Agent"

	// HeaderIntuitSignature carries the webhook HMAC.
	HeaderIntuitSignature = "intuit-signature"

	// ParamMinorVersion selects the API minor version.
	ParamMinorVersion = "minorversion"

	// ParamRequestID makes write requests idempotent.
	ParamRequestID = "requestid"

	// ParamOperation selects delete/void semantics on POST.
	ParamOperation = "operation"

	// ContentTypeJSON is the JSON media type.
	ContentTypeJSON = "application/json"

	// ContentTypePDF is the PDF media type.
	ContentTypePDF = "application/pdf"

	// ContentTypeForm is the form media type used by the token endpoint.
	ContentTypeForm = "application/x-www-form-urlencoded"

	// DefaultUserAgent is sent when no override is configured.
	DefaultUserAgent = "qbo-client-go"
)

// Write operations.
const (
	// OperationDelete deletes an entity.
	OperationDelete = "delete"

	// OperationVoid voids a transaction.
	OperationVoid = "void"

	// OperationUpdate updates an entity.
	OperationUpdate = "update"
)
